package casauth

import (
	"context"
	"fmt"
	"net/url"
)

// VPNCASLogin logs into the WebVPN through the identity provider. The
// bridge endpoint is requested first; its redirect starts an AuthLogin whose
// service is the bridge itself, and the resulting ticket is redeemed at the
// WebVPN. The WebVPN's answer decides the outcome: a redirect back to its
// login page means the tunnel locked the account, a redirect to the key
// rotation endpoint is followed once.
//
// opts.Service and opts.WebVPN are ignored. opts.Pending resumes a tunnel
// login that stopped with NeedCaptcha. Failures of the inner login are
// returned unchanged.
func (c *Client) VPNCASLogin(ctx context.Context, creds Credentials, opts *LoginOptions) (*Session, error) {
	if opts == nil {
		opts = &LoginOptions{}
	}
	bridge, err := c.endpoints.VPNBridgeURL()
	if err != nil {
		return nil, err
	}
	if creds.AuthToken != "" {
		s, err := c.ResolveToken(ctx, creds.AuthToken, creds.ID, bridge)
		if err == nil {
			return s, nil
		}
		if creds.Password == "" {
			return nil, newFailure(Unknown, "auth token rejected: %v", err)
		}
		c.log.Warning("login %s: auth token rejected, falling back to password: %v", creds.ID, err)
	}
	creds.AuthToken = ""
	h := opts.Handlers

	inner := &LoginOptions{
		Service:  bridge,
		Cookies:  opts.Cookies,
		Pending:  opts.Pending,
		Captcha:  opts.Captcha,
		Handlers: h,
	}
	if inner.Pending == nil {
		if inner.Cookies == nil {
			inner.Cookies = NewCookieStore()
		}
		c.step(h, creds.ID, StepVPNBridge)
		r, err := c.Get(ctx, inner.Cookies, bridge)
		if err != nil {
			return nil, fmt.Errorf("webvpn bridge: %w", err)
		}
		if r.IsServerError() {
			return nil, statusFailure(ServiceError, r, "webvpn bridge answered %d", r.StatusCode)
		}
		if !r.IsRedirect() {
			return nil, statusFailure(Unknown, r, "webvpn bridge answered %d without redirect", r.StatusCode)
		}
	}

	sess, err := c.AuthLogin(ctx, creds, inner)
	if err != nil {
		return nil, err
	}
	store := sess.Cookies

	c.step(h, creds.ID, StepVPNCallback)
	r, err := c.Get(ctx, store, sess.Location)
	if err != nil {
		return nil, fmt.Errorf("webvpn callback: %w", err)
	}
	if r.IsServerError() {
		return nil, statusFailure(ServiceError, r, "webvpn callback answered %d", r.StatusCode)
	}
	if !r.IsRedirect() {
		return nil, statusFailure(Unknown, r, "webvpn callback answered %d without redirect", r.StatusCode)
	}
	loc := r.Location()
	u, err := url.Parse(loc)
	if err != nil {
		return nil, newFailure(Unknown, "webvpn callback redirected to an invalid location")
	}
	switch {
	case c.endpoints.isVPNLoginPage(u):
		c.log.Warning("login %s: webvpn refused the ticket, account locked", creds.ID)
		return nil, statusFailure(AccountLocked, r, "webvpn locked the account after repeated failures")
	case c.endpoints.isVPNKeyRotation(u):
		c.step(h, creds.ID, StepVPNKeyRotate)
		kr, err := c.Get(ctx, store, loc)
		if err != nil {
			return nil, fmt.Errorf("webvpn key rotation: %w", err)
		}
		if kr.IsServerError() {
			return nil, statusFailure(ServiceError, kr, "webvpn key rotation answered %d", kr.StatusCode)
		}
	}
	c.log.Info("login %s: webvpn session established", creds.ID)
	return &Session{Cookies: store, Location: loc}, nil
}
