package api

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/warpdl/warpcas/common"
	"github.com/warpdl/warpcas/internal/metrics"
	"github.com/warpdl/warpcas/internal/store"
	"github.com/warpdl/warpcas/pkg/casauth"
)

// Outcome is the JSON form of a login result. Success outcomes carry the
// session; failures carry the failure type and message, and NeedCaptcha
// failures the challenge and the loginId to answer it with.
type Outcome struct {
	Success      bool                      `json:"success"`
	Type         casauth.FailureType       `json:"type,omitempty"`
	Msg          string                    `json:"msg,omitempty"`
	Location     string                    `json:"location,omitempty"`
	Cookies      []casauth.Cookie          `json:"cookies,omitempty"`
	CookieHeader string                    `json:"cookieHeader,omitempty"`
	Captcha      *casauth.CaptchaChallenge `json:"captcha,omitempty"`
	LoginID      string                    `json:"loginId,omitempty"`
	AuthToken    string                    `json:"authToken,omitempty"`

	// Session is the raw success value, used to re-emit cookies.
	Session *casauth.Session `json:"-"`
}

func successOutcome(sess *casauth.Session) *Outcome {
	out := &Outcome{
		Success:  true,
		Location: sess.Location,
		Cookies:  sess.Cookies.Cookies(),
		Session:  sess,
	}
	if u, err := url.Parse(sess.Location); err == nil && u.Host != "" {
		out.CookieHeader = sess.Cookies.Header(u)
	}
	return out
}

func credentials(p *common.LoginParams) casauth.Credentials {
	return casauth.Credentials{ID: p.ID, Password: p.Password, AuthToken: p.AuthToken}
}

// Login logs p.ID into the named portal. The returned error is a request
// fault; login failures are reported in the Outcome.
func (a *Api) Login(ctx context.Context, portalName string, p *common.LoginParams) (*Outcome, error) {
	if err := a.validate(p); err != nil {
		return nil, err
	}
	if portalName == common.VPN_PORTAL {
		return a.VPNLogin(ctx, p)
	}
	adapter, err := a.portals.Get(portalName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := a.admit(ctx, p.ID); err != nil {
		return nil, err
	}
	opts, err := a.resume(p, adapter.Name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	sess, err := adapter.Login(ctx, a.client, credentials(p), opts)
	return a.outcome(ctx, adapter.Name, adapter.Service, p, sess, err, start), nil
}

// VPNLogin logs p.ID into the WebVPN only.
func (a *Api) VPNLogin(ctx context.Context, p *common.LoginParams) (*Outcome, error) {
	if err := a.validate(p); err != nil {
		return nil, err
	}
	ep := a.client.Endpoints()
	bridge, err := ep.VPNBridgeURL()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := a.admit(ctx, p.ID); err != nil {
		return nil, err
	}
	opts, err := a.resume(p, common.VPN_PORTAL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	sess, err := a.client.VPNCASLogin(ctx, credentials(p), opts)
	return a.outcome(ctx, common.VPN_PORTAL, bridge, p, sess, err, start), nil
}

// resume builds the options of a login answering a captcha. The pending
// state is consumed by exactly one request: a rejected answer needs a fresh
// login. A request for another id or portal leaves it in place.
func (a *Api) resume(p *common.LoginParams, portalName string) (*casauth.LoginOptions, error) {
	if p.LoginID == "" {
		return nil, nil
	}
	entry, ok := a.pending.TakeIf(p.LoginID, func(e *pendingLogin) bool {
		return e.id == p.ID && e.portal == portalName
	})
	if !ok {
		return nil, ErrLoginNotFound
	}
	return &casauth.LoginOptions{Pending: entry.pending, Captcha: p.Captcha}, nil
}

func (a *Api) outcome(ctx context.Context, portalName, service string, p *common.LoginParams, sess *casauth.Session, err error, start time.Time) *Outcome {
	took := time.Since(start)
	if err == nil {
		out := successOutcome(sess)
		out.AuthToken = a.issueToken(p, service, sess)
		a.record(ctx, p.ID, portalName, metrics.OutcomeSuccess, "", took)
		a.log.Info("login %s for %s: success", portalName, p.ID)
		return out
	}

	f := casauth.AsFailure(err)
	out := &Outcome{Type: f.Type, Msg: f.Msg}
	if f.Type == casauth.NeedCaptcha && f.Pending != nil {
		loginID := a.newLoginID()
		a.pending.Set(loginID, &pendingLogin{id: p.ID, portal: portalName, pending: f.Pending})
		out.LoginID = loginID
		out.Captcha = f.Captcha
	}
	a.record(ctx, p.ID, portalName, string(f.Type), f.Msg, took)
	a.log.Info("login %s for %s: %s", portalName, p.ID, f.Type)
	return out
}

// issueToken stores sess in the vault. A login that was served from a token
// keeps that token.
func (a *Api) issueToken(p *common.LoginParams, service string, sess *casauth.Session) string {
	if a.vault == nil {
		return ""
	}
	if p.AuthToken != "" && p.Password == "" {
		return p.AuthToken
	}
	tok, err := a.vault.Put(p.ID, service, sess)
	if err != nil {
		a.log.Warning("session vault: %v", err)
		return ""
	}
	return tok
}

func (a *Api) record(ctx context.Context, id, portalName, outcome, msg string, took time.Duration) {
	a.metrics.ObserveLogin(portalName, outcome, took)
	if a.store == nil {
		return
	}
	err := a.store.RecordLogin(ctx, store.LoginRecord{ID: id, Portal: portalName, Outcome: outcome, Msg: msg})
	if err != nil {
		a.log.Error("audit %s/%s: %v", portalName, id, err)
	}
}
