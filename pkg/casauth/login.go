package casauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// LoginOptions select the target and the state of a login.
type LoginOptions struct {
	// Service is the URL the identity provider redirects to with a ticket.
	Service string
	// WebVPN selects the identity provider as reached through the WebVPN.
	WebVPN bool
	// Cookies is the store the flow reads and writes. A new store is created
	// when nil.
	Cookies *CookieStore
	// Pending resumes a login that stopped with NeedCaptcha. The fetch,
	// token and captcha steps are skipped and Service, WebVPN and Cookies
	// are taken from it.
	Pending *PendingLogin
	// Captcha is the solved captcha code submitted with the credentials.
	Captcha  string
	Handlers *Handlers
}

// Session is the success variant of a login: the cookies that authenticate
// the user and the redirect target the provider answered with.
type Session struct {
	Cookies  *CookieStore `json:"cookies"`
	Location string       `json:"location"`
}

// PendingLogin is the state of a login waiting for captcha resolution.
type PendingLogin struct {
	Salt      string       `json:"salt"`
	Execution string       `json:"execution"`
	Service   string       `json:"service"`
	WebVPN    bool         `json:"webvpn"`
	Cookies   *CookieStore `json:"cookies"`
}

// AuthLogin runs the identity provider login for creds and returns the
// authenticated session. Login failures are returned as *Failure; any other
// error is an unexpected condition (transport errors, bad configuration).
//
// The steps are: fetch the login page, extract the salt and execution
// tokens, set the locale cookie, ask whether a captcha is required, submit
// the encrypted credentials and interpret the answer. When a captcha is
// required and opts.Captcha is empty the flow stops with a NeedCaptcha
// failure whose Pending field resumes it.
func (c *Client) AuthLogin(ctx context.Context, creds Credentials, opts *LoginOptions) (*Session, error) {
	if opts == nil {
		opts = &LoginOptions{}
	}
	if creds.AuthToken != "" {
		s, err := c.ResolveToken(ctx, creds.AuthToken, creds.ID, opts.Service)
		if err == nil {
			c.log.Debug("login %s: resolved auth token", creds.ID)
			return s, nil
		}
		if creds.Password == "" {
			return nil, newFailure(Unknown, "auth token rejected: %v", err)
		}
		c.log.Warning("login %s: auth token rejected, falling back to password: %v", creds.ID, err)
	}

	p := opts.Pending
	if p == nil {
		var (
			s   *Session
			err error
		)
		p, s, err = c.prepare(ctx, creds.ID, opts)
		if err != nil || s != nil {
			return s, err
		}
	} else if p.Cookies == nil {
		return nil, ErrNilCookieStore
	}
	return c.submit(ctx, creds, p, opts)
}

// prepare runs the steps before credential submission. A non-nil session
// means the provider recognised an existing single sign-on session and
// issued a ticket right away.
func (c *Client) prepare(ctx context.Context, id string, opts *LoginOptions) (*PendingLogin, *Session, error) {
	h := opts.Handlers
	base, err := c.endpoints.authBase(opts.WebVPN)
	if err != nil {
		return nil, nil, err
	}
	store := opts.Cookies
	if store == nil {
		store = NewCookieStore()
	}

	c.step(h, id, StepFetchLoginPage)
	r, err := c.Get(ctx, store, loginURL(base, opts.Service))
	if err != nil {
		return nil, nil, fmt.Errorf("fetch login page: %w", err)
	}
	switch {
	case r.IsServerError():
		return nil, nil, statusFailure(ServiceError, r, "identity provider answered %d", r.StatusCode)
	case r.IsRedirect():
		loc := r.Location()
		if isAuthLogin(loc, base) {
			return nil, nil, statusFailure(Unknown, r, "login page redirected to itself")
		}
		if !c.ticketRedirect(loc, opts.Service, opts.WebVPN) {
			return nil, nil, statusFailure(Unknown, r, "login page redirected to %s", redactQuery(loc))
		}
		return nil, &Session{Cookies: store, Location: loc}, nil
	case r.StatusCode != http.StatusOK:
		return nil, nil, statusFailure(Unknown, r, "login page answered %d", r.StatusCode)
	}

	c.step(h, id, StepExtractTokens)
	salt, ok := extractSalt(r.Body)
	if !ok {
		return nil, nil, newFailure(Unknown, "login page carries no encryption salt")
	}
	execution, ok := extractExecution(r.Body)
	if !ok {
		return nil, nil, newFailure(Unknown, "login page carries no execution token")
	}
	store.Set(localeCookie(base))
	p := &PendingLogin{
		Salt:      salt,
		Execution: execution,
		Service:   opts.Service,
		WebVPN:    opts.WebVPN,
		Cookies:   store,
	}

	c.step(h, id, StepCaptchaCheck)
	neg := &CaptchaNegotiator{c: c, base: base}
	need, err := neg.CheckCaptchaRequired(ctx, store, id)
	if err != nil {
		return nil, nil, fmt.Errorf("captcha check: %w", err)
	}
	if !need || opts.Captcha != "" {
		return p, nil, nil
	}

	c.step(h, id, StepAwaitCaptcha)
	ch, err := neg.FetchCaptcha(ctx, store)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch captcha: %w", err)
	}
	return nil, nil, &Failure{
		Type:    NeedCaptcha,
		Msg:     "captcha required",
		Captcha: ch,
		Pending: p,
	}
}

func (c *Client) submit(ctx context.Context, creds Credentials, p *PendingLogin, opts *LoginOptions) (*Session, error) {
	h := opts.Handlers
	base, err := c.endpoints.authBase(p.WebVPN)
	if err != nil {
		return nil, err
	}

	c.step(h, creds.ID, StepSubmitCredentials)
	form := url.Values{
		"username":   {creds.ID},
		"password":   {EncryptPassword(creds.Password, p.Salt)},
		"captcha":    {opts.Captcha},
		"_eventId":   {"submit"},
		"cllt":       {"userNameLogin"},
		"dllt":       {"generalLogin"},
		"lt":         {""},
		"execution":  {p.Execution},
		"rememberMe": {"true"},
	}
	r, err := c.PostForm(ctx, p.Cookies, loginURL(base, p.Service), form)
	if err != nil {
		return nil, fmt.Errorf("submit credentials: %w", err)
	}

	c.step(h, creds.ID, StepInterpretResult)
	switch {
	case r.IsServerError():
		return nil, statusFailure(ServiceError, r, "identity provider answered %d", r.StatusCode)
	case r.IsRedirect():
		loc := r.Location()
		if isAuthLogin(loc, base) {
			return nil, statusFailure(Unknown, r, "redirected back to the login page")
		}
		if !c.ticketRedirect(loc, p.Service, p.WebVPN) {
			c.log.Warning("login %s: unexpected redirect to %s", creds.ID, redactQuery(loc))
			return nil, statusFailure(Unknown, r, "credential submission redirected to %s", redactQuery(loc))
		}
		c.log.Info("login %s: authenticated", creds.ID)
		return &Session{Cookies: p.Cookies, Location: loc}, nil
	case r.StatusCode == http.StatusOK:
		kind, msg := classifyPage(r.Body)
		c.log.Info("login %s: rejected (%s)", creds.ID, kind)
		return nil, statusFailure(kind, r, "%s", msg)
	default:
		return nil, statusFailure(Unknown, r, "credential submission answered %d", r.StatusCode)
	}
}

func (c *Client) step(h *Handlers, id string, s Step) {
	c.log.Debug("login %s: %s", id, s)
	h.Step(s)
}

func statusFailure(t FailureType, r *Response, format string, args ...any) *Failure {
	f := newFailure(t, format, args...)
	f.Status = r.StatusCode
	return f
}

// isAuthLogin reports whether loc is the login endpoint under base.
func isAuthLogin(loc, base string) bool {
	u, err := url.Parse(loc)
	if err != nil {
		return false
	}
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, b.Host) &&
		strings.TrimRight(u.Path, "/") == strings.TrimRight(b.Path, "/")+"/login"
}

// ticketRedirect reports whether loc hands a service ticket to service.
// Without a service the provider lands on its own pages, so any redirect
// away from the login page is accepted.
func (c *Client) ticketRedirect(loc, service string, webVPN bool) bool {
	if service == "" {
		return true
	}
	if isServiceTicket(loc, service) {
		return true
	}
	if !webVPN {
		return false
	}
	// The WebVPN rewrites the target to /<scheme>/<host key>/<path> on its
	// own host.
	u, err := url.Parse(loc)
	if err != nil || u.Query().Get("ticket") == "" || !strings.EqualFold(u.Host, c.endpoints.vpnHost()) {
		return false
	}
	s, err := url.Parse(service)
	if err != nil {
		return false
	}
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 3)
	if len(parts) < 2 || (parts[0] != "http" && parts[0] != "https") {
		return false
	}
	rest := "/"
	if len(parts) == 3 {
		rest += parts[2]
	}
	return samePath(rest, s.Path)
}

// isServiceTicket reports whether loc is service carrying a ticket: same
// scheme and host, same path up to trailing slashes, and a ticket query
// parameter.
func isServiceTicket(loc, service string) bool {
	u, err := url.Parse(loc)
	if err != nil {
		return false
	}
	s, err := url.Parse(service)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, s.Scheme) &&
		strings.EqualFold(u.Host, s.Host) &&
		samePath(u.Path, s.Path) &&
		u.Query().Get("ticket") != ""
}

func samePath(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}

// redactQuery drops the query of loc so tickets never reach logs or
// failure messages.
func redactQuery(loc string) string {
	u, err := url.Parse(loc)
	if err != nil {
		return "an invalid location"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
