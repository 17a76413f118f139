package casauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/warpdl/warpcas/pkg/logger"
)

// maxBodySize caps how much of a response body is buffered. Login pages and
// captcha payloads are far below it.
const maxBodySize = 8 << 20

var (
	ErrNilCookieStore    = errors.New("cookie store is nil")
	ErrNoSessionResolver = errors.New("no session resolver configured")
)

// Credentials identify the user logging in. AuthToken, when set and a
// SessionResolver is configured, replaces the interactive login.
type Credentials struct {
	ID        string
	Password  string
	AuthToken string
}

// SessionResolver turns a pre-authenticated bearer token into a session
// obtained earlier by id for service. A token issued to another id must be
// rejected.
type SessionResolver interface {
	Resolve(ctx context.Context, token, id, service string) (*Session, error)
}

// Client speaks to the identity provider and the WebVPN. It never follows
// redirects on its own: every hop goes through Get or PostForm so that the
// status code, Location and Set-Cookie of each response are observed.
type Client struct {
	hc        *http.Client
	endpoints Endpoints
	headers   Headers
	log       logger.Logger
	sessions  SessionResolver
}

// ClientOpts are optional settings for NewClient.
type ClientOpts struct {
	// HTTPClient is copied; its redirect policy and cookie jar are replaced.
	HTTPClient *http.Client
	// Headers are sent with every request. Defaults to DefaultHeaders().
	Headers Headers
	Logger  logger.Logger
	// Sessions resolves Credentials.AuthToken. Nil disables the shortcut.
	Sessions SessionResolver
}

// NewClient creates a client for the given endpoints.
func NewClient(ep Endpoints, opts *ClientOpts) (*Client, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &ClientOpts{}
	}
	hc := &http.Client{}
	if opts.HTTPClient != nil {
		cp := *opts.HTTPClient
		hc = &cp
	}
	hc.CheckRedirect = noFollow
	hc.Jar = nil
	if opts.Headers == nil {
		opts.Headers = DefaultHeaders()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	return &Client{
		hc:        hc,
		endpoints: ep,
		headers:   opts.Headers,
		log:       opts.Logger,
		sessions:  opts.Sessions,
	}, nil
}

// Endpoints returns the validated endpoints of c.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// ResolveToken resolves the auth token of id for service through the
// configured SessionResolver.
func (c *Client) ResolveToken(ctx context.Context, token, id, service string) (*Session, error) {
	if c.sessions == nil {
		return nil, ErrNoSessionResolver
	}
	return c.sessions.Resolve(ctx, token, id, service)
}

func noFollow(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// URL is the URL the request was sent to.
	URL *url.URL
}

// IsRedirect reports whether r is a 3xx response carrying a Location.
func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400 && r.Header.Get("Location") != ""
}

// IsServerError reports whether r has a 5xx status.
func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}

// Location returns the Location header resolved against the request URL.
func (r *Response) Location() string {
	loc := r.Header.Get("Location")
	if loc == "" || r.URL == nil {
		return loc
	}
	u, err := r.URL.Parse(loc)
	if err != nil {
		return loc
	}
	return u.String()
}

// Get issues a GET to rawURL with the cookies of store and records the
// cookies of the response in store.
func (c *Client) Get(ctx context.Context, store *CookieStore, rawURL string) (*Response, error) {
	return c.do(ctx, store, http.MethodGet, rawURL, nil, "")
}

// PostForm issues a form-encoded POST to rawURL.
func (c *Client) PostForm(ctx context.Context, store *CookieStore, rawURL string, form url.Values) (*Response, error) {
	return c.do(ctx, store, http.MethodPost, rawURL, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func (c *Client) do(ctx context.Context, store *CookieStore, method, rawURL string, body io.Reader, contentType string) (*Response, error) {
	if store == nil {
		return nil, ErrNilCookieStore
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	c.headers.Set(req.Header)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if h := store.Header(req.URL); h != "" {
		req.Header.Set("Cookie", h)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, redact(req.URL), err)
	}
	defer resp.Body.Close()
	store.ApplyResponse(resp, req.URL)
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", redact(req.URL), err)
	}
	c.log.Debug("%s %s -> %d", method, redact(req.URL), resp.StatusCode)
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       b,
		URL:        req.URL,
	}, nil
}

// redact drops the query string, which may carry tickets.
func redact(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path
}
