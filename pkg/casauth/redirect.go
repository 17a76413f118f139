package casauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

const (
	// DefaultMaxRedirects is the maximum number of redirect hops Follow takes.
	DefaultMaxRedirects = 10
)

var (
	// ErrTooManyRedirects is returned when a redirect chain exceeds the configured max hops.
	ErrTooManyRedirects = errors.New("redirect loop detected")

	// ErrCrossProtocolRedirect is returned when a redirect leaves http/https.
	ErrCrossProtocolRedirect = errors.New("cross-protocol redirect not supported")
)

// isHTTPScheme returns true if the scheme is http or https.
func isHTTPScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

// VisitFunc inspects one response of a redirect chain. Returning true stops
// the walk at that response.
type VisitFunc func(r *Response) (stop bool)

// Follow walks a redirect chain starting at rawURL one GET at a time, calling
// visit for every response. It stops when visit returns true, when a response
// is not a redirect, or after maxHops redirects. A maxHops of zero or less
// means DefaultMaxRedirects. The last response is returned.
func (c *Client) Follow(ctx context.Context, store *CookieStore, rawURL string, maxHops int, visit VisitFunc) (*Response, error) {
	if maxHops <= 0 {
		maxHops = DefaultMaxRedirects
	}
	next := rawURL
	for hop := 0; ; hop++ {
		r, err := c.Get(ctx, store, next)
		if err != nil {
			return nil, err
		}
		if visit != nil && visit(r) {
			return r, nil
		}
		if !r.IsRedirect() {
			return r, nil
		}
		if hop >= maxHops {
			return r, fmt.Errorf("%w: exceeded %d hops (last URL: %s)", ErrTooManyRedirects, maxHops, redact(r.URL))
		}
		next = r.Location()
		u, err := url.Parse(next)
		if err != nil {
			return r, fmt.Errorf("invalid redirect location: %w", err)
		}
		if !isHTTPScheme(u.Scheme) {
			return r, fmt.Errorf("%w: %s -> %s", ErrCrossProtocolRedirect, r.URL.Scheme, u.Scheme)
		}
	}
}
