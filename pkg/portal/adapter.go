// Package portal logs users into downstream services behind the identity
// provider. An Adapter names a service URL and the marker that proves the
// service accepted the ticket; adapters differ in nothing else.
package portal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/warpdl/warpcas/pkg/casauth"
)

// MarkerKind selects how an adapter recognises a redeemed ticket.
type MarkerKind string

const (
	// MarkerLocation matches the Location of a redirect in the ticket chain.
	MarkerLocation MarkerKind = "location"
	// MarkerBody matches a substring of the final response body.
	MarkerBody MarkerKind = "body"
)

var (
	ErrInvalidAdapter = errors.New("invalid portal adapter")
)

// Adapter describes one downstream service.
type Adapter struct {
	Name string `yaml:"name" json:"name"`
	// Title is a human readable name.
	Title   string `yaml:"title" json:"title"`
	Service string `yaml:"service" json:"service"`
	// Marker is a URL prefix (MarkerLocation) or a body substring
	// (MarkerBody) such as "<title>图书馆</title>".
	Marker     string     `yaml:"marker" json:"marker"`
	MarkerKind MarkerKind `yaml:"marker_kind" json:"markerKind"`
	// WebVPN services are only reachable through the WebVPN tunnel.
	WebVPN bool `yaml:"webvpn" json:"webvpn"`
	// MaxHops bounds the ticket redemption chain. Zero means
	// casauth.DefaultMaxRedirects.
	MaxHops int `yaml:"max_hops" json:"-"`
}

// Validate checks the adapter definition and defaults MarkerKind.
func (a *Adapter) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidAdapter)
	}
	u, err := url.Parse(a.Service)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %s: service must be an absolute URL", ErrInvalidAdapter, a.Name)
	}
	if a.Marker == "" {
		return fmt.Errorf("%w: %s: marker is required", ErrInvalidAdapter, a.Name)
	}
	switch a.MarkerKind {
	case "":
		a.MarkerKind = MarkerLocation
	case MarkerLocation, MarkerBody:
	default:
		return fmt.Errorf("%w: %s: unknown marker kind %q", ErrInvalidAdapter, a.Name, a.MarkerKind)
	}
	if a.MarkerKind == MarkerLocation {
		m, err := url.Parse(a.Marker)
		if err != nil || m.Scheme == "" || m.Host == "" {
			return fmt.Errorf("%w: %s: location marker must be an absolute URL", ErrInvalidAdapter, a.Name)
		}
	}
	return nil
}

// Login authenticates creds for the service and redeems the ticket.
// opts.Service and opts.WebVPN are set by the adapter. A NeedCaptcha failure
// is resumed by calling Login again with opts.Pending from the failure.
func (a *Adapter) Login(ctx context.Context, c *casauth.Client, creds casauth.Credentials, opts *casauth.LoginOptions) (*casauth.Session, error) {
	var in casauth.LoginOptions
	if opts != nil {
		in = *opts
	}
	if creds.AuthToken != "" {
		s, err := c.ResolveToken(ctx, creds.AuthToken, creds.ID, a.Service)
		if err == nil {
			return s, nil
		}
		if creds.Password == "" {
			return nil, &casauth.Failure{Type: casauth.Unknown, Msg: "auth token rejected: " + err.Error()}
		}
		creds.AuthToken = ""
	}

	if a.WebVPN && (in.Pending == nil || in.Pending.Service != a.Service) {
		vs, err := c.VPNCASLogin(ctx, creds, &in)
		if err != nil {
			return nil, err
		}
		in.Cookies = vs.Cookies
		in.Pending = nil
		in.Captcha = ""
	}
	in.Service = a.Service
	in.WebVPN = a.WebVPN
	sess, err := c.AuthLogin(ctx, creds, &in)
	if err != nil {
		return nil, err
	}
	return a.Redeem(ctx, c, sess, in.Handlers)
}

// Redeem follows the ticket redirect of sess and checks the marker.
func (a *Adapter) Redeem(ctx context.Context, c *casauth.Client, sess *casauth.Session, h *casauth.Handlers) (*casauth.Session, error) {
	h.Step(casauth.StepRedeemTicket)
	var matched string
	last, err := c.Follow(ctx, sess.Cookies, sess.Location, a.MaxHops, func(r *casauth.Response) bool {
		switch a.MarkerKind {
		case MarkerBody:
			if !r.IsRedirect() && r.StatusCode < 300 && strings.Contains(string(r.Body), a.Marker) {
				matched = r.URL.String()
				return true
			}
		default:
			if r.IsRedirect() && MatchLocation(r.Location(), a.Marker) {
				matched = r.Location()
				return true
			}
		}
		return false
	})
	if err != nil {
		return nil, &casauth.Failure{Type: casauth.Unknown, Msg: fmt.Sprintf("%s: redeem ticket: %v", a.Name, err)}
	}
	if matched == "" {
		return nil, &casauth.Failure{
			Type:   casauth.Unknown,
			Msg:    fmt.Sprintf("%s: ticket redemption ended at %d without the success marker", a.Name, last.StatusCode),
			Status: last.StatusCode,
		}
	}
	return &casauth.Session{Cookies: sess.Cookies, Location: matched}, nil
}

// MatchLocation reports whether loc lies at or below marker: same scheme and
// host, and a path equal to or under the marker path. Trailing slashes and
// query strings are ignored.
func MatchLocation(loc, marker string) bool {
	u, err := url.Parse(loc)
	if err != nil {
		return false
	}
	m, err := url.Parse(marker)
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Scheme, m.Scheme) || !strings.EqualFold(u.Host, m.Host) {
		return false
	}
	up := strings.TrimRight(u.Path, "/")
	mp := strings.TrimRight(m.Path, "/")
	return mp == "" || up == mp || strings.HasPrefix(up, mp+"/")
}
