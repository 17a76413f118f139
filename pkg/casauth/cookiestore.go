package casauth

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Cookie represents a single HTTP cookie held by a CookieStore.
// IMPORTANT: Cookie values are session credentials. They MUST NEVER be logged
// or formatted into error messages. Only Name and Domain may appear in logs.
type Cookie struct {
	// Name is the cookie name.
	Name string `json:"name"`
	// Value is the cookie value. Never logged.
	Value string `json:"value"`
	// Domain is the cookie domain without any leading dot.
	Domain string `json:"domain"`
	// Path is the cookie path scope.
	Path string `json:"path"`
	// Expires is advisory only, the store never drops expired cookies.
	Expires time.Time `json:"expires,omitempty"`
	// Secure indicates the cookie should only be sent over HTTPS.
	Secure bool `json:"secure,omitempty"`
	// HttpOnly indicates the cookie is not accessible via JavaScript.
	HttpOnly bool `json:"httpOnly,omitempty"`
	// HostOnly is set when the cookie carried no usable Domain attribute and
	// therefore matches its origin host exactly.
	HostOnly bool `json:"hostOnly,omitempty"`
}

// matchesHost reports whether the cookie is sent to host.
func (c *Cookie) matchesHost(host string) bool {
	if host == c.Domain {
		return true
	}
	if c.HostOnly {
		return false
	}
	return strings.HasSuffix(host, "."+c.Domain)
}

type storedCookie struct {
	Cookie
	seq uint64
}

// CookieStore is a multi-domain cookie jar owned by a single login flow.
// Every write is stamped with an increasing sequence number so that the most
// recently set value wins when several cookies share a name.
//
// A CookieStore may be handed down to chained adapters that extend the same
// session; it must not be shared between unrelated logins.
type CookieStore struct {
	mu      sync.Mutex
	domains map[string][]*storedCookie
	seq     uint64
}

// NewCookieStore creates an empty cookie store.
func NewCookieStore() *CookieStore {
	return &CookieStore{
		domains: make(map[string][]*storedCookie),
	}
}

// ApplyResponse records every Set-Cookie entry of resp. requestURL is the URL
// the request was sent to; it supplies the domain for cookies that carry no
// Domain attribute and the default path. If requestURL is nil the URL of
// resp.Request is used.
func (s *CookieStore) ApplyResponse(resp *http.Response, requestURL *url.URL) {
	if resp == nil {
		return
	}
	if requestURL == nil && resp.Request != nil {
		requestURL = resp.Request.URL
	}
	if requestURL == nil {
		return
	}
	host := canonicalHost(requestURL)
	for _, hc := range resp.Cookies() {
		domain, hostOnly := resolveDomain(hc.Domain, host)
		path := hc.Path
		if path == "" || path[0] != '/' {
			path = defaultPath(requestURL)
		}
		s.upsert(Cookie{
			Name:     hc.Name,
			Value:    hc.Value,
			Domain:   domain,
			Path:     path,
			Expires:  hc.Expires,
			Secure:   hc.Secure,
			HttpOnly: hc.HttpOnly,
			HostOnly: hostOnly,
		})
	}
}

// Set inserts or overwrites a synthetic cookie. An empty path defaults to "/".
func (s *CookieStore) Set(c Cookie) {
	c.Domain = strings.ToLower(strings.TrimPrefix(c.Domain, "."))
	if c.Path == "" {
		c.Path = "/"
	}
	s.upsert(c)
}

func (s *CookieStore) upsert(c Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	list := s.domains[c.Domain]
	for _, sc := range list {
		if sc.Name == c.Name && sc.Path == c.Path {
			sc.Cookie = c
			sc.seq = s.seq
			return
		}
	}
	s.domains[c.Domain] = append(list, &storedCookie{Cookie: c, seq: s.seq})
}

// Header builds the Cookie header value for a request to u: "a=1; b=2".
// Only cookies whose domain matches the host of u are included and
// duplicate names collapse to the most recently set value.
func (s *CookieStore) Header(u *url.URL) string {
	cookies := s.matching(u)
	if len(cookies) == 0 {
		return ""
	}
	parts := make([]string, len(cookies))
	for i, c := range cookies {
		parts[i] = c.Name + "=" + c.Value
	}
	return strings.Join(parts, "; ")
}

// Lookup returns the value of the named cookie that would be sent to u.
func (s *CookieStore) Lookup(u *url.URL, name string) (string, bool) {
	for _, c := range s.matching(u) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func (s *CookieStore) matching(u *url.URL) []*storedCookie {
	if u == nil {
		return nil
	}
	host := canonicalHost(u)
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := make(map[string]*storedCookie)
	for _, list := range s.domains {
		for _, sc := range list {
			if !sc.matchesHost(host) {
				continue
			}
			if prev, ok := latest[sc.Name]; ok && prev.seq > sc.seq {
				continue
			}
			latest[sc.Name] = sc
		}
	}
	out := make([]*storedCookie, 0, len(latest))
	for _, sc := range latest {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (s *CookieStore) sorted() []*storedCookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*storedCookie
	for _, list := range s.domains {
		out = append(out, list...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Cookies returns every stored cookie in write order. Each (name, domain, path)
// identity appears once.
func (s *CookieStore) Cookies() []Cookie {
	stored := s.sorted()
	out := make([]Cookie, len(stored))
	for i, sc := range stored {
		out[i] = sc.Cookie
	}
	return out
}

// HTTPCookies converts the stored cookies for re-emission as Set-Cookie
// response headers.
func (s *CookieStore) HTTPCookies() []*http.Cookie {
	stored := s.sorted()
	out := make([]*http.Cookie, len(stored))
	for i, sc := range stored {
		out[i] = &http.Cookie{
			Name:     sc.Name,
			Value:    sc.Value,
			Domain:   sc.Domain,
			Path:     sc.Path,
			Expires:  sc.Expires,
			Secure:   sc.Secure,
			HttpOnly: sc.HttpOnly,
		}
	}
	return out
}

// Len returns the number of stored cookies.
func (s *CookieStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, list := range s.domains {
		n += len(list)
	}
	return n
}

// Clone returns an independent copy of the store preserving write order.
func (s *CookieStore) Clone() *CookieStore {
	c := NewCookieStore()
	for _, sc := range s.sorted() {
		c.upsert(sc.Cookie)
	}
	return c
}

// MarshalJSON encodes the store as an ordered list of cookies.
func (s *CookieStore) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Cookies())
}

// UnmarshalJSON restores a store encoded by MarshalJSON.
func (s *CookieStore) UnmarshalJSON(b []byte) error {
	var cookies []Cookie
	if err := json.Unmarshal(b, &cookies); err != nil {
		return err
	}
	s.mu.Lock()
	s.domains = make(map[string][]*storedCookie)
	s.seq = 0
	s.mu.Unlock()
	for _, c := range cookies {
		s.upsert(c)
	}
	return nil
}

// canonicalHost returns the lower-cased host of u without port.
func canonicalHost(u *url.URL) string {
	return strings.ToLower(u.Hostname())
}

// resolveDomain picks the domain a cookie is stored under. An explicit Domain
// attribute is honoured when the request host domain-matches it and it is not
// a public suffix; otherwise the cookie becomes host-only for host.
func resolveDomain(attr, host string) (domain string, hostOnly bool) {
	d := strings.ToLower(strings.TrimPrefix(attr, "."))
	if d == "" || host == "" {
		return host, true
	}
	if d == host {
		return d, false
	}
	if net.ParseIP(host) != nil || !strings.HasSuffix(host, "."+d) {
		return host, true
	}
	if ps, _ := publicsuffix.PublicSuffix(d); ps == d {
		return host, true
	}
	return d, false
}

// defaultPath implements the RFC 6265 default-path of a request URL.
func defaultPath(u *url.URL) string {
	p := u.Path
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}
