package casauthtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
)

// HostMap is an http.RoundTripper that sends requests for the named hosts
// to test servers, so fixtures can use real looking URLs such as
// https://library.example.edu/sso. Unknown hosts fail.
type HostMap map[string]*httptest.Server

// RoundTrip implements http.RoundTripper.
func (m HostMap) RoundTrip(req *http.Request) (*http.Response, error) {
	srv, ok := m[req.URL.Hostname()]
	if !ok {
		return nil, fmt.Errorf("casauthtest: no server for host %q", req.URL.Hostname())
	}
	target, err := url.Parse(srv.URL)
	if err != nil {
		return nil, err
	}
	out := req.Clone(req.Context())
	out.URL.Scheme = target.Scheme
	out.URL.Host = target.Host
	out.Host = req.URL.Host
	resp, err := http.DefaultTransport.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	resp.Request = req
	return resp, nil
}

// Client returns an HTTP client that routes through m.
func (m HostMap) Client() *http.Client {
	return &http.Client{Transport: m}
}
