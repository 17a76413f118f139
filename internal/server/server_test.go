package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/warpdl/warpcas/internal/api"
	"github.com/warpdl/warpcas/internal/metrics"
	"github.com/warpdl/warpcas/internal/store"
	"github.com/warpdl/warpcas/pkg/casauth"
	"github.com/warpdl/warpcas/pkg/casauth/casauthtest"
	"github.com/warpdl/warpcas/pkg/credman"
	"github.com/warpdl/warpcas/pkg/logger"
	"github.com/warpdl/warpcas/pkg/portal"
)

const (
	testID     = "2023000001"
	testSecret = "test-rpc-secret"
)

type testEnv struct {
	srv      *Server
	http     *httptest.Server
	provider *casauthtest.Provider
	portal   *casauthtest.Portal
	store    *store.Store
	log      *logger.MockLogger
}

func newTestEnv(t *testing.T, limit int) *testEnv {
	t.Helper()
	p := casauthtest.NewProvider()
	t.Cleanup(p.Close)
	p.Users[testID] = "pw"
	v := casauthtest.NewWebVPN(p)
	t.Cleanup(v.Close)
	po := casauthtest.NewPortal(p)
	t.Cleanup(po.Close)

	reg, err := portal.NewRegistry(portal.Adapter{Name: "oa", Title: "OA", Service: po.Service(), Marker: po.Home()})
	if err != nil {
		t.Fatal(err)
	}
	vault, err := credman.NewVault("", bytes.Repeat([]byte{7}, 32), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	c, err := casauth.NewClient(v.Endpoints(), &casauth.ClientOpts{Sessions: vault})
	if err != nil {
		t.Fatal(err)
	}
	st, err := store.Open(filepath.Join(t.TempDir(), "warpcas.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	l := logger.NewMockLogger()
	var a *api.Api
	m := metrics.New(func() float64 { return float64(a.PendingCount()) })
	a, err = api.New(&api.Options{
		Client:  c,
		Portals: reg,
		Logger:  l,
		Store:   st,
		Vault:   vault,
		Metrics: m,
		Limiter: api.NewLimiter(limit),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })

	s := NewServer(l, a, m, "127.0.0.1:0", &RPCConfig{
		Secret:    testSecret,
		Version:   "1.0.0",
		Commit:    "abc123",
		BuildType: "release",
	})
	hs := httptest.NewServer(s.handler())
	t.Cleanup(func() {
		hs.Close()
		s.rpc.Close()
	})
	return &testEnv{srv: s, http: hs, provider: p, portal: po, store: st, log: l}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.http.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: bad body %q", method, path, raw)
		}
	}
	return resp, out
}

func TestREST_Login(t *testing.T) {
	e := newTestEnv(t, 0)
	resp, out := e.do(t, http.MethodPost, "/api/login/oa", map[string]string{"id": testID, "password": "pw"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, out)
	}
	if out["success"] != true || out["location"] != e.portal.Home() {
		t.Fatalf("outcome = %v", out)
	}
	if tok, _ := out["authToken"].(string); tok == "" {
		t.Error("no authToken in response")
	}
	found := false
	for _, c := range resp.Cookies() {
		if c.Name == "PORTALSESSID" {
			found = true
		}
	}
	if !found {
		t.Errorf("session cookie not re-emitted: %v", resp.Header["Set-Cookie"])
	}
}

func TestREST_LoginFailureIs200(t *testing.T) {
	e := newTestEnv(t, 0)
	resp, out := e.do(t, http.MethodPost, "/api/login/oa", map[string]string{"id": testID, "password": "nope"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if out["success"] != false || out["type"] != string(casauth.WrongPassword) {
		t.Errorf("outcome = %v", out)
	}
	if len(resp.Cookies()) != 0 {
		t.Error("failure set cookies")
	}
}

func TestREST_RequestFaults(t *testing.T) {
	e := newTestEnv(t, 1)
	ctx := context.Background()
	e.store.Block(ctx, "banned", "abuse")

	cases := []struct {
		name string
		path string
		body any
		want int
	}{
		{"missing id", "/api/login/oa", map[string]string{"password": "pw"}, http.StatusBadRequest},
		{"unknown portal", "/api/login/nope", map[string]string{"id": testID, "password": "pw"}, http.StatusBadRequest},
		{"stale loginId", "/api/login/oa", map[string]string{"id": testID, "password": "pw", "loginId": "x", "captcha": "c"}, http.StatusBadRequest},
		{"blacklisted", "/api/login/oa", map[string]string{"id": "banned", "password": "pw"}, http.StatusForbidden},
		{"bad verify", "/api/captcha/verify", map[string]any{"loginId": "", "width": 280}, http.StatusBadRequest},
	}
	for _, c := range cases {
		resp, out := e.do(t, http.MethodPost, c.path, c.body)
		if resp.StatusCode != c.want {
			t.Errorf("%s: status = %d, want %d", c.name, resp.StatusCode, c.want)
		}
		if msg, _ := out["error"].(string); msg == "" {
			t.Errorf("%s: no error message", c.name)
		}
	}

	// the stale loginId request above spent the only token for testID
	resp, _ := e.do(t, http.MethodPost, "/api/login/oa", map[string]string{"id": testID, "password": "pw"})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("rate limit: status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, e.http.URL+"/api/login/oa", strings.NewReader("{not json"))
	raw, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	raw.Body.Close()
	if raw.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d", raw.StatusCode)
	}
}

func TestREST_CaptchaFlow(t *testing.T) {
	e := newTestEnv(t, 0)
	e.provider.CaptchaRequired[testID] = true

	resp, out := e.do(t, http.MethodGet, "/api/captcha/required?id="+testID, nil)
	if resp.StatusCode != http.StatusOK || out["required"] != true {
		t.Fatalf("required = %d %v", resp.StatusCode, out)
	}

	_, out = e.do(t, http.MethodPost, "/api/login/oa", map[string]string{"id": testID, "password": "pw"})
	loginID, _ := out["loginId"].(string)
	if out["type"] != string(casauth.NeedCaptcha) || loginID == "" || out["captcha"] == nil {
		t.Fatalf("outcome = %v", out)
	}

	_, out = e.do(t, http.MethodPost, "/api/captcha/verify", map[string]any{"loginId": loginID, "moved": e.provider.SliderAnswer, "width": 280})
	if out["ok"] != true {
		t.Fatalf("verify = %v", out)
	}
	_, out = e.do(t, http.MethodPost, "/api/login/oa", map[string]string{
		"id": testID, "password": "pw", "loginId": loginID, "captcha": e.provider.CaptchaCode,
	})
	if out["success"] != true {
		t.Fatalf("re-entry = %v", out)
	}

	resp, _ = e.do(t, http.MethodGet, "/api/captcha/required", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing id: status = %d", resp.StatusCode)
	}
}

func TestREST_VPNLoginAndPortals(t *testing.T) {
	e := newTestEnv(t, 0)
	resp, out := e.do(t, http.MethodPost, "/api/vpn/login", map[string]string{"id": testID, "password": "pw"})
	if resp.StatusCode != http.StatusOK || out["success"] != true {
		t.Fatalf("vpn login = %d %v", resp.StatusCode, out)
	}

	_, out = e.do(t, http.MethodGet, "/api/portals", nil)
	list, _ := out["portals"].([]any)
	if len(list) != 1 {
		t.Fatalf("portals = %v", out)
	}
	if p := list[0].(map[string]any); p["name"] != "oa" || p["title"] != "OA" {
		t.Errorf("portal = %v", p)
	}

	resp, _ = e.do(t, http.MethodGet, "/api/login/oa", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET login: status = %d", resp.StatusCode)
	}
}

func TestREST_HealthAndMetrics(t *testing.T) {
	e := newTestEnv(t, 0)
	resp, out := e.do(t, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK || out["status"] != "ok" {
		t.Errorf("healthz = %d %v", resp.StatusCode, out)
	}

	e.do(t, http.MethodPost, "/api/login/oa", map[string]string{"id": testID, "password": "pw"})
	mr, err := http.Get(e.http.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer mr.Body.Close()
	body, _ := io.ReadAll(mr.Body)
	if !strings.Contains(string(body), `warpcas_logins_total{outcome="success",portal="oa"} 1`) {
		t.Errorf("metrics missing login counter:\n%s", body)
	}
	if !strings.Contains(string(body), "warpcas_pending_logins") {
		t.Error("metrics missing pending gauge")
	}
}

func TestServer_RequestLogging(t *testing.T) {
	e := newTestEnv(t, 0)
	rr := httptest.NewRecorder()
	e.srv.handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	found := false
	for _, line := range e.log.All() {
		if strings.HasPrefix(line, "GET /healthz 200") {
			found = true
		}
	}
	if !found {
		t.Errorf("request not logged: %v", e.log.All())
	}
}

func TestServer_StartShutdown(t *testing.T) {
	s := NewServer(nil, nil, nil, "127.0.0.1:0", nil)
	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		started := s.server != nil
		s.mu.Unlock()
		if started {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v after Shutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}
}

func TestFaultStatus(t *testing.T) {
	cases := map[error]int{
		api.ErrInvalidRequest:    http.StatusBadRequest,
		portal.ErrUnknownPortal:  http.StatusBadRequest,
		api.ErrLoginNotFound:     http.StatusBadRequest,
		api.ErrBlacklisted:       http.StatusForbidden,
		api.ErrRateLimited:       http.StatusTooManyRequests,
		context.DeadlineExceeded: http.StatusBadGateway,
	}
	for err, want := range cases {
		if got := faultStatus(err); got != want {
			t.Errorf("faultStatus(%v) = %d, want %d", err, got, want)
		}
	}
}
