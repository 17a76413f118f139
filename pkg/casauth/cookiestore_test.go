package casauth

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func respWithCookies(setCookies ...string) *http.Response {
	return &http.Response{Header: http.Header{"Set-Cookie": setCookies}}
}

func TestCookieStore_LatestValueWins(t *testing.T) {
	s := NewCookieStore()
	u := mustURL(t, "https://authserver.example.edu/authserver/login")

	s.ApplyResponse(respWithCookies("route=1; Path=/"), u)
	s.ApplyResponse(respWithCookies("route=2; Path=/"), u)
	s.ApplyResponse(respWithCookies("other=x; Path=/", "route=3; Path=/"), u)

	got := s.Header(mustURL(t, "https://authserver.example.edu/"))
	if got != "other=x; route=3" {
		t.Errorf("Header = %q, want %q", got, "other=x; route=3")
	}
}

func TestCookieStore_DuplicateNamesAcrossPaths(t *testing.T) {
	s := NewCookieStore()
	u := mustURL(t, "https://authserver.example.edu/authserver/login")

	s.ApplyResponse(respWithCookies("JSESSIONID=old; Path=/authserver"), u)
	s.ApplyResponse(respWithCookies("JSESSIONID=new; Path=/"), u)

	got := s.Header(u)
	if got != "JSESSIONID=new" {
		t.Errorf("Header = %q, want a single latest JSESSIONID", got)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2 distinct identities", s.Len())
	}
}

func TestCookieStore_DomainIsolation(t *testing.T) {
	s := NewCookieStore()
	s.ApplyResponse(respWithCookies("a=1"), mustURL(t, "https://a.example.com/"))

	if got := s.Header(mustURL(t, "https://b.example.com/")); got != "" {
		t.Errorf("cookie of a.example.com leaked to b.example.com: %q", got)
	}
	if got := s.Header(mustURL(t, "https://a.example.com/x")); got != "a=1" {
		t.Errorf("Header = %q, want a=1", got)
	}
	if got := s.Header(mustURL(t, "https://sub.a.example.com/")); got != "" {
		t.Errorf("host-only cookie sent to subdomain: %q", got)
	}
}

func TestCookieStore_DomainAttribute(t *testing.T) {
	s := NewCookieStore()
	u := mustURL(t, "https://authserver.example.edu/authserver/login")
	s.ApplyResponse(respWithCookies(
		"CASTGC=tgt; Domain=.example.edu; Path=/",
		"evil=1; Domain=other.edu; Path=/",
		"tld=1; Domain=edu; Path=/",
	), u)

	if v, ok := s.Lookup(mustURL(t, "https://library.example.edu/"), "CASTGC"); !ok || v != "tgt" {
		t.Errorf("domain cookie not sent to sibling host: %q %v", v, ok)
	}
	if _, ok := s.Lookup(mustURL(t, "https://other.edu/"), "evil"); ok {
		t.Error("cookie with foreign domain attribute was accepted for that domain")
	}
	if _, ok := s.Lookup(mustURL(t, "https://www.edu/"), "tld"); ok {
		t.Error("cookie for a public suffix was accepted as a domain cookie")
	}
	if _, ok := s.Lookup(u, "tld"); !ok {
		t.Error("public suffix cookie should fall back to host-only")
	}
}

func TestCookieStore_IPHost(t *testing.T) {
	s := NewCookieStore()
	s.ApplyResponse(respWithCookies("a=1; Domain=0.1"), mustURL(t, "http://127.0.0.1:8080/"))
	if got := s.Header(mustURL(t, "http://127.0.0.1:9090/")); got != "a=1" {
		t.Errorf("Header = %q, want a=1", got)
	}
}

func TestCookieStore_SetSynthetic(t *testing.T) {
	s := NewCookieStore()
	s.Set(Cookie{Name: "lang", Value: "zh_CN", Domain: ".Example.edu"})
	got := s.Cookies()
	if len(got) != 1 {
		t.Fatalf("Cookies len = %d, want 1", len(got))
	}
	if got[0].Domain != "example.edu" || got[0].Path != "/" {
		t.Errorf("unexpected normalisation: %+v", got[0])
	}
	s.Set(Cookie{Name: "lang", Value: "en", Domain: "example.edu"})
	if v, _ := s.Lookup(mustURL(t, "https://www.example.edu"), "lang"); v != "en" {
		t.Errorf("Set did not overwrite, got %q", v)
	}
}

func TestCookieStore_CookiesWriteOrder(t *testing.T) {
	s := NewCookieStore()
	s.ApplyResponse(respWithCookies("a=1", "b=2"), mustURL(t, "https://x.example.com/"))
	s.ApplyResponse(respWithCookies("c=3"), mustURL(t, "https://y.example.com/"))
	s.ApplyResponse(respWithCookies("a=4"), mustURL(t, "https://x.example.com/"))

	var names []string
	for _, c := range s.Cookies() {
		names = append(names, c.Name+"="+c.Value)
	}
	want := []string{"b=2", "c=3", "a=4"}
	if len(names) != len(want) {
		t.Fatalf("Cookies = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Cookies = %v, want %v", names, want)
			break
		}
	}
}

func TestCookieStore_CloneAndJSON(t *testing.T) {
	s := NewCookieStore()
	s.ApplyResponse(respWithCookies("a=1; HttpOnly", "b=2; Secure"), mustURL(t, "https://x.example.com/p/q"))

	c := s.Clone()
	c.Set(Cookie{Name: "z", Value: "9", Domain: "x.example.com"})
	if s.Len() != 2 || c.Len() != 3 {
		t.Errorf("clone not independent: %d %d", s.Len(), c.Len())
	}

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	r := NewCookieStore()
	if err := json.Unmarshal(b, r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	u := mustURL(t, "https://x.example.com/")
	if r.Header(u) != s.Header(u) {
		t.Errorf("restored header %q != %q", r.Header(u), s.Header(u))
	}
	got := r.Cookies()
	if !got[0].HttpOnly || !got[1].Secure || got[0].Path != "/p" {
		t.Errorf("attributes lost: %+v", got)
	}
}

func TestCookieStore_HTTPCookies(t *testing.T) {
	s := NewCookieStore()
	s.ApplyResponse(respWithCookies("a=1; Path=/x"), mustURL(t, "https://x.example.com/"))
	hc := s.HTTPCookies()
	if len(hc) != 1 || hc[0].Name != "a" || hc[0].Domain != "x.example.com" || hc[0].Path != "/x" {
		t.Errorf("unexpected http cookies %+v", hc)
	}
}
