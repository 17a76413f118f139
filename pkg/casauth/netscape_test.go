package casauth

import (
	"bytes"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestNetscape_RoundTrip(t *testing.T) {
	s := NewCookieStore()
	exp := time.Unix(1900000000, 0)
	s.Set(Cookie{Name: "CASTGC", Value: "TGT-1", Domain: "authserver.example.edu", Path: "/authserver", Secure: true, HttpOnly: true, HostOnly: true})
	s.Set(Cookie{Name: "route", Value: "r1", Domain: ".example.edu", Expires: exp})

	var buf bytes.Buffer
	if err := s.WriteNetscape(&buf); err != nil {
		t.Fatalf("WriteNetscape: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "# Netscape HTTP Cookie File") {
		t.Errorf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "#HttpOnly_authserver.example.edu\tFALSE\t/authserver\tTRUE\t0\tCASTGC\tTGT-1\n") {
		t.Errorf("host-only cookie line wrong:\n%s", out)
	}
	if !strings.Contains(out, ".example.edu\tTRUE\t/\tFALSE\t1900000000\troute\tr1\n") {
		t.Errorf("domain cookie line wrong:\n%s", out)
	}

	back := NewCookieStore()
	n, err := back.ReadNetscape(strings.NewReader(out + "malformed line\n# comment\n"))
	if err != nil || n != 2 {
		t.Fatalf("ReadNetscape = %d, %v", n, err)
	}
	u, _ := url.Parse("https://authserver.example.edu/authserver/login")
	if got := back.Header(u); got != "CASTGC=TGT-1; route=r1" {
		t.Errorf("Header = %q", got)
	}
	other, _ := url.Parse("https://lib.example.edu/")
	if got := back.Header(other); got != "route=r1" {
		t.Errorf("host-only cookie leaked: %q", got)
	}
	for _, c := range back.Cookies() {
		if c.Name == "route" && !c.Expires.Equal(exp) {
			t.Errorf("expiry = %v", c.Expires)
		}
		if c.Name == "CASTGC" && (!c.HttpOnly || !c.Secure || !c.HostOnly) {
			t.Errorf("flags lost: %+v", c)
		}
	}
}
