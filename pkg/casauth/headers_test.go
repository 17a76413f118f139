package casauth

import (
	"net/http"
	"testing"
)

func TestHeaders_Merge(t *testing.T) {
	base := DefaultHeaders()
	got := base.Merge(Headers{{"user-agent", "warpcas-test"}, {"X-Campus", "main"}})

	hdr := http.Header{}
	got.Set(hdr)
	if hdr.Get(USER_AGENT_KEY) != "warpcas-test" {
		t.Errorf("User-Agent = %q", hdr.Get(USER_AGENT_KEY))
	}
	if hdr.Get("X-Campus") != "main" || hdr.Get(ACCEPT_LANGUAGE_KEY) != DEF_ACCEPT_LANGUAGE {
		t.Errorf("headers = %v", hdr)
	}
	if len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}
	if base[0].Value != DEF_USER_AGENT {
		t.Error("Merge modified its receiver")
	}
}
