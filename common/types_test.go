package common

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestLoginParamsJSON(t *testing.T) {
	var p LoginParams
	body := `{"id":"2023001","password":"pw","loginId":"abc","captcha":"1234"}`
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.ID != "2023001" || p.Password != "pw" || p.LoginID != "abc" || p.Captcha != "1234" {
		t.Fatalf("unexpected params: %+v", p)
	}
	b, _ := json.Marshal(LoginParams{ID: "x"})
	if strings.Contains(string(b), "password") || strings.Contains(string(b), "authToken") {
		t.Fatalf("empty secrets serialised: %s", b)
	}
}

func TestCaptchaVerifyResultOmitsEmptyCaptcha(t *testing.T) {
	b, _ := json.Marshal(CaptchaVerifyResult{OK: true})
	if string(b) != `{"ok":true}` {
		t.Fatalf("got %s", b)
	}
}
