package casauth_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/warpdl/warpcas/pkg/casauth"
	"github.com/warpdl/warpcas/pkg/casauth/casauthtest"
)

func newTunnel(t *testing.T) (*casauthtest.Provider, *casauthtest.WebVPN, *casauth.Client) {
	t.Helper()
	p := newProvider(t)
	v := casauthtest.NewWebVPN(p)
	t.Cleanup(v.Close)
	return p, v, newClient(t, v.Endpoints(), nil)
}

func TestVPNCASLogin_Success(t *testing.T) {
	p, v, c := newTunnel(t)

	var steps []casauth.Step
	sess, err := c.VPNCASLogin(context.Background(), creds(), &casauth.LoginOptions{
		Handlers: &casauth.Handlers{StepHandler: func(s casauth.Step) { steps = append(steps, s) }},
	})
	if err != nil {
		t.Fatalf("VPNCASLogin: %v", err)
	}
	if sess.Location != v.URL+"/" {
		t.Errorf("Location = %q", sess.Location)
	}
	if subs := p.Submissions(); len(subs) != 1 || subs[0].Service != v.Bridge() {
		t.Errorf("inner login did not target the bridge: %+v", subs)
	}
	found := false
	for _, ck := range sess.Cookies.Cookies() {
		if ck.Name == "wengine_vpn_ticket" && strings.HasPrefix(ck.Value, "vpn-") {
			found = true
		}
	}
	if !found {
		t.Error("webvpn ticket cookie missing")
	}
	if steps[0] != casauth.StepVPNBridge || steps[len(steps)-1] != casauth.StepVPNCallback {
		t.Errorf("steps = %v", steps)
	}
}

func TestVPNCASLogin_BridgeServiceError(t *testing.T) {
	for _, inner := range []func(p *casauthtest.Provider){
		func(p *casauthtest.Provider) {},
		func(p *casauthtest.Provider) { p.Users[testID] = "other" },
		func(p *casauthtest.Provider) { p.Locked[testID] = true },
	} {
		p, v, c := newTunnel(t)
		inner(p)
		v.BridgeStatus = http.StatusInternalServerError

		_, err := c.VPNCASLogin(context.Background(), creds(), nil)
		f := wantFailure(t, err, casauth.ServiceError)
		if f.Status != http.StatusInternalServerError {
			t.Errorf("status = %d", f.Status)
		}
		if len(p.Submissions()) != 0 {
			t.Error("inner login ran despite the bridge failing")
		}
	}
}

func TestVPNCASLogin_BridgeWithoutRedirect(t *testing.T) {
	_, v, c := newTunnel(t)
	v.BridgeNoRedirect = true
	_, err := c.VPNCASLogin(context.Background(), creds(), nil)
	wantFailure(t, err, casauth.Unknown)
}

func TestVPNCASLogin_InnerFailurePassesThrough(t *testing.T) {
	p, _, c := newTunnel(t)
	p.SSOActive[testID] = true
	_, err := c.VPNCASLogin(context.Background(), creds(), nil)
	wantFailure(t, err, casauth.EnabledSSO)
}

func TestVPNCASLogin_Lockout(t *testing.T) {
	_, v, c := newTunnel(t)
	v.Lockout = true
	_, err := c.VPNCASLogin(context.Background(), creds(), nil)
	wantFailure(t, err, casauth.AccountLocked)
}

func TestVPNCASLogin_CallbackServiceError(t *testing.T) {
	_, v, c := newTunnel(t)
	v.CallbackStatus = http.StatusServiceUnavailable
	_, err := c.VPNCASLogin(context.Background(), creds(), nil)
	wantFailure(t, err, casauth.ServiceError)
}

func TestVPNCASLogin_CallbackWithoutRedirect(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusForbidden, http.StatusNotFound} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			_, v, c := newTunnel(t)
			v.CallbackStatus = status
			sess, err := c.VPNCASLogin(context.Background(), creds(), nil)
			if sess != nil {
				t.Fatalf("callback answering %d produced a session", status)
			}
			f := wantFailure(t, err, casauth.Unknown)
			if f.Status != status {
				t.Errorf("Status = %d, want %d", f.Status, status)
			}
		})
	}
}

func TestVPNCASLogin_TokenOnlyWithoutResolver(t *testing.T) {
	p, _, c := newTunnel(t)
	_, err := c.VPNCASLogin(context.Background(), casauth.Credentials{ID: testID, AuthToken: "tok"}, nil)
	wantFailure(t, err, casauth.Unknown)
	if len(p.Submissions()) != 0 {
		t.Errorf("token-only login submitted %d times to the provider", len(p.Submissions()))
	}
}

func TestVPNCASLogin_KeyRotation(t *testing.T) {
	_, v, c := newTunnel(t)
	v.RotateKey = true

	sess, err := c.VPNCASLogin(context.Background(), creds(), nil)
	if err != nil {
		t.Fatalf("VPNCASLogin: %v", err)
	}
	if v.Rotations() != 1 {
		t.Errorf("rotation endpoint hit %d times, want 1", v.Rotations())
	}
	if !strings.Contains(sess.Location, casauth.DEF_VPN_KEY_ROTATE_PATH) {
		t.Errorf("Location = %q", sess.Location)
	}
	if _, ok := sess.Cookies.Lookup(mustParse(t, v.URL), "refresh"); !ok {
		t.Error("cookie from the rotation hop not recorded")
	}
}

func TestVPNCASLogin_KeyRotationServiceError(t *testing.T) {
	_, v, c := newTunnel(t)
	v.RotateKey = true
	v.RotateStatus = http.StatusInternalServerError
	_, err := c.VPNCASLogin(context.Background(), creds(), nil)
	wantFailure(t, err, casauth.ServiceError)
}

func TestVPNCASLogin_CaptchaReentry(t *testing.T) {
	p, v, c := newTunnel(t)
	p.CaptchaRequired[testID] = true
	ctx := context.Background()

	_, err := c.VPNCASLogin(ctx, creds(), nil)
	f := wantFailure(t, err, casauth.NeedCaptcha)
	if f.Pending.Service != v.Bridge() {
		t.Fatalf("pending service = %q", f.Pending.Service)
	}

	neg, _ := c.Captcha(false)
	if ok, err := neg.VerifyCaptcha(ctx, f.Pending.Cookies, p.SliderAnswer, 280); err != nil || !ok {
		t.Fatalf("VerifyCaptcha = %v, %v", ok, err)
	}
	sess, err := c.VPNCASLogin(ctx, creds(), &casauth.LoginOptions{Pending: f.Pending, Captcha: p.CaptchaCode})
	if err != nil {
		t.Fatalf("re-entry: %v", err)
	}
	if sess.Location != v.URL+"/" {
		t.Errorf("Location = %q", sess.Location)
	}
}

func TestVPNCASLogin_RequiresWebVPN(t *testing.T) {
	p := newProvider(t)
	c := newClient(t, casauth.Endpoints{AuthServer: p.AuthServer()}, nil)
	if _, err := c.VPNCASLogin(context.Background(), creds(), nil); err != casauth.ErrMissingWebVPN {
		t.Errorf("err = %v", err)
	}
}
