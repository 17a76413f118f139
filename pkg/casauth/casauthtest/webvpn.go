package casauthtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"

	"github.com/warpdl/warpcas/pkg/casauth"
)

// TunnelPrefix is where a WebVPN mounts the tunnelled identity provider.
const TunnelPrefix = "/https/authserver-tunnel"

// WebVPN is a fake WebVPN in front of a Provider.
type WebVPN struct {
	*httptest.Server

	mu sync.Mutex
	// BridgeStatus forces a status for the bridge endpoint.
	BridgeStatus int
	// BridgeNoRedirect makes the bridge answer 200 instead of redirecting.
	BridgeNoRedirect bool
	// CallbackStatus forces a status when the ticket is redeemed.
	CallbackStatus int
	// Lockout redirects the ticket redemption back to the login page.
	Lockout bool
	// RotateKey redirects the ticket redemption to the key rotation endpoint.
	RotateKey bool
	// RotateStatus forces a status for the key rotation endpoint.
	RotateStatus int

	provider *Provider
	rotated  int
}

// NewWebVPN starts a fake WebVPN whose bridge sends users to p, and which
// also serves p under TunnelPrefix.
func NewWebVPN(p *Provider) *WebVPN {
	v := &WebVPN{provider: p}
	mux := http.NewServeMux()
	mux.HandleFunc("/login", v.login)
	mux.HandleFunc(casauth.DEF_VPN_KEY_ROTATE_PATH, v.rotate)
	mux.HandleFunc("/", v.home)
	mux.Handle(TunnelPrefix+"/", http.StripPrefix(TunnelPrefix, p.Handler()))
	v.Server = httptest.NewServer(mux)
	return v
}

// Bridge is the bridge URL of the WebVPN.
func (v *WebVPN) Bridge() string {
	return v.URL + casauth.DEF_VPN_LOGIN_PATH + "?" + casauth.DEF_VPN_BRIDGE_QUERY
}

// TunnelAuthServer is the identity provider base as reached through the WebVPN.
func (v *WebVPN) TunnelAuthServer() string {
	return v.URL + TunnelPrefix + "/authserver"
}

// Endpoints returns endpoints addressing the provider and this WebVPN.
func (v *WebVPN) Endpoints() casauth.Endpoints {
	return casauth.Endpoints{
		AuthServer:    v.provider.AuthServer(),
		VPNAuthServer: v.TunnelAuthServer(),
		WebVPN:        v.URL,
	}
}

// Rotations returns how many times the key rotation endpoint was hit.
func (v *WebVPN) Rotations() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rotated
}

func (v *WebVPN) login(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if r.URL.Query().Get("cas_login") != "true" {
		fmt.Fprint(w, "<html><title>WebVPN</title></html>")
		return
	}
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		if v.BridgeStatus != 0 {
			w.WriteHeader(v.BridgeStatus)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "wengine_vpn_ticket", Value: "anon", Path: "/"})
		if v.BridgeNoRedirect {
			fmt.Fprint(w, "<html><title>WebVPN</title></html>")
			return
		}
		http.Redirect(w, r, v.provider.AuthServer()+"/login?service="+url.QueryEscape(v.Bridge()), http.StatusFound)
		return
	}
	if v.CallbackStatus != 0 {
		w.WriteHeader(v.CallbackStatus)
		return
	}
	if v.Lockout || !v.provider.ValidTicket(ticket, v.Bridge()) {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "wengine_vpn_ticket", Value: "vpn-" + ticket, Path: "/", HttpOnly: true})
	if v.RotateKey {
		http.Redirect(w, r, casauth.DEF_VPN_KEY_ROTATE_PATH+"?t=1", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (v *WebVPN) rotate(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rotated++
	if v.RotateStatus != 0 {
		w.WriteHeader(v.RotateStatus)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "refresh", Value: "1", Path: "/"})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (v *WebVPN) home(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "<html><title>WebVPN Portal</title></html>")
}
