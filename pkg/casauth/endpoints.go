package casauth

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DEF_VPN_LOGIN_PATH is the WebVPN's own login page.
	DEF_VPN_LOGIN_PATH = "/login"
	// DEF_VPN_BRIDGE_QUERY marks the WebVPN login URL that bridges to CAS.
	DEF_VPN_BRIDGE_QUERY = "cas_login=true"
	// DEF_VPN_KEY_ROTATE_PATH is where the WebVPN sends a client whose
	// tunnel key must be rotated after login.
	DEF_VPN_KEY_ROTATE_PATH = "/wengine-vpn/key/rotate"

	localeCookieName  = "org.springframework.web.servlet.i18n.CookieLocaleResolver.LOCALE"
	localeCookieValue = "zh_CN"
)

var (
	ErrMissingAuthServer = errors.New("identity provider base URL is required")
	ErrMissingWebVPN     = errors.New("webvpn base URL is required for tunnelled logins")
)

// Endpoints locates the identity provider and the WebVPN.
type Endpoints struct {
	// AuthServer is the identity provider base, e.g.
	// https://authserver.example.edu/authserver
	AuthServer string `yaml:"auth_server"`
	// VPNAuthServer is AuthServer as reached through the WebVPN. It is used
	// by logins with WebVPN set.
	VPNAuthServer string `yaml:"vpn_auth_server"`
	// WebVPN is the WebVPN base, e.g. https://webvpn.example.edu
	WebVPN string `yaml:"webvpn"`
	// VPNLoginPath, VPNBridgeQuery and VPNKeyRotatePath default to the
	// DEF_VPN_* constants when empty.
	VPNLoginPath     string `yaml:"vpn_login_path"`
	VPNBridgeQuery   string `yaml:"vpn_bridge_query"`
	VPNKeyRotatePath string `yaml:"vpn_key_rotate_path"`
}

// Validate checks that the configured URLs parse and fills defaults.
func (e *Endpoints) Validate() error {
	if e.AuthServer == "" {
		return ErrMissingAuthServer
	}
	for _, raw := range []string{e.AuthServer, e.VPNAuthServer, e.WebVPN} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid endpoint url %q", raw)
		}
	}
	if e.VPNLoginPath == "" {
		e.VPNLoginPath = DEF_VPN_LOGIN_PATH
	}
	if e.VPNBridgeQuery == "" {
		e.VPNBridgeQuery = DEF_VPN_BRIDGE_QUERY
	}
	if e.VPNKeyRotatePath == "" {
		e.VPNKeyRotatePath = DEF_VPN_KEY_ROTATE_PATH
	}
	return nil
}

func (e *Endpoints) authBase(webVPN bool) (string, error) {
	if !webVPN {
		return strings.TrimRight(e.AuthServer, "/"), nil
	}
	if e.VPNAuthServer == "" {
		return "", ErrMissingWebVPN
	}
	return strings.TrimRight(e.VPNAuthServer, "/"), nil
}

func loginURL(base, service string) string {
	return base + "/login?service=" + url.QueryEscape(service)
}

func captchaCheckURL(base, id string) string {
	return base + "/checkNeedCaptcha.htl?username=" + url.QueryEscape(id) +
		"&_=" + strconv.FormatInt(time.Now().UnixMilli(), 10)
}

func sliderCaptchaURL(base string) string {
	return base + "/common/openSliderCaptcha.htl?_=" + strconv.FormatInt(time.Now().UnixMilli(), 10)
}

func verifySliderURL(base string) string {
	return base + "/common/verifySliderCaptcha.htl"
}

// VPNBridgeURL is the WebVPN endpoint that hands off to CAS. It doubles as
// the service URL CAS redirects back to.
func (e *Endpoints) VPNBridgeURL() (string, error) {
	if e.WebVPN == "" {
		return "", ErrMissingWebVPN
	}
	return strings.TrimRight(e.WebVPN, "/") + e.VPNLoginPath + "?" + e.VPNBridgeQuery, nil
}

func (e *Endpoints) vpnHost() string {
	u, err := url.Parse(e.WebVPN)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

func (e *Endpoints) isVPNLoginPage(u *url.URL) bool {
	return strings.EqualFold(u.Host, e.vpnHost()) && strings.TrimRight(u.Path, "/") == strings.TrimRight(e.VPNLoginPath, "/")
}

func (e *Endpoints) isVPNKeyRotation(u *url.URL) bool {
	return strings.EqualFold(u.Host, e.vpnHost()) && strings.HasPrefix(u.Path, e.VPNKeyRotatePath)
}

// localeCookie is required by some deployments to avoid a redirect loop
// into a language selection page.
func localeCookie(base string) Cookie {
	host := ""
	if u, err := url.Parse(base); err == nil {
		host = strings.ToLower(u.Hostname())
	}
	return Cookie{
		Name:     localeCookieName,
		Value:    localeCookieValue,
		Domain:   host,
		Path:     "/",
		HostOnly: true,
	}
}
