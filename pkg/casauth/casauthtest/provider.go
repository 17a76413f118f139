// Package casauthtest provides scriptable fake identity provider, WebVPN and
// portal servers for tests.
package casauthtest

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/warpdl/warpcas/pkg/casauth"
)

const (
	// Tip texts returned by the fake provider.
	TipWrongPassword = "您提供的用户名或者密码有误"
	TipLocked        = "您的帐号已被冻结，请稍后再试"
	TipWrongCaptcha  = "验证码错误"
	TipSSO           = "您的账号已在其他地方登录，单点登录已启用"
)

// Submission records one credential submission received by a Provider.
type Submission struct {
	Form url.Values
	// Password is the decrypted password, empty when decryption failed.
	Password string
	Service  string
}

// Provider is a fake identity provider mounted under /authserver.
// Exported fields may be changed between logins; they are read under mu.
type Provider struct {
	*httptest.Server

	mu sync.Mutex
	// Salt and Execution are embedded in the login page.
	Salt      string
	Execution string
	// Users maps ids to passwords.
	Users map[string]string
	// CaptchaRequired lists ids that must solve the slider first.
	CaptchaRequired map[string]bool
	// SliderAnswer is the accepted slider displacement, within 5 pixels.
	SliderAnswer int
	// CaptchaCode is the code the captcha form field must carry once the
	// slider is solved.
	CaptchaCode string
	// Locked and SSOActive make submissions for an id fail accordingly.
	Locked    map[string]bool
	SSOActive map[string]bool
	// PageStatus and SubmitStatus force a status for the login page and the
	// credential submission.
	PageStatus   int
	SubmitStatus int
	// OmitTokens serves a login page without salt and execution.
	OmitTokens bool
	// Redirect, when set, replaces the ticket redirect of a successful
	// submission or of an existing session.
	Redirect string
	// ExtraCookies are set on every login page response.
	ExtraCookies []*http.Cookie

	submissions []Submission
	tickets     map[string]string
	sessions    map[string]string
	solved      map[string]bool
	seq         int
}

// NewProvider starts a fake identity provider.
func NewProvider() *Provider {
	p := &Provider{
		Salt:            "abc123",
		Execution:       "exec-token-1",
		Users:           map[string]string{},
		CaptchaRequired: map[string]bool{},
		SliderAnswer:    120,
		CaptchaCode:     "ok",
		Locked:          map[string]bool{},
		SSOActive:       map[string]bool{},
		tickets:         map[string]string{},
		sessions:        map[string]string{},
		solved:          map[string]bool{},
	}
	p.Server = httptest.NewServer(p.Handler())
	return p
}

// AuthServer is the base URL of the provider.
func (p *Provider) AuthServer() string {
	return p.URL + "/authserver"
}

// Handler serves the provider routes. It can be mounted elsewhere, e.g.
// behind a path prefix on a fake WebVPN.
func (p *Provider) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/authserver/login", p.login)
	mux.HandleFunc("/authserver/checkNeedCaptcha.htl", p.checkNeedCaptcha)
	mux.HandleFunc("/authserver/common/openSliderCaptcha.htl", p.openSlider)
	mux.HandleFunc("/authserver/common/verifySliderCaptcha.htl", p.verifySlider)
	return mux
}

// Submissions returns the credential submissions received so far.
func (p *Provider) Submissions() []Submission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Submission(nil), p.submissions...)
}

// ValidTicket reports whether ticket was issued for service and consumes it.
func (p *Provider) ValidTicket(ticket, service string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.tickets[ticket]
	if ok {
		delete(p.tickets, ticket)
	}
	return ok && s == service
}

func (p *Provider) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie("JSESSIONID"); err == nil {
		if _, ok := p.sessions[c.Value]; ok {
			return c.Value
		}
	}
	p.seq++
	id := fmt.Sprintf("sess-%d", p.seq)
	p.sessions[id] = ""
	http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: id, Path: "/authserver", HttpOnly: true})
	return id
}

func (p *Provider) login(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	service := r.URL.Query().Get("service")
	if r.Method == http.MethodPost {
		p.submit(w, r, service)
		return
	}
	if p.PageStatus != 0 {
		w.WriteHeader(p.PageStatus)
		return
	}
	if c, err := r.Cookie("CASTGC"); err == nil && c.Value != "" && service != "" {
		http.Redirect(w, r, p.ticketTarget(service), http.StatusFound)
		return
	}
	p.session(w, r)
	for _, c := range p.ExtraCookies {
		http.SetCookie(w, c)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, p.page(""))
}

func (p *Provider) page(tip string) string {
	var sb strings.Builder
	sb.WriteString("<html><head><title>统一身份认证</title></head><body><form id=\"pwdFromId\" method=\"post\">\n")
	if !p.OmitTokens {
		fmt.Fprintf(&sb, "<input type=\"hidden\" id=\"pwdEncryptSalt\" value=\"%s\" />\n", html.EscapeString(p.Salt))
		fmt.Fprintf(&sb, "<input type=\"hidden\" name=\"execution\" value=\"%s\" />\n", html.EscapeString(p.Execution))
	}
	fmt.Fprintf(&sb, "<span id=\"showErrorTip\">%s</span>\n</form></body></html>", html.EscapeString(tip))
	return sb.String()
}

func (p *Provider) submit(w http.ResponseWriter, r *http.Request, service string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := r.PostForm.Get("username")
	plain, _ := casauth.DecryptPassword(r.PostForm.Get("password"), p.Salt)
	p.submissions = append(p.submissions, Submission{Form: r.PostForm, Password: plain, Service: service})
	if p.SubmitStatus != 0 {
		w.WriteHeader(p.SubmitStatus)
		return
	}
	sess := p.session(w, r)

	var tip string
	switch {
	case r.PostForm.Get("execution") != p.Execution:
		tip = "页面已过期，请刷新"
	case p.Locked[id]:
		tip = TipLocked
	case p.CaptchaRequired[id] && (!p.solved[sess] || r.PostForm.Get("captcha") != p.CaptchaCode):
		tip = TipWrongCaptcha
	case p.SSOActive[id]:
		tip = TipSSO
	case p.Users[id] == "" || p.Users[id] != plain:
		tip = TipWrongPassword
	}
	if tip != "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, p.page(tip))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "CASTGC", Value: "TGT-" + id, Path: "/authserver", HttpOnly: true})
	http.Redirect(w, r, p.ticketTarget(service), http.StatusFound)
}

func (p *Provider) ticketTarget(service string) string {
	if p.Redirect != "" {
		return p.Redirect
	}
	return p.issue(service)
}

func (p *Provider) issue(service string) string {
	p.seq++
	ticket := fmt.Sprintf("ST-%d-fake", p.seq)
	p.tickets[ticket] = service
	sep := "?"
	if strings.Contains(service, "?") {
		sep = "&"
	}
	return service + sep + "ticket=" + ticket
}

func (p *Provider) checkNeedCaptcha(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	need := p.CaptchaRequired[r.URL.Query().Get("username")]
	p.mu.Unlock()
	writeJSON(w, map[string]bool{"isNeed": need})
}

func (p *Provider) openSlider(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.session(w, r)
	p.mu.Unlock()
	writeJSON(w, map[string]any{
		"bigImage":   "YmFja2dyb3VuZA==",
		"smallImage": "c2xpZGVy",
		"tagWidth":   93,
		"yHeight":    41,
	})
}

func (p *Provider) verifySlider(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var moved int
	fmt.Sscanf(r.PostForm.Get("moveLength"), "%d", &moved)
	sess := p.session(w, r)
	if d := moved - p.SliderAnswer; d >= -5 && d <= 5 {
		p.solved[sess] = true
		writeJSON(w, map[string]any{"errorCode": 1, "errorMsg": "success"})
		return
	}
	writeJSON(w, map[string]any{"errorCode": 0, "errorMsg": "error"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
