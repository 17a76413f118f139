package casauthtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// TicketValidator checks a service ticket. *Provider implements it.
type TicketValidator interface {
	ValidTicket(ticket, service string) bool
}

// Portal is a fake downstream service. /sso redeems a ticket and redirects to
// HomePath, which serves a page titled Title.
type Portal struct {
	*httptest.Server

	mu sync.Mutex
	// HomePath is where a redeemed ticket leads. Defaults to /home.
	HomePath string
	// Title is the <title> of the home page.
	Title string
	// Hops adds intermediate redirects between /sso and HomePath.
	Hops int
	// RedirectTo overrides the final redirect target of /sso.
	RedirectTo string
	// ServiceURL is the service tickets must be issued for. Defaults to
	// URL + "/sso"; set it when the portal is reached through a HostMap.
	ServiceURL string

	validator TicketValidator
}

// NewPortal starts a fake portal whose tickets are checked by v.
func NewPortal(v TicketValidator) *Portal {
	p := &Portal{HomePath: "/home", Title: "Portal Home", validator: v}
	mux := http.NewServeMux()
	mux.HandleFunc("/sso", p.sso)
	mux.HandleFunc("/hop", p.hop)
	mux.HandleFunc("/", p.home)
	p.Server = httptest.NewServer(mux)
	p.ServiceURL = p.URL + "/sso"
	return p
}

// Service is the service URL to log into.
func (p *Portal) Service() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ServiceURL
}

// Home is the absolute URL of the home page.
func (p *Portal) Home() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.URL + p.HomePath
}

func (p *Portal) sso(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" || !p.validator.ValidTicket(ticket, p.ServiceURL) {
		http.Error(w, "invalid ticket", http.StatusUnauthorized)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "PORTALSESSID", Value: "portal-" + ticket, Path: "/", HttpOnly: true})
	if p.Hops > 0 {
		http.Redirect(w, r, fmt.Sprintf("/hop?n=%d", p.Hops), http.StatusFound)
		return
	}
	http.Redirect(w, r, p.target(), http.StatusFound)
}

func (p *Portal) hop(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int
	fmt.Sscanf(r.URL.Query().Get("n"), "%d", &n)
	if n > 1 {
		http.Redirect(w, r, fmt.Sprintf("/hop?n=%d", n-1), http.StatusFound)
		return
	}
	http.Redirect(w, r, p.target(), http.StatusFound)
}

func (p *Portal) target() string {
	if p.RedirectTo != "" {
		return p.RedirectTo
	}
	return p.HomePath
}

func (p *Portal) home(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := r.Cookie("PORTALSESSID"); err != nil {
		http.Error(w, "not logged in", http.StatusUnauthorized)
		return
	}
	fmt.Fprintf(w, "<html><head><title>%s</title></head><body>welcome</body></html>", p.Title)
}
