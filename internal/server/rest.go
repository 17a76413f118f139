package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/warpdl/warpcas/common"
	"github.com/warpdl/warpcas/internal/api"
	"github.com/warpdl/warpcas/pkg/portal"
)

const maxRequestBody = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// faultStatus maps a request fault to its HTTP status. Login failures never
// get here; they are 200 responses with success false.
func faultStatus(err error) int {
	switch {
	case errors.Is(err, api.ErrInvalidRequest),
		errors.Is(err, portal.ErrUnknownPortal),
		errors.Is(err, api.ErrLoginNotFound):
		return http.StatusBadRequest
	case errors.Is(err, api.ErrBlacklisted):
		return http.StatusForbidden
	case errors.Is(err, api.ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusBadGateway
}

func (s *Server) fault(w http.ResponseWriter, r *http.Request, err error) {
	status := faultStatus(err)
	if status == http.StatusBadGateway {
		s.log.Warning("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, common.ErrorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		return errors.Join(api.ErrInvalidRequest, err)
	}
	return nil
}

func (s *Server) handlePortals(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.api.Portals())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var p common.LoginParams
	if err := decodeBody(w, r, &p); err != nil {
		s.fault(w, r, err)
		return
	}
	out, err := s.api.Login(r.Context(), r.PathValue("portal"), &p)
	if err != nil {
		s.fault(w, r, err)
		return
	}
	s.writeOutcome(w, out)
}

func (s *Server) handleVPNLogin(w http.ResponseWriter, r *http.Request) {
	var p common.LoginParams
	if err := decodeBody(w, r, &p); err != nil {
		s.fault(w, r, err)
		return
	}
	out, err := s.api.VPNLogin(r.Context(), &p)
	if err != nil {
		s.fault(w, r, err)
		return
	}
	s.writeOutcome(w, out)
}

// writeOutcome answers 200 and re-emits every session cookie as Set-Cookie.
func (s *Server) writeOutcome(w http.ResponseWriter, out *api.Outcome) {
	if out.Success && out.Session != nil {
		for _, c := range out.Session.Cookies.HTTPCookies() {
			http.SetCookie(w, c)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCaptchaRequired(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	webVPN, _ := strconv.ParseBool(q.Get("webvpn"))
	res, err := s.api.CaptchaRequired(r.Context(), &common.CaptchaRequiredParams{ID: q.Get("id"), WebVPN: webVPN})
	if err != nil {
		s.fault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCaptchaVerify(w http.ResponseWriter, r *http.Request) {
	var p common.CaptchaVerifyParams
	if err := decodeBody(w, r, &p); err != nil {
		s.fault(w, r, err)
		return
	}
	res, err := s.api.VerifyCaptcha(r.Context(), &p)
	if err != nil {
		s.fault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
