package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// rpcUnauthorized is the JSON-RPC error body sent to callers without a valid
// token.
var rpcUnauthorized = map[string]any{
	"jsonrpc": "2.0",
	"error":   map[string]any{"code": -32600, "message": "Unauthorized"},
	"id":      nil,
}

// requireToken guards next with the RPC secret. An empty secret rejects
// every request.
func requireToken(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !validToken(secret, callerToken(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(rpcUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// callerToken extracts the presented secret. Browsers cannot set headers on
// a WebSocket handshake, so upgrades may carry it as ?access_token= instead.
func callerToken(r *http.Request) string {
	if tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return tok
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func validToken(secret, token string) bool {
	if secret == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
