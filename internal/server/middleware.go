package server

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const usernameKey ctxKey = iota

// requireAuth accepts a bearer token, or a token query parameter for
// clients that cannot set headers on a websocket handshake.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authentication token is required")
			return
		}
		username, err := s.tokens.Parse(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), usernameKey, username)))
	})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// username returns the authenticated user of a request.
func username(r *http.Request) string {
	u, _ := r.Context().Value(usernameKey).(string)
	return u
}
