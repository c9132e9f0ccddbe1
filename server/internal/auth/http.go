package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Middleware enforces the guard on the REST API and WebSocket stream.
// Preflight requests always pass.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	if !g.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if err := g.Check(r.URL.Path, r.Header.Get(g.header)); err != nil {
			msg := "invalid api key"
			if errors.Is(err, ErrMissingKey) {
				msg = "missing api key"
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
			return
		}
		next.ServeHTTP(w, r)
	})
}
