package server

import (
	"net/http"
	"strings"
)

// authMiddleware resolves the caller's user ID. EventSource and websocket
// clients cannot set headers, so a token query parameter is accepted too.
func authMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			queryToken := r.URL.Query().Get("token")
			headerUser := strings.TrimSpace(r.Header.Get("X-User-Id"))

			var token string
			switch {
			case authz != "":
				t, ok := bearerToken(authz)
				if !ok {
					writeError(w, http.StatusUnauthorized, "invalid credentials")
					return
				}
				token = t
			case queryToken != "":
				token = queryToken
			case cfg.AllowUserIDHeader && headerUser != "":
				next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), headerUser)))
				return
			default:
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			userID, err := authenticateJWT(token, cfg.JWTSecret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
		})
	}
}
