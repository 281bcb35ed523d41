package middleware

import (
	"net/http"
	"strings"

	"github.com/ayush/thunder-dashboard/backend/internal/auth"
)

// RequireAuth resolves the caller's session and puts the user id on the
// request context (see auth.UserID). The session id comes from the session
// cookie, or from an "Authorization: Bearer" header for non-browser callers.
func RequireAuth(sessions auth.Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := sessionID(r)
			if sid == "" {
				unauthorized(w, "not authenticated")
				return
			}
			userID, err := sessions.Get(r.Context(), sid)
			if err != nil || userID == "" {
				unauthorized(w, "session expired")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}

func sessionID(r *http.Request) string {
	if c, err := r.Cookie(auth.SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
