package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayush/thunder-dashboard/backend/internal/auth"
)

type fixedSessions map[string]string

func (f fixedSessions) Create(ctx context.Context, userID string) (string, error) { return "", nil }
func (f fixedSessions) Get(ctx context.Context, sid string) (string, error)       { return f[sid], nil }
func (f fixedSessions) Delete(ctx context.Context, sid string) error              { return nil }

func TestRequireAuth(t *testing.T) {
	var seen string
	h := RequireAuth(fixedSessions{"good": "user-1"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.UserID(r.Context())
	}))

	cases := []struct {
		cookie string
		bearer string
		code   int
		user   string
	}{
		{"", "", http.StatusUnauthorized, ""},
		{"expired", "", http.StatusUnauthorized, ""},
		{"good", "", http.StatusOK, "user-1"},
		{"", "good", http.StatusOK, "user-1"},
		{"", "expired", http.StatusUnauthorized, ""},
	}
	for _, c := range cases {
		seen = ""
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if c.cookie != "" {
			req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: c.cookie})
		}
		if c.bearer != "" {
			req.Header.Set("Authorization", "Bearer "+c.bearer)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != c.code || seen != c.user {
			t.Fatalf("cookie %q bearer %q: got %d user %q", c.cookie, c.bearer, rec.Code, seen)
		}
	}
}
