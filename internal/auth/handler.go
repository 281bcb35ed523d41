package auth

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/thunder-dashboard/backend/internal/models"
)

// UserStore persists accounts. Emails arrive already normalized.
type UserStore interface {
	CreateUser(ctx context.Context, username, email, hashedPw string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Sessions maps opaque session ids to user ids. Get returns "" for an
// unknown or expired id.
type Sessions interface {
	Create(ctx context.Context, userID string) (string, error)
	Get(ctx context.Context, sessionID string) (string, error)
	Delete(ctx context.Context, sessionID string) error
}

// Handler serves /api/auth.
type Handler struct {
	users    UserStore
	sessions Sessions
	secure   bool
}

// NewHandler wires the account endpoints. With secure set the session
// cookie is only sent over TLS.
func NewHandler(users UserStore, sessions Sessions, secure bool) *Handler {
	return &Handler{users: users, sessions: sessions, secure: secure}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("register %s: hash: %v", req.Email, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	user, err := h.users.CreateUser(r.Context(), req.Username, req.Email, string(hashed))
	if err != nil {
		log.Printf("register %s: %v", req.Email, err)
		writeError(w, http.StatusConflict, "user already exists or database error")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login verifies the password, opens a session and answers with the user.
// Unknown emails and wrong passwords get the same 401.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), models.NormalizeEmail(req.Email))
	if err != nil || user == nil ||
		bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	sid, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		log.Printf("login %s: create session: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "session creation failed")
		return
	}
	h.setCookie(w, sid, int(SessionTTL/time.Second))
	writeJSON(w, http.StatusOK, user)
}

// Logout drops the session, if any, and expires the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		if err := h.sessions.Delete(r.Context(), c.Value); err != nil {
			log.Printf("logout: %v", err)
		}
	}
	h.setCookie(w, "", -1)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me answers with the account behind the current session.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil || user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// setCookie writes the session cookie. Clearing must repeat the attributes
// used when setting it.
func (h *Handler) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
