package models

import (
	"errors"
	"strings"
	"time"
)

// MinPasswordLen is the shortest password Register accepts.
const MinPasswordLen = 8

var (
	ErrMissingCredentials = errors.New("username, email, and password are required")
	ErrShortPassword      = errors.New("password must be at least 8 characters")
)

// User is an account row. The bcrypt hash stays server side.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Normalize trims the username and lowercases the email in place, then
// checks the required fields.
func (r *RegisterRequest) Normalize() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = NormalizeEmail(r.Email)
	if r.Username == "" || r.Email == "" || r.Password == "" {
		return ErrMissingCredentials
	}
	if len(r.Password) < MinPasswordLen {
		return ErrShortPassword
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NormalizeEmail makes logins case and whitespace insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
