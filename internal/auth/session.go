package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// SessionTTL is the idle lifetime of a login. Every authenticated
	// request pushes it forward.
	SessionTTL    = 7 * 24 * time.Hour
	SessionCookie = "thunder_session"

	sessionPrefix = "thunder:session:"
)

// SessionStore implements Sessions on Redis. Keys are
// thunder:session:<uuid> holding the user id.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: SessionTTL}
}

func (s *SessionStore) Create(ctx context.Context, userID string) (string, error) {
	sid := uuid.NewString()
	if err := s.rdb.Set(ctx, sessionKey(sid), userID, s.ttl).Err(); err != nil {
		return "", err
	}
	return sid, nil
}

// Get resolves sessionID and slides its expiry.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", nil
	}
	userID, err := s.rdb.GetEx(ctx, sessionKey(sessionID), s.ttl).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return userID, err
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, sessionKey(sessionID)).Err()
}

func sessionKey(sid string) string { return sessionPrefix + sid }
