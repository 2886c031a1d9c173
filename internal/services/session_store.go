package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/datti/backend/internal/datti"
	mW "github.com/datti/backend/internal/middleware"
	"github.com/go-redis/redis/v8"
	"golang.org/x/oauth2"
)

var ErrSessionNotFound = errors.New("session not found or expired")

// BackendProvider hands out a Datti API client bound to one login session.
type BackendProvider interface {
	ForSession(ctx context.Context, sessionID string) (datti.Backend, error)
}

// SessionStore keeps the Datti API token of every login session.
type SessionStore interface {
	BackendProvider
	Save(ctx context.Context, sessionID string, tok *oauth2.Token) error
	Delete(ctx context.Context, sessionID string) error
}

// RedisSessionStore stores oauth2 tokens under session:{sid}. Refreshed tokens
// are written back so the next request reuses them.
type RedisSessionStore struct {
	redis   *redis.Client
	oauth   *oauth2.Config
	baseURL string
	ttl     time.Duration
}

func NewRedisSessionStore(redisClient *redis.Client, oauth *oauth2.Config, baseURL string, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		redis:   redisClient,
		oauth:   oauth,
		baseURL: baseURL,
		ttl:     ttl,
	}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func (s *RedisSessionStore) Save(ctx context.Context, sessionID string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, sessionKey(sessionID), data, s.ttl).Err()
}

func (s *RedisSessionStore) Load(ctx context.Context, sessionID string) (*oauth2.Token, error) {
	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode session token: %w", err)
	}
	return &tok, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.redis.Del(ctx, sessionKey(sessionID)).Err()
}

func (s *RedisSessionStore) ForSession(ctx context.Context, sessionID string) (datti.Backend, error) {
	tok, err := s.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	hooks := datti.SessionHooks{
		Save: func(ctx context.Context, refreshed *oauth2.Token) error {
			return s.Save(ctx, sessionID, refreshed)
		},
		Revoked: func(ctx context.Context) {
			log.Printf("[SESSION] Refresh token refused, dropping session %s", sessionID)
			if err := s.Delete(ctx, sessionID); err != nil {
				log.Printf("[SESSION] Failed to drop session %s: %v", sessionID, err)
			}
		},
	}
	return datti.NewSessionClient(ctx, s.oauth, s.baseURL, tok, hooks), nil
}

// BackendForRequest resolves the caller and their Datti API client. On
// failure the error response has already been written.
func BackendForRequest(w http.ResponseWriter, r *http.Request, backends BackendProvider) (datti.Backend, string, bool) {
	userID, ok := mW.UserIDFromContext(r.Context())
	sessionID, hasSession := mW.SessionIDFromContext(r.Context())
	if !ok || !hasSession {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return nil, "", false
	}

	backend, err := backends.ForSession(r.Context(), sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		log.Printf("[SESSION] No token for session %s (user %s)", sessionID, userID)
		SendErrorResponse(w, "Session expired", http.StatusUnauthorized, nil)
		return nil, "", false
	}
	if err != nil {
		log.Printf("[SESSION] Failed to load session %s: %v", sessionID, err)
		SendErrorResponse(w, "An unknown error occurred", http.StatusInternalServerError, nil)
		return nil, "", false
	}
	return backend, userID, true
}
