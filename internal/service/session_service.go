package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"talk-chat/internal/model"
	"talk-chat/internal/repository"
)

const sessionTokenBytes = 32

// SessionService mints and resolves opaque bearer sessions.
type SessionService struct {
	sessions SessionStore
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionService returns a SessionService whose sessions last ttl.
func NewSessionService(sessions SessionStore, ttl time.Duration) *SessionService {
	return &SessionService{sessions: sessions, ttl: ttl, now: time.Now}
}

// Create mints a new session for userID. Inside a Transactor call it joins
// the surrounding transaction.
func (s *SessionService) Create(ctx context.Context, userID uint) (*model.Session, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	session := &model.Session{
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// Resolve maps a raw header value to a user id. The "Bearer " prefix is
// optional. Missing, unknown and expired tokens all give ErrUnauthenticated;
// expiry is never extended.
func (s *SessionService) Resolve(ctx context.Context, header string) (uint, error) {
	token := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), "Bearer "))
	if token == "" {
		return 0, ErrUnauthenticated
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrUnauthenticated
	}
	if err != nil {
		return 0, fmt.Errorf("lookup session: %w", err)
	}
	if session.Expired(s.now()) {
		return 0, ErrUnauthenticated
	}
	return session.UserID, nil
}

// newSessionToken returns 32 random bytes, base64url encoded without padding.
func newSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
