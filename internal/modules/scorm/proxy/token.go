package proxy

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTokenTTL = 2 * time.Hour
	tokenBytes      = 32
)

// AccessToken grants one learner read access to one lesson's package tree.
type AccessToken struct {
	Token     string    `json:"token"`
	UserID    uuid.UUID `json:"user_id"`
	LessonID  uuid.UUID `json:"lesson_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t AccessToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokenStore keeps issued tokens. Get reports ErrUnauthorized for unknown
// tokens; expiry is checked by the caller.
type TokenStore interface {
	Put(ctx context.Context, tok AccessToken) error
	Get(ctx context.Context, token string) (AccessToken, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
}

type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]AccessToken
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: map[string]AccessToken{}}
}

func (m *MemoryTokenStore) Put(_ context.Context, tok AccessToken) error {
	m.mu.Lock()
	m.tokens[tok.Token] = tok
	m.mu.Unlock()
	return nil
}

func (m *MemoryTokenStore) Get(_ context.Context, token string) (AccessToken, error) {
	m.mu.RLock()
	tok, ok := m.tokens[token]
	m.mu.RUnlock()
	if !ok {
		return AccessToken{}, ErrUnauthorized
	}
	return tok, nil
}

func (m *MemoryTokenStore) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, tok := range m.tokens {
		if tok.Expired(now) {
			delete(m.tokens, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryTokenStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
