package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/proxy"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

// TokenStore keeps proxy access tokens in Redis; expiry is delegated to key TTLs.
type TokenStore struct {
	rdb    *goredis.Client
	prefix string
	log    *logger.Logger
	now    func() time.Time
}

var _ proxy.TokenStore = (*TokenStore)(nil)

func NewTokenStore(rdb *goredis.Client, prefix string, baseLog *logger.Logger) *TokenStore {
	return &TokenStore{
		rdb:    rdb,
		prefix: prefix,
		log:    baseLog.With("store", "RedisTokenStore"),
		now:    time.Now,
	}
}

func (s *TokenStore) key(token string) string { return s.prefix + "token:" + token }

func (s *TokenStore) Put(ctx context.Context, tok proxy.AccessToken) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(tok.Token), raw, ttlUntil(tok.ExpiresAt, s.now())).Err(); err != nil {
		return fmt.Errorf("redis token put: %w", err)
	}
	return nil
}

func (s *TokenStore) Get(ctx context.Context, token string) (proxy.AccessToken, error) {
	raw, err := s.rdb.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return proxy.AccessToken{}, proxy.ErrUnauthorized
	}
	if err != nil {
		return proxy.AccessToken{}, fmt.Errorf("redis token get: %w", err)
	}
	var tok proxy.AccessToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		s.log.Warn("unreadable token entry", "error", err)
		return proxy.AccessToken{}, proxy.ErrUnauthorized
	}
	return tok, nil
}

// Sweep is a no-op: Redis expires keys on its own.
func (s *TokenStore) Sweep(context.Context, time.Time) (int, error) { return 0, nil }
