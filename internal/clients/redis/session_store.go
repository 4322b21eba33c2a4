package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/rte"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

// SessionStore keeps RTE sessions in Redis so any instance can serve any
// session. Keys expire with the session.
type SessionStore struct {
	rdb    *goredis.Client
	prefix string
	log    *logger.Logger
	now    func() time.Time
}

var _ rte.SessionStore = (*SessionStore)(nil)

func NewSessionStore(rdb *goredis.Client, prefix string, baseLog *logger.Logger) *SessionStore {
	return &SessionStore{
		rdb:    rdb,
		prefix: prefix,
		log:    baseLog.With("store", "RedisSessionStore"),
		now:    time.Now,
	}
}

func (s *SessionStore) key(id string) string { return s.prefix + "session:" + id }

func (s *SessionStore) Create(ctx context.Context, sess *rte.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, s.key(sess.ID), raw, ttlUntil(sess.ExpiresAt, s.now())).Result()
	if err != nil {
		return fmt.Errorf("redis session create: %w", err)
	}
	if !ok {
		return rte.ErrSessionExists
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*rte.Session, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, rte.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis session get: %w", err)
	}
	var sess rte.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		s.log.Warn("dropping unreadable session", "session_id", id, "error", err)
		_ = s.rdb.Del(ctx, s.key(id)).Err()
		return nil, rte.ErrSessionNotFound
	}
	if sess.Expired(s.now()) {
		return nil, rte.ErrSessionNotFound
	}
	return &sess, nil
}

// Save overwrites an existing session. The key TTL follows ExpiresAt, so a
// terminated session shrinks to its tombstone lifetime.
func (s *SessionStore) Save(ctx context.Context, sess *rte.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	args := goredis.SetArgs{Mode: "XX", KeepTTL: true}
	if !sess.ExpiresAt.IsZero() {
		args = goredis.SetArgs{Mode: "XX", TTL: ttlUntil(sess.ExpiresAt, s.now())}
	}
	err = s.rdb.SetArgs(ctx, s.key(sess.ID), raw, args).Err()
	if errors.Is(err, goredis.Nil) {
		return rte.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("redis session save: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.key(id)).Err()
}
