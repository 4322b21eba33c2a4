package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/proxy"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/rte"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

func testClient(t *testing.T) (*goredis.Client, string) {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb, err := Dial(context.Background(), addr, logger.Nop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, "scormtest:" + uuid.NewString() + ":"
}

func TestRedisSessionStore(t *testing.T) {
	rdb, prefix := testClient(t)
	ctx := context.Background()
	store := NewSessionStore(rdb, prefix, logger.Nop())

	sess := &rte.Session{
		ID:        uuid.NewString(),
		Version:   rte.Version2004,
		State:     rte.StateNotInitialized,
		Elements:  map[string]string{"cmi.location": "p1"},
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().Add(time.Minute).UTC(),
	}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, sess); !errors.Is(err, rte.ErrSessionExists) {
		t.Fatalf("duplicate Create: want ErrSessionExists got %v", err)
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Elements["cmi.location"] != "p1" {
		t.Fatalf("elements: %+v", got.Elements)
	}

	got.State = rte.StateRunning
	got.Elements["cmi.location"] = "p2"
	if err := store.Save(ctx, got); err != nil {
		t.Fatalf("Save: %v", err)
	}
	again, _ := store.Get(ctx, sess.ID)
	if again.State != rte.StateRunning || again.Elements["cmi.location"] != "p2" {
		t.Fatalf("saved session: %+v", again)
	}
	if ttl := rdb.TTL(ctx, store.key(sess.ID)).Val(); ttl <= 0 {
		t.Fatalf("ttl lost on save: %v", ttl)
	}

	again.State = rte.StateTerminated
	again.ExpiresAt = time.Now().Add(5 * time.Second).UTC()
	if err := store.Save(ctx, again); err != nil {
		t.Fatalf("Save terminated: %v", err)
	}
	if ttl := rdb.TTL(ctx, store.key(sess.ID)).Val(); ttl <= 0 || ttl > 5*time.Second {
		t.Fatalf("ttl should follow expires_at: %v", ttl)
	}

	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, rte.ErrSessionNotFound) {
		t.Fatalf("Get after delete: want ErrSessionNotFound got %v", err)
	}
	if err := store.Save(ctx, got); !errors.Is(err, rte.ErrSessionNotFound) {
		t.Fatalf("Save after delete: want ErrSessionNotFound got %v", err)
	}
}

func TestRedisTokenStore(t *testing.T) {
	rdb, prefix := testClient(t)
	ctx := context.Background()
	store := NewTokenStore(rdb, prefix, logger.Nop())

	tok := proxy.AccessToken{Token: "abc", UserID: uuid.New(), LessonID: uuid.New(), ExpiresAt: time.Now().Add(time.Minute).UTC()}
	if err := store.Put(ctx, tok); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.LessonID != tok.LessonID || !got.ExpiresAt.Equal(tok.ExpiresAt) {
		t.Fatalf("token: want=%+v got=%+v", tok, got)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, proxy.ErrUnauthorized) {
		t.Fatalf("missing token: want ErrUnauthorized got %v", err)
	}
}

func TestTTLUntil(t *testing.T) {
	now := time.Now()
	if got := ttlUntil(now.Add(-time.Hour), now); got != time.Second {
		t.Fatalf("past expiry: want=1s got=%v", got)
	}
	if got := ttlUntil(now.Add(time.Hour), now); got != time.Hour {
		t.Fatalf("future expiry: want=1h got=%v", got)
	}
}
