package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/neurobridge-scorm/internal/platform/envutil"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

const DefaultPrefix = "scorm:"

// NewClient connects to REDIS_ADDR and pings it before returning.
func NewClient(log *logger.Logger) (*goredis.Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	return Dial(context.Background(), addr, log)
}

func Dial(ctx context.Context, addr string, log *logger.Logger) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    envutil.String("REDIS_PASSWORD", ""),
		DB:          envutil.Int("REDIS_DB", 0),
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.With("client", "Redis").Info("redis connected", "addr", addr)
	return rdb, nil
}

// Prefix reads REDIS_PREFIX, always ending in ':'.
func Prefix() string {
	p := envutil.String("REDIS_PREFIX", DefaultPrefix)
	if !strings.HasSuffix(p, ":") {
		p += ":"
	}
	return p
}

// ttlUntil is the key lifetime for a value expiring at exp; never below 1s so
// an already-expired value still gets written and then disappears.
func ttlUntil(exp time.Time, now time.Time) time.Duration {
	d := exp.Sub(now)
	if d < time.Second {
		return time.Second
	}
	return d
}
