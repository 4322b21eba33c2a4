package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/neurobridge-scorm/internal/clients/redis"
	"github.com/yungbote/neurobridge-scorm/internal/platform/gcp"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

type Clients struct {
	Redis  *goredis.Client
	Bucket gcp.Bucket
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if cfg.StateBackend == StateBackendRedis {
		rdb, err := redis.NewClient(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
	}

	// Gcs mirror
	mirrorCfg, err := gcp.MirrorConfigFromEnv()
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("object storage config: %w", err)
	}
	if mirrorCfg.Enabled() {
		bucket, err := gcp.NewBucket(ctx, mirrorCfg, log)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init bucket client: %w", err)
		}
		out.Bucket = bucket
	} else {
		log.Info("object storage mirror disabled (SCORM_GCS_BUCKET_NAME unset)")
	}
	return out, nil
}

func (c Clients) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Bucket != nil {
		_ = c.Bucket.Close()
	}
}
