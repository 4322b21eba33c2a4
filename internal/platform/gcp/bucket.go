package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

// Bucket is the object storage surface the package mirror needs. Keys are
// relative to the configured prefix.
type Bucket interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Close() error
}

type bucket struct {
	log    *logger.Logger
	client *storage.Client
	name   string
	prefix string
}

func NewBucket(ctx context.Context, cfg MirrorConfig, baseLog *logger.Logger) (Bucket, error) {
	if !cfg.Enabled() {
		return nil, errors.New("gcp: SCORM_GCS_BUCKET_NAME not set")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	client, err := newStorageClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	log := baseLog.With("service", "ScormBucket")
	log.Info("object storage initialized",
		"mode", cfg.Mode,
		"inferred_from_emulator_host", cfg.FromEmulatorHost,
		"bucket", cfg.Bucket,
		"prefix", cfg.Prefix,
	)
	return &bucket{log: log, client: client, name: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func newStorageClient(ctx context.Context, cfg MirrorConfig) (*storage.Client, error) {
	if cfg.IsEmulator() {
		// The storage client routes to the emulator when this is set.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	}
	opts := append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	return storage.NewClient(ctx, opts...)
}

func (b *bucket) object(key string) string {
	if b.prefix == "" {
		return key
	}
	return path.Join(b.prefix, key)
}

func (b *bucket) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := b.client.Bucket(b.name).Object(b.object(key)).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	// Mirrored trees are never publicly cacheable.
	w.CacheControl = "private, no-cache"
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	return nil
}

func (b *bucket) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	it := b.client.Bucket(b.name).Objects(ctx, &storage.Query{Prefix: b.object(prefix)})
	var out []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

// DeletePrefix removes every object under prefix and reports how many went.
// Missing objects are not an error.
func (b *bucket) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	names, err := b.ListKeys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	deleted := 0
	var firstErr error
	for _, name := range names {
		dctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := b.client.Bucket(b.name).Object(name).Delete(dctx)
		cancel()
		switch {
		case err == nil:
			deleted++
		case errors.Is(err, storage.ErrObjectNotExist):
		default:
			if firstErr == nil {
				firstErr = fmt.Errorf("delete %s: %w", name, err)
			}
		}
	}
	return deleted, firstErr
}

func (b *bucket) Close() error { return b.client.Close() }
