package services

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/neurobridge-scorm/internal/domain"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/packagestore"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/proxy"
	"github.com/yungbote/neurobridge-scorm/internal/platform/gcp"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

const (
	mirrorParallelism = 8
	mirrorTimeout     = 10 * time.Minute
)

// PackageMirror copies extracted trees to object storage after ingestion and
// removes them when a package is replaced or deleted. The local tree stays
// authoritative; mirror failures are only logged.
type PackageMirror struct {
	bucket gcp.Bucket
	log    *logger.Logger
	wg     sync.WaitGroup
}

var _ packagestore.Observer = (*PackageMirror)(nil)

func NewPackageMirror(bucket gcp.Bucket, baseLog *logger.Logger) *PackageMirror {
	return &PackageMirror{bucket: bucket, log: baseLog.With("service", "PackageMirror")}
}

func (m *PackageMirror) PackageStored(ctx context.Context, pkg *types.Package) {
	root := pkg.ExtractRoot
	m.async(ctx, func(ctx context.Context) {
		n, err := m.Upload(ctx, root)
		if err != nil {
			m.log.Warn("package mirror upload failed", "package_id", pkg.ID, "uploaded", n, "error", err)
			return
		}
		m.log.Info("package mirrored", "package_id", pkg.ID, "objects", n)
	})
}

func (m *PackageMirror) PackageRemoved(ctx context.Context, pkg *types.Package) {
	prefix := mirrorPrefix(pkg.ExtractRoot)
	m.async(ctx, func(ctx context.Context) {
		n, err := m.bucket.DeletePrefix(ctx, prefix)
		if err != nil {
			m.log.Warn("package mirror delete failed", "package_id", pkg.ID, "error", err)
			return
		}
		m.log.Debug("package mirror removed", "package_id", pkg.ID, "objects", n)
	})
}

// Upload mirrors every regular file under root to "<dir>/<relative path>".
func (m *PackageMirror) Upload(ctx context.Context, root string) (int, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	prefix := mirrorPrefix(root)
	var mu sync.Mutex
	uploaded := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mirrorParallelism)
	for _, p := range files {
		p := p
		g.Go(func() error {
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			f, err := os.Open(p)
			if err != nil {
				return err
			}
			defer f.Close()
			key := path.Join(prefix, filepath.ToSlash(rel))
			if err := m.bucket.Upload(gctx, key, f, proxy.ContentType(p, nil)); err != nil {
				return err
			}
			mu.Lock()
			uploaded++
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	return uploaded, err
}

// Wait blocks until in-flight mirror work finishes.
func (m *PackageMirror) Wait() { m.wg.Wait() }

func (m *PackageMirror) async(ctx context.Context, fn func(ctx context.Context)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func mirrorPrefix(extractRoot string) string {
	return filepath.Base(extractRoot)
}
