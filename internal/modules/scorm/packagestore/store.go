// Package packagestore validates uploaded SCORM archives, unpacks them into
// fresh per-upload directories and records the resulting Package rows.
package packagestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-scorm/internal/domain"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/manifest"
	"github.com/yungbote/neurobridge-scorm/internal/observability"
	"github.com/yungbote/neurobridge-scorm/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-scorm/internal/platform/keylock"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

const (
	DefaultMaxUncompressedBytes int64 = 50 << 20
	DefaultMaxEntries                 = 10000
)

type Config struct {
	Root                 string
	MaxUncompressedBytes int64
	MaxEntries           int
}

// Repo is the slice of the package repository the store needs.
type Repo interface {
	Create(dbc dbctx.Context, pkg *types.Package) (*types.Package, error)
	GetByLessonID(dbc dbctx.Context, lessonID uuid.UUID) (*types.Package, error)
	DeleteByID(dbc dbctx.Context, id uuid.UUID) error
}

// Observer hears about trees that became live or were retired.
type Observer interface {
	PackageStored(ctx context.Context, pkg *types.Package)
	PackageRemoved(ctx context.Context, pkg *types.Package)
}

type Store struct {
	cfg      Config
	db       *gorm.DB
	repo     Repo
	log      *logger.Logger
	locks    *keylock.Locker
	observer Observer
}

func New(cfg Config, db *gorm.DB, repo Repo, baseLog *logger.Logger) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.New("packagestore: root required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	cfg.Root = root
	if cfg.MaxUncompressedBytes <= 0 {
		cfg.MaxUncompressedBytes = DefaultMaxUncompressedBytes
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("packagestore: create root: %w", err)
	}
	return &Store{
		cfg:   cfg,
		db:    db,
		repo:  repo,
		log:   baseLog.With("module", "PackageStore"),
		locks: keylock.New(),
	}, nil
}

func (s *Store) Root() string { return s.cfg.Root }

func (s *Store) SetObserver(o Observer) { s.observer = o }

// Ingest validates zipBytes, extracts them into a new directory, resolves the
// manifest and persists a Package for lessonID. Without replace an existing
// package for the lesson yields ErrPackageExists. Any failure removes the
// partial extraction.
func (s *Store) Ingest(ctx context.Context, zipBytes []byte, lessonID uuid.UUID, replace bool) (_ *types.Package, err error) {
	ctx, span := observability.StartSpan(ctx, "packagestore.Ingest",
		attribute.String("lesson_id", lessonID.String()),
		attribute.Int("zip_bytes", len(zipBytes)),
		attribute.Bool("replace", replace),
	)
	defer func() { observability.EndSpan(span, err) }()

	unlock := s.locks.Lock(lessonID.String())
	defer unlock()

	existing, err := s.repo.GetByLessonID(dbctx.Of(ctx), lessonID)
	if err != nil {
		return nil, err
	}
	if existing != nil && !replace {
		return nil, ErrPackageExists
	}

	archive, err := OpenArchive(zipBytes, s.cfg.MaxUncompressedBytes, s.cfg.MaxEntries)
	if err != nil {
		return nil, err
	}

	dir, err := s.newExtractionDir()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				s.log.Warn("failed to remove partial extraction", "dir", dir, "error", rmErr)
			}
		}
	}()

	written, err := archive.extractTo(ctx, dir)
	if err != nil {
		return nil, err
	}
	manifestDir, err := LocateManifest(dir)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(manifestDir, manifest.FileName))
	if err != nil {
		return nil, err
	}
	m, err := manifest.Parse(raw)
	if err != nil {
		return nil, err
	}
	manifestJSON, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	pkg := &types.Package{
		ID:          uuid.New(),
		LessonID:    lessonID,
		PackagePath: manifestDir,
		ExtractRoot: dir,
		Manifest:    datatypes.JSON(manifestJSON),
		Version:     m.Version,
		Title:       m.Title,
		Identifier:  m.Identifier,
		LaunchHref:  m.LaunchHref(),
		SizeBytes:   written,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if existing != nil {
			if err := s.repo.DeleteByID(dbc, existing.ID); err != nil {
				return err
			}
		}
		_, err := s.repo.Create(dbc, pkg)
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = ErrPackageExists
	}
	if err != nil {
		return nil, err
	}

	if existing != nil {
		s.retire(ctx, existing)
	}
	if s.observer != nil {
		s.observer.PackageStored(ctx, pkg)
	}
	s.log.Info("Package ingested",
		"lesson_id", lessonID,
		"package_id", pkg.ID,
		"version", pkg.Version,
		"package_path", pkg.PackagePath,
		"bytes", written,
		"replaced", existing != nil,
	)
	return pkg, nil
}

// Delete removes the lesson's package row and its extracted tree. Progress
// rows that reference the package are kept.
func (s *Store) Delete(ctx context.Context, lessonID uuid.UUID) error {
	unlock := s.locks.Lock(lessonID.String())
	defer unlock()

	existing, err := s.repo.GetByLessonID(dbctx.Of(ctx), lessonID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrPackageNotFound
	}
	if err := s.repo.DeleteByID(dbctx.Of(ctx), existing.ID); err != nil {
		return err
	}
	s.retire(ctx, existing)
	return nil
}

// retire deletes an old tree. Failures are logged, never returned.
func (s *Store) retire(ctx context.Context, old *types.Package) {
	target := old.ExtractRoot
	if target == "" {
		target = old.PackagePath
	}
	if target != "" && within(s.cfg.Root, target) && target != s.cfg.Root {
		if err := os.RemoveAll(target); err != nil {
			s.log.Warn("failed to remove old package tree", "package_id", old.ID, "dir", target, "error", err)
		}
	}
	if s.observer != nil {
		s.observer.PackageRemoved(ctx, old)
	}
}

func (s *Store) newExtractionDir() (string, error) {
	dir := filepath.Join(s.cfg.Root, extractionDirName(time.Now()))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("packagestore: create extraction dir: %w", err)
	}
	return dir, nil
}

// extractionDirName is {unix millis}_{ulid}; the janitor reads the prefix back.
func extractionDirName(now time.Time) string {
	return fmt.Sprintf("%d_%s", now.UnixMilli(), ulid.Make().String())
}
