package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/yungbote/neurobridge-scorm/internal/data/repos"
	types "github.com/yungbote/neurobridge-scorm/internal/domain"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/manifest"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/packagestore"
	"github.com/yungbote/neurobridge-scorm/internal/observability"
	"github.com/yungbote/neurobridge-scorm/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

type UploadInput struct {
	LessonID uuid.UUID
	Filename string
	Size     int64
	Body     io.Reader
	Replace  bool
}

type PackageDetail struct {
	Package  *types.Package    `json:"package"`
	Manifest manifest.Manifest `json:"manifest"`
}

type PackageService interface {
	Upload(ctx context.Context, in UploadInput) (*types.Package, error)
	Get(ctx context.Context, lessonID uuid.UUID) (*PackageDetail, error)
	List(ctx context.Context, limit int) ([]*types.Package, error)
	Delete(ctx context.Context, lessonID uuid.UUID) error
}

type PackageServiceConfig struct {
	MaxUploadBytes int64
	IngestTimeout  time.Duration
	// MaxConcurrentIngests bounds how many archives extract at once.
	MaxConcurrentIngests int64
}

type packageService struct {
	store *packagestore.Store
	repo  repos.PackageRepo
	cfg   PackageServiceConfig
	sem   *semaphore.Weighted
	log   *logger.Logger
}

func NewPackageService(store *packagestore.Store, repo repos.PackageRepo, cfg PackageServiceConfig, baseLog *logger.Logger) PackageService {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if cfg.IngestTimeout <= 0 {
		cfg.IngestTimeout = 2 * time.Minute
	}
	if cfg.MaxConcurrentIngests <= 0 {
		cfg.MaxConcurrentIngests = 2
	}
	return &packageService{
		store: store,
		repo:  repo,
		cfg:   cfg,
		sem:   semaphore.NewWeighted(cfg.MaxConcurrentIngests),
		log:   baseLog.With("service", "PackageService"),
	}
}

func (s *packageService) Upload(ctx context.Context, in UploadInput) (*types.Package, error) {
	if !strings.EqualFold(filepath.Ext(in.Filename), ".zip") {
		return nil, ErrNotZip
	}
	if in.Size > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrUploadTooLarge, in.Size, s.cfg.MaxUploadBytes)
	}
	data, err := io.ReadAll(io.LimitReader(in.Body, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: max %d bytes", ErrUploadTooLarge, s.cfg.MaxUploadBytes)
	}
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.IngestTimeout)
	defer cancel()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for ingest slot: %w", err)
	}
	defer s.sem.Release(1)

	start := time.Now()
	pkg, err := s.store.Ingest(ctx, data, in.LessonID, in.Replace)
	if err != nil {
		observability.Current().ObserveIngest(MapError(err).Code, time.Since(start), 0)
		s.log.Warn("package upload rejected",
			"lesson_id", in.LessonID,
			"filename", in.Filename,
			"bytes", len(data),
			"error", err,
		)
		return nil, err
	}
	observability.Current().ObserveIngest("ok", time.Since(start), pkg.SizeBytes)
	s.log.Info("package uploaded",
		"lesson_id", in.LessonID,
		"package_id", pkg.ID,
		"took_ms", time.Since(start).Milliseconds(),
	)
	return pkg, nil
}

func (s *packageService) Get(ctx context.Context, lessonID uuid.UUID) (*PackageDetail, error) {
	pkg, err := s.repo.GetByLessonID(dbctx.Of(ctx), lessonID)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, packagestore.ErrPackageNotFound
	}
	m, err := DecodeManifest(pkg)
	if err != nil {
		return nil, err
	}
	return &PackageDetail{Package: pkg, Manifest: m}, nil
}

func (s *packageService) List(ctx context.Context, limit int) ([]*types.Package, error) {
	return s.repo.List(dbctx.Of(ctx), limit)
}

func (s *packageService) Delete(ctx context.Context, lessonID uuid.UUID) error {
	return s.store.Delete(ctx, lessonID)
}

// DecodeManifest reads the manifest stored alongside a package row.
func DecodeManifest(pkg *types.Package) (manifest.Manifest, error) {
	var m manifest.Manifest
	if len(pkg.Manifest) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(pkg.Manifest, &m); err != nil {
		return m, fmt.Errorf("decode stored manifest: %w", err)
	}
	return m, nil
}
