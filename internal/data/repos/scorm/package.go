package scorm

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-scorm/internal/domain"
	"github.com/yungbote/neurobridge-scorm/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

type PackageRepo interface {
	Create(dbc dbctx.Context, pkg *types.Package) (*types.Package, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Package, error)
	GetByLessonID(dbc dbctx.Context, lessonID uuid.UUID) (*types.Package, error)
	GetByLessonIDs(dbc dbctx.Context, lessonIDs []uuid.UUID) ([]*types.Package, error)
	List(dbc dbctx.Context, limit int) ([]*types.Package, error)
	ListExtractRoots(dbc dbctx.Context) ([]string, error)
	DeleteByID(dbc dbctx.Context, id uuid.UUID) error
}

type packageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPackageRepo(db *gorm.DB, baseLog *logger.Logger) PackageRepo {
	repoLog := baseLog.With("repo", "PackageRepo")
	return &packageRepo{db: db, log: repoLog}
}

func (r *packageRepo) Create(dbc dbctx.Context, pkg *types.Package) (*types.Package, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if pkg == nil {
		return nil, errors.New("nil package")
	}
	now := time.Now().UTC()
	if pkg.ID == uuid.Nil {
		pkg.ID = uuid.New()
	}
	if pkg.CreatedAt.IsZero() {
		pkg.CreatedAt = now
	}
	pkg.UpdatedAt = now
	if err := t.WithContext(dbc.Ctx).Create(pkg).Error; err != nil {
		return nil, err
	}
	return pkg, nil
}

// GetByID returns nil, nil when no row matches.
func (r *packageRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Package, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Package
	err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

// GetByLessonID returns nil, nil when the lesson has no package.
func (r *packageRepo) GetByLessonID(dbc dbctx.Context, lessonID uuid.UUID) (*types.Package, error) {
	rows, err := r.GetByLessonIDs(dbc, []uuid.UUID{lessonID})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *packageRepo) GetByLessonIDs(dbc dbctx.Context, lessonIDs []uuid.UUID) ([]*types.Package, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var results []*types.Package
	if len(lessonIDs) == 0 {
		return results, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("lesson_id IN ?", lessonIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *packageRepo) List(dbc dbctx.Context, limit int) ([]*types.Package, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var results []*types.Package
	if err := t.WithContext(dbc.Ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *packageRepo) ListExtractRoots(dbc dbctx.Context) ([]string, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var roots []string
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Package{}).
		Pluck("extract_root", &roots).Error; err != nil {
		return nil, err
	}
	return roots, nil
}

func (r *packageRepo) DeleteByID(dbc dbctx.Context, id uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Delete(&types.Package{}).Error
}
