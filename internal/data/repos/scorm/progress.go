package scorm

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/neurobridge-scorm/internal/domain"
	"github.com/yungbote/neurobridge-scorm/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

type ProgressRepo interface {
	Get(dbc dbctx.Context, userID, packageID uuid.UUID) (*types.ProgressRecord, error)
	GetByUserAndPackageIDs(dbc dbctx.Context, userID uuid.UUID, packageIDs []uuid.UUID) ([]*types.ProgressRecord, error)
	Upsert(dbc dbctx.Context, rec *types.ProgressRecord) (*types.ProgressRecord, error)
	AppendInteractions(dbc dbctx.Context, progressID uuid.UUID, rows []*types.Interaction) (int, error)
	NextInteractionIndex(dbc dbctx.Context, userID, packageID uuid.UUID) (int, error)
}

type progressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRepo {
	repoLog := baseLog.With("repo", "ProgressRepo")
	return &progressRepo{db: db, log: repoLog}
}

// Get loads the record with interactions ordered by index; nil, nil when absent.
func (r *progressRepo) Get(dbc dbctx.Context, userID, packageID uuid.UUID) (*types.ProgressRecord, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == uuid.Nil || packageID == uuid.Nil {
		return nil, nil
	}
	var out types.ProgressRecord
	err := t.WithContext(dbc.Ctx).
		Preload("Interactions", func(db *gorm.DB) *gorm.DB { return db.Order("cmi_index ASC") }).
		Where("user_id = ? AND package_id = ?", userID, packageID).
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *progressRepo) GetByUserAndPackageIDs(dbc dbctx.Context, userID uuid.UUID, packageIDs []uuid.UUID) ([]*types.ProgressRecord, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := []*types.ProgressRecord{}
	if userID == uuid.Nil || len(packageIDs) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ? AND package_id IN ?", userID, packageIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert writes every scalar column keyed by (user_id, package_id) and
// returns the stored row. Interactions are written separately.
func (r *progressRepo) Upsert(dbc dbctx.Context, rec *types.ProgressRecord) (*types.ProgressRecord, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if rec == nil || rec.UserID == uuid.Nil || rec.PackageID == uuid.Nil {
		return nil, errors.New("progress upsert: user and package required")
	}
	now := time.Now().UTC()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	err := t.WithContext(dbc.Ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "package_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"completion_status",
				"success_status",
				"score_raw",
				"score_min",
				"score_max",
				"score_scaled",
				"scaled_explicit",
				"progress_measure",
				"location",
				"suspend_data",
				"completed",
				"completed_at",
				"attempt_count",
				"last_session_id",
				"last_committed_at",
				"updated_at",
			}),
		}).
		Create(rec).Error
	if err != nil {
		return nil, err
	}
	return r.Get(dbctx.Context{Ctx: dbc.Ctx, Tx: t}, rec.UserID, rec.PackageID)
}

// AppendInteractions inserts rows whose index is not yet stored for the
// record; existing indices are left untouched. Returns the inserted count.
func (r *progressRepo) AppendInteractions(dbc dbctx.Context, progressID uuid.UUID, rows []*types.Interaction) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if progressID == uuid.Nil || len(rows) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		row.ProgressID = progressID
		if row.RecordedAt.IsZero() {
			row.RecordedAt = now
		}
	}
	res := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "progress_id"}, {Name: "cmi_index"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// NextInteractionIndex is one past the highest stored index, 0 for a new record.
func (r *progressRepo) NextInteractionIndex(dbc dbctx.Context, userID, packageID uuid.UUID) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var next sql.NullInt64
	err := t.WithContext(dbc.Ctx).
		Model(&types.Interaction{}).
		Select("MAX(scorm_interaction.cmi_index) + 1").
		Joins("JOIN scorm_progress ON scorm_progress.id = scorm_interaction.progress_id").
		Where("scorm_progress.user_id = ? AND scorm_progress.package_id = ?", userID, packageID).
		Row().
		Scan(&next)
	if err != nil {
		return 0, err
	}
	if !next.Valid {
		return 0, nil
	}
	return int(next.Int64), nil
}
