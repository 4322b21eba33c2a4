package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-scorm/internal/data/repos"
	types "github.com/yungbote/neurobridge-scorm/internal/domain"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/packagestore"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/progress"
	"github.com/yungbote/neurobridge-scorm/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

type LessonProgress struct {
	Progress *types.ProgressRecord `json:"progress"`
	Package  *types.Package        `json:"package"`
}

// ProgressSummary is the dashboard row for one lesson.
type ProgressSummary struct {
	LessonID         uuid.UUID              `json:"lesson_id"`
	PackageID        uuid.UUID              `json:"package_id"`
	CompletionStatus types.CompletionStatus `json:"completion_status"`
	Completed        bool                   `json:"completed"`
	Percent          int                    `json:"percent"`
	ScoreScaled      *float64               `json:"score_scaled,omitempty"`
}

type ProgressService interface {
	Get(ctx context.Context, userID, lessonID uuid.UUID) (*LessonProgress, error)
	Save(ctx context.Context, userID, lessonID uuid.UUID, cmi map[string]string) (*types.ProgressRecord, error)
	Summaries(ctx context.Context, userID uuid.UUID, lessonIDs []uuid.UUID) ([]ProgressSummary, error)
}

type progressService struct {
	packages repos.PackageRepo
	progress repos.ProgressRepo
	tracker  *progress.Tracker
	log      *logger.Logger
}

func NewProgressService(packages repos.PackageRepo, progressRepo repos.ProgressRepo, tracker *progress.Tracker, baseLog *logger.Logger) ProgressService {
	return &progressService{
		packages: packages,
		progress: progressRepo,
		tracker:  tracker,
		log:      baseLog.With("service", "ProgressService"),
	}
}

func (s *progressService) packageFor(ctx context.Context, lessonID uuid.UUID) (*types.Package, error) {
	pkg, err := s.packages.GetByLessonID(dbctx.Of(ctx), lessonID)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, packagestore.ErrPackageNotFound
	}
	return pkg, nil
}

// Get returns the learner's record (nil before the first commit) with the package.
func (s *progressService) Get(ctx context.Context, userID, lessonID uuid.UUID) (*LessonProgress, error) {
	pkg, err := s.packageFor(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	rec, err := s.progress.Get(dbctx.Of(ctx), userID, pkg.ID)
	if err != nil {
		return nil, err
	}
	return &LessonProgress{Progress: rec, Package: pkg}, nil
}

func (s *progressService) Save(ctx context.Context, userID, lessonID uuid.UUID, cmi map[string]string) (*types.ProgressRecord, error) {
	pkg, err := s.packageFor(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	rec, _, err := s.tracker.Merge(ctx, userID, pkg.ID, cmi)
	return rec, err
}

func (s *progressService) Summaries(ctx context.Context, userID uuid.UUID, lessonIDs []uuid.UUID) ([]ProgressSummary, error) {
	pkgs, err := s.packages.GetByLessonIDs(dbctx.Of(ctx), lessonIDs)
	if err != nil {
		return nil, err
	}
	if len(pkgs) == 0 {
		return []ProgressSummary{}, nil
	}
	pkgIDs := make([]uuid.UUID, 0, len(pkgs))
	for _, p := range pkgs {
		pkgIDs = append(pkgIDs, p.ID)
	}
	recs, err := s.progress.GetByUserAndPackageIDs(dbctx.Of(ctx), userID, pkgIDs)
	if err != nil {
		return nil, err
	}
	byPkg := make(map[uuid.UUID]*types.ProgressRecord, len(recs))
	for _, r := range recs {
		byPkg[r.PackageID] = r
	}

	out := make([]ProgressSummary, 0, len(pkgs))
	for _, p := range pkgs {
		sum := ProgressSummary{
			LessonID:         p.LessonID,
			PackageID:        p.ID,
			CompletionStatus: types.CompletionNotAttempted,
		}
		if r := byPkg[p.ID]; r != nil {
			sum.CompletionStatus = r.CompletionStatus
			sum.Completed = r.Completed
			sum.Percent = r.Percent()
			sum.ScoreScaled = r.ScoreScaled
		}
		out = append(out, sum)
	}
	return out, nil
}
