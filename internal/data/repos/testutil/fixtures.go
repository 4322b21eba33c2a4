package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	types "github.com/yungbote/neurobridge-scorm/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func SeedPackage(tb testing.TB, ctx context.Context, tx *gorm.DB, lessonID uuid.UUID, dir string) *types.Package {
	tb.Helper()
	now := time.Now().UTC()
	p := &types.Package{
		ID:          uuid.New(),
		LessonID:    lessonID,
		PackagePath: dir,
		ExtractRoot: dir,
		Manifest:    datatypes.JSON([]byte(`{"identifier":"seed"}`)),
		Version:     "1.2",
		Title:       "seed",
		Identifier:  "seed",
		LaunchHref:  "index.html",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed package: %v", err)
	}
	return p
}

func PtrFloat(v float64) *float64 { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
