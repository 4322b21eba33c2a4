package repos

import (
	"github.com/yungbote/neurobridge-scorm/internal/data/repos/scorm"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
	"gorm.io/gorm"
)

type PackageRepo = scorm.PackageRepo
type ProgressRepo = scorm.ProgressRepo

func NewPackageRepo(db *gorm.DB, baseLog *logger.Logger) PackageRepo {
	return scorm.NewPackageRepo(db, baseLog)
}

func NewProgressRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRepo {
	return scorm.NewProgressRepo(db, baseLog)
}
