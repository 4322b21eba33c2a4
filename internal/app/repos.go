package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-scorm/internal/data/repos"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

type Repos struct {
	Package  repos.PackageRepo
	Progress repos.ProgressRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Package:  repos.NewPackageRepo(db, log),
		Progress: repos.NewProgressRepo(db, log),
	}
}
