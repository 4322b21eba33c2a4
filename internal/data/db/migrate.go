package db

import (
	types "github.com/yungbote/neurobridge-scorm/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Package{},
		&types.ProgressRecord{},
		&types.Interaction{},
	)
}

func (s *DatabaseService) AutoMigrateAll() error {
	s.log.Info("Auto migrating scorm tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	s.log.Info("Auto migration complete")
	return nil
}
