package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/neurobridge-scorm/internal/platform/envutil"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

type DatabaseService struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

// NewDatabaseService opens the relational store selected by DB_DRIVER
// ("postgres" by default, "sqlite" for single-node and local runs).
func NewDatabaseService(logg *logger.Logger) (*DatabaseService, error) {
	serviceLog := logg.With("service", "DatabaseService")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLog,
	}

	driver := strings.ToLower(envutil.String("DB_DRIVER", "postgres"))
	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "sqlite":
		path := envutil.String("SQLITE_PATH", "scorm.db")
		db, err = gorm.Open(sqlite.Open(path+"?_foreign_keys=on&_busy_timeout=5000"), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite %q: %w", path, err)
		}
		// One writer at a time keeps SQLite out of SQLITE_BUSY under concurrent commits.
		if sqlDB, derr := db.DB(); derr == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	case "postgres":
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			envutil.String("POSTGRES_USER", "postgres"),
			envutil.String("POSTGRES_PASSWORD", ""),
			envutil.String("POSTGRES_HOST", "localhost"),
			envutil.String("POSTGRES_PORT", "5432"),
			envutil.String("POSTGRES_NAME", "neurobridge"),
			envutil.String("POSTGRES_SSLMODE", "disable"),
		)
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		if sqlDB, derr := db.DB(); derr == nil {
			sqlDB.SetMaxOpenConns(envutil.Int("POSTGRES_MAX_OPEN_CONNS", 20))
			sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	serviceLog.Info("Database connected", "driver", driver)
	return &DatabaseService{db: db, driver: driver, log: serviceLog}, nil
}

func (s *DatabaseService) DB() *gorm.DB { return s.db }

func (s *DatabaseService) Driver() string { return s.driver }

func (s *DatabaseService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
