package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-scorm/internal/data/db"
	"github.com/yungbote/neurobridge-scorm/internal/http"
	"github.com/yungbote/neurobridge-scorm/internal/observability"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics

	dbService *db.DatabaseService
	cron      *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
	otelStop  func(context.Context) error
}

// LoadEnv reads .env (or ENV_FILE) if present; real environment variables win.
func LoadEnv() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func New() (*App, error) {
	envErr := LoadEnv()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if envErr != nil {
		log.Warn("env file not loaded", "error", envErr)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelStop := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	metrics := observability.Init(log)

	dbService, err := db.NewDatabaseService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := dbService.DB()

	clients, err := wireClients(context.Background(), log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, reposet, clients)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, cfg, theDB, clients, serviceset)
	middleware := wireMiddleware(log, serviceset)
	router := wireRouter(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:       log,
		DB:        theDB,
		Router:    router,
		Cfg:       cfg,
		Repos:     reposet,
		Clients:   clients,
		Services:  serviceset,
		Metrics:   metrics,
		dbService: dbService,
		otelStop:  otelStop,
	}, nil
}

// Start launches background work: the metrics listener and the janitor schedule.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.Metrics.StartServer(a.ctx, a.Log, a.Cfg.MetricsAddr)

	if a.Cfg.JanitorSchedule != "" {
		a.cron = cron.New()
		if _, err := a.Services.Janitor.Schedule(a.cron, a.Cfg.JanitorSchedule); err != nil {
			return fmt.Errorf("schedule janitor %q: %w", a.Cfg.JanitorSchedule, err)
		}
		a.cron.Start()
		a.Log.Info("janitor scheduled", "spec", a.Cfg.JanitorSchedule)
	}
	return nil
}

// Run serves HTTP until ctx is cancelled or the listener fails.
func (a *App) Run(ctx context.Context, addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("HTTP server listening", "addr", addr)
	return (&http.Server{Engine: a.Router}).Run(ctx, addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	if a.Services.Mirror != nil {
		a.Services.Mirror.Wait()
	}
	a.Clients.Close()
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
	if a.otelStop != nil {
		_ = a.otelStop(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

// Driver names the active database driver ("postgres" or "sqlite").
func (a *App) Driver() string {
	if a == nil || a.dbService == nil {
		return ""
	}
	return a.dbService.Driver()
}
