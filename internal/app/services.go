package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-scorm/internal/clients/redis"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/packagestore"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/progress"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/proxy"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/rte"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
	"github.com/yungbote/neurobridge-scorm/internal/services"
)

type Services struct {
	Auth       services.AuthService
	Enrollment services.EnrollmentChecker
	Packages   services.PackageService
	Progress   services.ProgressService
	Proxy      services.ProxyService
	Player     services.PlayerService

	Store   *packagestore.Store
	Janitor *packagestore.Janitor
	Tracker *progress.Tracker
	Engine  *rte.Engine
	Mirror  *services.PackageMirror
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	store, err := packagestore.New(packagestore.Config{
		Root:                 cfg.PackageRoot,
		MaxUncompressedBytes: cfg.MaxUncompressedBytes,
		MaxEntries:           cfg.MaxArchiveEntries,
	}, db, repos.Package, log)
	if err != nil {
		return Services{}, fmt.Errorf("init package store: %w", err)
	}
	var mirror *services.PackageMirror
	if clients.Bucket != nil {
		mirror = services.NewPackageMirror(clients.Bucket, log)
		store.SetObserver(mirror)
	}

	// Session and token state
	var (
		sessions rte.SessionStore
		tokens   proxy.TokenStore
	)
	if clients.Redis != nil {
		prefix := redis.Prefix()
		sessions = redis.NewSessionStore(clients.Redis, prefix, log)
		tokens = redis.NewTokenStore(clients.Redis, prefix, log)
	} else {
		sessions = rte.NewMemorySessionStore()
		tokens = proxy.NewMemoryTokenStore()
	}

	tracker := progress.NewTracker(db, repos.Progress, log)
	engine := rte.NewEngine(sessions, services.NewRTECommitter(tracker), rte.Options{
		SessionTTL:    cfg.SessionTTL,
		TerminatedTTL: cfg.TerminatedTTL,
		CommitRetries: cfg.CommitRetries,
		CommitBackoff: cfg.CommitBackoff,
	}, log)
	contentProxy := proxy.New(tokens, repos.Package, proxy.Options{TokenTTL: cfg.TokenTTL}, log)

	var enrollment services.EnrollmentChecker
	if cfg.EnrollmentServiceURL != "" {
		enrollment = services.NewHTTPEnrollmentChecker(cfg.EnrollmentServiceURL, cfg.EnrollmentTimeout, log)
	} else {
		log.Warn("ENROLLMENT_SERVICE_URL unset; every learner is treated as enrolled")
		enrollment = services.AllowAllEnrollment()
	}

	return Services{
		Auth:       services.NewAuthService(cfg.JWTSecretKey, log),
		Enrollment: enrollment,
		Packages: services.NewPackageService(store, repos.Package, services.PackageServiceConfig{
			MaxUploadBytes:       cfg.MaxUploadBytes,
			IngestTimeout:        cfg.IngestTimeout,
			MaxConcurrentIngests: cfg.MaxConcurrentIngests,
		}, log),
		Progress: services.NewProgressService(repos.Package, repos.Progress, tracker, log),
		Proxy:    services.NewProxyService(contentProxy, repos.Package, enrollment, log),
		Player:   services.NewPlayerService(engine, contentProxy, repos.Package, repos.Progress, log),

		Store:   store,
		Janitor: packagestore.NewJanitor(store.Root(), cfg.JanitorMinAge, repos.Package, log),
		Tracker: tracker,
		Engine:  engine,
		Mirror:  mirror,
	}, nil
}
