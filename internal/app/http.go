package app

import (
	"context"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-scorm/internal/http"
	httpH "github.com/yungbote/neurobridge-scorm/internal/http/handlers"
	httpMW "github.com/yungbote/neurobridge-scorm/internal/http/middleware"
	"github.com/yungbote/neurobridge-scorm/internal/observability"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Package  *httpH.PackageHandler
	Progress *httpH.ProgressHandler
	Proxy    *httpH.ProxyHandler
	Player   *httpH.PlayerHandler
	XAPI     *httpH.XAPIHandler
}

func wireHandlers(log *logger.Logger, cfg Config, db *gorm.DB, clients Clients, services Services) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if clients.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return clients.Redis.Ping(ctx).Err() }
	}
	return Handlers{
		Health:   httpH.NewHealthHandler(checks),
		Package:  httpH.NewPackageHandler(log, services.Packages, cfg.MaxUploadBytes),
		Progress: httpH.NewProgressHandler(log, services.Progress),
		Proxy:    httpH.NewProxyHandler(log, services.Proxy),
		Player:   httpH.NewPlayerHandler(log, services.Player),
		XAPI:     httpH.NewXAPIHandler(log),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    cfg.ServiceName,
		AllowedOrigins: cfg.AllowedOrigins,
		// Parts above this spill to temp files.
		MaxMultipartMemory: 8 << 20,

		AuthMiddleware: middleware.Auth,

		PackageHandler:  handlers.Package,
		ProgressHandler: handlers.Progress,
		ProxyHandler:    handlers.Proxy,
		PlayerHandler:   handlers.Player,
		XAPIHandler:     handlers.XAPI,
		HealthHandler:   handlers.Health,
	})
}
