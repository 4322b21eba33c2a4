package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/neurobridge-scorm/internal/http/handlers"
	httpMW "github.com/yungbote/neurobridge-scorm/internal/http/middleware"
	"github.com/yungbote/neurobridge-scorm/internal/observability"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string
	// MaxMultipartMemory caps in-memory multipart parts; larger ones spill to disk.
	MaxMultipartMemory int64

	AuthMiddleware *httpMW.AuthMiddleware

	PackageHandler  *httpH.PackageHandler
	ProgressHandler *httpH.ProgressHandler
	ProxyHandler    *httpH.ProxyHandler
	PlayerHandler   *httpH.PlayerHandler
	XAPIHandler     *httpH.XAPIHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = cfg.MaxMultipartMemory
	}
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	api := r.Group("/api")
	{
		// Package content (public; the proxy token is the credential)
		if cfg.ProxyHandler != nil {
			api.GET("/scorm/proxy", cfg.ProxyHandler.ServeQuery)
			api.GET("/scorm/content/:token/*filepath", cfg.ProxyHandler.ServeContent)
		}
	}

	protected := api.Group("/")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Packages
		if cfg.PackageHandler != nil {
			protected.POST("/scorm/packages", cfg.PackageHandler.Upload)
			protected.GET("/scorm/packages", cfg.PackageHandler.List)
			protected.GET("/scorm/packages/:lessonId", cfg.PackageHandler.Get)
			protected.DELETE("/scorm/packages/:lessonId", cfg.PackageHandler.Delete)
		}

		// Progress
		if cfg.ProgressHandler != nil {
			protected.GET("/scorm/progress", cfg.ProgressHandler.Get)
			protected.POST("/scorm/progress", cfg.ProgressHandler.Save)
			protected.GET("/scorm/progress/summary", cfg.ProgressHandler.Summary)
		}

		// Content tokens
		if cfg.ProxyHandler != nil {
			protected.POST("/scorm/proxy", cfg.ProxyHandler.IssueToken)
		}

		// RTE sessions
		if cfg.PlayerHandler != nil {
			protected.POST("/scorm/sessions", cfg.PlayerHandler.StartSession)
			protected.POST("/scorm/sessions/:id/rte", cfg.PlayerHandler.Call)
		}

		// xAPI
		if cfg.XAPIHandler != nil {
			protected.POST("/scorm/xapi/statements", cfg.XAPIHandler.Statements)
		}
	}

	return r
}
