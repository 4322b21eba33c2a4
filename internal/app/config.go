package app

import (
	"strings"
	"time"

	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/packagestore"
	"github.com/yungbote/neurobridge-scorm/internal/platform/envutil"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

const (
	StateBackendMemory = "memory"
	StateBackendRedis  = "redis"
)

type Config struct {
	Port        string
	Environment string
	ServiceName string
	Version     string

	JWTSecretKey   string
	AllowedOrigins []string

	PackageRoot          string
	MaxUploadBytes       int64
	MaxUncompressedBytes int64
	MaxArchiveEntries    int
	IngestTimeout        time.Duration
	MaxConcurrentIngests int64

	TokenTTL      time.Duration
	SessionTTL    time.Duration
	TerminatedTTL time.Duration
	CommitRetries int
	CommitBackoff time.Duration

	StateBackend string

	EnrollmentServiceURL string
	EnrollmentTimeout    time.Duration

	JanitorSchedule string
	JanitorMinAge   time.Duration

	MetricsAddr string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		Environment: envutil.String("APP_ENV", "development"),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "neurobridge-scorm"),
		Version:     envutil.String("APP_VERSION", "dev"),

		JWTSecretKey: envutil.String("JWT_SECRET_KEY", ""),

		PackageRoot:          envutil.String("SCORM_PACKAGE_ROOT", "./data/scorm"),
		MaxUploadBytes:       envutil.Int64("SCORM_MAX_UPLOAD_BYTES", 50<<20),
		MaxUncompressedBytes: envutil.Int64("SCORM_MAX_UNCOMPRESSED_BYTES", packagestore.DefaultMaxUncompressedBytes),
		MaxArchiveEntries:    envutil.Int("SCORM_MAX_ARCHIVE_ENTRIES", packagestore.DefaultMaxEntries),
		IngestTimeout:        envutil.Duration("SCORM_INGEST_TIMEOUT", 2*time.Minute),
		MaxConcurrentIngests: envutil.Int64("SCORM_MAX_CONCURRENT_INGESTS", 2),

		TokenTTL:      envutil.Duration("SCORM_TOKEN_TTL", 2*time.Hour),
		SessionTTL:    envutil.Duration("SCORM_SESSION_TTL", 2*time.Hour),
		TerminatedTTL: envutil.Duration("SCORM_TERMINATED_TTL", 10*time.Minute),
		CommitRetries: envutil.Int("SCORM_COMMIT_RETRIES", 3),
		CommitBackoff: envutil.Duration("SCORM_COMMIT_BACKOFF", 50*time.Millisecond),

		StateBackend: strings.ToLower(envutil.String("SCORM_STATE_BACKEND", StateBackendMemory)),

		EnrollmentServiceURL: envutil.String("ENROLLMENT_SERVICE_URL", ""),
		EnrollmentTimeout:    envutil.Duration("ENROLLMENT_TIMEOUT", 5*time.Second),

		JanitorSchedule: envutil.String("SCORM_JANITOR_SCHEDULE", ""),
		JanitorMinAge:   envutil.Duration("SCORM_JANITOR_MIN_AGE", packagestore.DefaultOrphanAge),

		MetricsAddr: envutil.String("METRICS_ADDR", ":9090"),
	}
	for _, o := range strings.Split(envutil.String("CORS_ALLOWED_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	if cfg.JWTSecretKey == "" {
		log.Warn("JWT_SECRET_KEY is empty; every authenticated request will be rejected")
	}
	if cfg.StateBackend != StateBackendMemory && cfg.StateBackend != StateBackendRedis {
		log.Warn("unknown SCORM_STATE_BACKEND, using memory", "value", cfg.StateBackend)
		cfg.StateBackend = StateBackendMemory
	}
	return cfg
}
