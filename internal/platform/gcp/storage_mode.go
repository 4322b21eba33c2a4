package gcp

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/neurobridge-scorm/internal/platform/envutil"
)

type ObjectStorageMode string

const (
	ObjectStorageModeGCS         ObjectStorageMode = "gcs"
	ObjectStorageModeGCSEmulator ObjectStorageMode = "gcs_emulator"
)

// MirrorConfig describes the optional bucket that mirrors extracted packages.
// An empty Bucket disables mirroring.
type MirrorConfig struct {
	Mode         ObjectStorageMode
	EmulatorHost string
	Bucket       string
	Prefix       string
	// FromEmulatorHost is set when the mode was inferred from STORAGE_EMULATOR_HOST.
	FromEmulatorHost bool
}

func (c MirrorConfig) Enabled() bool { return c.Bucket != "" }

func (c MirrorConfig) IsEmulator() bool { return c.Mode == ObjectStorageModeGCSEmulator }

type ConfigErrorCode string

const (
	ConfigErrorInvalidMode         ConfigErrorCode = "invalid_mode"
	ConfigErrorMissingEmulatorHost ConfigErrorCode = "missing_emulator_host"
	ConfigErrorInvalidEmulatorHost ConfigErrorCode = "invalid_emulator_host"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	switch e.Code {
	case ConfigErrorInvalidMode:
		return fmt.Sprintf("invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q)", e.Value, ObjectStorageModeGCS, ObjectStorageModeGCSEmulator)
	case ConfigErrorMissingEmulatorHost:
		return fmt.Sprintf("OBJECT_STORAGE_MODE=%q requires STORAGE_EMULATOR_HOST", ObjectStorageModeGCSEmulator)
	case ConfigErrorInvalidEmulatorHost:
		return fmt.Sprintf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", e.Value)
	}
	return "invalid object storage config"
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// MirrorConfigFromEnv reads OBJECT_STORAGE_MODE, STORAGE_EMULATOR_HOST,
// SCORM_GCS_BUCKET_NAME and SCORM_GCS_PREFIX.
func MirrorConfigFromEnv() (MirrorConfig, error) {
	cfg := MirrorConfig{
		EmulatorHost: strings.TrimRight(envutil.String("STORAGE_EMULATOR_HOST", ""), "/"),
		Bucket:       envutil.String("SCORM_GCS_BUCKET_NAME", ""),
		Prefix:       strings.Trim(envutil.String("SCORM_GCS_PREFIX", "scorm"), "/"),
	}
	raw := envutil.String("OBJECT_STORAGE_MODE", "")
	switch ObjectStorageMode(strings.ToLower(raw)) {
	case "":
		cfg.Mode = ObjectStorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = ObjectStorageModeGCSEmulator
			cfg.FromEmulatorHost = true
		}
	case ObjectStorageModeGCS:
		cfg.Mode = ObjectStorageModeGCS
	case ObjectStorageModeGCSEmulator:
		cfg.Mode = ObjectStorageModeGCSEmulator
	default:
		return cfg, &ConfigError{Code: ConfigErrorInvalidMode, Value: raw}
	}
	return cfg, cfg.Validate()
}

func (c MirrorConfig) Validate() error {
	switch c.Mode {
	case ObjectStorageModeGCS:
		return nil
	case ObjectStorageModeGCSEmulator:
	default:
		return &ConfigError{Code: ConfigErrorInvalidMode, Value: string(c.Mode)}
	}
	if c.EmulatorHost == "" {
		return &ConfigError{Code: ConfigErrorMissingEmulatorHost}
	}
	u, err := url.Parse(c.EmulatorHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Code: ConfigErrorInvalidEmulatorHost, Value: c.EmulatorHost, Cause: err}
	}
	return nil
}
