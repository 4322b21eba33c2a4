package gcp

import (
	"errors"
	"testing"
)

func TestMirrorConfigFromEnv(t *testing.T) {
	cases := []struct {
		name         string
		mode         string
		emulatorHost string
		wantMode     ObjectStorageMode
		wantInferred bool
		wantErr      ConfigErrorCode
	}{
		{name: "default gcs", wantMode: ObjectStorageModeGCS},
		{name: "explicit gcs ignores emulator host", mode: "gcs", emulatorHost: "http://fake-gcs:4443", wantMode: ObjectStorageModeGCS},
		{name: "explicit emulator", mode: "gcs_emulator", emulatorHost: "http://fake-gcs:4443", wantMode: ObjectStorageModeGCSEmulator},
		{name: "inferred emulator", emulatorHost: "http://fake-gcs:4443/", wantMode: ObjectStorageModeGCSEmulator, wantInferred: true},
		{name: "invalid mode", mode: "local", wantErr: ConfigErrorInvalidMode},
		{name: "emulator without host", mode: "gcs_emulator", wantErr: ConfigErrorMissingEmulatorHost},
		{name: "emulator host without scheme", mode: "gcs_emulator", emulatorHost: "fake-gcs:4443", wantErr: ConfigErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("OBJECT_STORAGE_MODE", tc.mode)
			t.Setenv("STORAGE_EMULATOR_HOST", tc.emulatorHost)
			t.Setenv("SCORM_GCS_BUCKET_NAME", "scorm-mirror")
			t.Setenv("SCORM_GCS_PREFIX", "/packages/")

			cfg, err := MirrorConfigFromEnv()
			if tc.wantErr != "" {
				var cerr *ConfigError
				if !errors.As(err, &cerr) || cerr.Code != tc.wantErr {
					t.Fatalf("error: want=%s got=%v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("MirrorConfigFromEnv: %v", err)
			}
			if cfg.Mode != tc.wantMode || cfg.FromEmulatorHost != tc.wantInferred {
				t.Fatalf("mode: want=%s inferred=%v got=%s inferred=%v", tc.wantMode, tc.wantInferred, cfg.Mode, cfg.FromEmulatorHost)
			}
			if !cfg.Enabled() || cfg.Prefix != "packages" {
				t.Fatalf("bucket config: %+v", cfg)
			}
		})
	}
}

func TestMirrorConfigDisabledWithoutBucket(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "")
	t.Setenv("SCORM_GCS_BUCKET_NAME", "")

	cfg, err := MirrorConfigFromEnv()
	if err != nil {
		t.Fatalf("MirrorConfigFromEnv: %v", err)
	}
	if cfg.Enabled() {
		t.Fatalf("mirror should be disabled without a bucket")
	}
	if cfg.Prefix != "scorm" {
		t.Fatalf("default prefix: want=scorm got=%q", cfg.Prefix)
	}
}
