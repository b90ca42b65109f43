package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("tokens.signing_secret", "secret")
	configViper.Set("drive.mode", DriveModeMemory)

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.DatabaseDriver != DatabaseDriverSQLite || cfg.DatabasePath != defaultDatabasePath {
		t.Fatalf("unexpected database config %q %q", cfg.DatabaseDriver, cfg.DatabasePath)
	}
	if cfg.BlobMode != BlobModeLocal {
		t.Fatalf("expected local blob mode, got %q", cfg.BlobMode)
	}
	if cfg.TransferTimeout != 5*time.Minute {
		t.Fatalf("unexpected transfer timeout %s", cfg.TransferTimeout)
	}
	if cfg.MaxUploadBytes != 10*1024*1024 {
		t.Fatalf("unexpected max upload bytes %d", cfg.MaxUploadBytes)
	}
}

func TestLoadTrimsSiteBaseURL(t *testing.T) {
	configViper := NewViper()
	configViper.Set("tokens.signing_secret", "secret")
	configViper.Set("drive.mode", DriveModeMemory)
	configViper.Set("site.base_url", "https://vinculo.example.com/ ")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.SiteBaseURL != "https://vinculo.example.com" {
		t.Fatalf("unexpected base url %q", cfg.SiteBaseURL)
	}
}

func TestLoadValidationFailures(t *testing.T) {
	testCases := []struct {
		name      string
		overrides map[string]any
		wantError string
	}{
		{
			name:      "missing-signing-secret",
			overrides: map[string]any{"drive.mode": DriveModeMemory},
			wantError: "tokens.signing_secret",
		},
		{
			name:      "google-drive-without-root",
			overrides: map[string]any{"tokens.signing_secret": "s", "drive.mode": DriveModeGoogle},
			wantError: "drive.root_folder_id",
		},
		{
			name: "google-drive-without-oauth",
			overrides: map[string]any{
				"tokens.signing_secret": "s",
				"drive.mode":            DriveModeGoogle,
				"drive.root_folder_id":  "root",
			},
			wantError: "drive.oauth.client_id",
		},
		{
			name: "postgres-without-dsn",
			overrides: map[string]any{
				"tokens.signing_secret": "s",
				"drive.mode":            DriveModeMemory,
				"database.driver":       DatabaseDriverPostgres,
			},
			wantError: "database.dsn",
		},
		{
			name: "unknown-blob-mode",
			overrides: map[string]any{
				"tokens.signing_secret": "s",
				"drive.mode":            DriveModeMemory,
				"blob.mode":             "ftp",
			},
			wantError: "blob.mode",
		},
		{
			name: "s3-without-bucket",
			overrides: map[string]any{
				"tokens.signing_secret": "s",
				"drive.mode":            DriveModeMemory,
				"blob.mode":             BlobModeS3,
			},
			wantError: "blob.s3.bucket",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			for key, value := range testCase.overrides {
				configViper.Set(key, value)
			}
			_, err := Load(configViper)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), testCase.wantError) {
				t.Fatalf("expected error mentioning %q, got %v", testCase.wantError, err)
			}
		})
	}
}
