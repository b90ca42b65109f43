package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "VINCULO"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabaseDriver  = DatabaseDriverSQLite
	defaultDatabasePath    = "vinculo.db"
	defaultLogLevel        = "info"
	defaultDriveMode       = DriveModeGoogle
	defaultBlobMode        = BlobModeLocal
	defaultBlobLocalDir    = "/tmp/vinculo-staging"
	defaultTransferTimeout = 5 * time.Minute
	defaultMaxUploadBytes  = 10 * 1024 * 1024
	defaultTokenIssuer     = "vinculo-cards"
)

// Supported backends.
const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
	DriveModeGoogle        = "google"
	DriveModeMemory        = "memory"
	BlobModeLocal          = "local"
	BlobModeS3             = "s3"
)

// DriveOAuthConfig holds the OAuth2 client used to act on the service Drive account.
type DriveOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	RefreshToken string
}

// S3Config holds temp blob settings when BlobMode is s3.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress     string
	AllowedOrigins  []string
	DatabaseDriver  string
	DatabasePath    string
	DatabaseDSN     string
	LogLevel        string
	SiteBaseURL     string
	DriveMode       string
	DriveRootFolder string
	DriveEndpoint   string
	DriveOAuth      DriveOAuthConfig
	BlobMode        string
	BlobLocalDir    string
	S3              S3Config
	TransferTimeout time.Duration
	MaxUploadBytes  int64
	SigningSecret   string
	TokenIssuer     string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{"*"})
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("drive.mode", defaultDriveMode)
	configViper.SetDefault("blob.mode", defaultBlobMode)
	configViper.SetDefault("blob.local_dir", defaultBlobLocalDir)
	configViper.SetDefault("upload.transfer_timeout", defaultTransferTimeout)
	configViper.SetDefault("upload.max_bytes", defaultMaxUploadBytes)
	configViper.SetDefault("tokens.issuer", defaultTokenIssuer)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		AllowedOrigins:  configViper.GetStringSlice("http.allowed_origins"),
		DatabaseDriver:  strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:    configViper.GetString("database.path"),
		DatabaseDSN:     configViper.GetString("database.dsn"),
		LogLevel:        configViper.GetString("log.level"),
		SiteBaseURL:     strings.TrimRight(strings.TrimSpace(configViper.GetString("site.base_url")), "/"),
		DriveMode:       strings.ToLower(strings.TrimSpace(configViper.GetString("drive.mode"))),
		DriveRootFolder: strings.TrimSpace(configViper.GetString("drive.root_folder_id")),
		DriveEndpoint:   configViper.GetString("drive.endpoint"),
		DriveOAuth: DriveOAuthConfig{
			ClientID:     configViper.GetString("drive.oauth.client_id"),
			ClientSecret: configViper.GetString("drive.oauth.client_secret"),
			RedirectURL:  configViper.GetString("drive.oauth.redirect_url"),
			RefreshToken: configViper.GetString("drive.oauth.refresh_token"),
		},
		BlobMode:     strings.ToLower(strings.TrimSpace(configViper.GetString("blob.mode"))),
		BlobLocalDir: configViper.GetString("blob.local_dir"),
		S3: S3Config{
			Bucket:          configViper.GetString("blob.s3.bucket"),
			Region:          configViper.GetString("blob.s3.region"),
			Endpoint:        configViper.GetString("blob.s3.endpoint"),
			AccessKeyID:     configViper.GetString("blob.s3.access_key_id"),
			SecretAccessKey: configViper.GetString("blob.s3.secret_access_key"),
		},
		TransferTimeout: configViper.GetDuration("upload.transfer_timeout"),
		MaxUploadBytes:  configViper.GetInt64("upload.max_bytes"),
		SigningSecret:   configViper.GetString("tokens.signing_secret"),
		TokenIssuer:     configViper.GetString("tokens.issuer"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	switch c.DatabaseDriver {
	case DatabaseDriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case DatabaseDriverPostgres:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}

	switch c.DriveMode {
	case DriveModeMemory:
	case DriveModeGoogle:
		if c.DriveRootFolder == "" {
			return fmt.Errorf("drive.root_folder_id is required")
		}
		if c.DriveOAuth.ClientID == "" || c.DriveOAuth.ClientSecret == "" || c.DriveOAuth.RedirectURL == "" {
			return fmt.Errorf("drive.oauth.client_id, drive.oauth.client_secret and drive.oauth.redirect_url are required")
		}
	default:
		return fmt.Errorf("drive.mode %q is not supported", c.DriveMode)
	}

	switch c.BlobMode {
	case BlobModeLocal:
		if strings.TrimSpace(c.BlobLocalDir) == "" {
			return fmt.Errorf("blob.local_dir is required")
		}
	case BlobModeS3:
		if c.S3.Bucket == "" || c.S3.Region == "" {
			return fmt.Errorf("blob.s3.bucket and blob.s3.region are required")
		}
	default:
		return fmt.Errorf("blob.mode %q is not supported", c.BlobMode)
	}

	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("tokens.signing_secret is required")
	}
	if c.TransferTimeout <= 0 {
		return fmt.Errorf("upload.transfer_timeout must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	return nil
}
