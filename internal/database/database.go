package database

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/cards"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/clients"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/config"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/events"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Config selects the relational store backing the service.
type Config struct {
	Driver string
	Path   string
	DSN    string
}

// Open connects to the configured database and performs schema migrations.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = config.DatabaseDriverSQLite
	}

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case config.DatabaseDriverSQLite:
		db, err = openSQLite(cfg.Path)
	case config.DatabaseDriverPostgres:
		db, err = openPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("driver", driver))
	}
	return db, nil
}

// Migrate brings the schema to the current version. It runs once at startup.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(
		&clients.Client{},
		&events.Event{},
		&cards.Card{},
		&cards.UploadAttempt{},
		&migrationRecord{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return applyMigrations(db, logger)
}

func openSQLite(path string) (*gorm.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func openPostgres(dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	return gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
}
