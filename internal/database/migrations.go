package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/cards"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/events"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillRecordingStatus = "2024-05-20_backfill_card_recording_status"
	migrationDefaultEventVideoMode   = "2024-05-20_default_event_video_mode"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillRecordingStatus, apply: backfillRecordingStatus},
		{name: migrationDefaultEventVideoMode, apply: defaultEventVideoMode},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillRecordingStatus marks cards imported without a recording status as pending.
func backfillRecordingStatus(db *gorm.DB) error {
	return db.Model(&cards.Card{}).
		Where("recording_status IS NULL OR recording_status = ''").
		Update("recording_status", cards.RecordingPending).Error
}

func defaultEventVideoMode(db *gorm.DB) error {
	return db.Model(&events.Event{}).
		Where("modalidad_video IS NULL OR modalidad_video = ''").
		Update("modalidad_video", events.VideoModeUpgrade).Error
}
