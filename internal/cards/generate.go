package cards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/events"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const generateBatchSize = 100

// GenerateMissing creates every card of 1..distinct_groups*cards_per_group the event does not have yet.
// Re-running it after a partial failure only fills the remaining gaps.
func (s *Service) GenerateMissing(ctx context.Context, eventID int64) (int, error) {
	var event events.Event
	err := s.db.WithContext(ctx).Where("events_id = ?", eventID).Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, newServiceError(opGenerateMissing, "event_not_found", ErrNotFound, nil)
	}
	if err != nil {
		s.logError(opGenerateMissing, "event_select_failed", err, zap.Int64("event_id", eventID))
		return 0, newServiceError(opGenerateMissing, "event_select_failed", ErrPersistence, err)
	}

	expected := event.ExpectedCards()
	if expected == 0 {
		return 0, nil
	}

	var existingIndices []int
	if err := s.db.WithContext(ctx).Model(&Card{}).
		Where("event_fk = ? AND card_index IS NOT NULL", eventID).
		Pluck("card_index", &existingIndices).Error; err != nil {
		s.logError(opGenerateMissing, "card_select_failed", err, zap.Int64("event_id", eventID))
		return 0, newServiceError(opGenerateMissing, "card_select_failed", ErrPersistence, err)
	}
	present := make(map[int]struct{}, len(existingIndices))
	for _, index := range existingIndices {
		present[index] = struct{}{}
	}

	now := s.clock().UTC()
	missing := make([]Card, 0, expected)
	for index := 1; index <= expected; index++ {
		if _, ok := present[index]; ok {
			continue
		}
		card, err := s.newCard(event, index, now)
		if err != nil {
			return 0, err
		}
		missing = append(missing, card)
	}
	if len(missing) == 0 {
		return 0, nil
	}

	if err := s.db.WithContext(ctx).CreateInBatches(&missing, generateBatchSize).Error; err != nil {
		s.logError(opGenerateMissing, "card_insert_failed", err, zap.Int64("event_id", eventID))
		return 0, newServiceError(opGenerateMissing, "card_insert_failed", ErrPersistence, err)
	}

	s.logger.Info("cards generated",
		zap.String("event_code", event.EventCode),
		zap.Int("created", len(missing)),
		zap.Int("expected", expected))
	return len(missing), nil
}

func (s *Service) newCard(event events.Event, index int, now time.Time) (Card, error) {
	cardID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opGenerateMissing, "id_generation_failed", err)
		return Card{}, newServiceError(opGenerateMissing, "id_generation_failed", ErrPersistence, err)
	}
	publicCode, err := s.idProvider.NewPublicCode()
	if err != nil {
		s.logError(opGenerateMissing, "public_code_failed", err)
		return Card{}, newServiceError(opGenerateMissing, "public_code_failed", ErrPersistence, err)
	}
	token, err := s.tokens.Issue(publicCode)
	if err != nil {
		s.logError(opGenerateMissing, "token_issue_failed", err)
		return Card{}, newServiceError(opGenerateMissing, "token_issue_failed", ErrBadConfiguration, err)
	}

	cardIndex := index
	return Card{
		ID:              cardID,
		EventID:         event.ID,
		CardIndex:       &cardIndex,
		PublicCode:      publicCode,
		CardCode:        fmt.Sprintf("%s-%03d", event.EventCode, index),
		UploadToken:     token,
		UploadEnabled:   true,
		RecordingStatus: RecordingPending,
		CreatedAt:       now,
	}, nil
}
