package cards

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/blob"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/drive"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultTransferTimeout = 5 * time.Minute

type ServiceConfig struct {
	Database        *gorm.DB
	Files           drive.FileStore
	Blobs           blob.Store
	Tokens          TokenIssuer
	Clock           func() time.Time
	IDProvider      IDProvider
	Logger          *zap.Logger
	TransferTimeout time.Duration
}

type IDProvider interface {
	NewID() (string, error)
	NewPublicCode() (string, error)
}

// TokenIssuer signs the upload token stored on each generated card.
type TokenIssuer interface {
	Issue(publicCode string) (string, error)
}

type Service struct {
	db              *gorm.DB
	files           drive.FileStore
	blobs           blob.Store
	tokens          TokenIssuer
	clock           func() time.Time
	idProvider      IDProvider
	logger          *zap.Logger
	transferTimeout time.Duration
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", ErrBadConfiguration, errMissingDatabase)
	}
	if cfg.Files == nil {
		return nil, newServiceError(opServiceNew, "missing_file_store", ErrBadConfiguration, errMissingFileStore)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", ErrBadConfiguration, errMissingIDProvider)
	}
	if cfg.Tokens == nil {
		return nil, newServiceError(opServiceNew, "missing_token_issuer", ErrBadConfiguration, errMissingTokenIssuer)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	timeout := cfg.TransferTimeout
	if timeout <= 0 {
		timeout = defaultTransferTimeout
	}

	return &Service{
		db:              cfg.Database,
		files:           cfg.Files,
		blobs:           cfg.Blobs,
		tokens:          cfg.Tokens,
		clock:           clock,
		idProvider:      cfg.IDProvider,
		logger:          logger,
		transferTimeout: timeout,
	}, nil
}

// lookupCard resolves a guest-facing public code, falling back to the admin card code.
func (s *Service) lookupCard(ctx context.Context, code string) (Card, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Card{}, gorm.ErrRecordNotFound
	}
	var card Card
	err := s.db.WithContext(ctx).Where("public_code = ?", code).Take(&card).Error
	if err == nil || !errors.Is(err, gorm.ErrRecordNotFound) {
		return card, err
	}
	err = s.db.WithContext(ctx).Where("card_code = ?", code).Order("created_at ASC").Take(&card).Error
	return card, err
}

// GetByPublicCode returns the card behind a guest-facing code.
func (s *Service) GetByPublicCode(ctx context.Context, code string) (Card, error) {
	card, err := s.lookupCard(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Card{}, newServiceError(opGetByPublicCode, "card_not_found", ErrNotFound, nil)
	}
	if err != nil {
		s.logError(opGetByPublicCode, "card_select_failed", err, zap.String("code", code))
		return Card{}, newServiceError(opGetByPublicCode, "card_select_failed", ErrPersistence, err)
	}
	return card, nil
}

// Get returns a card by id.
func (s *Service) Get(ctx context.Context, cardID string) (Card, error) {
	var card Card
	err := s.db.WithContext(ctx).Where("card_id = ?", strings.TrimSpace(cardID)).Take(&card).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Card{}, newServiceError(opGetCard, "card_not_found", ErrNotFound, nil)
	}
	if err != nil {
		s.logError(opGetCard, "card_select_failed", err, zap.String("card_id", cardID))
		return Card{}, newServiceError(opGetCard, "card_select_failed", ErrPersistence, err)
	}
	return card, nil
}

// ListByEvents returns the cards of the given events ordered by event and index.
func (s *Service) ListByEvents(ctx context.Context, eventIDs []int64) ([]Card, error) {
	if len(eventIDs) == 0 {
		return []Card{}, nil
	}
	var list []Card
	err := s.db.WithContext(ctx).
		Where("event_fk IN ?", eventIDs).
		Order("event_fk ASC").
		Order("card_index ASC").
		Find(&list).Error
	if err != nil {
		s.logError(opListByEvents, "card_select_failed", err)
		return nil, newServiceError(opListByEvents, "card_select_failed", ErrPersistence, err)
	}
	return list, nil
}

// ToggleVideoCurrent flips the "video is current" flag of a single card.
func (s *Service) ToggleVideoCurrent(ctx context.Context, cardID string) (Card, error) {
	var updated Card
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("card_id = ?", strings.TrimSpace(cardID)).Take(&updated).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opToggleVideo, "card_not_found", ErrNotFound, nil)
		}
		if err != nil {
			s.logError(opToggleVideo, "card_select_failed", err, zap.String("card_id", cardID))
			return newServiceError(opToggleVideo, "card_select_failed", ErrPersistence, err)
		}
		updated.VideoCurrent = !updated.VideoCurrent
		if err := tx.Model(&Card{}).
			Where("card_id = ?", updated.ID).
			Update("video_actualizado", updated.VideoCurrent).Error; err != nil {
			s.logError(opToggleVideo, "card_update_failed", err, zap.String("card_id", cardID))
			return newServiceError(opToggleVideo, "card_update_failed", ErrPersistence, err)
		}
		return nil
	})
	if txErr != nil {
		return Card{}, txErr
	}
	return updated, nil
}
