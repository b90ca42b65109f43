package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/clients"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/drive"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxCodeAttempts = 3

// FolderProvisioner creates the Drive folder named after an event code.
type FolderProvisioner interface {
	CreateFolder(ctx context.Context, name string) (drive.Folder, error)
}

// CardGenerator fills in missing cards for an event.
type CardGenerator interface {
	GenerateMissing(ctx context.Context, eventID int64) (int, error)
}

type ServiceConfig struct {
	Database  *gorm.DB
	Folders   FolderProvisioner
	Cards     CardGenerator
	Validator *validator.Validate
	Clock     func() time.Time
	Logger    *zap.Logger
}

type Service struct {
	db       *gorm.DB
	folders  FolderProvisioner
	cards    CardGenerator
	validate *validator.Validate
	clock    func() time.Time
	logger   *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", ErrPersistence, errMissingDatabase)
	}
	if cfg.Folders == nil {
		return nil, newServiceError(opServiceNew, "missing_folders", ErrExternalStore, errMissingFolders)
	}
	validate := cfg.Validator
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:       cfg.Database,
		folders:  cfg.Folders,
		cards:    cfg.Cards,
		validate: validate,
		clock:    clock,
		logger:   logger,
	}, nil
}

// CreateEvent inserts the event under a fresh code, provisions its folder and optionally its cards.
// A failure after the insert leaves the event in place; card generation can be re-run safely.
func (s *Service) CreateEvent(ctx context.Context, request CreateEventRequest) (CreateEventResult, error) {
	request.EventType = strings.TrimSpace(request.EventType)
	request.EventDate = strings.TrimSpace(request.EventDate)
	request.Description = strings.TrimSpace(request.Description)
	if request.VideoMode == "" {
		request.VideoMode = VideoModeUpgrade
	}
	if err := s.validate.Struct(request); err != nil {
		return CreateEventResult{}, newServiceError(opCreateEvent, "invalid_request", ErrInvalidEvent, err)
	}

	var client clients.Client
	err := s.db.WithContext(ctx).Where("id_cliente = ?", request.ClientID).Take(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CreateEventResult{}, newServiceError(opCreateEvent, "client_not_found", ErrClientNotFound, nil)
	}
	if err != nil {
		s.logError(opCreateEvent, "client_select_failed", err, zap.Int64("client_id", request.ClientID))
		return CreateEventResult{}, newServiceError(opCreateEvent, "client_select_failed", ErrPersistence, err)
	}

	event := Event{
		ClientID:       request.ClientID,
		EventType:      request.EventType,
		EventDate:      request.EventDate,
		Description:    request.Description,
		Paid:           request.Paid,
		VideoMode:      request.VideoMode,
		DistinctGroups: request.DistinctGroups,
		CardsPerGroup:  request.CardsPerGroup,
	}
	if err := s.insertWithFreshCode(ctx, &event); err != nil {
		return CreateEventResult{}, err
	}

	folder, err := s.folders.CreateFolder(ctx, event.EventCode)
	if err != nil {
		s.logError(opCreateEvent, "folder_create_failed", err, zap.String("event_code", event.EventCode))
		return CreateEventResult{Event: event}, newServiceError(opCreateEvent, "folder_create_failed", ErrExternalStore, err)
	}
	folderID := folder.ID
	if err := s.db.WithContext(ctx).Model(&Event{}).
		Where("events_id = ?", event.ID).
		Update("drive_folder_id", folderID).Error; err != nil {
		s.logError(opCreateEvent, "folder_link_failed", err, zap.String("event_code", event.EventCode))
		return CreateEventResult{Event: event}, newServiceError(opCreateEvent, "folder_link_failed", ErrPersistence, err)
	}
	event.DriveFolderID = &folderID

	result := CreateEventResult{Event: event}
	if request.GenerateCards && s.cards != nil {
		generated, err := s.cards.GenerateMissing(ctx, event.ID)
		if err != nil {
			s.logError(opCreateEvent, "card_generation_failed", err, zap.String("event_code", event.EventCode))
			return result, newServiceError(opCreateEvent, "card_generation_failed", ErrCardGeneration, err)
		}
		result.GeneratedCards = generated
	}

	s.logger.Info("event provisioned",
		zap.String("event_code", event.EventCode),
		zap.String("folder_id", folderID),
		zap.Int("generated_cards", result.GeneratedCards))
	return result, nil
}

// insertWithFreshCode retries when a concurrent creation claimed the same code first.
func (s *Service) insertWithFreshCode(ctx context.Context, event *Event) error {
	var lastErr error
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.nextCode(ctx)
		if err != nil {
			return err
		}
		candidate := *event
		candidate.EventCode = code
		candidate.CreatedAt = s.clock().UTC()
		err = s.db.WithContext(ctx).Create(&candidate).Error
		if err == nil {
			*event = candidate
			return nil
		}
		if !isDuplicateKey(err) {
			s.logError(opCreateEvent, "event_insert_failed", err, zap.String("event_code", code))
			return newServiceError(opCreateEvent, "event_insert_failed", ErrPersistence, err)
		}
		s.logger.Warn("event code collision, retrying",
			zap.String("event_code", code),
			zap.Int("attempt", attempt))
		lastErr = err
	}
	s.logError(opCreateEvent, "event_code_exhausted", lastErr)
	return newServiceError(opCreateEvent, "event_code_exhausted", ErrPersistence, errors.Join(errCodeAttemptsUsed, lastErr))
}

// NextEventCode previews the code the next created event would receive.
func (s *Service) NextEventCode(ctx context.Context) (string, error) {
	return s.nextCode(ctx)
}

// nextCode orders by length first so suffixes wider than four digits still sort numerically.
func (s *Service) nextCode(ctx context.Context) (string, error) {
	year := s.clock().Year()
	prefix := YearPrefix(year)

	var greatest []string
	err := s.db.WithContext(ctx).Model(&Event{}).
		Where("event_code LIKE ?", prefix+"%").
		Order("LENGTH(event_code) DESC").
		Order("event_code DESC").
		Limit(1).
		Pluck("event_code", &greatest).Error
	if err != nil {
		s.logError(opNextEventCode, "code_select_failed", err)
		return "", newServiceError(opNextEventCode, "code_select_failed", ErrPersistence, err)
	}
	latest := ""
	if len(greatest) > 0 {
		latest = greatest[0]
	}
	return NextCode(year, latest), nil
}

// Resolve finds an event by exact code, falling back to the most recent partial match.
func (s *Service) Resolve(ctx context.Context, query string) (Event, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Event{}, newServiceError(opResolve, "missing_query", ErrInvalidEvent, nil)
	}

	var event Event
	err := s.db.WithContext(ctx).Where("event_code = ?", query).Take(&event).Error
	if err == nil {
		return event, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logError(opResolve, "exact_select_failed", err)
		return Event{}, newServiceError(opResolve, "exact_select_failed", ErrPersistence, err)
	}

	pattern := "%" + strings.ToLower(query) + "%"
	err = s.db.WithContext(ctx).
		Where("LOWER(event_code) LIKE ?", pattern).
		Order("created_at DESC").
		Order("events_id DESC").
		Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Event{}, newServiceError(opResolve, "not_found", ErrNotFound, nil)
	}
	if err != nil {
		s.logError(opResolve, "partial_select_failed", err)
		return Event{}, newServiceError(opResolve, "partial_select_failed", ErrPersistence, err)
	}
	return event, nil
}

// Get returns an event by id.
func (s *Service) Get(ctx context.Context, eventID int64) (Event, error) {
	var event Event
	err := s.db.WithContext(ctx).Where("events_id = ?", eventID).Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Event{}, newServiceError(opGetEvent, "not_found", ErrNotFound, nil)
	}
	if err != nil {
		s.logError(opGetEvent, "event_select_failed", err, zap.Int64("event_id", eventID))
		return Event{}, newServiceError(opGetEvent, "event_select_failed", ErrPersistence, err)
	}
	return event, nil
}

// ListByClient returns a client's events newest first.
func (s *Service) ListByClient(ctx context.Context, clientID int64) ([]Event, error) {
	var list []Event
	err := s.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Order("events_id DESC").
		Find(&list).Error
	if err != nil {
		s.logError(opListByClient, "event_select_failed", err, zap.Int64("client_id", clientID))
		return nil, newServiceError(opListByClient, "event_select_failed", ErrPersistence, err)
	}
	return list, nil
}
