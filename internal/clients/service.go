package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var (
	// ErrNotFound reports an unknown client.
	ErrNotFound = errors.New("client not found")
	// ErrInvalidClient reports a request that failed validation.
	ErrInvalidClient = errors.New("invalid client")
)

// ServiceConfig describes the dependencies required for client management.
type ServiceConfig struct {
	Database  *gorm.DB
	Validator *validator.Validate
	Clock     func() time.Time
}

// Service manages client records.
type Service struct {
	db       *gorm.DB
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs the client service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("clients: database connection required")
	}
	validate := cfg.Validator
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, validate: validate, now: clock}, nil
}

// Create validates and inserts a client.
func (s *Service) Create(ctx context.Context, request CreateClientRequest) (Client, error) {
	request.FullName = normalize(request.FullName)
	request.Phone = normalize(request.Phone)
	request.Email = normalizeEmail(request.Email)
	request.DNI = normalize(request.DNI)
	if err := s.validate.Struct(request); err != nil {
		return Client{}, fmt.Errorf("%w: %v", ErrInvalidClient, err)
	}

	client := Client{
		FullName:  request.FullName,
		Phone:     request.Phone,
		Email:     request.Email,
		DNI:       request.DNI,
		CreatedAt: s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&client).Error; err != nil {
		return Client{}, fmt.Errorf("clients: create: %w", err)
	}
	return client, nil
}

// FindOrCreate returns the client matching lookup, creating one from request when none matches.
func (s *Service) FindOrCreate(ctx context.Context, lookup Lookup, request CreateClientRequest) (Client, bool, error) {
	if lookup.ID > 0 {
		client, err := s.Get(ctx, lookup.ID)
		return client, false, err
	}

	criteria := []struct {
		column string
		value  string
	}{
		{column: "telefono_contacto", value: normalize(lookup.Phone)},
		{column: "email", value: normalizeEmail(lookup.Email)},
	}
	for _, criterion := range criteria {
		if criterion.value == "" {
			continue
		}
		var existing Client
		err := s.db.WithContext(ctx).
			Where(criterion.column+" = ?", criterion.value).
			Order("id_cliente ASC").
			Take(&existing).Error
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return Client{}, false, fmt.Errorf("clients: lookup by %s: %w", criterion.column, err)
		}
	}

	if request.Phone == "" {
		request.Phone = lookup.Phone
	}
	if request.Email == "" {
		request.Email = lookup.Email
	}
	created, err := s.Create(ctx, request)
	if err != nil {
		return Client{}, false, err
	}
	return created, true, nil
}

// Get returns a client by id.
func (s *Service) Get(ctx context.Context, clientID int64) (Client, error) {
	if clientID <= 0 {
		return Client{}, ErrNotFound
	}
	var client Client
	err := s.db.WithContext(ctx).Where("id_cliente = ?", clientID).Take(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, fmt.Errorf("clients: get: %w", err)
	}
	return client, nil
}

// List returns clients newest first.
func (s *Service) List(ctx context.Context) ([]Client, error) {
	var list []Client
	if err := s.db.WithContext(ctx).Order("created_at DESC").Order("id_cliente DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("clients: list: %w", err)
	}
	return list, nil
}
