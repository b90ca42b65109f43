package events

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Error kinds reported by event operations.
var (
	ErrNotFound         = errors.New("event not found")
	ErrClientNotFound   = errors.New("client not found")
	ErrInvalidEvent     = errors.New("invalid event")
	ErrExternalStore    = errors.New("event folder could not be created")
	ErrPersistence      = errors.New("event could not be saved")
	ErrCardGeneration   = errors.New("cards could not be generated")
	errMissingDatabase  = errors.New("database handle is required")
	errMissingFolders   = errors.New("folder provisioner is required")
	errCodeAttemptsUsed = errors.New("event code still taken after retries")
	noOpLogger          = zap.NewNop()
)

// ServiceError carries an operation.reason code alongside the error kind and cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew    = "events.service.new"
	opCreateEvent   = "events.create_event"
	opNextEventCode = "events.next_event_code"
	opResolve       = "events.resolve"
	opListByClient  = "events.list_by_client"
	opGetEvent      = "events.get_event"
)

func newServiceError(operation, reason string, kind error, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	wrapped := kind
	if cause != nil {
		wrapped = fmt.Errorf("%w: %w", kind, cause)
	}
	return &ServiceError{code: code, err: wrapped}
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	logger := s.logger
	if logger == nil {
		logger = noOpLogger
	}
	allFields := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}, fields...)
	logger.Error("events operation failed", allFields...)
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint") || strings.Contains(message, "duplicate key")
}
