package cards

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Error kinds reported by card operations. Every ServiceError wraps exactly one of them.
var (
	ErrNotFound         = errors.New("card not found")
	ErrForbidden        = errors.New("upload not allowed for this card")
	ErrBadConfiguration = errors.New("card or event is not configured for uploads")
	ErrBadRequest       = errors.New("invalid upload request")
	ErrExternalStore    = errors.New("external file store failed")
	ErrPersistence      = errors.New("card state could not be saved")
)

var (
	errMissingDatabase    = errors.New("database handle is required")
	errMissingFileStore   = errors.New("file store is required")
	errMissingIDProvider  = errors.New("id provider is required")
	errMissingTokenIssuer = errors.New("upload token issuer is required")
	noOpLogger            = zap.NewNop()
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
	opServiceNew      = "cards.service.new"
	opFinalizeDirect  = "cards.finalize_direct"
	opFinalizeStaged  = "cards.finalize_staged"
	opFinalizeAdmin   = "cards.finalize_admin"
	opStageUpload     = "cards.stage_upload"
	opGenerateMissing = "cards.generate_missing"
	opToggleVideo     = "cards.toggle_video"
	opGetByPublicCode = "cards.get_by_public_code"
	opListByEvents    = "cards.list_by_events"
	opGetCard         = "cards.get_card"
	opRecordAttempt   = "cards.record_attempt"
	opCleanupTempBlob = "cards.cleanup_temp"
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
	logger := s.loggerOrDefault()
	allFields := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}, fields...)
	logger.Error("cards operation failed", allFields...)
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}
