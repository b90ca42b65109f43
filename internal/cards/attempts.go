package cards

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Attempt records are an audit trail only. Write failures are logged and never fail an upload.

func (s *Service) beginAttempt(ctx context.Context, cardID string, variant UploadVariant, tempPath string, state AttemptState) *UploadAttempt {
	attemptID, err := s.idProvider.NewID()
	if err != nil {
		s.logAttemptFailure("attempt_id_failed", err, cardID)
		return nil
	}
	now := s.clock().UTC()
	attempt := &UploadAttempt{
		ID:        attemptID,
		CardID:    cardID,
		Variant:   variant,
		State:     state,
		TempPath:  tempPath,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(attempt).Error; err != nil {
		s.logAttemptFailure("attempt_insert_failed", err, cardID)
		return nil
	}
	return attempt
}

// resumeStagedAttempt continues the attempt opened when the bytes were staged.
func (s *Service) resumeStagedAttempt(ctx context.Context, cardID, tempPath string) *UploadAttempt {
	var attempt UploadAttempt
	err := s.db.WithContext(context.WithoutCancel(ctx)).
		Where("card_id = ? AND temp_path = ? AND state = ?", cardID, tempPath, AttemptStaged).
		Order("created_at DESC").
		Take(&attempt).Error
	if err == nil {
		return &attempt
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logAttemptFailure("attempt_select_failed", err, cardID)
	}
	return s.beginAttempt(ctx, cardID, VariantStaged, tempPath, AttemptReceived)
}

func (s *Service) advanceAttempt(ctx context.Context, attempt *UploadAttempt, state AttemptState, fileID, errorCode string) {
	if attempt == nil {
		return
	}
	attempt.State = state
	attempt.UpdatedAt = s.clock().UTC()
	updates := map[string]any{
		"state":      state,
		"updated_at": attempt.UpdatedAt,
	}
	if fileID != "" {
		attempt.DriveFileID = fileID
		updates["drive_file_id"] = fileID
	}
	if errorCode != "" {
		attempt.ErrorCode = errorCode
		updates["error_code"] = errorCode
	}
	err := s.db.WithContext(context.WithoutCancel(ctx)).
		Model(&UploadAttempt{}).
		Where("id = ?", attempt.ID).
		Updates(updates).Error
	if err != nil {
		s.logAttemptFailure("attempt_update_failed", err, attempt.CardID)
	}
}

func (s *Service) logAttemptFailure(reason string, err error, cardID string) {
	s.loggerOrDefault().Warn("upload attempt not recorded",
		zap.String("operation", opRecordAttempt),
		zap.String("reason", reason),
		zap.String("card_id", cardID),
		zap.Error(err))
}
