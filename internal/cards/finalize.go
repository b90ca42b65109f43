package cards

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"strings"

	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/blob"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/drive"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/events"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var stagedExtensions = map[string]string{
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
	"video/3gpp":      ".3gp",
}

// commitRequest is the variant-independent input of the finalization core.
type commitRequest struct {
	operation string
	variant   UploadVariant
	card      Card
	attempt   *UploadAttempt
	mimeType  string
	// open yields the video bytes. Staged uploads may call it twice.
	open            func(ctx context.Context) (io.ReadCloser, error)
	reopenable      bool
	preferKnownFile bool
	markRecorded    bool
	disableCard     bool
}

// FinalizeDirect commits a guest video submitted together with the card's upload token.
func (s *Service) FinalizeDirect(ctx context.Context, upload DirectUpload) (FinalizeResult, error) {
	if upload.Content == nil {
		return FinalizeResult{}, newServiceError(opFinalizeDirect, "missing_video", ErrBadRequest, nil)
	}
	card, err := s.findCard(ctx, opFinalizeDirect, upload.Code)
	if err != nil {
		return FinalizeResult{}, err
	}

	request := commitRequest{
		operation: opFinalizeDirect,
		variant:   VariantDirect,
		card:      card,
		attempt:   s.beginAttempt(ctx, card.ID, VariantDirect, "", AttemptReceived),
		mimeType:  upload.MimeType,
		open: func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(upload.Content), nil
		},
		markRecorded: true,
	}
	if strings.TrimSpace(upload.Token) == "" {
		return s.fail(ctx, request, "missing_token", ErrForbidden, nil)
	}
	if card.UploadToken == "" || subtle.ConstantTimeCompare([]byte(upload.Token), []byte(card.UploadToken)) != 1 {
		return s.fail(ctx, request, "token_mismatch", ErrForbidden, nil)
	}
	return s.commit(ctx, request)
}

// StageUpload stores guest bytes in the temp blob store and returns the path to finalize later.
func (s *Service) StageUpload(ctx context.Context, code string, content io.Reader, mimeType string) (string, error) {
	if s.blobs == nil {
		return "", newServiceError(opStageUpload, "missing_blob_store", ErrBadConfiguration, nil)
	}
	if content == nil {
		return "", newServiceError(opStageUpload, "missing_video", ErrBadRequest, nil)
	}
	card, err := s.findCard(ctx, opStageUpload, code)
	if err != nil {
		return "", err
	}
	if !card.UploadEnabled {
		return "", newServiceError(opStageUpload, "uploads_disabled", ErrForbidden, nil)
	}

	objectID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opStageUpload, "id_generation_failed", err, zap.String("card_id", card.ID))
		return "", newServiceError(opStageUpload, "id_generation_failed", ErrPersistence, err)
	}
	extension, ok := stagedExtensions[strings.ToLower(strings.TrimSpace(mimeType))]
	if !ok {
		extension = ".bin"
	}
	tempPath := card.PublicCode + "/" + objectID + extension

	putCtx, cancel := context.WithTimeout(ctx, s.transferTimeout)
	defer cancel()
	if err := s.blobs.Put(putCtx, tempPath, content); err != nil {
		s.logError(opStageUpload, "temp_write_failed", err, zap.String("card_id", card.ID))
		return "", newServiceError(opStageUpload, "temp_write_failed", ErrExternalStore, err)
	}
	s.beginAttempt(ctx, card.ID, VariantStaged, tempPath, AttemptStaged)
	return tempPath, nil
}

// FinalizeStaged commits previously staged bytes, then removes the temp object and closes the card for uploads.
func (s *Service) FinalizeStaged(ctx context.Context, upload StagedUpload) (FinalizeResult, error) {
	if s.blobs == nil {
		return FinalizeResult{}, newServiceError(opFinalizeStaged, "missing_blob_store", ErrBadConfiguration, nil)
	}
	if strings.TrimSpace(upload.TempPath) == "" {
		return FinalizeResult{}, newServiceError(opFinalizeStaged, "missing_temp_path", ErrBadRequest, nil)
	}
	tempPath, err := blob.CleanPath(upload.TempPath)
	if err != nil {
		return FinalizeResult{}, newServiceError(opFinalizeStaged, "invalid_temp_path", ErrBadRequest, err)
	}
	card, err := s.findCard(ctx, opFinalizeStaged, upload.Code)
	if err != nil {
		return FinalizeResult{}, err
	}

	request := commitRequest{
		operation: opFinalizeStaged,
		variant:   VariantStaged,
		card:      card,
		attempt:   s.resumeStagedAttempt(ctx, card.ID, tempPath),
		mimeType:  upload.MimeType,
		open: func(ctx context.Context) (io.ReadCloser, error) {
			return s.blobs.Get(ctx, tempPath)
		},
		reopenable:      true,
		preferKnownFile: true,
		markRecorded:    true,
		disableCard:     true,
	}
	if !card.UploadEnabled {
		return s.fail(ctx, request, "uploads_disabled", ErrForbidden, nil)
	}
	if !strings.HasPrefix(tempPath, card.PublicCode+"/") {
		return s.fail(ctx, request, "temp_path_mismatch", ErrForbidden, nil)
	}

	result, err := s.commit(ctx, request)
	if err != nil {
		return FinalizeResult{}, err
	}
	s.cleanupTemp(ctx, card, tempPath)
	return result, nil
}

// FinalizeAdmin commits a staff upload addressed by card id without token checks.
func (s *Service) FinalizeAdmin(ctx context.Context, upload AdminUpload) (FinalizeResult, error) {
	if upload.Content == nil {
		return FinalizeResult{}, newServiceError(opFinalizeAdmin, "missing_video", ErrBadRequest, nil)
	}
	var card Card
	err := s.db.WithContext(ctx).Where("card_id = ?", strings.TrimSpace(upload.CardID)).Take(&card).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return FinalizeResult{}, newServiceError(opFinalizeAdmin, "card_not_found", ErrNotFound, nil)
	}
	if err != nil {
		s.logError(opFinalizeAdmin, "card_select_failed", err, zap.String("card_id", upload.CardID))
		return FinalizeResult{}, newServiceError(opFinalizeAdmin, "card_select_failed", ErrPersistence, err)
	}

	return s.commit(ctx, commitRequest{
		operation: opFinalizeAdmin,
		variant:   VariantAdmin,
		card:      card,
		attempt:   s.beginAttempt(ctx, card.ID, VariantAdmin, "", AttemptReceived),
		mimeType:  upload.MimeType,
		open: func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(upload.Content), nil
		},
	})
}

func (s *Service) findCard(ctx context.Context, operation, code string) (Card, error) {
	card, err := s.lookupCard(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Card{}, newServiceError(operation, "card_not_found", ErrNotFound, nil)
	}
	if err != nil {
		s.logError(operation, "card_select_failed", err, zap.String("code", code))
		return Card{}, newServiceError(operation, "card_select_failed", ErrPersistence, err)
	}
	return card, nil
}

// commit resolves the card's group, writes the group file and propagates it to every card of the group.
// Nothing is written to the cards table unless the file store accepted the bytes.
func (s *Service) commit(ctx context.Context, request commitRequest) (FinalizeResult, error) {
	card := request.card

	var event events.Event
	err := s.db.WithContext(ctx).Where("events_id = ?", card.EventID).Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.fail(ctx, request, "event_not_found", ErrBadConfiguration, nil)
	}
	if err != nil {
		return s.fail(ctx, request, "event_select_failed", ErrPersistence, err)
	}
	if event.VideoMode == events.VideoModeFix {
		return s.fail(ctx, request, "event_video_fixed", ErrForbidden, nil)
	}
	folderID := strings.TrimSpace(event.FolderID())
	if folderID == "" {
		return s.fail(ctx, request, "event_folder_missing", ErrBadConfiguration, nil)
	}
	if event.CardsPerGroup == nil || *event.CardsPerGroup <= 0 {
		return s.fail(ctx, request, "cards_per_group_missing", ErrBadConfiguration, nil)
	}
	if card.CardIndex == nil || *card.CardIndex <= 0 {
		return s.fail(ctx, request, "card_index_missing", ErrBadConfiguration, nil)
	}
	group, err := ResolveGroup(*card.CardIndex, *event.CardsPerGroup)
	if err != nil {
		return s.fail(ctx, request, "group_unresolved", ErrBadConfiguration, err)
	}

	s.advanceAttempt(ctx, request.attempt, AttemptTransferring, "", "")
	transferCtx, cancel := context.WithTimeout(ctx, s.transferTimeout)
	defer cancel()
	upload, err := s.transfer(transferCtx, request, folderID, group)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidPath) {
			return s.fail(ctx, request, "temp_object_missing", ErrBadRequest, err)
		}
		return s.fail(ctx, request, "transfer_failed", ErrExternalStore, err)
	}
	viewURL := drive.ViewURL(upload.FileID)

	now := s.clock().UTC()
	updates := map[string]any{
		"drive_file_id":     upload.FileID,
		"initial_video_url": viewURL,
		"video_actualizado": true,
	}
	if request.markRecorded {
		updates["recording_status"] = RecordingRecorded
		updates["recorded_at"] = now
	}

	var updatedCards int64
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Card{}).
			Where("event_fk = ? AND card_index BETWEEN ? AND ?", card.EventID, group.FirstCard, group.LastCard).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		updatedCards = result.RowsAffected
		if request.disableCard {
			return tx.Model(&Card{}).
				Where("card_id = ?", card.ID).
				Updates(map[string]any{
					"upload_enabled":     false,
					"upload_disabled_at": now,
				}).Error
		}
		return nil
	})
	if txErr != nil {
		return s.fail(ctx, request, "group_update_failed", ErrPersistence, txErr,
			zap.String("file_id", upload.FileID))
	}

	s.advanceAttempt(ctx, request.attempt, AttemptCommitted, upload.FileID, "")
	s.logger.Info("card group video committed",
		zap.String("operation", request.operation),
		zap.String("public_code", card.PublicCode),
		zap.Int64("event_id", card.EventID),
		zap.Int("group", group.Index),
		zap.String("file_id", upload.FileID),
		zap.String("mode", string(upload.Mode)),
		zap.Int64("updated_cards", updatedCards))

	return FinalizeResult{
		PublicCode:   card.PublicCode,
		FileID:       upload.FileID,
		ViewURL:      viewURL,
		Mode:         upload.Mode,
		Group:        group,
		UpdatedCards: updatedCards,
	}, nil
}

// transfer writes the bytes to the group's file. A staged upload whose card still points at the
// group's canonical file replaces it by id and falls back to the by-name path if the id went stale.
func (s *Service) transfer(ctx context.Context, request commitRequest, folderID string, group Group) (drive.UploadResult, error) {
	if request.preferKnownFile && s.knownFileIsCanonical(ctx, request.card, folderID, group) {
		content, err := request.open(ctx)
		if err != nil {
			return drive.UploadResult{}, err
		}
		result, err := s.files.ReplaceContent(ctx, request.card.FileID(), content, request.mimeType)
		_ = content.Close()
		if err == nil || !errors.Is(err, drive.ErrFileNotFound) || !request.reopenable {
			return result, err
		}
		s.logger.Warn("known drive file missing, uploading by name",
			zap.String("public_code", request.card.PublicCode),
			zap.String("file_id", request.card.FileID()))
	}

	content, err := request.open(ctx)
	if err != nil {
		return drive.UploadResult{}, err
	}
	defer content.Close()
	return s.files.UploadOrReplace(ctx, drive.UploadRequest{
		FolderID: folderID,
		FileName: group.FileName,
		Content:  content,
		MimeType: request.mimeType,
	})
}

// knownFileIsCanonical reports whether the card's stored file id is the file named after its group.
func (s *Service) knownFileIsCanonical(ctx context.Context, card Card, folderID string, group Group) bool {
	if card.FileID() == "" {
		return false
	}
	current, err := s.files.FindFileByName(ctx, folderID, group.FileName)
	if err != nil || current == nil {
		return false
	}
	if current.ID != card.FileID() {
		s.logger.Warn("stored drive file is not the group file, uploading by name",
			zap.String("public_code", card.PublicCode),
			zap.String("file_id", card.FileID()),
			zap.String("group_file_id", current.ID))
		return false
	}
	return true
}

func (s *Service) fail(ctx context.Context, request commitRequest, reason string, kind, cause error, fields ...zap.Field) (FinalizeResult, error) {
	err := newServiceError(request.operation, reason, kind, cause)
	var serviceErr *ServiceError
	errors.As(err, &serviceErr)
	s.advanceAttempt(ctx, request.attempt, AttemptFailed, "", serviceErr.Code())

	fields = append(fields,
		zap.String("card_id", request.card.ID),
		zap.String("variant", string(request.variant)))
	if errors.Is(kind, ErrExternalStore) || errors.Is(kind, ErrPersistence) {
		s.logError(request.operation, reason, err, fields...)
	} else {
		s.logger.Warn("card upload rejected",
			append([]zap.Field{
				zap.String("operation", request.operation),
				zap.String("reason", reason),
			}, fields...)...)
	}
	return FinalizeResult{}, err
}

// cleanupTemp removes a committed staged object. Failures are logged only.
func (s *Service) cleanupTemp(ctx context.Context, card Card, tempPath string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.transferTimeout)
	defer cancel()
	if err := s.blobs.Delete(cleanupCtx, tempPath); err != nil {
		s.logger.Warn("staged upload cleanup failed",
			zap.String("operation", opCleanupTempBlob),
			zap.String("card_id", card.ID),
			zap.String("temp_path", tempPath),
			zap.Error(err))
	}
}
