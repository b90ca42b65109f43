package server

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/cards"
	"github.com/gin-gonic/gin"
)

// multipartOverhead leaves room for boundaries and the token field on top of the video limit.
const multipartOverhead int64 = 1 << 20

type uploadResultPayload struct {
	OK           bool   `json:"ok"`
	PublicCode   string `json:"public_code"`
	FileID       string `json:"file_id"`
	ViewURL      string `json:"view_url"`
	Mode         string `json:"mode"`
	Group        int    `json:"group"`
	FirstCard    int    `json:"first_card"`
	LastCard     int    `json:"last_card"`
	UpdatedCards int64  `json:"updated_cards"`
}

func newUploadResultPayload(result cards.FinalizeResult) uploadResultPayload {
	return uploadResultPayload{
		OK:           true,
		PublicCode:   result.PublicCode,
		FileID:       result.FileID,
		ViewURL:      result.ViewURL,
		Mode:         string(result.Mode),
		Group:        result.Group.Index,
		FirstCard:    result.Group.FirstCard,
		LastCard:     result.Group.LastCard,
		UpdatedCards: result.UpdatedCards,
	}
}

type cardStatusPayload struct {
	PublicCode      string `json:"public_code"`
	UploadEnabled   bool   `json:"upload_enabled"`
	VideoCurrent    bool   `json:"video_actualizado"`
	RecordingStatus string `json:"recording_status"`
	ViewURL         string `json:"view_url,omitempty"`
}

type finalizeRequestPayload struct {
	TempPath string `json:"tempPath"`
	MimeType string `json:"mimeType"`
}

func (h *httpHandler) handleCardStatus(c *gin.Context) {
	card, err := h.cards.GetByPublicCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.respondError(c, "cards.get_by_public_code", err)
		return
	}
	payload := cardStatusPayload{
		PublicCode:      card.PublicCode,
		UploadEnabled:   card.UploadEnabled,
		VideoCurrent:    card.VideoCurrent,
		RecordingStatus: string(card.RecordingStatus),
	}
	if card.InitialVideoURL != nil {
		payload.ViewURL = *card.InitialVideoURL
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleDirectUpload(c *gin.Context) {
	video, mimeType, ok := h.readVideo(c)
	if !ok {
		return
	}
	defer video.Close()

	result, err := h.cards.FinalizeDirect(c.Request.Context(), cards.DirectUpload{
		Code:     c.Param("code"),
		Token:    c.PostForm("t"),
		Content:  video,
		MimeType: mimeType,
	})
	if err != nil {
		h.respondError(c, "cards.finalize_direct", err)
		return
	}
	c.JSON(http.StatusOK, newUploadResultPayload(result))
}

func (h *httpHandler) handleStageUpload(c *gin.Context) {
	video, mimeType, ok := h.readVideo(c)
	if !ok {
		return
	}
	defer video.Close()

	tempPath, err := h.cards.StageUpload(c.Request.Context(), c.Param("code"), video, mimeType)
	if err != nil {
		h.respondError(c, "cards.stage_upload", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "temp_path": tempPath, "mime_type": mimeType})
}

func (h *httpHandler) handleFinalizeStaged(c *gin.Context) {
	var request finalizeRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		abortWithCode(c, http.StatusBadRequest, "invalid request body", "request.invalid_json")
		return
	}

	result, err := h.cards.FinalizeStaged(c.Request.Context(), cards.StagedUpload{
		Code:     c.Param("code"),
		TempPath: request.TempPath,
		MimeType: request.MimeType,
	})
	if err != nil {
		h.respondError(c, "cards.finalize_staged", err)
		return
	}
	c.JSON(http.StatusOK, newUploadResultPayload(result))
}

// readVideo opens the multipart "video" part under the configured size limit.
// It writes the error response itself and reports false when the request cannot proceed.
func (h *httpHandler) readVideo(c *gin.Context) (multipart.File, string, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	header, err := c.FormFile("video")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithCode(c, http.StatusRequestEntityTooLarge, "video exceeds the upload limit", "upload.too_large")
			return nil, "", false
		}
		abortWithCode(c, http.StatusBadRequest, "video file is required", "upload.missing_video")
		return nil, "", false
	}
	if header.Size > h.maxUploadBytes {
		abortWithCode(c, http.StatusRequestEntityTooLarge, "video exceeds the upload limit", "upload.too_large")
		return nil, "", false
	}
	file, err := header.Open()
	if err != nil {
		abortWithCode(c, http.StatusBadRequest, "video file is unreadable", "upload.unreadable_video")
		return nil, "", false
	}
	mimeType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if mimeType == "application/octet-stream" {
		mimeType = ""
	}
	return file, mimeType, true
}
