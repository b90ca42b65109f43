package cards

import (
	"io"
	"time"

	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/drive"
)

// RecordingStatus tracks whether a guest has recorded the card's video.
type RecordingStatus string

const (
	// RecordingPending marks a card still waiting for a guest video.
	RecordingPending RecordingStatus = "PENDIENTE"
	// RecordingRecorded marks a card whose group received a guest video.
	RecordingRecorded RecordingStatus = "GRABADA"
)

// Card is one physical tag bound to an event position.
type Card struct {
	ID               string          `gorm:"column:card_id;primaryKey;size:36" json:"card_id"`
	EventID          int64           `gorm:"column:event_fk;not null;uniqueIndex:idx_cards_event_index,priority:1" json:"event_fk"`
	CardIndex        *int            `gorm:"column:card_index;uniqueIndex:idx_cards_event_index,priority:2" json:"card_index"`
	PublicCode       string          `gorm:"column:public_code;size:64;not null;uniqueIndex" json:"public_code"`
	CardCode         string          `gorm:"column:card_code;size:64;index" json:"card_code"`
	DriveFileID      *string         `gorm:"column:drive_file_id;size:190" json:"drive_file_id"`
	InitialVideoURL  *string         `gorm:"column:initial_video_url;size:512" json:"initial_video_url"`
	VideoCurrent     bool            `gorm:"column:video_actualizado;not null" json:"video_actualizado"`
	UploadToken      string          `gorm:"column:upload_token;size:512" json:"-"`
	UploadEnabled    bool            `gorm:"column:upload_enabled;not null" json:"upload_enabled"`
	UploadDisabledAt *time.Time      `gorm:"column:upload_disabled_at" json:"upload_disabled_at,omitempty"`
	RecordingStatus  RecordingStatus `gorm:"column:recording_status;size:16;not null;default:PENDIENTE" json:"recording_status"`
	RecordedAt       *time.Time      `gorm:"column:recorded_at" json:"recorded_at,omitempty"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Card) TableName() string {
	return "cards"
}

// FileID returns the Drive file reference or an empty string.
func (c Card) FileID() string {
	if c.DriveFileID == nil {
		return ""
	}
	return *c.DriveFileID
}

// UploadVariant names the entry shape an upload arrived through.
type UploadVariant string

const (
	VariantDirect UploadVariant = "direct"
	VariantStaged UploadVariant = "staged"
	VariantAdmin  UploadVariant = "admin"
)

// AttemptState is the lifecycle position of one upload attempt.
type AttemptState string

const (
	AttemptReceived     AttemptState = "RECEIVED"
	AttemptStaged       AttemptState = "STAGED"
	AttemptTransferring AttemptState = "TRANSFERRING"
	AttemptCommitted    AttemptState = "COMMITTED"
	AttemptFailed       AttemptState = "FAILED"
)

// UploadAttempt is the audit trail of upload attempts per card.
type UploadAttempt struct {
	ID          string        `gorm:"column:id;primaryKey;size:36"`
	CardID      string        `gorm:"column:card_id;size:36;not null;index"`
	Variant     UploadVariant `gorm:"column:variant;size:16;not null"`
	State       AttemptState  `gorm:"column:state;size:16;not null"`
	TempPath    string        `gorm:"column:temp_path;size:512;index"`
	DriveFileID string        `gorm:"column:drive_file_id;size:190"`
	ErrorCode   string        `gorm:"column:error_code;size:190"`
	CreatedAt   time.Time     `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time     `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (UploadAttempt) TableName() string {
	return "video_uploads"
}

// DirectUpload is a guest upload carrying the card's token and the video bytes.
type DirectUpload struct {
	Code     string
	Token    string
	Content  io.Reader
	MimeType string
}

// StagedUpload references bytes previously placed in the temp blob store.
type StagedUpload struct {
	Code     string
	TempPath string
	MimeType string
}

// AdminUpload is a staff upload addressed by card id.
type AdminUpload struct {
	CardID   string
	Content  io.Reader
	MimeType string
}

// FinalizeResult reports the committed group video.
type FinalizeResult struct {
	PublicCode   string
	FileID       string
	ViewURL      string
	Mode         drive.UploadMode
	Group        Group
	UpdatedCards int64
}
