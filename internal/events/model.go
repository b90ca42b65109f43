package events

import "time"

// VideoMode selects how an event's videos are delivered.
type VideoMode string

const (
	// VideoModeUpgrade keeps videos in Drive where guests may replace them.
	VideoModeUpgrade VideoMode = "upgrade"
	// VideoModeFix points cards at externally hosted videos that never change.
	VideoModeFix VideoMode = "fix"
)

// Event groups the cards printed for one celebration.
type Event struct {
	ID             int64     `gorm:"column:events_id;primaryKey;autoIncrement" json:"events_id"`
	ClientID       int64     `gorm:"column:client_id;not null;index" json:"client_id"`
	EventCode      string    `gorm:"column:event_code;size:32;not null;uniqueIndex" json:"event_code"`
	EventType      string    `gorm:"column:tipo_evento;size:64;not null" json:"tipo_evento"`
	EventDate      string    `gorm:"column:fecha_evento;size:10;not null" json:"fecha_evento"`
	Description    string    `gorm:"column:descripcion_evento;type:text" json:"descripcion_evento,omitempty"`
	Paid           bool      `gorm:"column:pagado;not null" json:"pagado"`
	VideoMode      VideoMode `gorm:"column:modalidad_video;size:16;not null" json:"modalidad_video"`
	DriveFolderID  *string   `gorm:"column:drive_folder_id;size:190" json:"drive_folder_id"`
	DistinctGroups *int      `gorm:"column:numero_tags_diferentes" json:"numero_tags_diferentes"`
	CardsPerGroup  *int      `gorm:"column:num_tags_tipo" json:"num_tags_tipo"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Event) TableName() string {
	return "eventos"
}

// ExpectedCards is distinct groups times cards per group, or zero when either is unset.
func (e Event) ExpectedCards() int {
	if e.DistinctGroups == nil || e.CardsPerGroup == nil {
		return 0
	}
	if *e.DistinctGroups <= 0 || *e.CardsPerGroup <= 0 {
		return 0
	}
	return *e.DistinctGroups * *e.CardsPerGroup
}

// FolderID returns the Drive folder reference or an empty string.
func (e Event) FolderID() string {
	if e.DriveFolderID == nil {
		return ""
	}
	return *e.DriveFolderID
}

// CreateEventRequest carries the admin form fields for a new event.
type CreateEventRequest struct {
	ClientID       int64     `json:"id_cliente" validate:"required,gt=0"`
	EventType      string    `json:"tipo_evento" validate:"required,max=64"`
	EventDate      string    `json:"fecha_evento" validate:"required,datetime=2006-01-02"`
	Description    string    `json:"descripcion_evento"`
	Paid           bool      `json:"pagado"`
	VideoMode      VideoMode `json:"modalidad_video" validate:"omitempty,oneof=upgrade fix"`
	DistinctGroups *int      `json:"numero_tags_diferentes" validate:"omitempty,gte=0"`
	CardsPerGroup  *int      `json:"num_tags_tipo" validate:"omitempty,gte=0"`
	GenerateCards  bool      `json:"generate_cards"`
}

// CreateEventResult reports the provisioned event and how many cards were generated.
type CreateEventResult struct {
	Event          Event
	GeneratedCards int
}
