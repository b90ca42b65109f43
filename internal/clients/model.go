package clients

import (
	"strings"
	"time"
)

// Client is a customer who owns events.
type Client struct {
	ID        int64     `gorm:"column:id_cliente;primaryKey;autoIncrement" json:"id_cliente"`
	FullName  string    `gorm:"column:nombre_apellidos;size:255;not null" json:"nombre_apellidos"`
	Phone     string    `gorm:"column:telefono_contacto;size:32;index" json:"telefono_contacto,omitempty"`
	Email     string    `gorm:"column:email;size:320;index" json:"email,omitempty"`
	DNI       string    `gorm:"column:dni;size:32" json:"dni,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Client) TableName() string {
	return "clientes"
}

// CreateClientRequest carries the admin form fields for a new client.
type CreateClientRequest struct {
	FullName string `json:"nombre_apellidos" validate:"required,max=255"`
	Phone    string `json:"telefono_contacto" validate:"omitempty,max=32"`
	Email    string `json:"email" validate:"omitempty,email,max=320"`
	DNI      string `json:"dni" validate:"omitempty,max=32"`
}

// Lookup identifies an existing client by id, phone or email, in that order.
type Lookup struct {
	ID    int64
	Phone string
	Email string
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
