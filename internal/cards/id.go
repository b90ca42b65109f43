package cards

import (
	"strings"

	"github.com/google/uuid"
)

const publicCodeLength = 12

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider backed by random UUIDs.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

// NewID issues UUIDv7 row identifiers.
func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

// NewPublicCode issues short opaque guest-facing codes from UUIDv4 randomness.
func (p *uuidProvider) NewPublicCode() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	compact := strings.ReplaceAll(value.String(), "-", "")
	return strings.ToUpper(compact[:publicCodeLength]), nil
}
