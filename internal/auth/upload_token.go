package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const uploadTokenAudience = "vinculo-card-upload"

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingIssuer        = errors.New("issuer must be provided")
	errMissingSubjectClaim  = errors.New("subject claim must be provided")
)

// UploadTokenIssuerConfig configures the signer for card upload tokens.
type UploadTokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	Clock         func() time.Time
}

// UploadTokenIssuer mints the opaque per-card tokens printed on physical cards.
// Tokens carry no expiry since a printed card must keep working.
type UploadTokenIssuer struct {
	signingSecret []byte
	issuer        string
	clock         func() time.Time
}

// NewUploadTokenIssuer validates the configuration and returns an issuer.
func NewUploadTokenIssuer(cfg UploadTokenIssuerConfig) (*UploadTokenIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errMissingIssuer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &UploadTokenIssuer{
		signingSecret: cfg.SigningSecret,
		issuer:        cfg.Issuer,
		clock:         clock,
	}, nil
}

// Issue signs a token bound to a card public code.
func (i *UploadTokenIssuer) Issue(publicCode string) (string, error) {
	if strings.TrimSpace(publicCode) == "" {
		return "", errMissingSubjectClaim
	}

	now := i.clock().UTC()
	registered := jwt.RegisteredClaims{
		Subject:  publicCode,
		Issuer:   i.issuer,
		Audience: []string{uploadTokenAudience},
		IssuedAt: jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, registered)
	return token.SignedString(i.signingSecret)
}
