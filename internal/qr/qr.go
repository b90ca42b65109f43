// Package qr renders the QR codes printed on cards and shown in the admin views.
package qr

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"net/url"
	"strings"

	"github.com/disintegration/imaging"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	// DefaultSize is the rendered width and height in pixels.
	DefaultSize = 180
	// DefaultMargin is the quiet zone in modules.
	DefaultMargin = 1
)

// ErrEmptyContent is returned when there is nothing to encode.
var ErrEmptyContent = errors.New("qr content is required")

// Renderer encodes URLs as PNG QR codes.
type Renderer struct {
	size   int
	margin int
	level  qrcode.RecoveryLevel
}

// NewRenderer returns a renderer producing DefaultSize images with a DefaultMargin quiet zone.
func NewRenderer() *Renderer {
	return &Renderer{size: DefaultSize, margin: DefaultMargin, level: qrcode.Medium}
}

// PNG renders content as a square PNG.
func (r *Renderer) PNG(content string) ([]byte, error) {
	img, err := r.Image(content)
	if err != nil {
		return nil, err
	}
	var buffer bytes.Buffer
	if err := imaging.Encode(&buffer, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode qr png: %w", err)
	}
	return buffer.Bytes(), nil
}

// DataURL renders content as a base64 PNG data URL for embedding in JSON views.
func (r *Renderer) DataURL(content string) (string, error) {
	payload, err := r.PNG(content)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload), nil
}

// Image draws the code one pixel per module with the configured margin and scales it to size.
func (r *Renderer) Image(content string) (image.Image, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	code, err := qrcode.New(content, r.level)
	if err != nil {
		return nil, fmt.Errorf("build qr code: %w", err)
	}
	code.DisableBorder = true
	bitmap := code.Bitmap()

	modules := len(bitmap) + 2*r.margin
	canvas := imaging.New(modules, modules, color.White)
	for y, row := range bitmap {
		for x, dark := range row {
			if dark {
				canvas.Set(x+r.margin, y+r.margin, color.Black)
			}
		}
	}
	return imaging.Resize(canvas, r.size, r.size, imaging.NearestNeighbor), nil
}

// UpdateURL is the guest page that lets a card holder record a new video.
func UpdateURL(siteBaseURL, publicCode string) string {
	base := strings.TrimRight(strings.TrimSpace(siteBaseURL), "/")
	return base + "/u/" + url.PathEscape(publicCode) + "?mode=update"
}
