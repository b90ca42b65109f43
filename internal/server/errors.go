package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/cards"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/clients"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/events"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorKind struct {
	kind   error
	status int
}

// errorKinds maps service sentinels to HTTP statuses. First match wins.
var errorKinds = []errorKind{
	{kind: cards.ErrNotFound, status: http.StatusNotFound},
	{kind: cards.ErrForbidden, status: http.StatusForbidden},
	{kind: cards.ErrBadConfiguration, status: http.StatusBadRequest},
	{kind: cards.ErrBadRequest, status: http.StatusBadRequest},
	{kind: cards.ErrExternalStore, status: http.StatusInternalServerError},
	{kind: cards.ErrPersistence, status: http.StatusInternalServerError},
	{kind: events.ErrNotFound, status: http.StatusNotFound},
	{kind: events.ErrClientNotFound, status: http.StatusNotFound},
	{kind: events.ErrInvalidEvent, status: http.StatusBadRequest},
	{kind: events.ErrExternalStore, status: http.StatusInternalServerError},
	{kind: events.ErrCardGeneration, status: http.StatusInternalServerError},
	{kind: events.ErrPersistence, status: http.StatusInternalServerError},
	{kind: clients.ErrNotFound, status: http.StatusNotFound},
	{kind: clients.ErrInvalidClient, status: http.StatusBadRequest},
}

type codedError interface {
	Code() string
}

func classify(err error) (int, string) {
	for _, entry := range errorKinds {
		if errors.Is(err, entry.kind) {
			return entry.status, entry.kind.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}

// respondError writes the error body. fallbackCode is used when err carries no operation.reason code.
func (h *httpHandler) respondError(c *gin.Context, fallbackCode string, err error) {
	status, message := classify(err)
	code := fallbackCode
	var coded codedError
	if errors.As(err, &coded) {
		code = coded.Code()
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("code", code),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, errorPayload{Error: message, Code: code})
}

func abortWithCode(c *gin.Context, status int, message, code string) {
	c.AbortWithStatusJSON(status, errorPayload{Error: message, Code: code})
}
