package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/cards"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/clients"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/drive"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/events"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/qr"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultMaxUploadBytes int64 = 10 << 20

var (
	errMissingClientsService = errors.New("clients service dependency required")
	errMissingEventsService  = errors.New("events service dependency required")
	errMissingCardsService   = errors.New("cards service dependency required")
)

// Dependencies wires the services behind the HTTP surface. OAuth is optional.
type Dependencies struct {
	Clients        *clients.Service
	Events         *events.Service
	Cards          *cards.Service
	QRCodes        *qr.Renderer
	OAuth          *drive.OAuthHelper
	SiteBaseURL    string
	AllowedOrigins []string
	MaxUploadBytes int64
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Clients == nil {
		return nil, errMissingClientsService
	}
	if deps.Events == nil {
		return nil, errMissingEventsService
	}
	if deps.Cards == nil {
		return nil, errMissingCardsService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	renderer := deps.QRCodes
	if renderer == nil {
		renderer = qr.NewRenderer()
	}
	maxUploadBytes := deps.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		clients:        deps.Clients,
		events:         deps.Events,
		cards:          deps.Cards,
		qrCodes:        renderer,
		oauth:          deps.OAuth,
		siteBaseURL:    deps.SiteBaseURL,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}

	router.GET("/healthz", handler.handleHealth)

	guest := router.Group("/api/u/:code")
	guest.GET("", handler.handleCardStatus)
	guest.POST("", handler.handleDirectUpload)
	guest.POST("/stage", handler.handleStageUpload)
	guest.POST("/finalize", handler.handleFinalizeStaged)

	admin := router.Group("/api/admin")
	admin.POST("/clients", handler.handleCreateClient)
	admin.GET("/clients", handler.handleListClients)
	admin.GET("/clients/:id", handler.handleClientDetail)
	admin.GET("/next-event-code", handler.handleNextEventCode)
	admin.POST("/events", handler.handleCreateEvent)
	admin.POST("/events/:id/cards", handler.handleGenerateCards)
	admin.GET("/resolve", handler.handleResolve)
	admin.POST("/cards/:id/video", handler.handleAdminUpload)
	admin.POST("/cards/:id/toggle-video", handler.handleToggleVideo)
	admin.GET("/cards/:id/qr.png", handler.handleCardQR)

	router.GET("/api/google/start", handler.handleGoogleStart)
	router.GET("/api/google/callback", handler.handleGoogleCallback)

	return router, nil
}

type httpHandler struct {
	clients        *clients.Service
	events         *events.Service
	cards          *cards.Service
	qrCodes        *qr.Renderer
	oauth          *drive.OAuthHelper
	siteBaseURL    string
	maxUploadBytes int64
	logger         *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || containsWildcard(allowedOrigins) {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
	}
	return cors.New(config)
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
