package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/cards"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/clients"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/events"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/qr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	qrKindView   = "view"
	qrKindUpdate = "update"
)

type createClientPayload struct {
	ClientID int64 `json:"id_cliente"`
	clients.CreateClientRequest
}

type clientDetailPayload struct {
	Client clients.Client       `json:"client"`
	Events []eventDetailPayload `json:"events"`
}

type eventDetailPayload struct {
	events.Event
	ExpectedCards int                 `json:"expected_cards"`
	MissingCards  int                 `json:"missing_cards"`
	Cards         []cardDetailPayload `json:"cards"`
}

type cardDetailPayload struct {
	cards.Card
	UpdateURL string `json:"update_url"`
	UpdateQR  string `json:"update_qr,omitempty"`
	ViewQR    string `json:"view_qr,omitempty"`
}

func (h *httpHandler) handleCreateClient(c *gin.Context) {
	var request createClientPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		abortWithCode(c, http.StatusBadRequest, "invalid request body", "request.invalid_json")
		return
	}

	client, created, err := h.clients.FindOrCreate(c.Request.Context(), clients.Lookup{
		ID:    request.ClientID,
		Phone: request.Phone,
		Email: request.Email,
	}, request.CreateClientRequest)
	if err != nil {
		h.respondError(c, "clients.create", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"client": client, "created": created})
}

func (h *httpHandler) handleListClients(c *gin.Context) {
	list, err := h.clients.List(c.Request.Context())
	if err != nil {
		h.respondError(c, "clients.list", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": list})
}

func (h *httpHandler) handleClientDetail(c *gin.Context) {
	clientID, ok := parseID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	client, err := h.clients.Get(ctx, clientID)
	if err != nil {
		h.respondError(c, "clients.get", err)
		return
	}
	eventList, err := h.events.ListByClient(ctx, clientID)
	if err != nil {
		h.respondError(c, "events.list_by_client", err)
		return
	}
	eventIDs := make([]int64, 0, len(eventList))
	for _, event := range eventList {
		eventIDs = append(eventIDs, event.ID)
	}
	cardList, err := h.cards.ListByEvents(ctx, eventIDs)
	if err != nil {
		h.respondError(c, "cards.list_by_events", err)
		return
	}
	cardsByEvent := make(map[int64][]cardDetailPayload, len(eventList))
	for _, card := range cardList {
		cardsByEvent[card.EventID] = append(cardsByEvent[card.EventID], h.cardDetail(card))
	}

	payload := clientDetailPayload{Client: client, Events: make([]eventDetailPayload, 0, len(eventList))}
	for _, event := range eventList {
		eventCards := cardsByEvent[event.ID]
		if eventCards == nil {
			eventCards = []cardDetailPayload{}
		}
		expected := event.ExpectedCards()
		missing := expected - len(eventCards)
		if missing < 0 {
			missing = 0
		}
		payload.Events = append(payload.Events, eventDetailPayload{
			Event:         event,
			ExpectedCards: expected,
			MissingCards:  missing,
			Cards:         eventCards,
		})
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) cardDetail(card cards.Card) cardDetailPayload {
	detail := cardDetailPayload{Card: card, UpdateURL: qr.UpdateURL(h.siteBaseURL, card.PublicCode)}
	if dataURL, err := h.qrCodes.DataURL(detail.UpdateURL); err == nil {
		detail.UpdateQR = dataURL
	} else {
		h.logger.Warn("card qr render failed", zap.String("card_id", card.ID), zap.Error(err))
	}
	if card.InitialVideoURL != nil && *card.InitialVideoURL != "" {
		if dataURL, err := h.qrCodes.DataURL(*card.InitialVideoURL); err == nil {
			detail.ViewQR = dataURL
		} else {
			h.logger.Warn("card qr render failed", zap.String("card_id", card.ID), zap.Error(err))
		}
	}
	return detail
}

func (h *httpHandler) handleNextEventCode(c *gin.Context) {
	code, err := h.events.NextEventCode(c.Request.Context())
	if err != nil {
		h.respondError(c, "events.next_event_code", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event_code": code})
}

func (h *httpHandler) handleCreateEvent(c *gin.Context) {
	var request events.CreateEventRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		abortWithCode(c, http.StatusBadRequest, "invalid request body", "request.invalid_json")
		return
	}
	result, err := h.events.CreateEvent(c.Request.Context(), request)
	if err != nil {
		h.respondError(c, "events.create_event", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": result.Event, "generated_cards": result.GeneratedCards})
}

func (h *httpHandler) handleGenerateCards(c *gin.Context) {
	eventID, ok := parseID(c)
	if !ok {
		return
	}
	created, err := h.cards.GenerateMissing(c.Request.Context(), eventID)
	if err != nil {
		h.respondError(c, "cards.generate_missing", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created})
}

func (h *httpHandler) handleResolve(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	event, err := h.events.Resolve(c.Request.Context(), query)
	if err != nil {
		h.respondError(c, "events.resolve", err)
		return
	}
	kind := "event_code_like"
	if event.EventCode == query {
		kind = "event_code"
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"kind":       kind,
		"client_id":  event.ClientID,
		"events_id":  event.ID,
		"event_code": event.EventCode,
	})
}

func (h *httpHandler) handleAdminUpload(c *gin.Context) {
	video, mimeType, ok := h.readVideo(c)
	if !ok {
		return
	}
	defer video.Close()

	result, err := h.cards.FinalizeAdmin(c.Request.Context(), cards.AdminUpload{
		CardID:   c.Param("id"),
		Content:  video,
		MimeType: mimeType,
	})
	if err != nil {
		h.respondError(c, "cards.finalize_admin", err)
		return
	}
	c.JSON(http.StatusOK, newUploadResultPayload(result))
}

func (h *httpHandler) handleToggleVideo(c *gin.Context) {
	card, err := h.cards.ToggleVideoCurrent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "cards.toggle_video", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"card": card})
}

func (h *httpHandler) handleCardQR(c *gin.Context) {
	card, err := h.cards.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "cards.get_card", err)
		return
	}

	var target string
	switch strings.ToLower(c.DefaultQuery("kind", qrKindUpdate)) {
	case qrKindUpdate:
		target = qr.UpdateURL(h.siteBaseURL, card.PublicCode)
	case qrKindView:
		if card.InitialVideoURL == nil || *card.InitialVideoURL == "" {
			abortWithCode(c, http.StatusNotFound, "card has no video yet", "qr.video_missing")
			return
		}
		target = *card.InitialVideoURL
	default:
		abortWithCode(c, http.StatusBadRequest, "unknown qr kind", "qr.invalid_kind")
		return
	}

	payload, err := h.qrCodes.PNG(target)
	if err != nil {
		h.respondError(c, "qr.render_failed", err)
		return
	}
	c.Data(http.StatusOK, "image/png", payload)
}

func parseID(c *gin.Context) (int64, bool) {
	value, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || value <= 0 {
		abortWithCode(c, http.StatusBadRequest, "invalid id", "request.invalid_id")
		return 0, false
	}
	return value, true
}
