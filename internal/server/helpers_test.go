package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/blob"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/cards"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/clients"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/database"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/drive"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/events"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var testNow = time.Date(2024, 6, 15, 18, 0, 0, 0, time.UTC)

type testServer struct {
	router http.Handler
	db     *gorm.DB
	memory *drive.MemoryStore
	cards  *cards.Service
	events *events.Service
}

type serverOptions struct {
	maxUploadBytes int64
	oauth          *drive.OAuthHelper
}

func newTestServer(t *testing.T, options serverOptions) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "server.db")}, nil)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	clock := func() time.Time { return testNow }

	memory := drive.NewMemoryStore()
	blobs, err := blob.NewLocalStore(filepath.Join(t.TempDir(), "staging"))
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	tokens, err := auth.NewUploadTokenIssuer(auth.UploadTokenIssuerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "vinculo-test",
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("failed to build token issuer: %v", err)
	}

	cardService, err := cards.NewService(cards.ServiceConfig{
		Database:   db,
		Files:      memory,
		Blobs:      blobs,
		Tokens:     tokens,
		Clock:      clock,
		IDProvider: cards.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to build cards service: %v", err)
	}
	eventService, err := events.NewService(events.ServiceConfig{
		Database: db,
		Folders:  memory,
		Cards:    cardService,
		Clock:    clock,
	})
	if err != nil {
		t.Fatalf("failed to build events service: %v", err)
	}
	clientService, err := clients.NewService(clients.ServiceConfig{Database: db, Clock: clock})
	if err != nil {
		t.Fatalf("failed to build clients service: %v", err)
	}

	router, err := NewHTTPHandler(Dependencies{
		Clients:        clientService,
		Events:         eventService,
		Cards:          cardService,
		OAuth:          options.oauth,
		SiteBaseURL:    "https://vinculo.example",
		AllowedOrigins: []string{"https://admin.vinculo.example"},
		MaxUploadBytes: options.maxUploadBytes,
	})
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}
	return testServer{router: router, db: db, memory: memory, cards: cardService, events: eventService}
}

func (s testServer) do(t *testing.T, request *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	s.router.ServeHTTP(recorder, request)
	return recorder
}

func (s testServer) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to encode body: %v", err)
	}
	request := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	request.Header.Set("Content-Type", "application/json")
	return s.do(t, request)
}

func (s testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, httptest.NewRequest(http.MethodGet, path, http.NoBody))
}

// postVideo sends a multipart form with a "video" part plus the given text fields.
func (s testServer) postVideo(t *testing.T, path string, video []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if video != nil {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="video"; filename="clip.mp4"`)
		header.Set("Content-Type", "video/mp4")
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("failed to create part: %v", err)
		}
		if _, err := part.Write(video); err != nil {
			t.Fatalf("failed to write video: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	request := httptest.NewRequest(http.MethodPost, path, &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return s.do(t, request)
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

func expectError(t *testing.T, recorder *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if recorder.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, recorder.Code, recorder.Body.String())
	}
	var payload errorPayload
	decodeBody(t, recorder, &payload)
	if payload.Code != code {
		t.Fatalf("expected code %q, got %q", code, payload.Code)
	}
	if payload.Error == "" {
		t.Fatalf("expected a human readable error")
	}
}

// provisionEvent creates a client and an event with generated cards through the admin API.
func (s testServer) provisionEvent(t *testing.T, distinctGroups, cardsPerGroup int) (int64, []cards.Card) {
	t.Helper()
	clientResponse := s.postJSON(t, "/api/admin/clients", map[string]any{
		"nombre_apellidos":  "Marta Ruiz",
		"telefono_contacto": "600123123",
	})
	if clientResponse.Code != http.StatusCreated {
		t.Fatalf("expected client creation, got %d: %s", clientResponse.Code, clientResponse.Body.String())
	}
	var clientPayload struct {
		Client clients.Client `json:"client"`
	}
	decodeBody(t, clientResponse, &clientPayload)

	eventResponse := s.postJSON(t, "/api/admin/events", map[string]any{
		"id_cliente":             clientPayload.Client.ID,
		"tipo_evento":            "boda",
		"fecha_evento":           "2024-09-21",
		"numero_tags_diferentes": distinctGroups,
		"num_tags_tipo":          cardsPerGroup,
		"generate_cards":         true,
	})
	if eventResponse.Code != http.StatusCreated {
		t.Fatalf("expected event creation, got %d: %s", eventResponse.Code, eventResponse.Body.String())
	}
	var eventPayload struct {
		Event          events.Event `json:"event"`
		GeneratedCards int          `json:"generated_cards"`
	}
	decodeBody(t, eventResponse, &eventPayload)
	if eventPayload.GeneratedCards != distinctGroups*cardsPerGroup {
		t.Fatalf("expected %d generated cards, got %d", distinctGroups*cardsPerGroup, eventPayload.GeneratedCards)
	}

	var list []cards.Card
	if err := s.db.Where("event_fk = ?", eventPayload.Event.ID).Order("card_index ASC").Find(&list).Error; err != nil {
		t.Fatalf("failed to load cards: %v", err)
	}
	return clientPayload.Client.ID, list
}
