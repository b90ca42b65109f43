package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/cards"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/drive"
)

func TestHealthz(t *testing.T) {
	server := newTestServer(t, serverOptions{})

	recorder := server.get(t, "/healthz")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
}

func TestDirectUploadUpdatesGroup(t *testing.T) {
	server := newTestServer(t, serverOptions{})
	_, list := server.provisionEvent(t, 2, 2)
	third := list[2]

	recorder := server.postVideo(t, "/api/u/"+third.PublicCode, []byte("guest-video"), map[string]string{"t": third.UploadToken})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, recorder.Code, recorder.Body.String())
	}
	var payload uploadResultPayload
	decodeBody(t, recorder, &payload)
	if !payload.OK || payload.PublicCode != third.PublicCode || payload.Group != 2 || payload.UpdatedCards != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.ViewURL != drive.ViewURL(payload.FileID) || payload.Mode != string(drive.UploadModeCreated) {
		t.Fatalf("unexpected file details %+v", payload)
	}
	content, ok := server.memory.Content(payload.FileID)
	if !ok || string(content) != "guest-video" {
		t.Fatalf("unexpected stored content %q", content)
	}

	status := server.get(t, "/api/u/"+list[3].PublicCode)
	var statusPayload cardStatusPayload
	decodeBody(t, status, &statusPayload)
	if !statusPayload.VideoCurrent || statusPayload.ViewURL != payload.ViewURL || statusPayload.RecordingStatus != string(cards.RecordingRecorded) {
		t.Fatalf("expected sibling card to share the video, got %+v", statusPayload)
	}
	untouched := server.get(t, "/api/u/"+list[0].PublicCode)
	var untouchedPayload cardStatusPayload
	decodeBody(t, untouched, &untouchedPayload)
	if untouchedPayload.VideoCurrent || untouchedPayload.ViewURL != "" {
		t.Fatalf("expected first group untouched, got %+v", untouchedPayload)
	}
	if strings.Contains(untouched.Body.String(), list[0].UploadToken) {
		t.Fatalf("card status must not expose the upload token")
	}
}

func TestDirectUploadErrors(t *testing.T) {
	server := newTestServer(t, serverOptions{})
	_, list := server.provisionEvent(t, 1, 2)
	card := list[0]

	testCases := []struct {
		name   string
		path   string
		video  []byte
		fields map[string]string
		status int
		code   string
	}{
		{name: "wrong-token", path: "/api/u/" + card.PublicCode, video: []byte("x"), fields: map[string]string{"t": "forged"}, status: http.StatusForbidden, code: "cards.finalize_direct.token_mismatch"},
		{name: "missing-token", path: "/api/u/" + card.PublicCode, video: []byte("x"), status: http.StatusForbidden, code: "cards.finalize_direct.missing_token"},
		{name: "unknown-card", path: "/api/u/UNKNOWN", video: []byte("x"), fields: map[string]string{"t": card.UploadToken}, status: http.StatusNotFound, code: "cards.finalize_direct.card_not_found"},
		{name: "missing-video", path: "/api/u/" + card.PublicCode, fields: map[string]string{"t": card.UploadToken}, status: http.StatusBadRequest, code: "upload.missing_video"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			recorder := server.postVideo(t, testCase.path, testCase.video, testCase.fields)
			expectError(t, recorder, testCase.status, testCase.code)
		})
	}
	if server.memory.Writes() != 0 {
		t.Fatalf("rejected uploads must not reach the file store")
	}
}

func TestDirectUploadRejectsMisconfiguredEvent(t *testing.T) {
	server := newTestServer(t, serverOptions{})
	_, list := server.provisionEvent(t, 1, 2)
	if err := server.db.Exec("UPDATE eventos SET num_tags_tipo = 0").Error; err != nil {
		t.Fatalf("failed to break event: %v", err)
	}

	recorder := server.postVideo(t, "/api/u/"+list[0].PublicCode, []byte("x"), map[string]string{"t": list[0].UploadToken})
	expectError(t, recorder, http.StatusBadRequest, "cards.finalize_direct.cards_per_group_missing")
}

func TestDirectUploadEnforcesSizeLimit(t *testing.T) {
	server := newTestServer(t, serverOptions{maxUploadBytes: 16})
	_, list := server.provisionEvent(t, 1, 1)

	recorder := server.postVideo(t, "/api/u/"+list[0].PublicCode, bytes.Repeat([]byte("v"), 64), map[string]string{"t": list[0].UploadToken})
	expectError(t, recorder, http.StatusRequestEntityTooLarge, "upload.too_large")
}

func TestStagedUploadFlow(t *testing.T) {
	server := newTestServer(t, serverOptions{})
	_, list := server.provisionEvent(t, 1, 3)
	card := list[1]

	staged := server.postVideo(t, "/api/u/"+card.PublicCode+"/stage", []byte("staged-video"), nil)
	if staged.Code != http.StatusOK {
		t.Fatalf("expected staging to succeed, got %d: %s", staged.Code, staged.Body.String())
	}
	var stagePayload struct {
		TempPath string `json:"temp_path"`
		MimeType string `json:"mime_type"`
	}
	decodeBody(t, staged, &stagePayload)
	if !strings.HasPrefix(stagePayload.TempPath, card.PublicCode+"/") || stagePayload.MimeType != "video/mp4" {
		t.Fatalf("unexpected stage payload %+v", stagePayload)
	}

	finalize := server.postJSON(t, "/api/u/"+card.PublicCode+"/finalize", finalizeRequestPayload{TempPath: stagePayload.TempPath, MimeType: stagePayload.MimeType})
	if finalize.Code != http.StatusOK {
		t.Fatalf("expected finalize to succeed, got %d: %s", finalize.Code, finalize.Body.String())
	}
	var result uploadResultPayload
	decodeBody(t, finalize, &result)
	if result.UpdatedCards != 3 {
		t.Fatalf("expected the whole group to be updated, got %+v", result)
	}

	status := server.get(t, "/api/u/"+card.PublicCode)
	var statusPayload cardStatusPayload
	decodeBody(t, status, &statusPayload)
	if statusPayload.UploadEnabled {
		t.Fatalf("expected the card to be closed for uploads")
	}

	again := server.postJSON(t, "/api/u/"+card.PublicCode+"/finalize", finalizeRequestPayload{TempPath: stagePayload.TempPath})
	expectError(t, again, http.StatusForbidden, "cards.finalize_staged.uploads_disabled")
}

func TestFinalizeRejectsBadBody(t *testing.T) {
	server := newTestServer(t, serverOptions{})
	_, list := server.provisionEvent(t, 1, 1)

	request := httptest.NewRequest(http.MethodPost, "/api/u/"+list[0].PublicCode+"/finalize", strings.NewReader("{"))
	request.Header.Set("Content-Type", "application/json")
	expectError(t, server.do(t, request), http.StatusBadRequest, "request.invalid_json")

	missing := server.postJSON(t, "/api/u/"+list[0].PublicCode+"/finalize", finalizeRequestPayload{})
	expectError(t, missing, http.StatusBadRequest, "cards.finalize_staged.missing_temp_path")
}

func TestCardStatusUnknownCode(t *testing.T) {
	server := newTestServer(t, serverOptions{})

	expectError(t, server.get(t, "/api/u/NOPE"), http.StatusNotFound, "cards.get_by_public_code.card_not_found")
}
