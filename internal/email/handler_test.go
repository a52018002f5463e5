package email

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestHandler(keep int) *Handler {
	return NewHandler(keep, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func send(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleSend(rec, req)
	return rec
}

func TestHandler_HandleSend(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "accepts message",
			body:       `{"to":"buyer@example.com","subject":"Order Confirmation: 1","body":"thanks"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "rejects malformed body",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "rejects bad recipient",
			body:       `{"to":"not-an-address","subject":"hi"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "rejects empty subject",
			body:       `{"to":"buyer@example.com","subject":"  "}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := send(newTestHandler(10), tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_HandleOutbox(t *testing.T) {
	h := newTestHandler(2)

	for _, subject := range []string{"first", "second", "third"} {
		if rec := send(h, `{"to":"buyer@example.com","subject":"`+subject+`"}`); rec.Code != http.StatusOK {
			t.Fatalf("send %s: status %d", subject, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.HandleOutbox(rec, httptest.NewRequest(http.MethodGet, "/messages", nil))

	var messages []Message
	if err := json.NewDecoder(rec.Body).Decode(&messages); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 retained messages, got %d", len(messages))
	}
	if messages[0].Subject != "second" || messages[1].Subject != "third" {
		t.Errorf("expected oldest message dropped, got %+v", messages)
	}
}
