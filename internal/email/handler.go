package email

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"
)

// Message is a buyer notification accepted by the relay.
type Message struct {
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// Handler is a development mail relay. It logs accepted messages and keeps
// the most recent ones for inspection instead of delivering them.
type Handler struct {
	logger *slog.Logger
	keep   int

	mu     sync.Mutex
	outbox []Message
}

func NewHandler(keep int, logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		keep:   keep,
	}
}

type sendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := mail.ParseAddress(req.To); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid recipient address")
		return
	}
	if strings.TrimSpace(req.Subject) == "" {
		h.writeError(w, http.StatusBadRequest, "subject is required")
		return
	}

	h.store(Message{To: req.To, Subject: req.Subject, Body: req.Body, ReceivedAt: time.Now().UTC()})
	h.logger.Info("email sent", "to", req.To, "subject", req.Subject)

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

// HandleOutbox lists retained messages, newest last.
func (h *Handler) HandleOutbox(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	messages := make([]Message, len(h.outbox))
	copy(messages, h.outbox)
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, messages)
}

func (h *Handler) store(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.keep <= 0 {
		return
	}
	h.outbox = append(h.outbox, msg)
	if len(h.outbox) > h.keep {
		h.outbox = h.outbox[len(h.outbox)-h.keep:]
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
