package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Priya8975/webhook-notifier/internal/envelope"
	"github.com/Priya8975/webhook-notifier/internal/notify"
)

type Publisher interface {
	Publish(ctx context.Context, tenantID, eventType, actor string, payload any) (*notify.Publication, error)
}

type EventHandler struct {
	publisher Publisher
	logger    *slog.Logger
}

func NewEventHandler(p Publisher, logger *slog.Logger) *EventHandler {
	return &EventHandler{publisher: p, logger: logger}
}

type publishEventRequest struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Publish handles POST /stores/{storeID}/events and delivers the event to
// every subscribed registration before responding.
func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")

	var req publishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorDetails(w, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return
	}
	if req.Event == "" {
		respondErrorDetails(w, http.StatusBadRequest, codeBadRequest, "event is required")
		return
	}
	if req.Event == "*" {
		respondErrorDetails(w, http.StatusBadRequest, codeBadRequest, "event must be a concrete event type")
		return
	}

	pub, err := h.publisher.Publish(r.Context(), storeID, req.Event, ActorFromContext(r.Context()), req.Payload)
	if err != nil {
		if errors.Is(err, envelope.ErrInvalidPayload) {
			respondErrorDetails(w, http.StatusBadRequest, codeBadRequest, "payload must be valid JSON")
			return
		}
		h.logger.Error("publishing event", "store_id", storeID, "event_type", req.Event, "error", err)
		respondError(w, http.StatusInternalServerError, codeInternal)
		return
	}

	respondJSON(w, http.StatusOK, pub)
}
