package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Priya8975/webhook-notifier/internal/delivery"
	"github.com/Priya8975/webhook-notifier/internal/domain"
	"github.com/Priya8975/webhook-notifier/internal/gateway"
	"github.com/Priya8975/webhook-notifier/internal/health"
)

type TestSender interface {
	SendTest(ctx context.Context, tenantID, registrationID, actor string) (*domain.DeliveryResult, error)
}

type WebhookHandler struct {
	sender        TestSender
	registrations gateway.RegistrationLookup
	health        health.Checker
	logger        *slog.Logger
}

func NewWebhookHandler(sender TestSender, registrations gateway.RegistrationLookup, checker health.Checker, logger *slog.Logger) *WebhookHandler {
	if checker == nil {
		checker = health.Noop{}
	}
	return &WebhookHandler{sender: sender, registrations: registrations, health: checker, logger: logger}
}

// SendTest handles POST /stores/{storeID}/webhooks/{registrationID}/test.
// Any completed delivery is a 200, whatever the receiver answered.
func (h *WebhookHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	registrationID := chi.URLParam(r, "registrationID")

	result, err := h.sender.SendTest(r.Context(), storeID, registrationID, ActorFromContext(r.Context()))
	if err != nil {
		var terr *delivery.TransportError
		switch {
		case errors.Is(err, gateway.ErrRegistrationNotFound):
			respondError(w, http.StatusNotFound, codeNotFound)
		case errors.Is(err, gateway.ErrRateLimited):
			respondError(w, http.StatusTooManyRequests, codeRateLimited)
		case errors.As(err, &terr):
			respondErrorDetails(w, http.StatusBadGateway, codeDeliveryFailed, terr.Error())
		default:
			h.logger.Error("webhook test failed",
				"store_id", storeID,
				"registration_id", registrationID,
				"error", err,
			)
			respondError(w, http.StatusInternalServerError, codeInternal)
		}
		return
	}

	respondJSON(w, http.StatusOK, result)
}

type registrationHealth struct {
	RegistrationID string        `json:"registration_id"`
	Name           string        `json:"name"`
	URL            string        `json:"url"`
	IsActive       bool          `json:"is_active"`
	Health         health.Status `json:"health"`
}

// Health handles GET /stores/{storeID}/webhooks/{registrationID}/health.
func (h *WebhookHandler) Health(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	registrationID := chi.URLParam(r, "registrationID")

	reg, err := h.registrations.GetRegistration(r.Context(), storeID, registrationID)
	if err != nil {
		h.logger.Error("loading webhook registration", "registration_id", registrationID, "error", err)
		respondError(w, http.StatusInternalServerError, codeInternal)
		return
	}
	if reg == nil {
		respondError(w, http.StatusNotFound, codeNotFound)
		return
	}

	respondJSON(w, http.StatusOK, registrationHealth{
		RegistrationID: reg.ID,
		Name:           reg.Name,
		URL:            reg.URL,
		IsActive:       reg.IsActive,
		Health:         h.health.State(r.Context(), reg.ID),
	})
}
