package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/npclabs/merchantd/internal/domain"
	"github.com/npclabs/merchantd/internal/service"
	"github.com/npclabs/merchantd/internal/store"
)

// WebhookHandler handles HTTP requests for webhook subscriptions.
type WebhookHandler struct {
	notifierSvc *service.NotifierService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(notifierSvc *service.NotifierService) *WebhookHandler {
	return &WebhookHandler{notifierSvc: notifierSvc}
}

// upsertWebhookRequest is the JSON request body for POST /webhooks.
type upsertWebhookRequest struct {
	SubscriberID string   `json:"subscriber_id"`
	URL          string   `json:"url"`
	Events       []string `json:"events"`
}

// webhookResponse is the JSON shape of one webhook subscription.
type webhookResponse struct {
	WebhookID    string `json:"webhook_id"`
	SubscriberID string `json:"subscriber_id"`
	Event        string `json:"event"`
	URL          string `json:"url"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func buildWebhookResponses(webhooks []*domain.Webhook) []webhookResponse {
	result := make([]webhookResponse, len(webhooks))
	for i, w := range webhooks {
		result[i] = webhookResponse{
			WebhookID:    w.WebhookID,
			SubscriberID: w.SubscriberID,
			Event:        w.Event,
			URL:          w.URL,
			CreatedAt:    w.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			UpdatedAt:    w.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	return result
}

// Upsert handles POST /webhooks.
func (h *WebhookHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertWebhookRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	webhooks, anyCreated, err := h.notifierSvc.Upsert(service.UpsertWebhookRequest{
		SubscriberID: req.SubscriberID,
		URL:          req.URL,
		Events:       req.Events,
	})
	if err != nil {
		MapError(w, err)
		return
	}

	status := http.StatusOK
	if anyCreated {
		status = http.StatusCreated
	}
	WriteJSON(w, status, map[string]any{"webhooks": buildWebhookResponses(webhooks)})
}

// List handles GET /webhooks?subscriber_id=....
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	subscriberID := r.URL.Query().Get("subscriber_id")

	webhooks, err := h.notifierSvc.List(subscriberID)
	if err != nil {
		MapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"webhooks": buildWebhookResponses(webhooks)})
}

// Delete handles DELETE /webhooks/{webhook_id}.
func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	webhookID := chi.URLParam(r, "webhook_id")

	if err := h.notifierSvc.Delete(webhookID); err != nil {
		MapError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PayoutHandler serves the read-only payout reconciliation log.
type PayoutHandler struct {
	payouts *store.PayoutStore
}

// NewPayoutHandler creates a new PayoutHandler.
func NewPayoutHandler(payouts *store.PayoutStore) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

// payoutResponse is the JSON shape of one recorded payout.
type payoutResponse struct {
	PayoutID   string `json:"payout_id"`
	InstanceID string `json:"instance_id"`
	Kind       string `json:"kind"`
	Recipient  string `json:"recipient"`
	Amount     uint64 `json:"amount"`
	CreatedAt  string `json:"created_at"`
}

// List handles GET /payouts with optional ?recipient= filtering.
func (h *PayoutHandler) List(w http.ResponseWriter, r *http.Request) {
	var payouts []*domain.Payout
	if recipient := r.URL.Query().Get("recipient"); recipient != "" {
		payouts = h.payouts.ListByRecipient(recipient)
	} else {
		payouts = h.payouts.List()
	}

	result := make([]payoutResponse, len(payouts))
	for i, p := range payouts {
		result[i] = payoutResponse{
			PayoutID:   p.PayoutID,
			InstanceID: p.InstanceID,
			Kind:       string(p.Kind),
			Recipient:  p.Recipient,
			Amount:     p.Amount,
			CreatedAt:  p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"payouts": result})
}
