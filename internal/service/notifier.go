package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/npclabs/merchantd/internal/domain"
	"github.com/npclabs/merchantd/internal/engine"
	"github.com/npclabs/merchantd/internal/store"
)

// Valid notification event types.
var validEvents = map[string]bool{
	"instance.initialized": true,
	"item.added":           true,
	"item.restocked":       true,
	"item.toggled":         true,
	"purchase.executed":    true,
	"profit.withdrawn":     true,
}

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	SubscriberID string
	URL          string
	Events       []string
}

// NotifierService manages webhook subscriptions and fans ledger
// notifications out to every subscriber of an event. Deliveries are
// fire-and-forget HTTP POSTs; failures are silently dropped, and any
// retry policy belongs to the consumer.
type NotifierService struct {
	store  *store.WebhookStore
	client *http.Client
}

// NewNotifierService creates a NotifierService with the given delivery
// timeout.
func NewNotifierService(webhookStore *store.WebhookStore, timeout time.Duration) *NotifierService {
	return &NotifierService{
		store: webhookStore,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Upsert validates the request and creates or updates one subscription
// per requested event. Returns the resulting webhooks and whether any
// new subscription was created.
func (s *NotifierService) Upsert(req UpsertWebhookRequest) ([]*domain.Webhook, bool, error) {
	if !identityRegex.MatchString(req.SubscriberID) {
		return nil, false, &domain.ValidationError{
			Message: "subscriber_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}

	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[string]bool, len(req.Events))
	dedupedEvents := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		if !validEvents[event] {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + event + ". Must be one of: instance.initialized, item.added, item.restocked, item.toggled, purchase.executed, profit.withdrawn",
			}
		}
		if !seen[event] {
			seen[event] = true
			dedupedEvents = append(dedupedEvents, event)
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(dedupedEvents))

	for _, event := range dedupedEvents {
		w := &domain.Webhook{
			WebhookID:    uuid.New().String(),
			SubscriberID: req.SubscriberID,
			Event:        event,
			URL:          req.URL,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if s.store.Upsert(w) {
			anyCreated = true
			webhooks = append(webhooks, w)
		} else {
			existing := s.store.GetBySubscriberEvent(req.SubscriberID, event)
			if existing != nil {
				webhooks = append(webhooks, existing)
			}
		}
	}

	return webhooks, anyCreated, nil
}

// List returns all webhook subscriptions for a subscriber.
func (s *NotifierService) List(subscriberID string) ([]*domain.Webhook, error) {
	if !identityRegex.MatchString(subscriberID) {
		return nil, &domain.ValidationError{
			Message: "subscriber_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	return s.store.ListBySubscriber(subscriberID), nil
}

// Delete removes a webhook subscription by ID.
func (s *NotifierService) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}

type eventEnvelope struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

type instanceInitializedData struct {
	InstanceID string `json:"instance_id"`
	MerchantID uint64 `json:"merchant_id"`
	Owner      string `json:"owner"`
	Name       string `json:"name"`
}

type itemAddedData struct {
	InstanceID string `json:"instance_id"`
	MerchantID uint64 `json:"merchant_id"`
	ItemID     uint64 `json:"item_id"`
	Name       string `json:"name"`
	Price      uint64 `json:"price"`
	Quantity   uint64 `json:"quantity"`
}

type itemRestockedData struct {
	InstanceID  string `json:"instance_id"`
	MerchantID  uint64 `json:"merchant_id"`
	ItemID      uint64 `json:"item_id"`
	Added       uint64 `json:"added"`
	NewQuantity uint64 `json:"new_quantity"`
}

type itemToggledData struct {
	InstanceID string `json:"instance_id"`
	MerchantID uint64 `json:"merchant_id"`
	ItemID     uint64 `json:"item_id"`
	Active     bool   `json:"active"`
}

type purchaseExecutedData struct {
	InstanceID string `json:"instance_id"`
	MerchantID uint64 `json:"merchant_id"`
	ItemID     uint64 `json:"item_id"`
	Buyer      string `json:"buyer"`
	Quantity   uint64 `json:"quantity"`
	TotalCost  uint64 `json:"total_cost"`
	Change     uint64 `json:"change"`
}

type profitWithdrawnData struct {
	InstanceID string `json:"instance_id"`
	MerchantID uint64 `json:"merchant_id"`
	Owner      string `json:"owner"`
	Amount     uint64 `json:"amount"`
}

// DispatchInstanceInitialized notifies subscribers that a created
// instance completed its initialization handshake. Fire-and-forget.
func (s *NotifierService) DispatchInstanceInitialized(result *InitializeResult) {
	s.dispatch("instance.initialized", instanceInitializedData{
		InstanceID: result.InstanceID,
		MerchantID: result.MerchantID,
		Owner:      result.Owner,
		Name:       result.Name,
	})
}

// DispatchItemAdded notifies subscribers of a new inventory item.
func (s *NotifierService) DispatchItemAdded(instanceID string, merchantID, itemID uint64, name string, price, quantity uint64) {
	s.dispatch("item.added", itemAddedData{
		InstanceID: instanceID,
		MerchantID: merchantID,
		ItemID:     itemID,
		Name:       name,
		Price:      price,
		Quantity:   quantity,
	})
}

// DispatchItemRestocked notifies subscribers of a restock.
func (s *NotifierService) DispatchItemRestocked(instanceID string, merchantID, itemID, added, newQuantity uint64) {
	s.dispatch("item.restocked", itemRestockedData{
		InstanceID:  instanceID,
		MerchantID:  merchantID,
		ItemID:      itemID,
		Added:       added,
		NewQuantity: newQuantity,
	})
}

// DispatchItemToggled notifies subscribers of an active-flag flip.
func (s *NotifierService) DispatchItemToggled(instanceID string, merchantID, itemID uint64, active bool) {
	s.dispatch("item.toggled", itemToggledData{
		InstanceID: instanceID,
		MerchantID: merchantID,
		ItemID:     itemID,
		Active:     active,
	})
}

// DispatchPurchaseExecuted notifies subscribers of a completed purchase.
func (s *NotifierService) DispatchPurchaseExecuted(instanceID string, receipt *engine.PurchaseReceipt) {
	s.dispatch("purchase.executed", purchaseExecutedData{
		InstanceID: instanceID,
		MerchantID: receipt.MerchantID,
		ItemID:     receipt.ItemID,
		Buyer:      receipt.Buyer,
		Quantity:   receipt.Quantity,
		TotalCost:  receipt.TotalCost,
		Change:     receipt.Change,
	})
}

// DispatchProfitWithdrawn notifies subscribers of a profit withdrawal.
func (s *NotifierService) DispatchProfitWithdrawn(instanceID string, merchantID uint64, owner string, amount uint64) {
	s.dispatch("profit.withdrawn", profitWithdrawnData{
		InstanceID: instanceID,
		MerchantID: merchantID,
		Owner:      owner,
		Amount:     amount,
	})
}

// dispatch fans the event out to every subscriber registered for it.
func (s *NotifierService) dispatch(event string, data any) {
	subscribers := s.store.Subscribers(event)
	if len(subscribers) == 0 {
		return
	}

	payload := eventEnvelope{
		Event:     event,
		Timestamp: time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		Data:      data,
	}

	for _, wh := range subscribers {
		go s.deliver(wh, event, payload)
	}
}

// deliver sends the webhook payload via HTTP POST with the delivery
// headers. Errors are silently ignored (fire-and-forget).
func (s *NotifierService) deliver(wh *domain.Webhook, eventType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", eventType)

	resp, err := s.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
