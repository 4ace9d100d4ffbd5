package domain

import "time"

// Webhook represents a subscriber's registration for an event
// notification emitted by the ledger (item.added, purchase.executed,
// profit.withdrawn, and so on).
type Webhook struct {
	WebhookID    string
	SubscriberID string
	Event        string
	URL          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
