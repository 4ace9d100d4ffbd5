package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/npclabs/merchantd/internal/domain"
)

// PayoutStore is a thread-safe, append-only log of outbound value
// transfers. It satisfies the engine's Payout port, so every change
// refund and profit withdrawal the engine commits is durably recorded
// and can be reconciled by enumeration consumers.
type PayoutStore struct {
	mu      sync.RWMutex
	payouts []*domain.Payout
}

// NewPayoutStore creates an empty PayoutStore.
func NewPayoutStore() *PayoutStore {
	return &PayoutStore{
		payouts: make([]*domain.Payout, 0),
	}
}

// Pay records an outbound transfer. It never fails: the in-memory log
// is the terminal destination of value leaving the ledger.
func (s *PayoutStore) Pay(instanceID string, kind domain.PayoutKind, recipient string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.payouts = append(s.payouts, &domain.Payout{
		PayoutID:   uuid.New().String(),
		InstanceID: instanceID,
		Kind:       kind,
		Recipient:  recipient,
		Amount:     amount,
		CreatedAt:  time.Now(),
	})
	return nil
}

// List returns all recorded payouts in chronological order.
func (s *PayoutStore) List() []*domain.Payout {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Payout, len(s.payouts))
	copy(result, s.payouts)
	return result
}

// ListByRecipient returns payouts sent to the given recipient, in
// chronological order.
func (s *PayoutStore) ListByRecipient(recipient string) []*domain.Payout {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Payout, 0)
	for _, p := range s.payouts {
		if p.Recipient == recipient {
			result = append(result, p)
		}
	}
	return result
}
