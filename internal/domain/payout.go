package domain

import "time"

// PayoutKind distinguishes purchase change refunds from profit withdrawals.
type PayoutKind string

const (
	PayoutKindRefund     PayoutKind = "refund"
	PayoutKindWithdrawal PayoutKind = "withdrawal"
)

// Payout represents a single outbound value transfer performed by the
// engine after its local state has committed.
type Payout struct {
	PayoutID   string
	InstanceID string
	Kind       PayoutKind
	Recipient  string
	Amount     uint64
	CreatedAt  time.Time
}
