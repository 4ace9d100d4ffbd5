package domain

import "time"

// Merchant represents one merchant record owned by a ledger instance.
// Owner and Name are immutable after minting. Profit only increases
// through successful purchases and only resets to zero on withdrawal.
type Merchant struct {
	MerchantID uint64
	Owner      string
	Name       string
	Profit     uint64 // smallest currency unit
	CreatedAt  time.Time

	// Items is append-only and indexed by ItemID: identifiers are
	// assigned sequentially starting at zero, so Items[i].ItemID == i.
	Items []*Item

	// Delegates holds identities the owner has approved as controllers
	// in addition to the owner itself.
	Delegates map[string]bool
}

// Item returns the merchant's item with the given identifier,
// or nil if no such item exists. Inactive items are still returned.
func (m *Merchant) Item(itemID uint64) *Item {
	if itemID >= uint64(len(m.Items)) {
		return nil
	}
	return m.Items[itemID]
}

// ItemCount returns the number of items ever added to the merchant.
// Items are never deleted, so the count never decreases.
func (m *Merchant) ItemCount() int {
	return len(m.Items)
}

// IsController reports whether the given identity may mutate the
// merchant's inventory: the owner, or an approved delegate.
func (m *Merchant) IsController(identity string) bool {
	if identity == m.Owner {
		return true
	}
	return m.Delegates[identity]
}
