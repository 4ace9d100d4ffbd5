package domain

import "time"

// Item represents a single inventory entry of a merchant. Items are
// never deleted; pulling an item off sale flips Active instead.
type Item struct {
	ItemID    uint64
	Name      string
	Price     uint64 // smallest currency unit, always > 0 once created
	Quantity  uint64
	Active    bool
	CreatedAt time.Time
}

// InStock reports whether the item can currently be purchased.
func (i *Item) InStock() bool {
	return i.Active && i.Quantity > 0
}
