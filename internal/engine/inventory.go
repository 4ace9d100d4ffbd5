package engine

import (
	"time"

	"github.com/npclabs/merchantd/internal/domain"
)

// AddItem validates the item fields, allocates the next sequential
// item identifier for the merchant, and stores the item with
// Active=true. The caller must be a controller of the merchant.
func (l *Ledger) AddItem(caller string, merchantID uint64, name string, price, quantity uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.merchantLocked(merchantID)
	if err != nil {
		return 0, err
	}
	if !m.IsController(caller) {
		return 0, domain.ErrNotMerchantController
	}
	if err := domain.ValidateName(name); err != nil {
		return 0, err
	}
	if err := domain.ValidatePrice(price); err != nil {
		return 0, err
	}
	if err := domain.ValidateQuantity(quantity); err != nil {
		return 0, err
	}

	id := uint64(len(m.Items))
	m.Items = append(m.Items, &domain.Item{
		ItemID:    id,
		Name:      name,
		Price:     price,
		Quantity:  quantity,
		Active:    true,
		CreatedAt: time.Now(),
	})
	return id, nil
}

// Restock adds quantity to an existing item. The active flag is left
// untouched: restocking a deactivated item does not put it back on sale.
func (l *Ledger) Restock(caller string, merchantID, itemID, quantity uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.merchantLocked(merchantID)
	if err != nil {
		return 0, err
	}
	if !m.IsController(caller) {
		return 0, domain.ErrNotMerchantController
	}
	if err := domain.ValidateQuantity(quantity); err != nil {
		return 0, err
	}
	it := m.Item(itemID)
	if it == nil {
		return 0, domain.ErrItemNotFound
	}

	newQuantity, err := domain.CheckedAdd(it.Quantity, quantity)
	if err != nil {
		return 0, err
	}
	it.Quantity = newQuantity
	return newQuantity, nil
}

// ToggleItem flips the item's active flag unconditionally and returns
// the new state. Used to pull an item off sale without deleting it.
func (l *Ledger) ToggleItem(caller string, merchantID, itemID uint64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.merchantLocked(merchantID)
	if err != nil {
		return false, err
	}
	if !m.IsController(caller) {
		return false, domain.ErrNotMerchantController
	}
	it := m.Item(itemID)
	if it == nil {
		return false, domain.ErrItemNotFound
	}

	it.Active = !it.Active
	return it.Active, nil
}

// ApproveDelegate registers an identity as an additional controller of
// the merchant. Only the owner may approve delegates.
func (l *Ledger) ApproveDelegate(caller string, merchantID uint64, delegate string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.merchantLocked(merchantID)
	if err != nil {
		return err
	}
	if caller != m.Owner {
		return domain.ErrNotAuthorized
	}
	if delegate == "" {
		return domain.ErrInvalidOwner
	}

	m.Delegates[delegate] = true
	return nil
}

// RevokeDelegate removes a previously approved controller. Revoking an
// identity that was never approved is a no-op.
func (l *Ledger) RevokeDelegate(caller string, merchantID uint64, delegate string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.merchantLocked(merchantID)
	if err != nil {
		return err
	}
	if caller != m.Owner {
		return domain.ErrNotAuthorized
	}

	delete(m.Delegates, delegate)
	return nil
}
