package service

import (
	"github.com/npclabs/merchantd/internal/domain"
	"github.com/npclabs/merchantd/internal/engine"
	"github.com/npclabs/merchantd/internal/store"
)

// LedgerService exposes the merchant-facing ledger operations behind
// the instance registry: inventory mutation, purchases, withdrawals,
// delegation, and read-only snapshots. Authorization is enforced by
// the engine against the merchant's registered controllers; this layer
// validates request shape and dispatches notifications.
type LedgerService struct {
	instances *store.InstanceStore
	notifier  *NotifierService
}

// NewLedgerService creates a LedgerService over the instance registry.
func NewLedgerService(instances *store.InstanceStore, notifier *NotifierService) *LedgerService {
	return &LedgerService{
		instances: instances,
		notifier:  notifier,
	}
}

func (s *LedgerService) ledger(instanceID string) (*engine.Ledger, error) {
	entry, err := s.instances.Get(instanceID)
	if err != nil {
		return nil, err
	}
	return entry.Ledger, nil
}

func validateIdentity(field, id string) error {
	if !identityRegex.MatchString(id) {
		return &domain.ValidationError{
			Message: field + " must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	return nil
}

// AddItemRequest represents the input for adding an inventory item.
type AddItemRequest struct {
	InstanceID string
	MerchantID uint64
	Caller     string
	Name       string
	Price      uint64
	Quantity   uint64
}

// AddItem adds an item to the merchant's inventory and emits an
// item.added notification.
func (s *LedgerService) AddItem(req AddItemRequest) (uint64, error) {
	if err := validateIdentity("caller", req.Caller); err != nil {
		return 0, err
	}
	ledger, err := s.ledger(req.InstanceID)
	if err != nil {
		return 0, err
	}

	itemID, err := ledger.AddItem(req.Caller, req.MerchantID, req.Name, req.Price, req.Quantity)
	if err != nil {
		return 0, err
	}

	if s.notifier != nil {
		s.notifier.DispatchItemAdded(req.InstanceID, req.MerchantID, itemID, req.Name, req.Price, req.Quantity)
	}
	return itemID, nil
}

// RestockRequest represents the input for restocking an item.
type RestockRequest struct {
	InstanceID string
	MerchantID uint64
	ItemID     uint64
	Caller     string
	Quantity   uint64
}

// Restock adds quantity to an existing item and emits an
// item.restocked notification. The active flag is not changed.
func (s *LedgerService) Restock(req RestockRequest) (uint64, error) {
	if err := validateIdentity("caller", req.Caller); err != nil {
		return 0, err
	}
	ledger, err := s.ledger(req.InstanceID)
	if err != nil {
		return 0, err
	}

	newQuantity, err := ledger.Restock(req.Caller, req.MerchantID, req.ItemID, req.Quantity)
	if err != nil {
		return 0, err
	}

	if s.notifier != nil {
		s.notifier.DispatchItemRestocked(req.InstanceID, req.MerchantID, req.ItemID, req.Quantity, newQuantity)
	}
	return newQuantity, nil
}

// ToggleRequest represents the input for toggling an item's active flag.
type ToggleRequest struct {
	InstanceID string
	MerchantID uint64
	ItemID     uint64
	Caller     string
}

// ToggleItem flips the item's active flag, returns the new state, and
// emits an item.toggled notification.
func (s *LedgerService) ToggleItem(req ToggleRequest) (bool, error) {
	if err := validateIdentity("caller", req.Caller); err != nil {
		return false, err
	}
	ledger, err := s.ledger(req.InstanceID)
	if err != nil {
		return false, err
	}

	active, err := ledger.ToggleItem(req.Caller, req.MerchantID, req.ItemID)
	if err != nil {
		return false, err
	}

	if s.notifier != nil {
		s.notifier.DispatchItemToggled(req.InstanceID, req.MerchantID, req.ItemID, active)
	}
	return active, nil
}

// DelegateRequest represents the input for approving or revoking a
// merchant controller delegate.
type DelegateRequest struct {
	InstanceID string
	MerchantID uint64
	Caller     string
	Delegate   string
}

// ApproveDelegate registers an additional controller for the merchant.
func (s *LedgerService) ApproveDelegate(req DelegateRequest) error {
	if err := validateIdentity("caller", req.Caller); err != nil {
		return err
	}
	if err := validateIdentity("delegate", req.Delegate); err != nil {
		return err
	}
	ledger, err := s.ledger(req.InstanceID)
	if err != nil {
		return err
	}
	return ledger.ApproveDelegate(req.Caller, req.MerchantID, req.Delegate)
}

// RevokeDelegate removes a previously approved controller.
func (s *LedgerService) RevokeDelegate(req DelegateRequest) error {
	if err := validateIdentity("caller", req.Caller); err != nil {
		return err
	}
	if err := validateIdentity("delegate", req.Delegate); err != nil {
		return err
	}
	ledger, err := s.ledger(req.InstanceID)
	if err != nil {
		return err
	}
	return ledger.RevokeDelegate(req.Caller, req.MerchantID, req.Delegate)
}

// MintRequest represents the input for minting an additional merchant
// record on an initialized instance.
type MintRequest struct {
	InstanceID string
	Owner      string
	Name       string
}

// Mint creates a fresh merchant record on the instance.
func (s *LedgerService) Mint(req MintRequest) (uint64, error) {
	if req.Owner != "" {
		if err := validateIdentity("owner", req.Owner); err != nil {
			return 0, err
		}
	}
	ledger, err := s.ledger(req.InstanceID)
	if err != nil {
		return 0, err
	}
	return ledger.Mint(req.Owner, req.Name)
}

// BuyRequest represents the input for a purchase.
type BuyRequest struct {
	InstanceID string
	MerchantID uint64
	ItemID     uint64
	Buyer      string
	Quantity   uint64
	Tendered   uint64
}

// Buy executes an atomic purchase and emits a purchase.executed
// notification carrying the merchant, item, buyer, quantity, and total
// cost. The returned receipt includes the change refunded to the buyer.
func (s *LedgerService) Buy(req BuyRequest) (*engine.PurchaseReceipt, error) {
	if err := validateIdentity("buyer", req.Buyer); err != nil {
		return nil, err
	}
	ledger, err := s.ledger(req.InstanceID)
	if err != nil {
		return nil, err
	}

	receipt, err := ledger.Buy(req.Buyer, req.MerchantID, req.ItemID, req.Quantity, req.Tendered)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.DispatchPurchaseExecuted(req.InstanceID, receipt)
	}
	return receipt, nil
}

// WithdrawRequest represents the input for a profit withdrawal.
type WithdrawRequest struct {
	InstanceID string
	MerchantID uint64
	Caller     string
}

// WithdrawProfit zeroes the merchant's balance, transfers the full
// amount to the owner, and emits a profit.withdrawn notification.
func (s *LedgerService) WithdrawProfit(req WithdrawRequest) (uint64, error) {
	if err := validateIdentity("caller", req.Caller); err != nil {
		return 0, err
	}
	ledger, err := s.ledger(req.InstanceID)
	if err != nil {
		return 0, err
	}

	amount, err := ledger.WithdrawProfit(req.Caller, req.MerchantID)
	if err != nil {
		return 0, err
	}

	if s.notifier != nil {
		s.notifier.DispatchProfitWithdrawn(req.InstanceID, req.MerchantID, req.Caller, amount)
	}
	return amount, nil
}

// GetMerchant returns a point-in-time snapshot of the merchant record.
func (s *LedgerService) GetMerchant(instanceID string, merchantID uint64) (*engine.MerchantSnapshot, error) {
	ledger, err := s.ledger(instanceID)
	if err != nil {
		return nil, err
	}
	return ledger.Merchant(merchantID)
}

// GetItem returns a copy of a single item record. Inactive items
// remain queryable.
func (s *LedgerService) GetItem(instanceID string, merchantID, itemID uint64) (domain.Item, error) {
	ledger, err := s.ledger(instanceID)
	if err != nil {
		return domain.Item{}, err
	}
	return ledger.Item(merchantID, itemID)
}
