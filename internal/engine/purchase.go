package engine

import (
	"time"

	"github.com/npclabs/merchantd/internal/domain"
)

// PurchaseReceipt describes a completed purchase, including the change
// refunded to the buyer when the tendered amount exceeded the cost.
type PurchaseReceipt struct {
	MerchantID uint64
	ItemID     uint64
	Buyer      string
	Quantity   uint64
	UnitPrice  uint64
	TotalCost  uint64
	Change     uint64
	ExecutedAt time.Time
}

// Buy executes an atomic purchase: it validates the item is on sale and
// sufficiently stocked, checks the tendered payment against the
// overflow-checked total cost, then decrements stock and credits the
// merchant's profit as one indivisible transition. Any failed
// precondition aborts with zero mutation.
//
// Change is refunded through the Payout port strictly after the local
// state has committed. The instance's reentrancy guard is held for the
// whole operation, so a payout implementation that calls back into Buy
// or WithdrawProfit fails with domain.ErrReentrantCall. If the refund
// itself fails, the stock and profit mutations are rolled back and the
// payout error is returned.
func (l *Ledger) Buy(buyer string, merchantID, itemID, quantity, tendered uint64) (*PurchaseReceipt, error) {
	if err := l.acquireGuard(); err != nil {
		return nil, err
	}
	defer l.releaseGuard()

	l.mu.Lock()

	m, err := l.merchantLocked(merchantID)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	if err := domain.ValidateQuantity(quantity); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	it := m.Item(itemID)
	if it == nil {
		l.mu.Unlock()
		return nil, domain.ErrItemNotFound
	}
	if !it.Active {
		l.mu.Unlock()
		return nil, domain.ErrItemNotActive
	}
	if err := domain.ValidateStock(quantity, it.Quantity); err != nil {
		l.mu.Unlock()
		return nil, err
	}

	totalCost, err := domain.CheckedMul(it.Price, quantity)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	if err := domain.ValidatePayment(tendered, totalCost); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	newProfit, err := domain.CheckedAdd(m.Profit, totalCost)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}

	// Commit: stock and profit move together or not at all.
	it.Quantity -= quantity
	m.Profit = newProfit
	deactivated := false
	if l.cfg.DeactivateOnDeplete && it.Quantity == 0 {
		it.Active = false
		deactivated = true
	}

	receipt := &PurchaseReceipt{
		MerchantID: merchantID,
		ItemID:     itemID,
		Buyer:      buyer,
		Quantity:   quantity,
		UnitPrice:  it.Price,
		TotalCost:  totalCost,
		Change:     tendered - totalCost,
		ExecutedAt: time.Now(),
	}
	l.mu.Unlock()

	// Refund change only after the commit above.
	if receipt.Change > 0 {
		if err := l.payout.Pay(l.id, domain.PayoutKindRefund, buyer, receipt.Change); err != nil {
			l.mu.Lock()
			it.Quantity += quantity
			m.Profit -= totalCost
			if deactivated {
				it.Active = true
			}
			l.mu.Unlock()
			return nil, err
		}
	}

	return receipt, nil
}

// WithdrawProfit zeroes the merchant's accumulated profit and transfers
// the full amount to the owner through the Payout port. Only the owner
// may withdraw; a zero balance fails with domain.ErrNoProfit. The
// transfer happens strictly after the balance has been zeroed, under
// the same reentrancy discipline as Buy; if the transfer fails, the
// balance is restored and the error returned.
func (l *Ledger) WithdrawProfit(caller string, merchantID uint64) (uint64, error) {
	if err := l.acquireGuard(); err != nil {
		return 0, err
	}
	defer l.releaseGuard()

	l.mu.Lock()

	m, err := l.merchantLocked(merchantID)
	if err != nil {
		l.mu.Unlock()
		return 0, err
	}
	if caller != m.Owner {
		l.mu.Unlock()
		return 0, domain.ErrNotAuthorized
	}
	if m.Profit == 0 {
		l.mu.Unlock()
		return 0, domain.ErrNoProfit
	}

	amount := m.Profit
	m.Profit = 0
	l.mu.Unlock()

	if err := l.payout.Pay(l.id, domain.PayoutKindWithdrawal, m.Owner, amount); err != nil {
		l.mu.Lock()
		m.Profit = amount
		l.mu.Unlock()
		return 0, err
	}

	return amount, nil
}
