package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/npclabs/merchantd/internal/domain"
)

// Config carries the behavior knobs a clone inherits from its template.
type Config struct {
	// DeactivateOnDeplete pulls an item off sale automatically when a
	// purchase drains its quantity to zero.
	DeactivateOnDeplete bool
}

// Payout performs an outbound value transfer on behalf of a ledger
// instance. Implementations must not call back into the instance:
// Buy and WithdrawProfit hold the instance's reentrancy guard across
// the transfer and reject any nested mutation.
type Payout interface {
	Pay(instanceID string, kind domain.PayoutKind, recipient string, amount uint64) error
}

// Ledger is one instance of the merchant ledger engine. Each instance
// owns disjoint merchant and item state; independent instances can be
// driven concurrently without interference.
//
// An instance produced by Clone starts uninitialized and accepts no
// operation other than Initialize. A template constructed directly via
// NewTemplate is born initialized so it can never be mistaken for a
// usable clone; it serves only as a clone source.
type Ledger struct {
	id       string
	template bool
	cfg      Config
	payout   Payout

	mu          sync.RWMutex
	initialized bool
	guard       atomic.Bool // reentrancy lock held across outbound payouts
	merchants   []*domain.Merchant
}

// NewTemplate constructs a template ledger. The template is marked
// initialized at construction and exists purely as a clone source.
func NewTemplate(cfg Config, payout Payout) *Ledger {
	return &Ledger{
		id:          uuid.New().String(),
		template:    true,
		cfg:         cfg,
		payout:      payout,
		initialized: true,
	}
}

// Clone produces a fresh, distinct instance sharing the template's
// behavior and configuration but none of its state. The clone starts
// uninitialized; callers must drive it through Initialize before any
// other operation is accepted.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{
		id:     uuid.New().String(),
		cfg:    l.cfg,
		payout: l.payout,
	}
}

// ID returns the instance identifier.
func (l *Ledger) ID() string {
	return l.id
}

// IsTemplate reports whether this instance is a clone-source template.
func (l *Ledger) IsTemplate() bool {
	return l.template
}

// Initialized reports whether the instance has completed its one-time
// initialization handshake.
func (l *Ledger) Initialized() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.initialized
}

// Initialize performs the one-time false → true transition and mints
// the first merchant record bound to the given owner and name. It
// returns domain.ErrAlreadyInitialized on any second call — including
// calls against a template, which is initialized at construction.
func (l *Ledger) Initialize(owner, name string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return 0, domain.ErrAlreadyInitialized
	}
	if err := domain.ValidateName(name); err != nil {
		return 0, err
	}
	if owner == "" {
		return 0, domain.ErrInvalidOwner
	}

	l.initialized = true
	return l.mintLocked(owner, name), nil
}

// Mint creates a fresh merchant record and returns its identifier.
// Merchant identifiers are sequential and never reused; merchant
// records are never destroyed.
func (l *Ledger) Mint(owner, name string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized {
		return 0, domain.ErrNotInitialized
	}
	if err := domain.ValidateName(name); err != nil {
		return 0, err
	}
	if owner == "" {
		return 0, domain.ErrInvalidOwner
	}
	return l.mintLocked(owner, name), nil
}

func (l *Ledger) mintLocked(owner, name string) uint64 {
	id := uint64(len(l.merchants))
	l.merchants = append(l.merchants, &domain.Merchant{
		MerchantID: id,
		Owner:      owner,
		Name:       name,
		CreatedAt:  time.Now(),
		Delegates:  make(map[string]bool),
	})
	return id
}

// merchantLocked returns the merchant record for the given id.
// The caller must hold l.mu.
func (l *Ledger) merchantLocked(merchantID uint64) (*domain.Merchant, error) {
	if !l.initialized {
		return nil, domain.ErrNotInitialized
	}
	if merchantID >= uint64(len(l.merchants)) {
		return nil, domain.ErrMerchantNotFound
	}
	return l.merchants[merchantID], nil
}

// acquireGuard takes the per-instance reentrancy lock. Any call
// arriving while the lock is held — including a nested call made from
// inside a payout — fails immediately with domain.ErrReentrantCall
// instead of re-entering.
func (l *Ledger) acquireGuard() error {
	if !l.guard.CompareAndSwap(false, true) {
		return domain.ErrReentrantCall
	}
	return nil
}

func (l *Ledger) releaseGuard() {
	l.guard.Store(false)
}

// MerchantSnapshot is a point-in-time copy of a merchant record for
// read-only consumers. Mutating a snapshot has no effect on the ledger.
type MerchantSnapshot struct {
	MerchantID uint64
	Owner      string
	Name       string
	Profit     uint64
	Items      []domain.Item
	CreatedAt  time.Time
}

// Merchant returns a snapshot of the merchant record, including all
// items ever added (inactive items remain queryable).
func (l *Ledger) Merchant(merchantID uint64) (*MerchantSnapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, err := l.merchantLocked(merchantID)
	if err != nil {
		return nil, err
	}

	items := make([]domain.Item, len(m.Items))
	for i, it := range m.Items {
		items[i] = *it
	}
	return &MerchantSnapshot{
		MerchantID: m.MerchantID,
		Owner:      m.Owner,
		Name:       m.Name,
		Profit:     m.Profit,
		Items:      items,
		CreatedAt:  m.CreatedAt,
	}, nil
}

// Item returns a copy of a single item record.
func (l *Ledger) Item(merchantID, itemID uint64) (domain.Item, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, err := l.merchantLocked(merchantID)
	if err != nil {
		return domain.Item{}, err
	}
	it := m.Item(itemID)
	if it == nil {
		return domain.Item{}, domain.ErrItemNotFound
	}
	return *it, nil
}

// ItemCount returns the number of items ever added to the merchant.
func (l *Ledger) ItemCount(merchantID uint64) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, err := l.merchantLocked(merchantID)
	if err != nil {
		return 0, err
	}
	return m.ItemCount(), nil
}

// Profit returns the merchant's accumulated, unwithdrawn profit.
func (l *Ledger) Profit(merchantID uint64) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, err := l.merchantLocked(merchantID)
	if err != nil {
		return 0, err
	}
	return m.Profit, nil
}
