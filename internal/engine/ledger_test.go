package engine

import (
	"errors"
	"sync"
	"testing"

	"github.com/npclabs/merchantd/internal/domain"
)

// payoutCall records one outbound transfer made through a test payout.
type payoutCall struct {
	instanceID string
	kind       domain.PayoutKind
	recipient  string
	amount     uint64
}

// recordingPayout collects transfers for assertions.
type recordingPayout struct {
	mu    sync.Mutex
	calls []payoutCall
	err   error // returned from Pay when non-nil
}

func (p *recordingPayout) Pay(instanceID string, kind domain.PayoutKind, recipient string, amount uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.calls = append(p.calls, payoutCall{instanceID, kind, recipient, amount})
	return nil
}

func newReadyLedger(t *testing.T) (*Ledger, uint64) {
	t.Helper()
	return newReadyLedgerWith(t, Config{}, &recordingPayout{})
}

func newReadyLedgerWith(t *testing.T, cfg Config, payout Payout) (*Ledger, uint64) {
	t.Helper()
	template := NewTemplate(cfg, payout)
	ledger := template.Clone()
	merchantID, err := ledger.Initialize("owner1", "Shop")
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return ledger, merchantID
}

func TestNewTemplate_BornInitialized(t *testing.T) {
	template := NewTemplate(Config{}, &recordingPayout{})

	if !template.IsTemplate() {
		t.Error("IsTemplate() = false, want true")
	}
	if !template.Initialized() {
		t.Error("Initialized() = false, want true")
	}

	// A template can never go through the initialization handshake.
	if _, err := template.Initialize("owner1", "Shop"); !errors.Is(err, domain.ErrAlreadyInitialized) {
		t.Errorf("Initialize() on template error = %v, want ErrAlreadyInitialized", err)
	}
}

func TestClone_StartsUninitialized(t *testing.T) {
	template := NewTemplate(Config{}, &recordingPayout{})
	clone := template.Clone()

	if clone.IsTemplate() {
		t.Error("clone IsTemplate() = true, want false")
	}
	if clone.Initialized() {
		t.Error("clone Initialized() = true, want false")
	}
	if clone.ID() == template.ID() {
		t.Error("clone shares the template's id")
	}

	// No operation other than Initialize is accepted before the handshake.
	if _, err := clone.Mint("owner1", "Shop"); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("Mint() before init error = %v, want ErrNotInitialized", err)
	}
	if _, err := clone.AddItem("owner1", 0, "Potion", 10, 5); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("AddItem() before init error = %v, want ErrNotInitialized", err)
	}
	if _, err := clone.Buy("buyer1", 0, 0, 1, 10); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("Buy() before init error = %v, want ErrNotInitialized", err)
	}
	if _, err := clone.Merchant(0); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("Merchant() before init error = %v, want ErrNotInitialized", err)
	}
}

func TestClone_InstancesAreDisjoint(t *testing.T) {
	template := NewTemplate(Config{}, &recordingPayout{})
	a := template.Clone()
	b := template.Clone()

	if _, err := a.Initialize("owner1", "ShopA"); err != nil {
		t.Fatalf("Initialize(a) error = %v", err)
	}
	if _, err := b.Initialize("owner2", "ShopB"); err != nil {
		t.Fatalf("Initialize(b) error = %v", err)
	}

	if _, err := a.AddItem("owner1", 0, "Potion", 10, 5); err != nil {
		t.Fatalf("AddItem(a) error = %v", err)
	}

	countA, _ := a.ItemCount(0)
	countB, _ := b.ItemCount(0)
	if countA != 1 || countB != 0 {
		t.Errorf("item counts = %d, %d, want 1, 0", countA, countB)
	}
}

func TestInitialize_Validation(t *testing.T) {
	template := NewTemplate(Config{}, &recordingPayout{})

	tests := []struct {
		name    string
		owner   string
		shop    string
		wantErr error
	}{
		{"empty name", "owner1", "", domain.ErrInvalidName},
		{"empty owner", "", "Shop", domain.ErrInvalidOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clone := template.Clone()
			if _, err := clone.Initialize(tt.owner, tt.shop); !errors.Is(err, tt.wantErr) {
				t.Errorf("Initialize(%q, %q) error = %v, want %v", tt.owner, tt.shop, err, tt.wantErr)
			}
			// A failed handshake leaves the clone uninitialized.
			if clone.Initialized() {
				t.Error("Initialized() = true after failed Initialize")
			}
		})
	}
}

func TestInitialize_SecondCallRejected(t *testing.T) {
	template := NewTemplate(Config{}, &recordingPayout{})
	clone := template.Clone()

	merchantID, err := clone.Initialize("owner1", "Shop")
	if err != nil {
		t.Fatalf("first Initialize() error = %v", err)
	}
	if merchantID != 0 {
		t.Errorf("first merchant id = %d, want 0", merchantID)
	}

	before, err := clone.Merchant(0)
	if err != nil {
		t.Fatalf("Merchant() error = %v", err)
	}

	if _, err := clone.Initialize("owner2", "Other"); !errors.Is(err, domain.ErrAlreadyInitialized) {
		t.Fatalf("second Initialize() error = %v, want ErrAlreadyInitialized", err)
	}

	// State after the rejected call equals state after the first.
	after, err := clone.Merchant(0)
	if err != nil {
		t.Fatalf("Merchant() error = %v", err)
	}
	if after.Owner != before.Owner || after.Name != before.Name || after.Profit != before.Profit {
		t.Errorf("merchant changed after rejected Initialize: before=%+v after=%+v", before, after)
	}
}

func TestMint_SequentialIDs(t *testing.T) {
	ledger, first := newReadyLedger(t)
	if first != 0 {
		t.Fatalf("first merchant id = %d, want 0", first)
	}

	second, err := ledger.Mint("owner2", "Stall")
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if second != 1 {
		t.Errorf("second merchant id = %d, want 1", second)
	}

	m, err := ledger.Merchant(second)
	if err != nil {
		t.Fatalf("Merchant() error = %v", err)
	}
	if m.Owner != "owner2" || m.Name != "Stall" || m.Profit != 0 {
		t.Errorf("minted merchant = %+v, want owner2/Stall/0", m)
	}
}

func TestMint_Validation(t *testing.T) {
	ledger, _ := newReadyLedger(t)

	if _, err := ledger.Mint("owner1", ""); !errors.Is(err, domain.ErrInvalidName) {
		t.Errorf("Mint empty name error = %v, want ErrInvalidName", err)
	}
	if _, err := ledger.Mint("", "Shop"); !errors.Is(err, domain.ErrInvalidOwner) {
		t.Errorf("Mint empty owner error = %v, want ErrInvalidOwner", err)
	}
}

func TestReadAccessors_UnknownMerchant(t *testing.T) {
	ledger, _ := newReadyLedger(t)

	if _, err := ledger.Merchant(99); !errors.Is(err, domain.ErrMerchantNotFound) {
		t.Errorf("Merchant(99) error = %v, want ErrMerchantNotFound", err)
	}
	if _, err := ledger.Profit(99); !errors.Is(err, domain.ErrMerchantNotFound) {
		t.Errorf("Profit(99) error = %v, want ErrMerchantNotFound", err)
	}
	if _, err := ledger.ItemCount(99); !errors.Is(err, domain.ErrMerchantNotFound) {
		t.Errorf("ItemCount(99) error = %v, want ErrMerchantNotFound", err)
	}
	if _, err := ledger.Item(99, 0); !errors.Is(err, domain.ErrMerchantNotFound) {
		t.Errorf("Item(99, 0) error = %v, want ErrMerchantNotFound", err)
	}
}

func TestMerchantSnapshot_IsACopy(t *testing.T) {
	ledger, merchantID := newReadyLedger(t)
	if _, err := ledger.AddItem("owner1", merchantID, "Potion", 10, 5); err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}

	snap, err := ledger.Merchant(merchantID)
	if err != nil {
		t.Fatalf("Merchant() error = %v", err)
	}

	// Mutating the snapshot must not leak into the ledger.
	snap.Items[0].Quantity = 0
	snap.Profit = 12345

	it, err := ledger.Item(merchantID, 0)
	if err != nil {
		t.Fatalf("Item() error = %v", err)
	}
	if it.Quantity != 5 {
		t.Errorf("quantity = %d after snapshot mutation, want 5", it.Quantity)
	}
	profit, _ := ledger.Profit(merchantID)
	if profit != 0 {
		t.Errorf("profit = %d after snapshot mutation, want 0", profit)
	}
}
