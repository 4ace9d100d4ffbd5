package store

import (
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/npclabs/merchantd/internal/domain"
	"github.com/npclabs/merchantd/internal/engine"
)

// InstanceEntry records one ledger instance produced by the factory:
// the creating agent, the owner bound at initialization, and the
// instance itself. Seq is a process-wide creation sequence used for
// stable global enumeration.
type InstanceEntry struct {
	Seq       uint64
	CreatedBy string // agent that invoked create
	Owner     string // merchant owner, empty until initialized
	CreatedAt time.Time
	Ledger    *engine.Ledger
}

// instanceLess orders entries by creation sequence ascending, so
// walking the tree from Min yields instances oldest-first.
func instanceLess(a, b *InstanceEntry) bool {
	return a.Seq < b.Seq
}

// InstanceStore is a thread-safe registry of factory-created instances.
// Primary index: instance id → entry. Secondary indexes: owner →
// entries (filled at initialization) and a B-tree ordered by creation
// sequence for paginated global enumeration.
type InstanceStore struct {
	mu      sync.RWMutex
	nextSeq uint64
	byID    map[string]*InstanceEntry
	byOwner map[string][]*InstanceEntry
	ordered *btree.BTreeG[*InstanceEntry]
}

// NewInstanceStore creates an empty InstanceStore.
func NewInstanceStore() *InstanceStore {
	const degree = 32
	return &InstanceStore{
		byID:    make(map[string]*InstanceEntry),
		byOwner: make(map[string][]*InstanceEntry),
		ordered: btree.NewG[*InstanceEntry](degree, instanceLess),
	}
}

// Add registers a newly created instance and returns its entry.
func (s *InstanceStore) Add(ledger *engine.Ledger, createdBy string) *InstanceEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &InstanceEntry{
		Seq:       s.nextSeq,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
		Ledger:    ledger,
	}
	s.nextSeq++
	s.byID[ledger.ID()] = entry
	s.ordered.ReplaceOrInsert(entry)
	return entry
}

// Get retrieves an instance entry by id. It returns
// domain.ErrInstanceNotFound if the instance does not exist.
func (s *InstanceStore) Get(id string) (*InstanceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrInstanceNotFound
	}
	return entry, nil
}

// BindOwner records the owner bound to the instance at initialization
// and adds the entry to the per-owner index.
func (s *InstanceStore) BindOwner(id, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.byID[id]
	if !ok {
		return domain.ErrInstanceNotFound
	}
	entry.Owner = owner
	s.byOwner[owner] = append(s.byOwner[owner], entry)
	return nil
}

// List returns instances in creation order. Pagination is 1-based.
// The second return value is the total count before pagination.
func (s *InstanceStore) List(page, limit int) ([]*InstanceEntry, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.ordered.Len()
	start := (page - 1) * limit
	if start >= total {
		return []*InstanceEntry{}, total
	}

	result := make([]*InstanceEntry, 0, limit)
	i := 0
	s.ordered.Ascend(func(entry *InstanceEntry) bool {
		if i >= start {
			result = append(result, entry)
		}
		i++
		return len(result) < limit
	})
	return result, total
}

// ListByOwner returns all instances bound to the given owner, in
// creation order. Returns an empty slice for unknown owners.
func (s *InstanceStore) ListByOwner(owner string) []*InstanceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.byOwner[owner]
	result := make([]*InstanceEntry, len(entries))
	copy(result, entries)
	return result
}

// Len returns the number of registered instances.
func (s *InstanceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ordered.Len()
}
