// Package memory provides a fully in-memory store implementation.
// Safe for concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/adwire/conveyor"
	"github.com/adwire/conveyor/engine"
	"github.com/adwire/conveyor/id"
	"github.com/adwire/conveyor/workitem"
)

// Compile-time contract checks.
var (
	_ workitem.Store = (*Store)(nil)
	_ engine.Guard   = (*Store)(nil)
)

// Store keeps the pending queue, the processed history, and run-guard
// claims in maps. Every read and write copies, so callers can mutate
// returned items without racing with the store.
type Store struct {
	mu sync.RWMutex

	items   map[id.ItemID]*workitem.Item
	history map[id.ItemID]*workitem.Item

	// seq preserves discovery order for TopPending.
	seq []id.ItemID

	guards map[string]time.Time

	closed bool
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		items:   make(map[id.ItemID]*workitem.Item),
		history: make(map[id.ItemID]*workitem.Item),
		guards:  make(map[string]time.Time),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is still open.
func (m *Store) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return conveyor.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Data is retained so tests can inspect it.
func (m *Store) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// Work-item store
// ──────────────────────────────────────────────────

// CreateItem persists a newly discovered work item.
func (m *Store) CreateItem(_ context.Context, it *workitem.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[it.ID]; exists {
		return conveyor.ErrItemAlreadyExists
	}
	cp := *it
	m.items[it.ID] = &cp
	m.seq = append(m.seq, it.ID)
	return nil
}

// GetItem retrieves a work item by id.
func (m *Store) GetItem(_ context.Context, itemID id.ItemID) (*workitem.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.items[itemID]
	if !ok {
		return nil, conveyor.ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

// UpdateItem persists changes to an existing work item.
func (m *Store) UpdateItem(_ context.Context, it *workitem.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[it.ID]; !ok {
		return conveyor.ErrItemNotFound
	}
	cp := *it
	cp.UpdatedAt = time.Now().UTC()
	m.items[it.ID] = &cp
	return nil
}

// UpdateStatus transitions a work item's status by primary key.
func (m *Store) UpdateStatus(_ context.Context, itemID id.ItemID, status workitem.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[itemID]
	if !ok {
		return conveyor.ErrItemNotFound
	}
	it.Status = status
	it.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteItem removes a work item by id.
func (m *Store) DeleteItem(_ context.Context, itemID id.ItemID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[itemID]; !ok {
		return conveyor.ErrItemNotFound
	}
	delete(m.items, itemID)
	return nil
}

// TopPending returns up to limit Pending or Running items for the given
// source scoped to one step, in discovery order. A limit of zero means
// no limit.
func (m *Store) TopPending(_ context.Context, sourceID, step string, limit int) ([]*workitem.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*workitem.Item, 0, len(m.items))
	for _, itemID := range m.seq {
		it, ok := m.items[itemID]
		if !ok {
			continue
		}
		if it.Status != workitem.StatusPending && it.Status != workitem.StatusRunning {
			continue
		}
		if sourceID != "" && it.SourceID != sourceID {
			continue
		}
		if step != "" && it.Step != step {
			continue
		}
		cp := *it
		result = append(result, &cp)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// ProcessedHistory returns every historically processed item for an
// integration, most recently updated first.
func (m *Store) ProcessedHistory(_ context.Context, integrationID string) ([]*workitem.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*workitem.Item, 0, len(m.history))
	for _, it := range m.history {
		if integrationID != "" && it.IntegrationID != integrationID {
			continue
		}
		cp := *it
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].UpdatedAt.After(result[k].UpdatedAt)
	})
	return result, nil
}

// ArchiveItem records a completed item into the processed history and
// removes it from the pending queue.
func (m *Store) ArchiveItem(_ context.Context, it *workitem.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *it
	cp.UpdatedAt = time.Now().UTC()
	m.history[it.ID] = &cp
	delete(m.items, it.ID)
	return nil
}

// ──────────────────────────────────────────────────
// Run guard
// ──────────────────────────────────────────────────

// AcquireRun claims key for ttl. Expired claims are reclaimed in place.
func (m *Store) AcquireRun(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if until, held := m.guards[key]; held && time.Now().Before(until) {
		return false, nil
	}
	m.guards[key] = time.Now().Add(ttl)
	return true, nil
}

// ReleaseRun drops the claim on key. Releasing an unheld key is a no-op.
func (m *Store) ReleaseRun(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.guards, key)
	return nil
}
