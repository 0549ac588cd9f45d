package workitem

import (
	"context"

	"github.com/adwire/conveyor/id"
)

// Store defines the persistence contract for work items. The work-item
// table is the single shared mutable resource across concurrent runs, so
// every mutation is keyed by primary id, and callers re-read an item
// immediately before mutating its status.
type Store interface {
	// CreateItem persists a newly discovered work item.
	CreateItem(ctx context.Context, it *Item) error

	// GetItem retrieves a work item by id.
	GetItem(ctx context.Context, itemID id.ItemID) (*Item, error)

	// UpdateItem persists changes to an existing work item.
	UpdateItem(ctx context.Context, it *Item) error

	// UpdateStatus transitions a work item's status by primary key.
	UpdateStatus(ctx context.Context, itemID id.ItemID, status Status) error

	// DeleteItem removes a work item by id (dedup losers, completed
	// stateless steps).
	DeleteItem(ctx context.Context, itemID id.ItemID) error

	// TopPending returns up to limit Pending or Running items for the
	// given source scoped to one step, in discovery order.
	TopPending(ctx context.Context, sourceID, step string, limit int) ([]*Item, error)

	// ProcessedHistory returns every historically processed item for an
	// integration, for restatement comparisons. History includes items
	// already archived from the pending queue.
	ProcessedHistory(ctx context.Context, integrationID string) ([]*Item, error)

	// ArchiveItem records a completed item into the processed history and
	// removes it from the pending queue.
	ArchiveItem(ctx context.Context, it *Item) error
}
