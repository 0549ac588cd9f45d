package store

import (
	"context"

	"github.com/adwire/conveyor/engine"
	"github.com/adwire/conveyor/workitem"
)

// Store is the aggregate persistence interface: the work-item queue and
// history plus the duplicate-run guard, behind one lifecycle. A single
// backend (memory in tests and development) implements all of it;
// production deployments typically split the concerns across bun
// (work items) and redis (run guard) instead.
type Store interface {
	workitem.Store
	engine.Guard

	// Migrate applies any pending schema changes.
	Migrate(ctx context.Context) error
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}
