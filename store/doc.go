// Package store defines the aggregate persistence interface.
//
// The work-item queue and the duplicate-run guard each have their own
// contract (workitem.Store and engine.Guard); the composite [Store]
// composes them with lifecycle methods for backends that implement both.
//
// Backends:
//
//   - store/memory — maps, for tests and development; implements the full
//     composite.
//   - store/bun — PostgreSQL via the Bun ORM, with embedded migrations;
//     implements workitem.Store.
//   - store/redis — Redis SET NX claims; implements engine.Guard.
package store
