// Package conveyor provides the job-orchestration substrate shared by every
// reporting connector: pipeline-step sequencing, deterministic scheduling
// identifiers and cron derivation, budgeted retries for remote calls, and a
// work-item queue with idempotent re-entry, duplicate suppression, and
// restatement (late-arriving-data) handling.
//
// Conveyor is designed as a library, not a service. An external trigger
// scheduler (cron-like) invokes pipeline steps; Conveyor defines what happens
// once invoked.
//
// # Architecture
//
// Each subsystem lives in its own package: backoff and retry bound remote
// calls, schedule derives cron expressions from interval primitives, pipeline
// tracks the ordered steps for a source, identity derives the names and
// groups the external scheduler treats as opaque unique keys, workitem models
// the unit of work with dedup and restatement reconciliation, and engine
// drives one triggered step invocation end to end.
//
// Persistence follows a composable store pattern: workitem defines the store
// contract, engine defines the duplicate-run guard contract, and a single
// backend under store/ implements them (memory for tests, bun/Postgres for
// durability, redis for the run guard).
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers; lexical order is discovery order.
package conveyor
