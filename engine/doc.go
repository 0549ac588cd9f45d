// Package engine orchestrates one pipeline step invocation end to end:
// acquiring the run guard, draining the pending work-item queue, collapsing
// duplicate deliveries, detecting restatements against processed history,
// driving each item through the handler and middleware chain, handing
// completed items to the next step, and cleaning up superseded artifacts.
//
// The engine sits above the leaf packages (workitem, pipeline, identity,
// run) and below application wiring. It owns no persistence of its own;
// stores and artifact removers are injected behind small interfaces so the
// same run logic executes against memory in tests and Postgres plus object
// storage in production.
package engine
