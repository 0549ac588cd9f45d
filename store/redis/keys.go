package redis

// Redis key naming conventions for conveyor data.
// All keys are prefixed with "conveyor:" to avoid collisions.

const keyPrefix = "conveyor:"

// guardKey returns the key for a run-guard claim: conveyor:guard:{key}.
// The inner key is the run's cache key, already unique per step, source,
// integration, and backfill flag.
func guardKey(key string) string { return keyPrefix + "guard:" + key }
