package conveyor

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("conveyor: no store configured")
	ErrStoreClosed = errors.New("conveyor: store closed")

	// Not found errors.
	ErrItemNotFound   = errors.New("conveyor: work item not found")
	ErrSourceNotFound = errors.New("conveyor: source not configured")

	// Conflict errors.
	ErrItemAlreadyExists = errors.New("conveyor: work item already exists")
	ErrRunActive         = errors.New("conveyor: an equivalent run is already active")

	// Configuration errors. These fail fast at construction and are
	// never retried.
	ErrEmptyPath           = errors.New("conveyor: execution path has no steps")
	ErrMissingIntervalExpr = errors.New("conveyor: weekly/monthly schedule requires an interval expression")

	// Budget errors.
	ErrBudgetExceeded   = errors.New("conveyor: run wall-clock budget exceeded")
	ErrRetriesExhausted = errors.New("conveyor: retry attempts exhausted")
)
