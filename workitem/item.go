// Package workitem models the unit of ingested work flowing through a
// source's execution path, together with the duplicate-collapsing and
// restatement (late-arriving-data) reconciliation every run performs before
// downstream processing.
package workitem

import (
	"time"

	"github.com/adwire/conveyor/id"
)

// Status is the lifecycle state of a work item.
type Status string

// Work item statuses. Warning is a run-level status, not an item status:
// an item that ran out of time budget stays Pending.
const (
	// StatusPending means the item is waiting to be picked up by a step.
	StatusPending Status = "pending"
	// StatusRunning means a step is currently processing the item.
	StatusRunning Status = "running"
	// StatusComplete means the item finished the current step successfully.
	StatusComplete Status = "complete"
	// StatusError means the item's handler failed after retries exhausted.
	StatusError Status = "error"
)

// FileItem is one constituent file of a work item: the logical source-file
// name, where the delivered bytes were staged, and their size.
type FileItem struct {
	ID         id.FileID `json:"id"`
	SourceFile string    `json:"source_file"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
}

// Item is a queued unit of discovered source data. Items are created when
// new data is discovered, mutate as they advance through pipeline steps,
// and are deleted or archived on successful completion — or left in Error
// or Pending for operator or automatic retry.
type Item struct {
	ID id.ItemID `json:"id"`

	// BatchID correlates every item discovered by one file or batch.
	BatchID string `json:"batch_id"`

	SourceID      string `json:"source_id"`
	IntegrationID string `json:"integration_id"`

	// EntityID identifies the advertiser or account the data belongs to.
	EntityID string `json:"entity_id"`

	// FileName is the delivered file's identity. Restatements share every
	// other key field but arrive under a new FileName.
	FileName string `json:"file_name"`

	// SourceFile is the logical source-file name, stable across
	// restatements of the same report.
	SourceFile string `json:"source_file"`

	// FileDate is the business date the data covers; FileHour narrows it
	// for hourly feeds (nil for daily feeds).
	FileDate time.Time `json:"file_date"`
	FileHour *int      `json:"file_hour,omitempty"`

	// Step is the pipeline step the item is currently queued for.
	Step string `json:"step"`

	Status Status `json:"status"`

	// Size is the item's byte size. When Files is populated it is
	// recomputable as the sum of the constituent sizes; TotalSize
	// enforces that.
	Size  int64      `json:"size"`
	Files []FileItem `json:"files,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TotalSize returns the sum of the constituent file sizes when files are
// present, falling back to the recorded size otherwise.
func (it *Item) TotalSize() int64 {
	if len(it.Files) == 0 {
		return it.Size
	}
	var total int64
	for _, f := range it.Files {
		total += f.Size
	}
	return total
}

// hourKey normalizes the optional file hour for grouping (-1 = daily feed).
func (it *Item) hourKey() int {
	if it.FileHour == nil {
		return -1
	}
	return *it.FileHour
}

// SameDay reports whether two times fall on the same calendar day in UTC.
// File dates compare at day granularity regardless of the time component.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// OnOrAfter reports whether dataDate falls on or after startDate at day
// granularity. This is the single date-window convention used everywhere a
// connector asks "is this data date inside the entity's active window":
// inclusive of the start date itself.
func OnOrAfter(dataDate, startDate time.Time) bool {
	dy, dm, dd := dataDate.UTC().Date()
	sy, sm, sd := startDate.UTC().Date()
	d := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	s := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	return !d.Before(s)
}
