package workitem

import (
	"sort"
	"time"
)

// dedupKey groups deliveries of the same logical data slice.
type dedupKey struct {
	entityID   string
	day        string
	hour       int
	sourceFile string
}

func keyOf(it *Item) dedupKey {
	return dedupKey{
		entityID:   it.EntityID,
		day:        it.FileDate.UTC().Format("2006-01-02"),
		hour:       it.hourKey(),
		sourceFile: it.SourceFile,
	}
}

// Collapse suppresses duplicate deliveries in the pending queue: items
// sharing {entity, file date, file hour, source file} collapse to the one
// with the highest id (ids are K-sortable, so highest means most recently
// discovered). Kept items come back in their original relative order;
// dropped items are returned for deletion from the queue.
func Collapse(items []*Item) (keep, drop []*Item) {
	winners := make(map[dedupKey]*Item, len(items))
	for _, it := range items {
		k := keyOf(it)
		cur, ok := winners[k]
		if !ok || cur.ID.Before(it.ID) {
			winners[k] = it
		}
	}

	keep = make([]*Item, 0, len(winners))
	for _, it := range items {
		if winners[keyOf(it)] == it {
			keep = append(keep, it)
		} else {
			drop = append(drop, it)
		}
	}
	return keep, drop
}

// Restatement pairs a newly queued item with a previously processed item it
// supersedes. The relationship is derived, never stored: it is recomputed
// each run from the full processed history.
type Restatement struct {
	// New is the queued item carrying the late-arriving replacement data.
	New *Item
	// Old is the already-processed item the new one supersedes. Its
	// artifacts become eligible for cleanup only after New completes.
	Old *Item
}

// DetectRestatements compares each queued item against the processed
// history. A history item is restated when it matches the queued item on
// {entity, file hour, file date (exact day), source id, source file} but
// was delivered under a different file name with an earlier id. Matching
// file names are literal duplicates and are dedup's problem, not a
// restatement.
//
// Candidates across all queued items are returned most-recently-updated
// first.
func DetectRestatements(queued, history []*Item) []Restatement {
	var found []Restatement
	for _, n := range queued {
		for _, h := range history {
			if !restates(n, h) {
				continue
			}
			found = append(found, Restatement{New: n, Old: h})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Old.UpdatedAt.After(found[j].Old.UpdatedAt)
	})
	return found
}

// restates reports whether n supersedes h.
func restates(n, h *Item) bool {
	if n.EntityID != h.EntityID || n.SourceID != h.SourceID {
		return false
	}
	if n.hourKey() != h.hourKey() || n.SourceFile != h.SourceFile {
		return false
	}
	if !SameDay(n.FileDate, h.FileDate) {
		return false
	}
	if n.FileName == h.FileName {
		return false
	}
	return h.ID.Before(n.ID)
}

// CutoffBefore filters history to items processed before t. Connectors use
// it to bound restatement scans for sources with long retention.
func CutoffBefore(history []*Item, t time.Time) []*Item {
	out := make([]*Item, 0, len(history))
	for _, h := range history {
		if h.UpdatedAt.Before(t) {
			out = append(out, h)
		}
	}
	return out
}
