// Package pipeline models the ordered steps a source's data moves through
// and the cursor tracking the step a run is currently positioned at.
package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/adwire/conveyor"
)

// Category distinguishes steps shared by every source from steps specific
// to one source's connector.
type Category string

// Step categories.
const (
	CategoryGeneric Category = "generic"
	CategorySource  Category = "source"
)

// Step identifies one stage of processing for a source. Steps are immutable
// once loaded from configuration; many steps compose a Path.
type Step struct {
	// Name is the stage name, e.g. "Import" or "DataLoad".
	Name string `json:"name"`
	// Order is the ordering index within the path.
	Order int `json:"order"`
	// Category is generic or source-specific.
	Category Category `json:"category"`
	// SubType is an optional discriminator within a stage.
	SubType string `json:"sub_type,omitempty"`
}

// String returns the step's name with its sub-type suffix, if any.
func (s Step) String() string {
	if s.SubType != "" {
		return s.Name + "-" + s.SubType
	}
	return s.Name
}

// IsGeneric reports whether the step belongs to the generic category.
func (s Step) IsGeneric() bool { return s.Category == CategoryGeneric }

// Path owns the ordered step collection for one source and one
// execution-context type, plus a mutable cursor over it. A Path is
// constructed once per run from configuration, mutated in place as the run
// advances, and discarded at run end. It serializes to JSON so a job can
// carry it in its own state for re-hydration on scheduler replay.
type Path struct {
	source      string
	contextType string
	steps       []Step
	current     int
}

// New creates a Path from the configured steps for a source. The cursor
// starts at the step with the minimum ordering index. An empty step
// collection means the source/context combination has no configured
// pipeline — a configuration error, not a runtime retry condition.
func New(source, contextType string, steps []Step) (*Path, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: source %q context %q", conveyor.ErrEmptyPath, source, contextType)
	}

	ordered := make([]Step, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	return &Path{
		source:      source,
		contextType: contextType,
		steps:       ordered,
		current:     0,
	}, nil
}

// Source returns the owning source name.
func (p *Path) Source() string { return p.source }

// ContextType returns the execution-context type the path was built for.
func (p *Path) ContextType() string { return p.contextType }

// Steps returns the steps in ordering-index order.
func (p *Path) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// Current returns the step the cursor is positioned at.
func (p *Path) Current() Step { return p.steps[p.current] }

// Peek returns the step Advance would move to, without moving the cursor.
func (p *Path) Peek() (next Step, ok bool) {
	cur := p.steps[p.current].Order
	for i := p.current + 1; i < len(p.steps); i++ {
		if p.steps[i].Order > cur {
			return p.steps[i], true
		}
	}
	return Step{}, false
}

// Advance moves the cursor to the step with the smallest ordering index
// strictly greater than the current one and returns it. When no such step
// exists the cursor stays put and ok is false; that is how callers detect
// the end of the pipeline for this run.
func (p *Path) Advance() (next Step, ok bool) {
	cur := p.steps[p.current].Order
	for i := p.current + 1; i < len(p.steps); i++ {
		if p.steps[i].Order > cur {
			p.current = i
			return p.steps[i], true
		}
	}
	return Step{}, false
}

// pathState is the serialized form of a Path.
type pathState struct {
	Source      string `json:"source"`
	ContextType string `json:"context_type"`
	Steps       []Step `json:"steps"`
	Current     int    `json:"current"`
}

// MarshalJSON implements json.Marshaler.
func (p *Path) MarshalJSON() ([]byte, error) {
	return json.Marshal(pathState{
		Source:      p.source,
		ContextType: p.contextType,
		Steps:       p.steps,
		Current:     p.current,
	})
}

// UnmarshalJSON implements json.Unmarshaler. It re-validates the invariant
// that the cursor refers to exactly one step in the collection.
func (p *Path) UnmarshalJSON(data []byte) error {
	var st pathState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("pipeline: unmarshal path: %w", err)
	}
	if len(st.Steps) == 0 {
		return fmt.Errorf("%w: source %q context %q", conveyor.ErrEmptyPath, st.Source, st.ContextType)
	}
	if st.Current < 0 || st.Current >= len(st.Steps) {
		return fmt.Errorf("pipeline: cursor %d out of range for %d steps", st.Current, len(st.Steps))
	}

	p.source = st.Source
	p.contextType = st.ContextType
	p.steps = st.Steps
	p.current = st.Current
	return nil
}
