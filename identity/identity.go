// Package identity derives the stable, collision-resistant names and groups
// used to register and deduplicate triggers with the external scheduler. The
// scheduler treats these strings as opaque unique keys, so the exact shapes
// here are part of the wire contract and must not drift.
package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adwire/conveyor/pipeline"
)

// Name components shared by every derivation.
const (
	// AllSources substitutes for the source name on source-less runs.
	AllSources = "All"
	// GenericSource substitutes for the source name when the current step
	// belongs to the generic category.
	GenericSource = "Generic"
	// AllIntegrations substitutes for the integration id when a run spans
	// every integration of a source.
	AllIntegrations = "AllIntegrations"

	backfillSuffix = "_BF"
	delim          = "~"

	// TriggerGroupStandard and TriggerGroupBackfill prefix the trigger
	// group, distinguishing standard from backfill runs.
	TriggerGroupStandard = "TG_STANDARD"
	TriggerGroupBackfill = "TG_BACKFILL"
)

// NewCorrelationID returns a short per-run correlation id. Eight hex
// characters keep the derived names inside the scheduler's key length
// limits while staying unique within a source's active runs.
func NewCorrelationID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// Identity computes the scheduler-facing names for one run of one step.
// It is computed, never stored: recompute whenever the current step changes.
type Identity struct {
	source        string
	integrationID string
	step          pipeline.Step
	correlationID string
	backfill      bool

	// delay is a one-shot nudge applied to the next scheduled fire time
	// of the current step. It is not a durable setting: moving to another
	// step resets it.
	delay time.Duration
}

// Option configures an Identity.
type Option func(*Identity)

// WithIntegration scopes the identity to a single integration id.
func WithIntegration(integrationID string) Option {
	return func(i *Identity) { i.integrationID = integrationID }
}

// WithBackfill marks the run as a backfill.
func WithBackfill(backfill bool) Option {
	return func(i *Identity) { i.backfill = backfill }
}

// WithCorrelationID overrides the generated per-run correlation id, used
// when re-hydrating a run the scheduler replayed.
func WithCorrelationID(corr string) Option {
	return func(i *Identity) { i.correlationID = corr }
}

// New creates an Identity for a run positioned at step. An empty source
// derives the "All" placeholder.
func New(source string, step pipeline.Step, opts ...Option) *Identity {
	i := &Identity{
		source:        source,
		step:          step,
		correlationID: NewCorrelationID(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Source returns the raw source name ("" for source-less runs).
func (i *Identity) Source() string { return i.source }

// Step returns the step the identity is currently derived from.
func (i *Identity) Step() pipeline.Step { return i.step }

// IntegrationID returns the raw integration id ("" when the run spans all
// integrations of the source).
func (i *Identity) IntegrationID() string { return i.integrationID }

// CorrelationID returns the per-run correlation id.
func (i *Identity) CorrelationID() string { return i.correlationID }

// Backfill reports whether the run is a backfill.
func (i *Identity) Backfill() bool { return i.backfill }

// SetStep repositions the identity at a new step. Changing the step always
// resets the pending delayed-execution offset: the delay was a one-shot
// nudge for the step being left, not a property of the job.
func (i *Identity) SetStep(step pipeline.Step) {
	i.step = step
	i.delay = 0
}

// SetDelay records a one-shot delayed-execution offset for the current
// step's next fire time.
func (i *Identity) SetDelay(d time.Duration) { i.delay = d }

// Delay returns the pending delayed-execution offset.
func (i *Identity) Delay() time.Duration { return i.delay }

// effectiveSource substitutes "Generic" for generic-category steps and
// "All" for source-less runs.
func (i *Identity) effectiveSource() string {
	if i.step.IsGeneric() {
		return GenericSource
	}
	if i.source == "" {
		return AllSources
	}
	return i.source
}

// integration returns the integration id or the AllIntegrations placeholder.
func (i *Identity) integration() string {
	if i.integrationID == "" {
		return AllIntegrations
	}
	return i.integrationID
}

// CacheKey derives the key used to prevent two logically-equivalent runs
// executing concurrently. It is stable for the same logical unit of work
// across retries and restarts:
//
//	JOB_{stepName}_{source}_{integration}[_BF]
func (i *Identity) CacheKey() string {
	var b strings.Builder
	b.WriteString("JOB_")
	b.WriteString(i.step.Name)
	b.WriteString("_")
	b.WriteString(i.effectiveSource())
	b.WriteString("_")
	b.WriteString(i.integration())
	if i.backfill {
		b.WriteString(backfillSuffix)
	}
	return b.String()
}

// JobName derives the processing job name:
//
//	{source}~{order}~{stepName}[-{subType}]{correlationId}[~BF]
func (i *Identity) JobName() string {
	name := fmt.Sprintf("%s%s%d%s%s%s",
		i.effectiveSource(), delim, i.step.Order, delim, i.step.String(), i.correlationID)
	if i.backfill {
		name += delim + "BF"
	}
	return name
}

// DataLoadJobName derives the job name for stateful warehouse-load steps.
// It has the same shape as JobName but carries the correlation id in its
// own delimiter segment; name and group must be unique together.
func (i *Identity) DataLoadJobName() string {
	name := fmt.Sprintf("%s%s%d%s%s%s%s",
		i.effectiveSource(), delim, i.step.Order, delim, i.step.String(), delim, i.correlationID)
	if i.backfill {
		name += delim + "BF"
	}
	return name
}

// JobGroup derives the scheduler job group, which is always the source name.
func (i *Identity) JobGroup() string {
	if i.source == "" {
		return AllSources
	}
	return i.source
}

// TriggerName derives the trigger name. It follows the processing job
// name's component ordering with the step's own string form interposed, so
// triggers sharing a job name across repeated schedules stay distinct:
//
//	{source}~{order}~{stepName}[-{subType}]~{stepName}{correlationId}[~BF]
func (i *Identity) TriggerName() string {
	name := fmt.Sprintf("%s%s%d%s%s%s%s%s",
		i.effectiveSource(), delim, i.step.Order, delim, i.step.String(), delim, i.step.Name, i.correlationID)
	if i.backfill {
		name += delim + "BF"
	}
	return name
}

// TriggerGroup derives the trigger group:
//
//	{TG_BACKFILL|TG_STANDARD}:{source}
func (i *Identity) TriggerGroup() string {
	prefix := TriggerGroupStandard
	if i.backfill {
		prefix = TriggerGroupBackfill
	}
	return prefix + ":" + i.JobGroup()
}
