package identity_test

import (
	"strings"
	"testing"
	"time"

	"github.com/adwire/conveyor/identity"
	"github.com/adwire/conveyor/pipeline"
)

var importStep = pipeline.Step{Name: "Import", Order: 1, Category: pipeline.CategorySource}

func TestCacheKey_StableForSameLogicalWork(t *testing.T) {
	a := identity.New("acmeads", importStep, identity.WithIntegration("123"))
	b := identity.New("acmeads", importStep, identity.WithIntegration("123"))

	// Correlation ids differ per run, but the cache key must not: the
	// scheduler-level duplicate-run guard keys on it across retries.
	if a.CacheKey() != b.CacheKey() {
		t.Errorf("cache keys differ: %q != %q", a.CacheKey(), b.CacheKey())
	}
	if got, want := a.CacheKey(), "JOB_Import_acmeads_123"; got != want {
		t.Errorf("CacheKey() = %q, want %q", got, want)
	}
}

func TestCacheKey_BackfillChangesOnlySuffix(t *testing.T) {
	std := identity.New("acmeads", importStep, identity.WithIntegration("123"))
	bf := identity.New("acmeads", importStep,
		identity.WithIntegration("123"), identity.WithBackfill(true))

	if bf.CacheKey() != std.CacheKey()+"_BF" {
		t.Errorf("backfill key %q should be %q plus _BF", bf.CacheKey(), std.CacheKey())
	}
}

func TestCacheKey_Placeholders(t *testing.T) {
	tests := []struct {
		name   string
		source string
		step   pipeline.Step
		want   string
	}{
		{"sourceless", "", importStep, "JOB_Import_All_AllIntegrations"},
		{
			"generic step substitutes Generic",
			"acmeads",
			pipeline.Step{Name: "DataLoad", Order: 2, Category: pipeline.CategoryGeneric},
			"JOB_DataLoad_Generic_AllIntegrations",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := identity.New(tt.source, tt.step)
			if got := i.CacheKey(); got != tt.want {
				t.Errorf("CacheKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJobName_Shape(t *testing.T) {
	step := pipeline.Step{Name: "Import", Order: 1, SubType: "Spend", Category: pipeline.CategorySource}
	i := identity.New("acmeads", step, identity.WithCorrelationID("c0ffee00"))

	if got, want := i.JobName(), "acmeads~1~Import-Spendc0ffee00"; got != want {
		t.Errorf("JobName() = %q, want %q", got, want)
	}

	bf := identity.New("acmeads", step,
		identity.WithCorrelationID("c0ffee00"), identity.WithBackfill(true))
	if got, want := bf.JobName(), "acmeads~1~Import-Spendc0ffee00~BF"; got != want {
		t.Errorf("backfill JobName() = %q, want %q", got, want)
	}
}

func TestDataLoadJobName_CorrelationInOwnSegment(t *testing.T) {
	i := identity.New("acmeads", importStep, identity.WithCorrelationID("c0ffee00"))

	if got, want := i.DataLoadJobName(), "acmeads~1~Import~c0ffee00"; got != want {
		t.Errorf("DataLoadJobName() = %q, want %q", got, want)
	}
}

func TestTriggerName_InterlocksStepForm(t *testing.T) {
	step := pipeline.Step{Name: "Import", Order: 1, SubType: "Spend", Category: pipeline.CategorySource}
	i := identity.New("acmeads", step, identity.WithCorrelationID("c0ffee00"))

	if got, want := i.TriggerName(), "acmeads~1~Import-Spend~Importc0ffee00"; got != want {
		t.Errorf("TriggerName() = %q, want %q", got, want)
	}
}

func TestTriggerGroup(t *testing.T) {
	std := identity.New("acmeads", importStep)
	if got, want := std.TriggerGroup(), "TG_STANDARD:acmeads"; got != want {
		t.Errorf("TriggerGroup() = %q, want %q", got, want)
	}

	bf := identity.New("acmeads", importStep, identity.WithBackfill(true))
	if got, want := bf.TriggerGroup(), "TG_BACKFILL:acmeads"; got != want {
		t.Errorf("TriggerGroup() = %q, want %q", got, want)
	}

	sourceless := identity.New("", importStep)
	if got, want := sourceless.TriggerGroup(), "TG_STANDARD:All"; got != want {
		t.Errorf("TriggerGroup() = %q, want %q", got, want)
	}
}

func TestJobGroup_DefaultsToSource(t *testing.T) {
	i := identity.New("acmeads", importStep)
	if got := i.JobGroup(); got != "acmeads" {
		t.Errorf("JobGroup() = %q, want acmeads", got)
	}
}

func TestSetStep_ResetsDelay(t *testing.T) {
	i := identity.New("acmeads", importStep)
	i.SetDelay(15 * time.Minute)
	if i.Delay() != 15*time.Minute {
		t.Fatalf("Delay() = %v, want 15m", i.Delay())
	}

	i.SetStep(pipeline.Step{Name: "DataLoad", Order: 2})
	if i.Delay() != 0 {
		t.Errorf("Delay() = %v after step change, want 0", i.Delay())
	}
	if i.Step().Name != "DataLoad" {
		t.Errorf("Step() = %+v, want DataLoad", i.Step())
	}
}

func TestNewCorrelationID(t *testing.T) {
	a := identity.NewCorrelationID()
	b := identity.NewCorrelationID()
	if len(a) != 8 {
		t.Errorf("correlation id %q has length %d, want 8", a, len(a))
	}
	if a == b {
		t.Errorf("two correlation ids collided: %q", a)
	}
	if strings.Contains(a, "-") {
		t.Errorf("correlation id %q should not contain the uuid separator", a)
	}
}
