// Package schedule represents a recurrence — an interval primitive plus a
// time zone and anchor start time — and derives the cron expression the
// external trigger scheduler consumes. Expressions use the scheduler's
// seven-field form: second, minute, hour, day-of-month, month, day-of-week,
// and an optional trailing year.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/adwire/conveyor"
)

// Interval is the recurrence primitive for a source's schedule.
type Interval string

// Interval values. Backfill schedules reprocess historical ranges and are
// distinguished from Daily only in naming, not in cron shape.
const (
	Minutely Interval = "minutely"
	Hourly   Interval = "hourly"
	Daily    Interval = "daily"
	Weekly   Interval = "weekly"
	Monthly  Interval = "monthly"
	Backfill Interval = "backfill"
)

// dowParser validates caller-supplied day-of-week expressions ("MON,WED,FRI")
// by embedding them in a probe schedule.
var dowParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// Calendar is a recurrence: an interval type, an optional interval
// expression (day-of-week list for Weekly, day-of-month list for Monthly),
// a time zone, and an anchor start time. The cron expression is derived
// lazily and cached; an explicitly assigned expression always wins.
type Calendar struct {
	interval Interval
	expr     string
	tz       string
	anchor   time.Time
	year     int

	mu       sync.Mutex
	derived  string
	override string
}

// Option configures a Calendar.
type Option func(*Calendar)

// WithExpression sets the interval expression. Required for Weekly
// (day-of-week list) and Monthly (day-of-month list).
func WithExpression(expr string) Option {
	return func(c *Calendar) { c.expr = expr }
}

// WithTimeZone sets the IANA time zone identifier for the schedule.
func WithTimeZone(tz string) Option {
	return func(c *Calendar) { c.tz = tz }
}

// WithAnchor sets the anchor start time. The derived expression fires at
// the anchor's minute and hour. Defaults to the time of construction.
func WithAnchor(t time.Time) Option {
	return func(c *Calendar) { c.anchor = t }
}

// WithYear pins the schedule to a single year. Zero omits the year field.
func WithYear(year int) Option {
	return func(c *Calendar) { c.year = year }
}

// WithCron assigns an explicit cron expression. It is returned verbatim
// from CronExpression, bypassing derivation entirely.
func WithCron(expr string) Option {
	return func(c *Calendar) { c.override = expr }
}

// New creates a Calendar. Weekly and Monthly intervals require an interval
// expression; omitting one is a configuration error, never retried.
func New(interval Interval, opts ...Option) (*Calendar, error) {
	c := &Calendar{
		interval: interval,
		anchor:   time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}

	switch interval {
	case Weekly:
		if c.expr == "" {
			return nil, fmt.Errorf("%w: interval %q", conveyor.ErrMissingIntervalExpr, interval)
		}
		if _, err := dowParser.Parse("0 0 * * " + c.expr); err != nil {
			return nil, fmt.Errorf("schedule: invalid day-of-week expression %q: %w", c.expr, err)
		}
	case Monthly:
		if c.expr == "" {
			return nil, fmt.Errorf("%w: interval %q", conveyor.ErrMissingIntervalExpr, interval)
		}
		if _, err := dowParser.Parse("0 0 " + c.expr + " * *"); err != nil {
			return nil, fmt.Errorf("schedule: invalid day-of-month expression %q: %w", c.expr, err)
		}
	case Minutely, Hourly, Daily, Backfill:
		// No expression required.
	default:
		return nil, fmt.Errorf("schedule: unknown interval %q", interval)
	}

	return c, nil
}

// Interval returns the recurrence primitive.
func (c *Calendar) Interval() Interval { return c.interval }

// Expression returns the interval expression, if any.
func (c *Calendar) Expression() string { return c.expr }

// TimeZone returns the IANA time zone identifier, if any.
func (c *Calendar) TimeZone() string { return c.tz }

// Location resolves the calendar's time zone. An empty time zone resolves
// to UTC.
func (c *Calendar) Location() (*time.Location, error) {
	if c.tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.tz)
	if err != nil {
		return nil, fmt.Errorf("schedule: load time zone %q: %w", c.tz, err)
	}
	return loc, nil
}

// Anchor returns the anchor start time.
func (c *Calendar) Anchor() time.Time { return c.anchor }

// SetAnchor replaces the anchor start time and invalidates the cached
// derivation. The next CronExpression call re-derives.
func (c *Calendar) SetAnchor(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.anchor = t
	c.derived = ""
}

// SetCron assigns an explicit cron expression after construction.
func (c *Calendar) SetCron(expr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.override = expr
}

// CronExpression returns the cron expression for this calendar. An
// explicitly assigned expression is returned verbatim; otherwise the
// expression is derived from the interval, anchor and expression, and
// cached until the anchor changes.
func (c *Calendar) CronExpression() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.override != "" {
		return c.override
	}
	if c.derived == "" {
		c.derived = c.derive()
	}
	return c.derived
}

// NextAfter returns the recurrence's next fire time strictly after t plus
// the one-shot delay offset, evaluated in the calendar's time zone. The
// derived trigger expression is scheduler syntax; local evaluation uses an
// equivalent five-field schedule.
func (c *Calendar) NextAfter(t time.Time, delay time.Duration) (time.Time, error) {
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, err
	}

	c.mu.Lock()
	field := c.fiveField()
	c.mu.Unlock()

	sched, err := dowParser.Parse(field)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: evaluate recurrence: %w", err)
	}
	return sched.Next(t.Add(delay).In(loc)), nil
}

// fiveField builds the standard five-field equivalent of the recurrence.
func (c *Calendar) fiveField() string {
	minute := strconv.Itoa(clamp(c.anchor.Minute(), 59))
	hour := strconv.Itoa(clamp(c.anchor.Hour(), 23))

	switch c.interval {
	case Minutely:
		return "* * * * *"
	case Hourly:
		return minute + " * * * *"
	case Monthly:
		return minute + " " + hour + " " + c.expr + " * *"
	case Weekly:
		return minute + " " + hour + " * * " + c.expr
	default:
		return minute + " " + hour + " * * *"
	}
}

// derive builds the seven-field expression. Out-of-range minute and hour
// values clamp to 0 rather than erroring; the scheduler's trigger syntax
// tolerates them.
func (c *Calendar) derive() string {
	minute := strconv.Itoa(clamp(c.anchor.Minute(), 59))
	hour := strconv.Itoa(clamp(c.anchor.Hour(), 23))

	var fields []string
	switch c.interval {
	case Minutely:
		fields = []string{"0", "*", "*", "*", "*", "?"}
	case Hourly:
		fields = []string{"0", minute, "*", "*", "*", "?"}
	case Monthly:
		fields = []string{"0", minute, hour, c.expr, "*", "?"}
	case Weekly:
		fields = []string{"0", minute, hour, "?", "*", c.expr}
	case Daily, Backfill:
		fields = []string{"0", minute, hour, "?", "*", "MON-SUN"}
	default:
		fields = []string{"0", minute, hour, "*", "*", "?"}
	}

	if c.year != 0 {
		fields = append(fields, strconv.Itoa(c.year))
	}
	return strings.Join(fields, " ")
}

// clamp returns v when it lies in [0, max], else 0.
func clamp(v, max int) int {
	if v < 0 || v > max {
		return 0
	}
	return v
}
