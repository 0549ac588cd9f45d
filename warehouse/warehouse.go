// Package warehouse executes data-load statements against the analytics
// warehouse for items that reached the load step. Snowflake and Redshift
// are both driven through database/sql; the drivers are registered by
// blank import and selected by name at open time.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"    // Redshift speaks the Postgres protocol.
	_ "github.com/snowflakedb/gosnowflake" // driver "snowflake"

	"github.com/adwire/conveyor/backoff"
	"github.com/adwire/conveyor/retry"
	"github.com/adwire/conveyor/workitem"
)

// Driver names accepted by Open.
const (
	DriverSnowflake = "snowflake"
	DriverRedshift  = "pgx"
)

// Open connects to a warehouse with retries. Warehouses routinely sit
// behind resuming clusters, so the first ping after idle can take a few
// attempts.
func Open(ctx context.Context, driverName, dsn string) (*sql.DB, error) {
	op := func(ctx context.Context) (*sql.DB, error) {
		db, err := sql.Open(driverName, dsn)
		if err != nil {
			return nil, fmt.Errorf("warehouse: open %s: %w", driverName, err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("warehouse: ping %s: %w", driverName, err)
		}
		return db, nil
	}
	ex := retry.NewExecutor(backoff.NewFixed(2*time.Second, 5), 2*time.Minute,
		retry.WithLabel("warehouse-connect"))
	return retry.Do(ctx, ex, op)
}

// Loader loads one completed item's data into the warehouse.
type Loader interface {
	Load(ctx context.Context, it *workitem.Item) error
}

// ScriptLoader runs a templated SQL statement per item. The script carries
// item-field tokens that are expanded before execution; COPY statements
// take file locations in the statement text, not as bind parameters.
type ScriptLoader struct {
	db     *sql.DB
	script string
	logger *slog.Logger
}

// Compile-time interface check.
var _ Loader = (*ScriptLoader)(nil)

// Option configures a ScriptLoader.
type Option func(*ScriptLoader)

// WithLogger sets the loader's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *ScriptLoader) { l.logger = logger }
}

// NewScriptLoader creates a loader around an open warehouse connection.
func NewScriptLoader(db *sql.DB, script string, opts ...Option) *ScriptLoader {
	l := &ScriptLoader{db: db, script: script, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load expands the script for the item and executes it.
func (l *ScriptLoader) Load(ctx context.Context, it *workitem.Item) error {
	stmt := Expand(l.script, it)
	started := time.Now()
	if _, err := l.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("warehouse: load item %s: %w", it.ID, err)
	}
	l.logger.Info("item loaded",
		slog.String("item_id", it.ID.String()),
		slog.String("entity_id", it.EntityID),
		slog.Duration("took", time.Since(started)),
	)
	return nil
}

// Expand substitutes item-field tokens in a load script. Unknown tokens
// are left verbatim so a typo fails loudly at the warehouse rather than
// silently loading the wrong slice.
//
// Supported tokens: $FILE_NAME, $SOURCE_FILE, $ENTITY_ID, $SOURCE_ID,
// $INTEGRATION_ID, $BATCH_ID, $FILE_DATE (YYYY-MM-DD), $FILE_HOUR.
func Expand(script string, it *workitem.Item) string {
	hour := ""
	if it.FileHour != nil {
		hour = fmt.Sprintf("%d", *it.FileHour)
	}
	r := strings.NewReplacer(
		"$FILE_NAME", it.FileName,
		"$SOURCE_FILE", it.SourceFile,
		"$ENTITY_ID", it.EntityID,
		"$SOURCE_ID", it.SourceID,
		"$INTEGRATION_ID", it.IntegrationID,
		"$BATCH_ID", it.BatchID,
		"$FILE_DATE", it.FileDate.UTC().Format("2006-01-02"),
		"$FILE_HOUR", hour,
	)
	return r.Replace(script)
}
