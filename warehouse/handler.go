package warehouse

import (
	"context"

	"github.com/adwire/conveyor/engine"
	"github.com/adwire/conveyor/run"
	"github.com/adwire/conveyor/workitem"
)

// Handler adapts a Loader into the engine's item handler for the data-load
// step. Budget cancellation surfaces as Warn so the item stays Pending;
// anything else the warehouse rejects is a Fail.
func Handler(loader Loader) engine.ItemHandler {
	return func(ctx context.Context, r *run.Run, it *workitem.Item) (run.Outcome, error) {
		if err := ctx.Err(); err != nil {
			return run.Warn, err
		}
		if err := loader.Load(ctx, it); err != nil {
			if ctx.Err() != nil {
				return run.Warn, err
			}
			return run.Fail, err
		}
		return run.Continue, nil
	}
}
