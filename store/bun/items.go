package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/adwire/conveyor"
	"github.com/adwire/conveyor/id"
	"github.com/adwire/conveyor/workitem"
)

// CreateItem persists a newly discovered work item.
func (s *Store) CreateItem(ctx context.Context, it *workitem.Item) error {
	m := toItemModel(it)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return conveyor.ErrItemAlreadyExists
		}
		return fmt.Errorf("conveyor/bun: create item: %w", err)
	}
	return nil
}

// GetItem retrieves a work item by id.
func (s *Store) GetItem(ctx context.Context, itemID id.ItemID) (*workitem.Item, error) {
	m := new(itemModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", itemID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, conveyor.ErrItemNotFound
		}
		return nil, fmt.Errorf("conveyor/bun: get item: %w", err)
	}
	return fromItemModel(m)
}

// UpdateItem persists changes to an existing work item.
func (s *Store) UpdateItem(ctx context.Context, it *workitem.Item) error {
	m := toItemModel(it)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().Model(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("conveyor/bun: update item: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return conveyor.ErrItemNotFound
	}
	return nil
}

// UpdateStatus transitions a work item's status by primary key.
func (s *Store) UpdateStatus(ctx context.Context, itemID id.ItemID, status workitem.Status) error {
	res, err := s.db.NewUpdate().
		Model((*itemModel)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = NOW()").
		Where("id = ?", itemID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("conveyor/bun: update item status: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return conveyor.ErrItemNotFound
	}
	return nil
}

// DeleteItem removes a work item by id.
func (s *Store) DeleteItem(ctx context.Context, itemID id.ItemID) error {
	res, err := s.db.NewDelete().
		Model((*itemModel)(nil)).
		Where("id = ?", itemID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("conveyor/bun: delete item: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return conveyor.ErrItemNotFound
	}
	return nil
}

// TopPending returns up to limit Pending or Running items for the given
// source scoped to one step, in discovery order. Item ids are K-sortable,
// so ordering by id is discovery order. A limit of zero means no limit.
func (s *Store) TopPending(ctx context.Context, sourceID, step string, limit int) ([]*workitem.Item, error) {
	q := s.db.NewSelect().
		Model((*[]itemModel)(nil)).
		Where("status IN (?, ?)", string(workitem.StatusPending), string(workitem.StatusRunning)).
		Order("id ASC")
	if sourceID != "" {
		q = q.Where("source_id = ?", sourceID)
	}
	if step != "" {
		q = q.Where("step = ?", step)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var models []itemModel
	if err := q.Scan(ctx, &models); err != nil {
		return nil, fmt.Errorf("conveyor/bun: top pending: %w", err)
	}
	return convertItems(models)
}

// ProcessedHistory returns every historically processed item for an
// integration, most recently updated first.
func (s *Store) ProcessedHistory(ctx context.Context, integrationID string) ([]*workitem.Item, error) {
	q := s.db.NewSelect().
		Model((*[]itemModel)(nil)).
		ModelTableExpr("conveyor_item_history AS item_model").
		Order("updated_at DESC")
	if integrationID != "" {
		q = q.Where("integration_id = ?", integrationID)
	}

	var models []itemModel
	if err := q.Scan(ctx, &models); err != nil {
		return nil, fmt.Errorf("conveyor/bun: processed history: %w", err)
	}
	return convertItems(models)
}

// ArchiveItem records a completed item into the processed history and
// removes it from the pending queue, atomically.
func (s *Store) ArchiveItem(ctx context.Context, it *workitem.Item) error {
	m := toItemModel(it)
	m.UpdatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("conveyor/bun: archive begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.NewInsert().
		Model(m).
		ModelTableExpr("conveyor_item_history").
		On("CONFLICT (id) DO UPDATE").
		Set("status = EXCLUDED.status, updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("conveyor/bun: archive insert: %w", err)
	}

	if _, err := tx.NewDelete().
		Model((*itemModel)(nil)).
		Where("id = ?", m.ID).
		Exec(ctx); err != nil {
		return fmt.Errorf("conveyor/bun: archive delete: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("conveyor/bun: archive commit: %w", err)
	}
	return nil
}

func convertItems(models []itemModel) ([]*workitem.Item, error) {
	items := make([]*workitem.Item, 0, len(models))
	for i := range models {
		it, err := fromItemModel(&models[i])
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}
