package bunstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/adwire/conveyor/id"
	"github.com/adwire/conveyor/workitem"
)

// ── Work-item model ───────────────────────────────────────────────

// itemModel backs both the pending queue and the processed history; the
// two tables share one shape, only the table name differs per query.
type itemModel struct {
	bun.BaseModel `bun:"table:conveyor_items"`

	ID            string              `bun:"id,pk"`
	BatchID       string              `bun:"batch_id"`
	SourceID      string              `bun:"source_id,notnull"`
	IntegrationID string              `bun:"integration_id,notnull"`
	EntityID      string              `bun:"entity_id,notnull"`
	FileName      string              `bun:"file_name,notnull"`
	SourceFile    string              `bun:"source_file,notnull"`
	FileDate      time.Time           `bun:"file_date,notnull"`
	FileHour      *int                `bun:"file_hour"`
	Step          string              `bun:"step,notnull"`
	Status        string              `bun:"status,notnull,default:'pending'"`
	Size          int64               `bun:"size,notnull,default:0"`
	Files         []workitem.FileItem `bun:"files,type:jsonb"`
	CreatedAt     time.Time           `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time           `bun:"updated_at,notnull,default:current_timestamp"`
}

func toItemModel(it *workitem.Item) *itemModel {
	return &itemModel{
		ID:            it.ID.String(),
		BatchID:       it.BatchID,
		SourceID:      it.SourceID,
		IntegrationID: it.IntegrationID,
		EntityID:      it.EntityID,
		FileName:      it.FileName,
		SourceFile:    it.SourceFile,
		FileDate:      it.FileDate,
		FileHour:      it.FileHour,
		Step:          it.Step,
		Status:        string(it.Status),
		Size:          it.Size,
		Files:         it.Files,
		CreatedAt:     it.CreatedAt,
		UpdatedAt:     it.UpdatedAt,
	}
}

func fromItemModel(m *itemModel) (*workitem.Item, error) {
	parsedID, err := id.ParseItemID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("conveyor/bun: parse item id %q: %w", m.ID, err)
	}

	return &workitem.Item{
		ID:            parsedID,
		BatchID:       m.BatchID,
		SourceID:      m.SourceID,
		IntegrationID: m.IntegrationID,
		EntityID:      m.EntityID,
		FileName:      m.FileName,
		SourceFile:    m.SourceFile,
		FileDate:      m.FileDate,
		FileHour:      m.FileHour,
		Step:          m.Step,
		Status:        workitem.Status(m.Status),
		Size:          m.Size,
		Files:         m.Files,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}
