package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qa-reports-api/internal/models"
)

// ChecklistRepository stores checklist answers keyed by (report, section, item).
type ChecklistRepository struct {
	db *sqlx.DB
}

// NewChecklistRepository constructs the repository.
func NewChecklistRepository(db *sqlx.DB) *ChecklistRepository {
	return &ChecklistRepository{db: db}
}

// Upsert writes every row in one transaction. Keys absent from rows are left untouched.
func (r *ChecklistRepository) Upsert(ctx context.Context, reportID int64, rows []models.ChecklistResponse) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checklist upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := upsertResponses(ctx, tx, reportID, rows); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checklist upsert: %w", err)
	}
	return nil
}

// upsertResponses runs inside the caller's transaction so report writes and
// their checklist rows commit together.
func upsertResponses(ctx context.Context, tx sqlx.ExecerContext, reportID int64, rows []models.ChecklistResponse) error {
	const query = `INSERT INTO checklist_responses (report_id, section_key, item_key, value, notes, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (report_id, section_key, item_key)
	DO UPDATE SET value = EXCLUDED.value, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, query, reportID, row.SectionKey, row.ItemKey, row.Value, row.Notes, now); err != nil {
			return fmt.Errorf("upsert checklist response %s/%s: %w", row.SectionKey, row.ItemKey, err)
		}
	}
	return nil
}

// ListByReport returns responses in insertion order so sections keep their first-seen order.
func (r *ChecklistRepository) ListByReport(ctx context.Context, reportID int64) ([]models.ChecklistResponse, error) {
	const query = `SELECT id, report_id, section_key, item_key, value, notes, updated_at
	FROM checklist_responses WHERE report_id = $1 ORDER BY id ASC`
	var rows []models.ChecklistResponse
	if err := r.db.SelectContext(ctx, &rows, query, reportID); err != nil {
		return nil, fmt.Errorf("list checklist responses: %w", err)
	}
	return rows, nil
}
