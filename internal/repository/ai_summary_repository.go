package repository

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qa-reports-api/internal/models"
)

// AISummaryRepository stores one generated summary per report.
type AISummaryRepository struct {
	db *sqlx.DB
}

// NewAISummaryRepository constructs the repository.
func NewAISummaryRepository(db *sqlx.DB) *AISummaryRepository {
	return &AISummaryRepository{db: db}
}

// GetByReport loads the summary of a report. Returns sql.ErrNoRows when none was generated.
func (r *AISummaryRepository) GetByReport(ctx context.Context, reportID int64) (*models.AISummary, error) {
	const query = `SELECT report_id, executive_summary, issues_json, poi_json, comparison_json, generated_at
	FROM ai_summaries WHERE report_id = $1`
	var summary models.AISummary
	if err := r.db.GetContext(ctx, &summary, query, reportID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get ai summary: %w", err)
	}
	summary.Plan = []models.RemediationItem{}
	if plan := bytes.TrimSpace(summary.PlanJSON); len(plan) > 0 && plan[0] == '[' {
		if err := json.Unmarshal(summary.PlanJSON, &summary.Plan); err != nil {
			return nil, fmt.Errorf("decode remediation plan: %w", err)
		}
	}
	return &summary, nil
}

// Upsert replaces the summary of a report.
func (r *AISummaryRepository) Upsert(ctx context.Context, summary *models.AISummary) error {
	plan := summary.Plan
	if plan == nil {
		plan = []models.RemediationItem{}
	}
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode remediation plan: %w", err)
	}
	summary.PlanJSON = planJSON

	const query = `INSERT INTO ai_summaries (report_id, executive_summary, issues_json, poi_json, comparison_json, generated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (report_id) DO UPDATE SET executive_summary = EXCLUDED.executive_summary, issues_json = EXCLUDED.issues_json,
	poi_json = EXCLUDED.poi_json, comparison_json = EXCLUDED.comparison_json, generated_at = EXCLUDED.generated_at`
	if _, err := r.db.ExecContext(ctx, query, summary.ReportID, summary.ExecutiveSummary,
		nullJSON(summary.Issues), []byte(planJSON), nullJSON(summary.Comparison), summary.GeneratedAt,
	); err != nil {
		return fmt.Errorf("upsert ai summary: %w", err)
	}
	return nil
}
