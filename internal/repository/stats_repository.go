package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qa-reports-api/internal/models"
)

// StatsRepository runs the aggregate queries behind the dashboard.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository constructs the repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// CountSchools counts active schools.
func (r *StatsRepository) CountSchools(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM schools WHERE status = 'active'`); err != nil {
		return 0, fmt.Errorf("count schools: %w", err)
	}
	return n, nil
}

// OverdueSchools returns active schools never visited or last visited more than overdueDays ago.
func (r *StatsRepository) OverdueSchools(ctx context.Context, overdueDays, limit int) ([]models.OverdueSchool, int, error) {
	const where = `FROM schools s
	LEFT JOIN (SELECT school_id, MAX(inspection_date) AS last_visit FROM reports GROUP BY school_id) v ON v.school_id = s.id
	WHERE s.status = 'active' AND (v.last_visit IS NULL OR v.last_visit < CURRENT_DATE - $1::int)`
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) `+where, overdueDays); err != nil {
		return nil, 0, fmt.Errorf("count overdue schools: %w", err)
	}
	query := `SELECT s.id, s.name, to_char(v.last_visit, 'YYYY-MM-DD') AS last_inspection_date ` + where +
		fmt.Sprintf(` ORDER BY v.last_visit ASC NULLS FIRST, s.name ASC LIMIT %d`, limit)
	var schools []models.OverdueSchool
	if err := r.db.SelectContext(ctx, &schools, query, overdueDays); err != nil {
		return nil, 0, fmt.Errorf("list overdue schools: %w", err)
	}
	return schools, total, nil
}

// Compliance counts approved reports per rating.
func (r *StatsRepository) Compliance(ctx context.Context) (models.ComplianceBreakdown, error) {
	const query = `SELECT
		COUNT(*) FILTER (WHERE overall_rating = 'exceeds') AS exceeds,
		COUNT(*) FILTER (WHERE overall_rating = 'meets') AS meets,
		COUNT(*) FILTER (WHERE overall_rating = 'needs_improvement') AS needs_improvement
	FROM reports WHERE status = 'approved'`
	var out models.ComplianceBreakdown
	if err := r.db.GetContext(ctx, &out, query); err != nil {
		return out, fmt.Errorf("compliance breakdown: %w", err)
	}
	return out, nil
}

// CompliantSchools counts schools whose latest approved report meets or exceeds expectations.
func (r *StatsRepository) CompliantSchools(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM (
		SELECT DISTINCT ON (school_id) school_id, overall_rating FROM reports
		WHERE status = 'approved' ORDER BY school_id, inspection_date DESC, id DESC
	) latest WHERE overall_rating IN ('exceeds', 'meets')`
	var n int
	if err := r.db.GetContext(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("count compliant schools: %w", err)
	}
	return n, nil
}

// CountByAuthor counts reports written by a user.
func (r *StatsRepository) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM reports WHERE author_id = $1`, authorID); err != nil {
		return 0, fmt.Errorf("count author reports: %w", err)
	}
	return n, nil
}

// Trend averages rating scores per month over the last months.
func (r *StatsRepository) Trend(ctx context.Context, months int) ([]models.TrendPoint, error) {
	const query = `SELECT to_char(date_trunc('month', inspection_date), 'YYYY-MM') AS month,
		AVG(CASE overall_rating WHEN 'exceeds' THEN 100 WHEN 'meets' THEN 85 WHEN 'needs_improvement' THEN 60 ELSE 40 END)::float8 AS score,
		COUNT(*) AS count
	FROM reports
	WHERE overall_rating <> 'pending' AND inspection_date >= date_trunc('month', CURRENT_DATE) - make_interval(months => $1 - 1)
	GROUP BY 1 ORDER BY 1 ASC`
	var points []models.TrendPoint
	if err := r.db.SelectContext(ctx, &points, query, months); err != nil {
		return nil, fmt.Errorf("rating trend: %w", err)
	}
	return points, nil
}

// CriticalReports lists reports rated needs_improvement within the last days.
func (r *StatsRepository) CriticalReports(ctx context.Context, days, limit int) ([]models.StaleReport, error) {
	query := fmt.Sprintf(`SELECT r.id, r.school_id, COALESCE(s.name, '') AS school_name, to_char(r.inspection_date, 'YYYY-MM-DD') AS inspection_date
	FROM reports r LEFT JOIN schools s ON s.id = r.school_id
	WHERE r.overall_rating = 'needs_improvement' AND r.inspection_date >= CURRENT_DATE - $1::int
	ORDER BY r.inspection_date DESC LIMIT %d`, limit)
	var rows []models.StaleReport
	if err := r.db.SelectContext(ctx, &rows, query, days); err != nil {
		return nil, fmt.Errorf("critical reports: %w", err)
	}
	return rows, nil
}

// StaleDrafts lists a user's drafts untouched for more than days.
func (r *StatsRepository) StaleDrafts(ctx context.Context, authorID string, days, limit int) ([]models.StaleReport, error) {
	query := fmt.Sprintf(`SELECT r.id, r.school_id, COALESCE(s.name, '') AS school_name, to_char(r.inspection_date, 'YYYY-MM-DD') AS inspection_date
	FROM reports r LEFT JOIN schools s ON s.id = r.school_id
	WHERE r.author_id = $1 AND r.status = 'draft' AND r.updated_at < NOW() - make_interval(days => $2)
	ORDER BY r.updated_at ASC LIMIT %d`, limit)
	var rows []models.StaleReport
	if err := r.db.SelectContext(ctx, &rows, query, authorID, days); err != nil {
		return nil, fmt.Errorf("stale drafts: %w", err)
	}
	return rows, nil
}
