package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qa-reports-api/internal/models"
)

// ErrVersionMismatch is returned when a compare-and-swap update loses the race.
var ErrVersionMismatch = errors.New("report version changed")

const reportSelect = `SELECT r.id, r.school_id, r.author_id, r.report_type,
       to_char(r.inspection_date, 'YYYY-MM-DD') AS inspection_date, r.previous_report_id, r.overall_rating,
       r.status, r.closing_notes, r.version_id, r.updated_by, r.created_at, r.updated_at,
       COALESCE(s.name, '') AS school_name, COALESCE(u.full_name, '') AS author_name
FROM reports r
LEFT JOIN schools s ON s.id = r.school_id
LEFT JOIN users u ON u.id = r.author_id`

var reportSortColumns = map[string]string{
	"date":            "r.inspection_date",
	"inspection_date": "r.inspection_date",
	"created_at":      "r.created_at",
	"updated_at":      "r.updated_at",
	"status":          "r.status",
	"report_type":     "r.report_type",
	"school_name":     "s.name",
	"author_name":     "u.full_name",
	"id":              "r.id",
}

// ReportRepository persists inspection reports.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// List returns reports matching the filter along with the total count.
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	var conditions []string
	var args []interface{}

	if filter.SchoolID > 0 {
		args = append(args, filter.SchoolID)
		conditions = append(conditions, fmt.Sprintf("r.school_id = $%d", len(args)))
	}
	if filter.AuthorID != "" {
		args = append(args, filter.AuthorID)
		conditions = append(conditions, fmt.Sprintf("r.author_id = $%d", len(args)))
	}
	if filter.ReportType != "" {
		args = append(args, filter.ReportType)
		conditions = append(conditions, fmt.Sprintf("r.report_type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		n := len(args)
		clause := fmt.Sprintf("(LOWER(s.name) LIKE $%d OR LOWER(u.full_name) LIKE $%d OR LOWER(r.report_type) LIKE $%d OR to_char(r.inspection_date, 'YYYY-MM-DD') LIKE $%d", n, n, n, n)
		if id, err := strconv.ParseInt(search, 10, 64); err == nil {
			args = append(args, id)
			clause += fmt.Sprintf(" OR r.id = $%d", len(args))
		}
		conditions = append(conditions, clause+")")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := `SELECT COUNT(*) FROM reports r
LEFT JOIN schools s ON s.id = r.school_id
LEFT JOIN users u ON u.id = r.author_id` + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	sortColumn, ok := reportSortColumns[filter.SortBy]
	if !ok {
		sortColumn = "r.inspection_date"
	}
	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		sortOrder = "ASC"
	}
	page, size := clampPage(filter.Page, filter.PageSize, 50, 200)

	query := fmt.Sprintf("%s%s ORDER BY %s %s, r.id DESC LIMIT %d OFFSET %d",
		reportSelect, where, sortColumn, sortOrder, size, (page-1)*size)
	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	return reports, total, nil
}

// GetByID fetches one report. Returns sql.ErrNoRows when missing.
func (r *ReportRepository) GetByID(ctx context.Context, id int64) (*models.Report, error) {
	var report models.Report
	if err := r.db.GetContext(ctx, &report, reportSelect+" WHERE r.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	return &report, nil
}

// LatestApproved returns the most recent approved report of a school, or sql.ErrNoRows.
func (r *ReportRepository) LatestApproved(ctx context.Context, schoolID int64) (*models.Report, error) {
	query := reportSelect + ` WHERE r.school_id = $1 AND r.status = $2 ORDER BY r.inspection_date DESC, r.id DESC LIMIT 1`
	var report models.Report
	if err := r.db.GetContext(ctx, &report, query, schoolID, models.StatusApproved); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("latest approved report: %w", err)
	}
	return &report, nil
}

// ListBySchool returns the newest reports of a school.
func (r *ReportRepository) ListBySchool(ctx context.Context, schoolID int64, limit int) ([]models.Report, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	query := reportSelect + fmt.Sprintf(` WHERE r.school_id = $1 ORDER BY r.inspection_date DESC, r.id DESC LIMIT %d`, limit)
	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, query, schoolID); err != nil {
		return nil, fmt.Errorf("list school reports: %w", err)
	}
	return reports, nil
}

// Create inserts a report at version 1 together with its initial checklist
// responses. Nothing is stored if either write fails.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report, responses []models.ChecklistResponse) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create report: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	const query = `INSERT INTO reports (school_id, author_id, report_type, inspection_date, previous_report_id, overall_rating,
	status, closing_notes, version_id, updated_by, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`
	var id int64
	if err := tx.QueryRowxContext(ctx, query,
		report.SchoolID, report.AuthorID, report.ReportType, report.InspectionDate, report.PreviousReportID,
		report.OverallRating, report.Status, report.ClosingNotes, int64(1), report.UpdatedBy, now, now,
	).Scan(&id); err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := upsertResponses(ctx, tx, id, responses); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create report: %w", err)
	}
	report.ID, report.VersionID = id, 1
	report.CreatedAt, report.UpdatedAt = now, now
	return nil
}

// Update writes the report only if its stored version still equals expectedVersion, bumping
// the version by one, and upserts responses in the same transaction. On success the new
// version and timestamp are copied onto report.
func (r *ReportRepository) Update(ctx context.Context, report *models.Report, expectedVersion int64, responses []models.ChecklistResponse) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update report: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `UPDATE reports SET school_id = $3, report_type = $4, inspection_date = $5, previous_report_id = $6,
	overall_rating = $7, status = $8, closing_notes = $9, updated_by = $10,
	version_id = version_id + 1, updated_at = NOW()
	WHERE id = $1 AND version_id = $2
	RETURNING version_id, updated_at`
	var (
		version   int64
		updatedAt time.Time
	)
	err = tx.QueryRowxContext(ctx, query,
		report.ID, expectedVersion, report.SchoolID, report.ReportType, report.InspectionDate, report.PreviousReportID,
		report.OverallRating, report.Status, report.ClosingNotes, report.UpdatedBy,
	).Scan(&version, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrVersionMismatch
		}
		return fmt.Errorf("update report: %w", err)
	}
	if err := upsertResponses(ctx, tx, report.ID, responses); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update report: %w", err)
	}
	report.VersionID, report.UpdatedAt = version, updatedAt
	return nil
}

// Delete removes a report and everything it owns in one transaction.
func (r *ReportRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete report: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{
		`DELETE FROM checklist_responses WHERE report_id = $1`,
		`DELETE FROM photos WHERE report_id = $1`,
		`DELETE FROM ai_summaries WHERE report_id = $1`,
		`UPDATE reports SET previous_report_id = NULL WHERE previous_report_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("delete report children: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if err := requireAffected(res, "delete report"); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete report: %w", err)
	}
	return nil
}
