package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qa-reports-api/internal/models"
)

const schoolColumns = `s.id, s.name, s.location, s.region, s.tier,
       to_char(s.acquired_date, 'YYYY-MM-DD') AS acquired_date, s.status, s.storage_folder, s.classroom_config,
       to_char(s.last_inspection_date, 'YYYY-MM-DD') AS last_inspection_date, s.reports_count, s.created_at, s.updated_at`

var schoolSortColumns = map[string]string{
	"name":                 "s.name",
	"region":               "s.region",
	"tier":                 "s.tier",
	"status":               "s.status",
	"last_inspection_date": "s.last_inspection_date",
	"reports_count":        "s.reports_count",
	"created_at":           "s.created_at",
	"id":                   "s.id",
}

// SchoolRepository persists inspected sites.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs the repository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// List returns schools matching the filter along with the total count.
func (r *SchoolRepository) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)))
	}
	if filter.Region != "" {
		args = append(args, filter.Region)
		conditions = append(conditions, fmt.Sprintf("s.region = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.name) LIKE $%d OR LOWER(s.location) LIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM schools s" + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schools: %w", err)
	}

	sortColumn, ok := schoolSortColumns[filter.SortBy]
	if !ok {
		sortColumn = "s.name"
	}
	sortOrder := "ASC"
	if strings.EqualFold(filter.SortOrder, "desc") {
		sortOrder = "DESC"
	}
	page, size := clampPage(filter.Page, filter.PageSize, 100, 500)

	query := fmt.Sprintf("SELECT %s FROM schools s%s ORDER BY %s %s, s.id ASC LIMIT %d OFFSET %d",
		schoolColumns, where, sortColumn, sortOrder, size, (page-1)*size)
	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schools: %w", err)
	}
	return schools, total, nil
}

// GetByID fetches one school. Returns sql.ErrNoRows when missing.
func (r *SchoolRepository) GetByID(ctx context.Context, id int64) (*models.School, error) {
	query := "SELECT " + schoolColumns + " FROM schools s WHERE s.id = $1"
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get school: %w", err)
	}
	return &school, nil
}

// Create inserts a school and fills its generated fields.
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	now := time.Now().UTC()
	school.CreatedAt, school.UpdatedAt = now, now
	const query = `INSERT INTO schools (name, location, region, tier, acquired_date, status, storage_folder, classroom_config, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		school.Name, school.Location, school.Region, school.Tier, school.AcquiredDate, school.Status,
		school.StorageFolder, nullJSON(school.ClassroomConfig), school.CreatedAt, school.UpdatedAt,
	).Scan(&school.ID); err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}

// Update overwrites the editable columns of a school.
func (r *SchoolRepository) Update(ctx context.Context, school *models.School) error {
	school.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schools SET name = $2, location = $3, region = $4, tier = $5, acquired_date = $6, status = $7,
	storage_folder = $8, classroom_config = $9, updated_at = $10 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		school.ID, school.Name, school.Location, school.Region, school.Tier, school.AcquiredDate, school.Status,
		school.StorageFolder, nullJSON(school.ClassroomConfig), school.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update school: %w", err)
	}
	return requireAffected(res, "update school")
}

// Delete removes a school row.
func (r *SchoolRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schools WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete school: %w", err)
	}
	return requireAffected(res, "delete school")
}

// CountReports returns how many reports reference the school.
func (r *SchoolRepository) CountReports(ctx context.Context, id int64) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM reports WHERE school_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count school reports: %w", err)
	}
	return count, nil
}

// RefreshReportStats recomputes the denormalised report counters in a single statement.
func (r *SchoolRepository) RefreshReportStats(ctx context.Context, id int64) error {
	const query = `UPDATE schools SET
		reports_count = (SELECT COUNT(*) FROM reports WHERE school_id = $1),
		last_inspection_date = (SELECT MAX(inspection_date) FROM reports WHERE school_id = $1)
	WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("refresh school report stats: %w", err)
	}
	return nil
}
