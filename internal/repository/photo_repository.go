package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qa-reports-api/internal/models"
)

const photoColumns = `id, report_id, section_key, item_key, storage_ref, filename, caption, created_at`

// PhotoRepository persists photo records. Bytes live in the storage tiers.
type PhotoRepository struct {
	db *sqlx.DB
}

// NewPhotoRepository constructs the repository.
func NewPhotoRepository(db *sqlx.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// Create inserts a photo record.
func (r *PhotoRepository) Create(ctx context.Context, photo *models.Photo) error {
	photo.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO photos (report_id, section_key, item_key, storage_ref, filename, caption, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		photo.ReportID, photo.SectionKey, photo.ItemKey, photo.StorageRef, photo.Filename, photo.Caption, photo.CreatedAt,
	).Scan(&photo.ID); err != nil {
		return fmt.Errorf("create photo: %w", err)
	}
	return nil
}

// GetByID fetches a photo. Returns sql.ErrNoRows when missing.
func (r *PhotoRepository) GetByID(ctx context.Context, id int64) (*models.Photo, error) {
	var photo models.Photo
	if err := r.db.GetContext(ctx, &photo, "SELECT "+photoColumns+" FROM photos WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return &photo, nil
}

// ListByReport returns a report's photos in upload order.
func (r *PhotoRepository) ListByReport(ctx context.Context, reportID int64) ([]models.Photo, error) {
	var photos []models.Photo
	if err := r.db.SelectContext(ctx, &photos, "SELECT "+photoColumns+" FROM photos WHERE report_id = $1 ORDER BY id ASC", reportID); err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	return photos, nil
}

// Update changes the caption and grouping of a photo.
func (r *PhotoRepository) Update(ctx context.Context, photo *models.Photo) error {
	res, err := r.db.ExecContext(ctx, `UPDATE photos SET section_key = $2, item_key = $3, caption = $4 WHERE id = $1`,
		photo.ID, photo.SectionKey, photo.ItemKey, photo.Caption)
	if err != nil {
		return fmt.Errorf("update photo: %w", err)
	}
	return requireAffected(res, "update photo")
}

// Delete removes a photo record.
func (r *PhotoRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	return requireAffected(res, "delete photo")
}
