package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qa-reports-api/internal/models"
)

func TestPhotoRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPhotoRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO photos")).
		WithArgs(int64(4), "safety", "exits", "gcs:reports/4/a.jpg", "a.jpg", "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(21)))

	photo := &models.Photo{ReportID: 4, SectionKey: "safety", ItemKey: "exits", StorageRef: models.RemoteRef("reports/4/a.jpg"), Filename: "a.jpg"}
	require.NoError(t, repo.Create(context.Background(), photo))
	assert.Equal(t, int64(21), photo.ID)
	assert.Equal(t, models.TierRemote, photo.Tier())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPhotoRepositoryListByReport(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPhotoRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM photos WHERE report_id = $1 ORDER BY id ASC")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "report_id", "section_key", "item_key", "storage_ref", "filename", "caption", "created_at"}).
			AddRow(int64(1), int64(4), "general", "", "local:4/x.png", "x.png", "front door", time.Now()))

	photos, err := repo.ListByReport(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, models.TierLocal, photos[0].Tier())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPhotoRepositoryUpdateAndDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPhotoRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE photos SET section_key = $2, item_key = $3, caption = $4 WHERE id = $1")).
		WithArgs(int64(8), "grounds", "", "after rain").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM photos WHERE id = $1")).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Update(context.Background(), &models.Photo{ID: 8, SectionKey: "grounds", Caption: "after rain"}))
	assert.ErrorIs(t, repo.Delete(context.Background(), 9), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
