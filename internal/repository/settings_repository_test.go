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

func TestSettingsRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT key, value, type, updated_by, updated_at FROM settings ORDER BY key ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "type", "updated_by", "updated_at"}).
			AddRow(models.SettingCompanyName, "Acme Schools", "STRING", nil, time.Now()).
			AddRow(models.SettingEnableAI, "true", "BOOLEAN", "u1", time.Now()))

	settings, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, settings, 2)
	assert.Equal(t, models.SettingTypeBoolean, settings[1].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	mock.ExpectQuery("FROM settings WHERE key").WithArgs("gemini_api_key").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), models.SettingGeminiAPIKey)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSettingsRepositoryBulkUpsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO settings")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO settings")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.BulkUpsert(context.Background(), []models.Setting{
		{Key: models.SettingEnableAI, Value: "false", Type: models.SettingTypeBoolean},
		{Key: models.SettingGeminiAPIKey, Value: "secret", Type: models.SettingTypeSecret},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
