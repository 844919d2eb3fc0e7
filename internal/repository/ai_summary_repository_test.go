package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qa-reports-api/internal/models"
)

var summaryColumns = []string{"report_id", "executive_summary", "issues_json", "poi_json", "comparison_json", "generated_at"}

func TestAISummaryGetDecodesPlan(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAISummaryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM ai_summaries WHERE report_id = $1")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(summaryColumns).
			AddRow(int64(4), "Solid visit.", []byte(`[]`), []byte(`[{"priority":"high","timeline":"30 days","action":"Fix fence"}]`), nil, time.Now()))

	summary, err := repo.GetByReport(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, summary.Plan, 1)
	assert.Equal(t, "Fix fence", summary.Plan[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAISummaryGetToleratesNullPlan(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAISummaryRepository(db)

	mock.ExpectQuery("FROM ai_summaries").
		WillReturnRows(sqlmock.NewRows(summaryColumns).AddRow(int64(4), "", nil, nil, nil, time.Now()))

	summary, err := repo.GetByReport(context.Background(), 4)
	require.NoError(t, err)
	assert.NotNil(t, summary.Plan)
	assert.Empty(t, summary.Plan)
}

func TestAISummaryGetMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAISummaryRepository(db)

	mock.ExpectQuery("FROM ai_summaries").WillReturnRows(sqlmock.NewRows(summaryColumns))

	_, err := repo.GetByReport(context.Background(), 4)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAISummaryUpsertEncodesPlan(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAISummaryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (report_id)")).
		WithArgs(int64(4), "Summary", []byte(`["exits blocked"]`), []byte(`[{"priority":"ongoing","timeline":"","action":"Clear exits"}]`), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &models.AISummary{
		ReportID:         4,
		ExecutiveSummary: "Summary",
		Issues:           types.JSONText(`["exits blocked"]`),
		Plan:             []models.RemediationItem{{Priority: models.DefaultPlanPriority, Action: "Clear exits"}},
		GeneratedAt:      time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
