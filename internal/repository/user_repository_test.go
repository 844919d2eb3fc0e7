package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qa-reports-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestFindUserByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "email", "full_name", "role", "active", "created_at", "updated_at"}).
		AddRow("u1", "ana@example.com", "Ana Inspector", string(models.RoleQAOfficer), true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, full_name, role, active, created_at, updated_at FROM users WHERE id = $1 LIMIT 1")).
		WithArgs("u1").
		WillReturnRows(rows)

	user, err := repo.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Inspector", user.FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUserByIDMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE id").WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &models.User{ID: "u1", Email: "ana@example.com", FullName: "Ana", Role: models.RoleQAOfficer, Active: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAuditLog(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, request_id,")).WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditLog{Action: models.AuditActionReportCreate, Resource: "report", RequestID: "req-9"}
	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditTrailFiltersAndCapsPage(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "action", "resource", "resource_id", "old_values", "new_values", "request_id", "ip_address", "user_agent", "created_at"}).
		AddRow("a1", "u1", models.AuditActionReportUpdate, "report", "7", []byte(`{"status":"DRAFT"}`), []byte(`{"status":"SUBMITTED"}`), "req-1", "", "", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs WHERE resource = $1 AND resource_id = $2 ORDER BY created_at DESC, id DESC LIMIT $3")).
		WithArgs("report", "7", maxAuditPage).
		WillReturnRows(rows)

	trail, err := repo.AuditTrail(context.Background(), models.AuditFilter{Resource: "report", ResourceID: "7", Limit: 5000})
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "req-1", trail[0].RequestID)
	assert.JSONEq(t, `{"status":"SUBMITTED"}`, string(trail[0].After))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditTrailWithoutFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT $1")).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	trail, err := repo.AuditTrail(context.Background(), models.AuditFilter{Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, trail)
	assert.NoError(t, mock.ExpectationsWereMet())
}
