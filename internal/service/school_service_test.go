package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qa-reports-api/internal/dto"
	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

type schoolStoreStub struct {
	nextID  int64
	schools map[int64]models.School
	reports map[int64]int
}

func newSchoolStoreStub() *schoolStoreStub {
	return &schoolStoreStub{schools: map[int64]models.School{}, reports: map[int64]int{}}
}

func (s *schoolStoreStub) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error) {
	out := []models.School{}
	for _, school := range s.schools {
		if filter.Status != "" && string(school.Status) != filter.Status {
			continue
		}
		out = append(out, school)
	}
	return out, len(out), nil
}

func (s *schoolStoreStub) GetByID(ctx context.Context, id int64) (*models.School, error) {
	school, ok := s.schools[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &school, nil
}

func (s *schoolStoreStub) Create(ctx context.Context, school *models.School) error {
	s.nextID++
	school.ID = s.nextID
	s.schools[school.ID] = *school
	return nil
}

func (s *schoolStoreStub) Update(ctx context.Context, school *models.School) error {
	if _, ok := s.schools[school.ID]; !ok {
		return sql.ErrNoRows
	}
	s.schools[school.ID] = *school
	return nil
}

func (s *schoolStoreStub) Delete(ctx context.Context, id int64) error {
	if _, ok := s.schools[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.schools, id)
	return nil
}

func (s *schoolStoreStub) CountReports(ctx context.Context, id int64) (int, error) {
	return s.reports[id], nil
}

func TestSchoolServiceCreateDefaultsToActive(t *testing.T) {
	repo := newSchoolStoreStub()
	audit := &auditRecorder{}
	svc := NewSchoolService(repo, audit, nil, nil, nil)
	folder := " /qa/maple/ "

	school, err := svc.Create(context.Background(), dto.CreateSchoolRequest{
		Name:            "  Maple Street ",
		Region:          "North",
		Tier:            2,
		StorageFolder:   &folder,
		ClassroomConfig: json.RawMessage(`{"infant": 2}`),
	}, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, "Maple Street", school.Name)
	assert.Equal(t, models.SchoolStatusActive, school.Status)
	require.NotNil(t, school.StorageFolder)
	assert.Equal(t, "qa/maple", *school.StorageFolder)
	assert.JSONEq(t, `{"infant": 2}`, string(school.ClassroomConfig))
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionSchoolCreate, audit.logs[0].Action)
}

func TestSchoolServiceCreateValidation(t *testing.T) {
	svc := NewSchoolService(newSchoolStoreStub(), nil, nil, nil, nil)
	bad := "2024-13-01"

	_, err := svc.Create(context.Background(), dto.CreateSchoolRequest{Name: ""}, adminClaims)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))

	_, err = svc.Create(context.Background(), dto.CreateSchoolRequest{Name: "X", Status: "closed"}, adminClaims)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))

	_, err = svc.Create(context.Background(), dto.CreateSchoolRequest{Name: "X", AcquiredDate: &bad}, adminClaims)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))

	_, err = svc.Create(context.Background(), dto.CreateSchoolRequest{Name: "X", ClassroomConfig: json.RawMessage(`{broken`)}, adminClaims)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}

func TestSchoolServiceUpdateIsPartial(t *testing.T) {
	repo := newSchoolStoreStub()
	repo.schools[1] = models.School{ID: 1, Name: "Maple", Region: "North", Status: models.SchoolStatusActive}
	svc := NewSchoolService(repo, nil, nil, nil, nil)
	inactive := "inactive"

	school, err := svc.Update(context.Background(), 1, dto.UpdateSchoolRequest{Status: &inactive}, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.SchoolStatusInactive, school.Status)
	assert.Equal(t, "Maple", school.Name)
	assert.Equal(t, "North", school.Region)

	_, err = svc.Update(context.Background(), 99, dto.UpdateSchoolRequest{Status: &inactive}, adminClaims)
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(err))
}

func TestSchoolServiceDeleteRefusesSchoolsWithReports(t *testing.T) {
	repo := newSchoolStoreStub()
	repo.schools[1] = models.School{ID: 1, Name: "Maple", Status: models.SchoolStatusActive}
	repo.schools[2] = models.School{ID: 2, Name: "Oak", Status: models.SchoolStatusActive}
	repo.reports[1] = 3
	svc := NewSchoolService(repo, nil, nil, nil, nil)

	err := svc.Delete(context.Background(), 1, adminClaims)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, 3, appErr.Details["reports_count"])
	assert.Contains(t, repo.schools, int64(1))

	require.NoError(t, svc.Delete(context.Background(), 2, adminClaims))
	assert.NotContains(t, repo.schools, int64(2))
}
