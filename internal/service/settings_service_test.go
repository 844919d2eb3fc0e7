package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qa-reports-api/internal/dto"
	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

type settingsRepoStub struct {
	items map[string]models.Setting
	err   error
}

func (s *settingsRepoStub) List(ctx context.Context) ([]models.Setting, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Setting, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	return out, nil
}

func (s *settingsRepoStub) Get(ctx context.Context, key string) (*models.Setting, error) {
	if s.err != nil {
		return nil, s.err
	}
	if item, ok := s.items[key]; ok {
		return &item, nil
	}
	return nil, sql.ErrNoRows
}

func (s *settingsRepoStub) BulkUpsert(ctx context.Context, settings []models.Setting) error {
	if s.err != nil {
		return s.err
	}
	if s.items == nil {
		s.items = make(map[string]models.Setting)
	}
	for _, item := range settings {
		s.items[item.Key] = item
	}
	return nil
}

type auditRecorder struct {
	logs []models.AuditLog
}

func (a *auditRecorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, *log)
	return nil
}

func TestSettingsServiceListMasksSecrets(t *testing.T) {
	repo := &settingsRepoStub{items: map[string]models.Setting{
		models.SettingGeminiAPIKey: {Key: models.SettingGeminiAPIKey, Value: "AIzaSecretValue1234", Type: models.SettingTypeSecret},
	}}
	svc := NewSettingsService(repo, nil, nil, nil, SettingsServiceConfig{})

	items, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, len(allowedSettingKeys))

	byKey := map[string]dto.SettingItem{}
	for _, item := range items {
		byKey[item.Key] = item
	}
	assert.Equal(t, "********1234", byKey[models.SettingGeminiAPIKey].Value)
	assert.True(t, byKey[models.SettingGeminiAPIKey].Masked)
	assert.Equal(t, "true", byKey[models.SettingEnableAI].Value)
	assert.Equal(t, "", byKey[models.SettingGoogleClientSecret].Value)
	assert.False(t, byKey[models.SettingGoogleClientSecret].Masked)
}

func TestSettingsServiceValueFallsBackToDefaults(t *testing.T) {
	repo := &settingsRepoStub{}
	svc := NewSettingsService(repo, nil, nil, nil, SettingsServiceConfig{Defaults: map[string]string{
		models.SettingGeminiAPIKey: "env-key",
	}})

	assert.Equal(t, "env-key", svc.Value(context.Background(), models.SettingGeminiAPIKey))
	assert.True(t, svc.Enabled(context.Background(), models.SettingEnableAI))

	repo.items = map[string]models.Setting{
		models.SettingGeminiAPIKey: {Key: models.SettingGeminiAPIKey, Value: "stored-key"},
		models.SettingEnableAI:     {Key: models.SettingEnableAI, Value: "false"},
	}
	assert.Equal(t, "stored-key", svc.Value(context.Background(), models.SettingGeminiAPIKey))
	assert.False(t, svc.Enabled(context.Background(), models.SettingEnableAI))
}

func TestSettingsServiceUpdate(t *testing.T) {
	repo := &settingsRepoStub{items: map[string]models.Setting{
		models.SettingGeminiAPIKey: {Key: models.SettingGeminiAPIKey, Value: "old-secret-9999", Type: models.SettingTypeSecret},
	}}
	audit := &auditRecorder{}
	svc := NewSettingsService(repo, audit, nil, nil, SettingsServiceConfig{})
	actor := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	_, err := svc.Update(context.Background(), dto.UpdateSettingsRequest{Settings: map[string]string{
		models.SettingEnableAI:     "no",
		models.SettingCompanyName:  "  Acme Schools ",
		models.SettingGeminiAPIKey: "********9999",
	}}, actor)
	require.NoError(t, err)

	assert.Equal(t, "false", repo.items[models.SettingEnableAI].Value)
	assert.Equal(t, "Acme Schools", repo.items[models.SettingCompanyName].Value)
	assert.Equal(t, "old-secret-9999", repo.items[models.SettingGeminiAPIKey].Value)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionSettingsUpdate, audit.logs[0].Action)
	assert.NotContains(t, string(audit.logs[0].After), "old-secret")
}

func TestSettingsServiceUpdateRejectsUnknownKeysAndBadBooleans(t *testing.T) {
	svc := NewSettingsService(&settingsRepoStub{}, nil, nil, nil, SettingsServiceConfig{})
	actor := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	_, err := svc.Update(context.Background(), dto.UpdateSettingsRequest{Settings: map[string]string{"drive_token": "x"}}, actor)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = svc.Update(context.Background(), dto.UpdateSettingsRequest{Settings: map[string]string{models.SettingEnableAI: "maybe"}}, actor)
	appErr = appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, models.SettingEnableAI, appErr.Details["field"])
}
