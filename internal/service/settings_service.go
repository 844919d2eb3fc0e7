package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/qa-reports-api/internal/dto"
	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

const maskedPrefix = "********"

type settingsRepository interface {
	List(ctx context.Context) ([]models.Setting, error)
	Get(ctx context.Context, key string) (*models.Setting, error)
	BulkUpsert(ctx context.Context, settings []models.Setting) error
}

type allowedSetting struct {
	Key         string
	Type        models.SettingType
	Description string
}

var allowedSettingKeys = []string{
	models.SettingGoogleClientID,
	models.SettingGoogleClientSecret,
	models.SettingGeminiAPIKey,
	models.SettingEnableAI,
	models.SettingCompanyName,
	models.SettingStorageRootFolder,
}

var allowedSettings = map[string]allowedSetting{
	models.SettingGoogleClientID: {
		Key:         models.SettingGoogleClientID,
		Type:        models.SettingTypeString,
		Description: "OAuth client id used by the storage integration",
	},
	models.SettingGoogleClientSecret: {
		Key:         models.SettingGoogleClientSecret,
		Type:        models.SettingTypeSecret,
		Description: "OAuth client secret used by the storage integration",
	},
	models.SettingGeminiAPIKey: {
		Key:         models.SettingGeminiAPIKey,
		Type:        models.SettingTypeSecret,
		Description: "API key for AI summaries and document parsing",
	},
	models.SettingEnableAI: {
		Key:         models.SettingEnableAI,
		Type:        models.SettingTypeBoolean,
		Description: "Toggle AI summary generation and document parsing",
	},
	models.SettingCompanyName: {
		Key:         models.SettingCompanyName,
		Type:        models.SettingTypeString,
		Description: "Organisation name printed on exported reports",
	},
	models.SettingStorageRootFolder: {
		Key:         models.SettingStorageRootFolder,
		Type:        models.SettingTypeString,
		Description: "Remote folder used for schools without their own folder",
	},
}

var builtinSettingDefaults = map[string]string{
	models.SettingEnableAI:    "true",
	models.SettingCompanyName: "QA Reports",
}

// SettingsServiceConfig supplies environment fallbacks for unset keys.
type SettingsServiceConfig struct {
	Defaults map[string]string
}

// SettingsService manages integration credentials and feature toggles.
type SettingsService struct {
	repo      settingsRepository
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
	defaults  map[string]string
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(repo settingsRepository, audit auditWriter, validate *validator.Validate, logger *zap.Logger, cfg SettingsServiceConfig) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := make(map[string]string, len(builtinSettingDefaults)+len(cfg.Defaults))
	for key, value := range builtinSettingDefaults {
		defaults[key] = value
	}
	for key, value := range cfg.Defaults {
		if value == "" {
			continue
		}
		defaults[key] = value
	}
	return &SettingsService{repo: repo, audit: audit, validator: validate, logger: logger, defaults: defaults}
}

// List returns every allowed setting with secrets masked.
func (s *SettingsService) List(ctx context.Context) ([]dto.SettingItem, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list settings")
	}
	stored := make(map[string]models.Setting, len(rows))
	for _, row := range rows {
		stored[row.Key] = row
	}
	items := make([]dto.SettingItem, 0, len(allowedSettingKeys))
	for _, key := range allowedSettingKeys {
		meta := allowedSettings[key]
		item := dto.SettingItem{Key: key, Type: string(meta.Type), Description: meta.Description}
		if row, ok := stored[key]; ok {
			item.Value = row.Value
			updated := row.UpdatedAt
			item.UpdatedAt = &updated
		} else {
			item.Value = s.defaults[key]
		}
		if meta.Type == models.SettingTypeSecret && item.Value != "" {
			item.Value = maskSecret(item.Value)
			item.Masked = true
		}
		items = append(items, item)
	}
	return items, nil
}

// Value returns the effective value of a key: stored, else the configured default.
func (s *SettingsService) Value(ctx context.Context, key string) string {
	row, err := s.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("read setting", zap.String("key", key), zap.Error(err))
		}
		return s.defaults[key]
	}
	if row.Value == "" {
		return s.defaults[key]
	}
	return row.Value
}

// Enabled reads a boolean toggle.
func (s *SettingsService) Enabled(ctx context.Context, key string) bool {
	value, ok := normalizeBool(s.Value(ctx, key))
	return ok && value == "true"
}

// Update validates and stores the submitted keys in one transaction. Masked secrets echoed
// back by clients are left untouched.
func (s *SettingsService) Update(ctx context.Context, req dto.UpdateSettingsRequest, actor *models.JWTClaims) ([]dto.SettingItem, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settings payload")
	}

	keys := make([]string, 0, len(req.Settings))
	for key := range req.Settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	userID := actor.UserID
	changes := make([]models.Setting, 0, len(keys))
	for _, key := range keys {
		meta, ok := allowedSettings[key]
		if !ok {
			return nil, appErrors.Validation(key, "unsupported setting key")
		}
		raw := req.Settings[key]
		if meta.Type == models.SettingTypeSecret && strings.HasPrefix(raw, maskedPrefix) {
			continue
		}
		value, err := validateSettingValue(meta, raw)
		if err != nil {
			return nil, err
		}
		changes = append(changes, models.Setting{Key: key, Value: value, Type: meta.Type, UpdatedBy: &userID})
	}

	if err := s.repo.BulkUpsert(ctx, changes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update settings")
	}
	s.emitAudit(ctx, actor, changes)
	s.logger.Info("settings updated", zap.String("user_id", userID), zap.Int("count", len(changes)))
	return s.List(ctx)
}

func validateSettingValue(meta allowedSetting, raw string) (string, error) {
	switch meta.Type {
	case models.SettingTypeBoolean:
		value, ok := normalizeBool(raw)
		if !ok {
			return "", appErrors.Validation(meta.Key, fmt.Sprintf("%s expects a boolean value", meta.Key))
		}
		return value, nil
	case models.SettingTypeString, models.SettingTypeSecret:
		value := strings.TrimSpace(raw)
		if len(value) > 500 {
			return "", appErrors.Validation(meta.Key, fmt.Sprintf("%s is too long", meta.Key))
		}
		return value, nil
	default:
		return "", appErrors.Validation(meta.Key, "unsupported setting type")
	}
}

func normalizeBool(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "1", "on":
		return "true", true
	case "false", "no", "0", "off", "":
		return "false", true
	default:
		return "", false
	}
}

func maskSecret(value string) string {
	if len(value) <= 4 {
		return maskedPrefix
	}
	return maskedPrefix + value[len(value)-4:]
}

func (s *SettingsService) emitAudit(ctx context.Context, actor *models.JWTClaims, changes []models.Setting) {
	if s.audit == nil || len(changes) == 0 {
		return
	}
	payload := make(map[string]string, len(changes))
	for _, change := range changes {
		if change.Type == models.SettingTypeSecret && change.Value != "" {
			payload[change.Key] = maskSecret(change.Value)
			continue
		}
		payload[change.Key] = change.Value
	}
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionSettingsUpdate, "settings", strings.Join(keys, ","), nil, payload)
}
