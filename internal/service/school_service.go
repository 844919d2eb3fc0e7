package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/qa-reports-api/internal/dto"
	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

type schoolRepository interface {
	List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error)
	GetByID(ctx context.Context, id int64) (*models.School, error)
	Create(ctx context.Context, school *models.School) error
	Update(ctx context.Context, school *models.School) error
	Delete(ctx context.Context, id int64) error
	CountReports(ctx context.Context, id int64) (int, error)
}

// SchoolService manages the inspected sites.
type SchoolService struct {
	repo      schoolRepository
	audit     auditWriter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchoolService constructs a SchoolService.
func NewSchoolService(repo schoolRepository, audit auditWriter, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SchoolService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolService{repo: repo, audit: audit, cache: cache, validator: validate, logger: logger}
}

// List returns schools matching the filter.
func (s *SchoolService) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, *models.Pagination, error) {
	if filter.Status != "" && filter.Status != string(models.SchoolStatusActive) && filter.Status != string(models.SchoolStatusInactive) {
		return nil, nil, appErrors.Validation("status", "unknown status")
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 100
	}
	if filter.PageSize > 500 {
		filter.PageSize = 500
	}
	schools, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schools")
	}
	if schools == nil {
		schools = []models.School{}
	}
	return schools, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a school by id.
func (s *SchoolService) Get(ctx context.Context, id int64) (*models.School, error) {
	school, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	return school, nil
}

// Create registers a school. New schools are active unless stated otherwise.
func (s *SchoolService) Create(ctx context.Context, req dto.CreateSchoolRequest, actor *models.JWTClaims) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}
	status := models.SchoolStatusActive
	if req.Status != "" {
		status = models.SchoolStatus(req.Status)
	}
	acquired, err := normalizeOptionalDate("acquired_date", req.AcquiredDate)
	if err != nil {
		return nil, err
	}
	config, err := normalizeClassroomConfig(req.ClassroomConfig)
	if err != nil {
		return nil, err
	}
	school := &models.School{
		Name:            strings.TrimSpace(req.Name),
		Location:        strings.TrimSpace(req.Location),
		Region:          strings.TrimSpace(req.Region),
		Tier:            req.Tier,
		AcquiredDate:    acquired,
		Status:          status,
		StorageFolder:   trimmedOrNil(req.StorageFolder),
		ClassroomConfig: config,
	}
	if school.Name == "" {
		return nil, appErrors.Validation("name", "name is required")
	}
	if err := s.repo.Create(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school")
	}
	s.afterWrite(ctx, actor, models.AuditActionSchoolCreate, school.ID, nil, school)
	return school, nil
}

// Update applies a partial update to a school.
func (s *SchoolService) Update(ctx context.Context, id int64, req dto.UpdateSchoolRequest, actor *models.JWTClaims) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}
	school, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *school
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, appErrors.Validation("name", "name cannot be blank")
		}
		school.Name = name
	}
	if req.Location != nil {
		school.Location = strings.TrimSpace(*req.Location)
	}
	if req.Region != nil {
		school.Region = strings.TrimSpace(*req.Region)
	}
	if req.Tier != nil {
		school.Tier = *req.Tier
	}
	if req.AcquiredDate != nil {
		acquired, err := normalizeOptionalDate("acquired_date", req.AcquiredDate)
		if err != nil {
			return nil, err
		}
		school.AcquiredDate = acquired
	}
	if req.Status != nil {
		school.Status = models.SchoolStatus(*req.Status)
	}
	if req.StorageFolder != nil {
		school.StorageFolder = trimmedOrNil(req.StorageFolder)
	}
	if len(req.ClassroomConfig) > 0 {
		config, err := normalizeClassroomConfig(req.ClassroomConfig)
		if err != nil {
			return nil, err
		}
		school.ClassroomConfig = config
	}
	if err := s.repo.Update(ctx, school); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update school")
	}
	s.afterWrite(ctx, actor, models.AuditActionSchoolUpdate, school.ID, &before, school)
	return school, nil
}

// Delete removes a school that has no reports.
func (s *SchoolService) Delete(ctx context.Context, id int64, actor *models.JWTClaims) error {
	school, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	count, err := s.repo.CountReports(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count school reports")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "school still has reports, mark it inactive instead").WithDetails(map[string]interface{}{
			"reports_count": count,
		})
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete school")
	}
	s.afterWrite(ctx, actor, models.AuditActionSchoolDelete, id, school, nil)
	return nil
}

func (s *SchoolService) afterWrite(ctx context.Context, actor *models.JWTClaims, action string, id int64, before, after *models.School) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, statsCachePattern)
	}
	if s.audit == nil {
		return
	}
	var old, next interface{}
	if before != nil {
		old = before
	}
	if after != nil {
		next = after
	}
	recordAudit(ctx, s.audit, s.logger, actor, action, "school", strconv.FormatInt(id, 10), old, next)
}

func normalizeOptionalDate(field string, raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	if _, err := time.Parse(models.DateLayout, value); err != nil {
		return nil, appErrors.Validation(field, field+" must be a YYYY-MM-DD date")
	}
	return &value, nil
}

func normalizeClassroomConfig(raw json.RawMessage) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, appErrors.Validation("classroom_config", "classroom_config must be valid JSON")
	}
	return []byte(trimmed), nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.Trim(strings.TrimSpace(*value), "/")
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
