package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/qa-reports-api/internal/dto"
	"github.com/noah-isme/qa-reports-api/internal/models"
	"github.com/noah-isme/qa-reports-api/internal/repository"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

const statsCachePattern = "stats:*"

type reportRepository interface {
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error)
	GetByID(ctx context.Context, id int64) (*models.Report, error)
	LatestApproved(ctx context.Context, schoolID int64) (*models.Report, error)
	ListBySchool(ctx context.Context, schoolID int64, limit int) ([]models.Report, error)
	Create(ctx context.Context, report *models.Report, responses []models.ChecklistResponse) error
	Update(ctx context.Context, report *models.Report, expectedVersion int64, responses []models.ChecklistResponse) error
	Delete(ctx context.Context, id int64) error
}

type reportSchoolRepository interface {
	GetByID(ctx context.Context, id int64) (*models.School, error)
	RefreshReportStats(ctx context.Context, id int64) error
}

type reportUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type reportAttachments interface {
	InlineEnabled() bool
	Store(ctx context.Context, report *models.Report, school *models.School, uploads []Upload) (*dto.UploadResult, error)
	StoreInline(ctx context.Context, report *models.Report, school *models.School, photos []dto.InlinePhoto) (*dto.UploadResult, error)
	ListForReport(ctx context.Context, reportID int64) ([]dto.PhotoResponse, error)
	Photos(ctx context.Context, reportID int64) ([]models.Photo, error)
	Get(ctx context.Context, id int64) (*models.Photo, error)
	Update(ctx context.Context, photo *models.Photo, caption, section *string) error
	Delete(ctx context.Context, photo *models.Photo) error
	ReclaimAll(photos []models.Photo)
	Present(photo *models.Photo) dto.PhotoResponse
}

type reportSummaries interface {
	Get(ctx context.Context, reportID int64) (*models.AISummary, error)
	MergePlan(ctx context.Context, reportID int64, items []dto.PlanItem) error
}

// ReportServiceParams groups constructor dependencies.
type ReportServiceParams struct {
	Reports     reportRepository
	Schools     reportSchoolRepository
	Users       reportUserRepository
	Checklist   *ChecklistService
	Attachments reportAttachments
	Summaries   reportSummaries
	Guard       *ConcurrencyGuard
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
	Location    *time.Location
	Now         func() time.Time
}

// ReportService is the report lifecycle controller: permissions, validation, status
// transitions, optimistic locking and the checklist/photo side effects of each write.
type ReportService struct {
	reports     reportRepository
	schools     reportSchoolRepository
	users       reportUserRepository
	checklist   *ChecklistService
	attachments reportAttachments
	summaries   reportSummaries
	guard       *ConcurrencyGuard
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	loc         *time.Location
	now         func() time.Time
}

// NewReportService constructs the lifecycle controller.
func NewReportService(params ReportServiceParams) *ReportService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Location == nil {
		params.Location = time.UTC
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	if params.Guard == nil {
		params.Guard = NewConcurrencyGuard(params.Users, params.Metrics, params.Logger)
	}
	return &ReportService{
		reports:     params.Reports,
		schools:     params.Schools,
		users:       params.Users,
		checklist:   params.Checklist,
		attachments: params.Attachments,
		summaries:   params.Summaries,
		guard:       params.Guard,
		cache:       params.Cache,
		metrics:     params.Metrics,
		validator:   params.Validator,
		logger:      params.Logger,
		loc:         params.Location,
		now:         params.Now,
	}
}

func canViewReport(claims *models.JWTClaims, report *models.Report) bool {
	if claims.Can(models.CapViewAll) {
		return true
	}
	return claims.Owns(report.AuthorID) && (claims.Can(models.CapViewOwn) || claims.Can(models.CapEditOwn))
}

func canEditReport(claims *models.JWTClaims, report *models.Report) bool {
	return claims.Can(models.CapEditAll) || (claims.Can(models.CapEditOwn) && claims.Owns(report.AuthorID))
}

func canDeleteReport(claims *models.JWTClaims, report *models.Report) bool {
	return claims.Can(models.CapDelete) || (claims.Can(models.CapDeleteOwn) && claims.Owns(report.AuthorID))
}

// List returns reports visible to the caller. Callers limited to their own reports are filtered to them.
func (s *ReportService) List(ctx context.Context, filter models.ReportFilter, claims *models.JWTClaims) ([]dto.ReportResponse, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if !claims.Can(models.CapViewAll) {
		if !claims.Can(models.CapViewOwn) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot view reports")
		}
		filter.AuthorID = claims.UserID
	}
	if filter.Status != "" && !models.ReportStatus(filter.Status).Valid() {
		return nil, nil, appErrors.Validation("status", "unknown status")
	}
	if filter.ReportType != "" && !models.ReportType(filter.ReportType).Valid() {
		return nil, nil, appErrors.Validation("report_type", "unknown report type")
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	if filter.PageSize > 200 {
		filter.PageSize = 200
	}

	reports, total, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	items := make([]dto.ReportResponse, 0, len(reports))
	for i := range reports {
		items = append(items, dto.NewReportResponse(&reports[i], claims))
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns the full detail of a report.
func (s *ReportService) Get(ctx context.Context, id int64, claims *models.JWTClaims) (*dto.ReportDetail, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canViewReport(claims, report) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot view this report")
	}
	return s.detail(ctx, report, claims)
}

// Create validates and persists a new report together with its inline checklist answers, then stores inline photos.
func (s *ReportService) Create(ctx context.Context, req dto.CreateReportRequest, claims *models.JWTClaims) (*dto.ReportDetail, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !claims.Can(models.CapCreate) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot create reports")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	reportType := models.ReportType(strings.TrimSpace(req.ReportType))
	if !reportType.Valid() {
		return nil, appErrors.Validation("report_type", "unknown report type")
	}
	rating := models.RatingPending
	if req.OverallRating != "" {
		rating = models.Rating(strings.TrimSpace(req.OverallRating))
		if !rating.Valid() {
			return nil, appErrors.Validation("overall_rating", "unknown rating")
		}
	}
	status := models.StatusDraft
	if req.Status != "" {
		status = models.ReportStatus(strings.TrimSpace(req.Status))
		if !status.Valid() {
			return nil, appErrors.Validation("status", "unknown status")
		}
		if status == models.StatusApproved && !claims.Can(models.CapApprove) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "approving reports requires the approve capability")
		}
	}
	date, err := s.validateInspectionDate(req.InspectionDate)
	if err != nil {
		return nil, err
	}
	school, err := s.activeSchool(ctx, req.SchoolID)
	if err != nil {
		return nil, err
	}

	previous := req.PreviousReportID
	if previous != nil {
		if err := s.checkPrevious(ctx, *previous, school.ID, 0); err != nil {
			return nil, err
		}
	} else {
		latest, err := s.reports.LatestApproved(ctx, school.ID)
		switch {
		case err == nil:
			previous = &latest.ID
		case !errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up previous report")
		}
	}

	rows, _, err := s.checklist.Prepare(req.Responses)
	if err != nil {
		return nil, err
	}
	if len(req.Photos) > 0 && !s.attachments.InlineEnabled() {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "inline photo uploads are disabled, use multipart uploads")
	}

	s.rememberCaller(ctx, claims)
	author := claims.UserID
	report := &models.Report{
		SchoolID:         school.ID,
		AuthorID:         claims.UserID,
		ReportType:       reportType,
		InspectionDate:   date,
		PreviousReportID: previous,
		OverallRating:    rating,
		Status:           status,
		ClosingNotes:     plainText(req.ClosingNotes),
		UpdatedBy:        &author,
	}
	if err := s.reports.Create(ctx, report, rows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report")
	}
	uploads, err := s.attachments.StoreInline(ctx, report, school, req.Photos)
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, report.SchoolID)
	s.audit(ctx, claims, models.AuditActionReportCreate, report.ID, nil, report)
	s.logger.Info("report created", zap.Int64("report_id", report.ID), zap.Int64("school_id", report.SchoolID), zap.String("author_id", report.AuthorID))

	detail, err := s.detail(ctx, report, claims)
	if err != nil {
		return nil, err
	}
	if len(req.Photos) > 0 {
		detail.Uploads = uploads
	}
	return detail, nil
}

// Update applies a partial update guarded by the caller's preconditions. The version header
// wins over the version_id body field.
func (s *ReportService) Update(ctx context.Context, id int64, req dto.UpdateReportRequest, pre Preconditions, claims *models.JWTClaims) (*dto.ReportDetail, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canEditReport(claims, report) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot edit this report")
	}

	var nextStatus models.ReportStatus
	if req.Status != nil {
		nextStatus = models.ReportStatus(strings.TrimSpace(*req.Status))
		if !nextStatus.Valid() {
			return nil, appErrors.Validation("status", "unknown status")
		}
		// Approval rights are checked before the guard runs.
		crossesApproval := nextStatus != report.Status && (nextStatus == models.StatusApproved || report.Status == models.StatusApproved)
		if crossesApproval && !claims.Can(models.CapApprove) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "approving reports requires the approve capability")
		}
	}

	if pre.Version == nil && req.VersionID != nil {
		pre.Version = req.VersionID
	}
	if err := s.guard.Check(ctx, report, pre); err != nil {
		return nil, err
	}

	before := *report
	if err := s.applyChanges(ctx, report, req, nextStatus); err != nil {
		return nil, err
	}
	rows, _, err := s.checklist.Prepare(req.Responses)
	if err != nil {
		return nil, err
	}
	edits, err := s.resolvePhotoEdits(ctx, report.ID, req.PhotoEdits)
	if err != nil {
		return nil, err
	}
	if len(req.Photos) > 0 && !s.attachments.InlineEnabled() {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "inline photo uploads are disabled, use multipart uploads")
	}

	s.rememberCaller(ctx, claims)
	editor := claims.UserID
	report.UpdatedBy = &editor
	expected := before.VersionID
	if err := s.reports.Update(ctx, report, expected, rows); err != nil {
		if errors.Is(err, repository.ErrVersionMismatch) {
			s.metrics.RecordConflict("race")
			client := expected
			if pre.Version != nil {
				client = *pre.Version
			}
			server := expected + 1
			if current, loadErr := s.reports.GetByID(ctx, id); loadErr == nil {
				server = current.VersionID
			}
			return nil, VersionConflict(client, server)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update report")
	}

	// Photo side effects run after the version bump so they never race another writer for the slot.
	for _, edit := range edits {
		if edit.remove {
			if err := s.attachments.Delete(ctx, edit.photo); err != nil {
				return nil, err
			}
			continue
		}
		if err := s.attachments.Update(ctx, edit.photo, edit.caption, edit.section); err != nil {
			return nil, err
		}
	}
	var school *models.School
	if len(req.Photos) > 0 {
		school = s.schoolOrNil(ctx, report.SchoolID)
	}
	uploads, err := s.attachments.StoreInline(ctx, report, school, req.Photos)
	if err != nil {
		return nil, err
	}
	if req.Plan != nil && s.summaries != nil {
		if err := s.summaries.MergePlan(ctx, report.ID, req.Plan); err != nil {
			return nil, err
		}
	}

	s.afterWrite(ctx, report.SchoolID)
	if before.SchoolID != report.SchoolID {
		s.afterWrite(ctx, before.SchoolID)
	}
	s.audit(ctx, claims, models.AuditActionReportUpdate, report.ID, &before, report)

	detail, err := s.detail(ctx, report, claims)
	if err != nil {
		return nil, err
	}
	if len(req.Photos) > 0 {
		detail.Uploads = uploads
	}
	return detail, nil
}

func (s *ReportService) applyChanges(ctx context.Context, report *models.Report, req dto.UpdateReportRequest, nextStatus models.ReportStatus) error {
	if req.SchoolID != nil && *req.SchoolID != report.SchoolID {
		school, err := s.activeSchool(ctx, *req.SchoolID)
		if err != nil {
			return err
		}
		report.SchoolID = school.ID
	}
	if req.ReportType != nil {
		reportType := models.ReportType(strings.TrimSpace(*req.ReportType))
		if !reportType.Valid() {
			return appErrors.Validation("report_type", "unknown report type")
		}
		report.ReportType = reportType
	}
	if req.InspectionDate != nil {
		date, err := s.validateInspectionDate(*req.InspectionDate)
		if err != nil {
			return err
		}
		report.InspectionDate = date
	}
	if req.PreviousReportID != nil {
		if *req.PreviousReportID == 0 {
			report.PreviousReportID = nil
		} else {
			if err := s.checkPrevious(ctx, *req.PreviousReportID, report.SchoolID, report.ID); err != nil {
				return err
			}
			previous := *req.PreviousReportID
			report.PreviousReportID = &previous
		}
	}
	if req.OverallRating != nil {
		rating := models.Rating(strings.TrimSpace(*req.OverallRating))
		if !rating.Valid() {
			return appErrors.Validation("overall_rating", "unknown rating")
		}
		report.OverallRating = rating
	}
	if nextStatus != "" {
		if !report.Status.CanTransition(nextStatus) {
			return appErrors.Validation("status", fmt.Sprintf("cannot move a %s report to %s", report.Status, nextStatus))
		}
		report.Status = nextStatus
	}
	if req.ClosingNotes != nil {
		report.ClosingNotes = plainText(*req.ClosingNotes)
	}
	return nil
}

type photoEdit struct {
	photo   *models.Photo
	caption *string
	section *string
	remove  bool
}

func (s *ReportService) resolvePhotoEdits(ctx context.Context, reportID int64, edits []dto.PhotoEdit) ([]photoEdit, error) {
	out := make([]photoEdit, 0, len(edits))
	for _, edit := range edits {
		photo, err := s.attachments.Get(ctx, edit.ID)
		if err != nil {
			return nil, err
		}
		if photo.ReportID != reportID {
			return nil, appErrors.Validation("photo_updates", fmt.Sprintf("photo %d does not belong to this report", edit.ID))
		}
		out = append(out, photoEdit{photo: photo, caption: edit.Caption, section: edit.SectionKey, remove: edit.Delete})
	}
	return out, nil
}

// Delete removes a report with its checklist answers, photos and summary.
func (s *ReportService) Delete(ctx context.Context, id int64, claims *models.JWTClaims) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	report, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !canDeleteReport(claims, report) {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot delete this report")
	}
	photos, err := s.attachments.Photos(ctx, id)
	if err != nil {
		s.logger.Warn("list photos before delete", zap.Int64("report_id", id), zap.Error(err))
	}
	if err := s.reports.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete report")
	}
	s.attachments.ReclaimAll(photos)
	s.afterWrite(ctx, report.SchoolID)
	s.audit(ctx, claims, models.AuditActionReportDelete, report.ID, report, nil)
	return nil
}

// SaveResponses merges checklist answers into a report.
func (s *ReportService) SaveResponses(ctx context.Context, id int64, entries []dto.ChecklistEntry, claims *models.JWTClaims) (*dto.BulkSaveResult, error) {
	report, err := s.editable(ctx, id, claims)
	if err != nil {
		return nil, err
	}
	return s.checklist.BulkSave(ctx, report.ID, entries)
}

// GetResponses returns the grouped checklist of a report.
func (s *ReportService) GetResponses(ctx context.Context, id int64, claims *models.JWTClaims) (*models.GroupedChecklist, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canViewReport(claims, report) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot view this report")
	}
	return s.checklist.Grouped(ctx, report.ID)
}

// UploadPhotos stores multipart uploads against a report.
func (s *ReportService) UploadPhotos(ctx context.Context, id int64, uploads []Upload, claims *models.JWTClaims) (*dto.UploadResult, error) {
	report, err := s.editable(ctx, id, claims)
	if err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, appErrors.Validation("photos", "at least one file is required")
	}
	return s.attachments.Store(ctx, report, s.schoolOrNil(ctx, report.SchoolID), uploads)
}

// UpdatePhoto changes the caption or section of a photo.
func (s *ReportService) UpdatePhoto(ctx context.Context, photoID int64, req dto.UpdatePhotoRequest, claims *models.JWTClaims) (*dto.PhotoResponse, error) {
	photo, err := s.attachments.Get(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if _, err := s.editable(ctx, photo.ReportID, claims); err != nil {
		return nil, err
	}
	if err := s.attachments.Update(ctx, photo, req.Caption, req.SectionKey); err != nil {
		return nil, err
	}
	out := s.attachments.Present(photo)
	return &out, nil
}

// DeletePhoto removes one photo of a report the caller may edit.
func (s *ReportService) DeletePhoto(ctx context.Context, photoID int64, claims *models.JWTClaims) error {
	photo, err := s.attachments.Get(ctx, photoID)
	if err != nil {
		return err
	}
	if _, err := s.editable(ctx, photo.ReportID, claims); err != nil {
		return err
	}
	return s.attachments.Delete(ctx, photo)
}

// SchoolReports returns the latest reports of a school visible to the caller.
func (s *ReportService) SchoolReports(ctx context.Context, schoolID int64, claims *models.JWTClaims) ([]dto.ReportResponse, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !claims.Can(models.CapViewAll) && !claims.Can(models.CapViewOwn) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot view reports")
	}
	reports, err := s.reports.ListBySchool(ctx, schoolID, 10)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list school reports")
	}
	items := make([]dto.ReportResponse, 0, len(reports))
	for i := range reports {
		if canViewReport(claims, &reports[i]) {
			items = append(items, dto.NewReportResponse(&reports[i], claims))
		}
	}
	return items, nil
}

func (s *ReportService) editable(ctx context.Context, id int64, claims *models.JWTClaims) (*models.Report, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canEditReport(claims, report) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot edit this report")
	}
	return report, nil
}

func (s *ReportService) load(ctx context.Context, id int64) (*models.Report, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return report, nil
}

func (s *ReportService) activeSchool(ctx context.Context, id int64) (*models.School, error) {
	school, err := s.schools.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Validation("school_id", "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	if !school.IsActive() {
		return nil, appErrors.Validation("school_id", "school is inactive")
	}
	return school, nil
}

func (s *ReportService) schoolOrNil(ctx context.Context, id int64) *models.School {
	school, err := s.schools.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("load school", zap.Int64("school_id", id), zap.Error(err))
		return nil
	}
	return school
}

func (s *ReportService) checkPrevious(ctx context.Context, previousID, schoolID, selfID int64) error {
	if previousID == selfID {
		return appErrors.Validation("previous_report_id", "a report cannot follow itself")
	}
	previous, err := s.reports.GetByID(ctx, previousID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Validation("previous_report_id", "previous report not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load previous report")
	}
	if previous.SchoolID != schoolID {
		return appErrors.Validation("previous_report_id", "previous report belongs to another school")
	}
	return nil
}

// validateInspectionDate accepts YYYY-MM-DD dates up to and including today in the service timezone.
func (s *ReportService) validateInspectionDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	date, err := time.ParseInLocation(models.DateLayout, raw, s.loc)
	if err != nil {
		return "", appErrors.Validation("inspection_date", "inspection_date must be a YYYY-MM-DD date")
	}
	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	if date.After(today) {
		return "", appErrors.Validation("inspection_date", "inspection_date cannot be in the future")
	}
	return date.Format(models.DateLayout), nil
}

func (s *ReportService) detail(ctx context.Context, report *models.Report, claims *models.JWTClaims) (*dto.ReportDetail, error) {
	// Reload to pick up joined names and database-assigned timestamps.
	fresh, err := s.load(ctx, report.ID)
	if err != nil {
		return nil, err
	}
	grouped, err := s.checklist.Grouped(ctx, fresh.ID)
	if err != nil {
		return nil, err
	}
	photos, err := s.attachments.ListForReport(ctx, fresh.ID)
	if err != nil {
		return nil, err
	}
	detail := &dto.ReportDetail{
		ReportResponse: dto.NewReportResponse(fresh, claims),
		ClosingNotes:   fresh.ClosingNotes,
		School:         s.schoolOrNil(ctx, fresh.SchoolID),
		Responses:      grouped,
		Photos:         photos,
	}
	if s.summaries != nil {
		summary, err := s.summaries.Get(ctx, fresh.ID)
		if err != nil {
			return nil, err
		}
		detail.Summary = summary
	}
	return detail, nil
}

// rememberCaller mirrors the caller's profile so joins resolve display names.
func (s *ReportService) rememberCaller(ctx context.Context, claims *models.JWTClaims) {
	if s.users == nil {
		return
	}
	name := claims.FullName
	if name == "" {
		name = claims.Email
	}
	user := &models.User{ID: claims.UserID, Email: claims.Email, FullName: name, Role: claims.Role, Active: true}
	if err := s.users.Upsert(ctx, user); err != nil {
		s.logger.Warn("remember caller", zap.String("user_id", claims.UserID), zap.Error(err))
	}
}

func (s *ReportService) afterWrite(ctx context.Context, schoolID int64) {
	if err := s.schools.RefreshReportStats(ctx, schoolID); err != nil {
		s.logger.Warn("refresh school report stats", zap.Int64("school_id", schoolID), zap.Error(err))
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, statsCachePattern)
	}
}

func (s *ReportService) audit(ctx context.Context, claims *models.JWTClaims, action string, reportID int64, before, after *models.Report) {
	if s.users == nil {
		return
	}
	var old, next interface{}
	if before != nil {
		old = before
	}
	if after != nil {
		next = after
	}
	recordAudit(ctx, s.users, s.logger, claims, action, "report", strconv.FormatInt(reportID, 10), old, next)
}

