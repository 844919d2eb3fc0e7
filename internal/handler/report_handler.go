package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qa-reports-api/internal/dto"
	"github.com/noah-isme/qa-reports-api/internal/models"
	"github.com/noah-isme/qa-reports-api/internal/service"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
	"github.com/noah-isme/qa-reports-api/pkg/response"
)

type reportService interface {
	List(ctx context.Context, filter models.ReportFilter, claims *models.JWTClaims) ([]dto.ReportResponse, *models.Pagination, error)
	Get(ctx context.Context, id int64, claims *models.JWTClaims) (*dto.ReportDetail, error)
	Create(ctx context.Context, req dto.CreateReportRequest, claims *models.JWTClaims) (*dto.ReportDetail, error)
	Update(ctx context.Context, id int64, req dto.UpdateReportRequest, pre service.Preconditions, claims *models.JWTClaims) (*dto.ReportDetail, error)
	Delete(ctx context.Context, id int64, claims *models.JWTClaims) error
	SaveResponses(ctx context.Context, id int64, entries []dto.ChecklistEntry, claims *models.JWTClaims) (*dto.BulkSaveResult, error)
	GetResponses(ctx context.Context, id int64, claims *models.JWTClaims) (*models.GroupedChecklist, error)
	UploadPhotos(ctx context.Context, id int64, uploads []service.Upload, claims *models.JWTClaims) (*dto.UploadResult, error)
	UpdatePhoto(ctx context.Context, photoID int64, req dto.UpdatePhotoRequest, claims *models.JWTClaims) (*dto.PhotoResponse, error)
	DeletePhoto(ctx context.Context, photoID int64, claims *models.JWTClaims) error
	SchoolReports(ctx context.Context, schoolID int64, claims *models.JWTClaims) ([]dto.ReportResponse, error)
}

// ReportHandler exposes the report lifecycle over HTTP.
type ReportHandler struct {
	service       reportService
	maxUploadSize int64
}

// NewReportHandler constructs the handler. maxUploadSize caps one multipart file.
func NewReportHandler(service reportService, maxUploadSize int64) *ReportHandler {
	return &ReportHandler{service: service, maxUploadSize: maxUploadSize}
}

func parseReportFilter(c *gin.Context, claims *models.JWTClaims) (models.ReportFilter, error) {
	schoolID, err := parseQueryInt64(c, "school_id")
	if err != nil {
		return models.ReportFilter{}, err
	}
	filter := models.ReportFilter{
		SchoolID:   schoolID,
		ReportType: strings.TrimSpace(c.Query("report_type")),
		Status:     strings.TrimSpace(c.Query("status")),
		Search:     strings.TrimSpace(c.Query("search")),
		Page:       parseQueryInt(c, 1, "page"),
		PageSize:   parseQueryInt(c, 0, "per_page", "page_size"),
		SortBy:     strings.TrimSpace(c.Query("sort")),
		SortOrder:  strings.TrimSpace(c.Query("order")),
	}
	switch author := strings.TrimSpace(c.Query("author")); author {
	case "":
	case "me":
		if claims != nil {
			filter.AuthorID = claims.UserID
		}
	default:
		filter.AuthorID = author
	}
	return filter, nil
}

// List godoc
// @Summary List reports
// @Tags Reports
// @Produce json
// @Param school_id query int false "School ID"
// @Param report_type query string false "tier1 | tier1_tier2 | new_acquisition"
// @Param status query string false "draft | submitted | approved"
// @Param search query string false "Free text"
// @Param author query string false "Author id or me"
// @Param page query int false "Page"
// @Param per_page query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	filter, err := parseReportFilter(c, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get report detail
// @Tags Reports
// @Produce json
// @Param id path int true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.service.Get(c.Request.Context(), id, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	writeVersionHeaders(c, detail)
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create report
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.CreateReportRequest true "Report"
// @Success 201 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	var req dto.CreateReportRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	writeVersionHeaders(c, detail)
	response.Created(c, detail)
}

// Update godoc
// @Summary Update report
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path int true "Report ID"
// @Param X-Version header int false "Version the client last read"
// @Param If-Unmodified-Since header string false "HTTP date of the client's copy"
// @Param payload body dto.UpdateReportRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reports/{id} [put]
func (h *ReportHandler) Update(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	pre, err := parsePreconditions(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateReportRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.service.Update(c.Request.Context(), id, req, pre, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	writeVersionHeaders(c, detail)
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete report
// @Tags Reports
// @Param id path int true "Report ID"
// @Success 204
// @Router /reports/{id} [delete]
func (h *ReportHandler) Delete(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), id, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// GetResponses godoc
// @Summary Grouped checklist responses
// @Tags Reports
// @Produce json
// @Param id path int true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/responses [get]
func (h *ReportHandler) GetResponses(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	grouped, err := h.service.GetResponses(c.Request.Context(), id, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grouped, nil)
}

// SaveResponses godoc
// @Summary Bulk save checklist responses
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path int true "Report ID"
// @Param payload body dto.BulkSaveRequest true "Responses"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/responses [post]
func (h *ReportHandler) SaveResponses(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.BulkSaveRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.SaveResponses(c.Request.Context(), id, req.Responses, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// UploadPhotos godoc
// @Summary Upload report photos
// @Description Files go in "files" (or "photos"). section_key and caption may be sent once for all files or once per file.
// @Tags Photos
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Report ID"
// @Param files formData file true "Images"
// @Param section_key formData string false "section or section|item"
// @Param caption formData string false "Caption"
// @Success 201 {object} response.Envelope
// @Router /reports/{id}/photos [post]
func (h *ReportHandler) UploadPhotos(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "multipart form expected"))
		return
	}
	defer form.RemoveAll()

	uploads, err := h.collectUploads(form.File, form.Value)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.UploadPhotos(c.Request.Context(), id, uploads, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusCreated
	if len(result.Photos) == 0 && len(result.Failures) > 0 {
		status = http.StatusUnprocessableEntity
	}
	response.JSON(c, status, result, nil)
}

func (h *ReportHandler) collectUploads(files map[string][]*multipart.FileHeader, values map[string][]string) ([]service.Upload, error) {
	var headers []*multipart.FileHeader
	for _, key := range []string{"files", "files[]", "photos", "photos[]", "file"} {
		headers = append(headers, files[key]...)
	}
	if len(headers) == 0 {
		return nil, appErrors.Validation("files", "at least one file is required")
	}
	sections := firstValues(values, "section_key", "section_key[]", "section")
	captions := firstValues(values, "caption", "caption[]")

	uploads := make([]service.Upload, 0, len(headers))
	for i, fh := range headers {
		if h.maxUploadSize > 0 && fh.Size > h.maxUploadSize {
			return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, "file exceeds the upload size limit").WithDetails(map[string]interface{}{
				"filename":  fh.Filename,
				"max_bytes": h.maxUploadSize,
			})
		}
		header := fh
		uploads = append(uploads, service.Upload{
			Filename: header.Filename,
			Size:     header.Size,
			Section:  models.ParseSectionPath(pick(sections, i)),
			Caption:  strings.TrimSpace(pick(captions, i)),
			Open: func() (io.ReadSeekCloser, error) {
				return header.Open()
			},
		})
	}
	return uploads, nil
}

func firstValues(values map[string][]string, keys ...string) []string {
	for _, key := range keys {
		if v := values[key]; len(v) > 0 {
			return v
		}
	}
	return nil
}

// pick returns the per-file value, or the single shared value when only one was sent.
func pick(values []string, i int) string {
	switch {
	case i < len(values):
		return values[i]
	case len(values) == 1:
		return values[0]
	default:
		return ""
	}
}

// UpdatePhoto godoc
// @Summary Update photo caption or section
// @Tags Photos
// @Accept json
// @Produce json
// @Param id path int true "Photo ID"
// @Param payload body dto.UpdatePhotoRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /photos/{id} [put]
func (h *ReportHandler) UpdatePhoto(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdatePhotoRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	photo, err := h.service.UpdatePhoto(c.Request.Context(), id, req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, photo, nil)
}

// DeletePhoto godoc
// @Summary Delete photo
// @Tags Photos
// @Param id path int true "Photo ID"
// @Success 204
// @Router /photos/{id} [delete]
func (h *ReportHandler) DeletePhoto(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.DeletePhoto(c.Request.Context(), id, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SchoolReports godoc
// @Summary Recent reports of a school
// @Tags Schools
// @Produce json
// @Param id path int true "School ID"
// @Success 200 {object} response.Envelope
// @Router /schools/{id}/reports [get]
func (h *ReportHandler) SchoolReports(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.service.SchoolReports(c.Request.Context(), id, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

func writeVersionHeaders(c *gin.Context, detail *dto.ReportDetail) {
	if detail == nil {
		return
	}
	c.Header("X-Version", strconv.FormatInt(detail.VersionID, 10))
	if !detail.UpdatedAt.IsZero() {
		c.Header("Last-Modified", detail.UpdatedAt.UTC().Format(http.TimeFormat))
	}
}
