package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qa-reports-api/internal/dto"
	"github.com/noah-isme/qa-reports-api/internal/models"
	"github.com/noah-isme/qa-reports-api/pkg/response"
)

type schoolService interface {
	List(ctx context.Context, filter models.SchoolFilter) ([]models.School, *models.Pagination, error)
	Get(ctx context.Context, id int64) (*models.School, error)
	Create(ctx context.Context, req dto.CreateSchoolRequest, actor *models.JWTClaims) (*models.School, error)
	Update(ctx context.Context, id int64, req dto.UpdateSchoolRequest, actor *models.JWTClaims) (*models.School, error)
	Delete(ctx context.Context, id int64, actor *models.JWTClaims) error
}

// SchoolHandler manages the school directory.
type SchoolHandler struct {
	service schoolService
}

// NewSchoolHandler constructs the handler.
func NewSchoolHandler(service schoolService) *SchoolHandler {
	return &SchoolHandler{service: service}
}

// List godoc
// @Summary List schools
// @Tags Schools
// @Produce json
// @Param status query string false "active | inactive"
// @Param region query string false "Region"
// @Param search query string false "Name or location"
// @Param page query int false "Page"
// @Param per_page query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schools [get]
func (h *SchoolHandler) List(c *gin.Context) {
	filter := models.SchoolFilter{
		Status:    strings.TrimSpace(c.Query("status")),
		Region:    strings.TrimSpace(c.Query("region")),
		Search:    strings.TrimSpace(c.Query("search")),
		Page:      parseQueryInt(c, 1, "page"),
		PageSize:  parseQueryInt(c, 0, "per_page", "page_size"),
		SortBy:    strings.TrimSpace(c.Query("sort")),
		SortOrder: strings.TrimSpace(c.Query("order")),
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get school
// @Tags Schools
// @Produce json
// @Param id path int true "School ID"
// @Success 200 {object} response.Envelope
// @Router /schools/{id} [get]
func (h *SchoolHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	school, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// Create godoc
// @Summary Create school
// @Tags Schools
// @Accept json
// @Produce json
// @Param payload body dto.CreateSchoolRequest true "School"
// @Success 201 {object} response.Envelope
// @Router /schools [post]
func (h *SchoolHandler) Create(c *gin.Context) {
	var req dto.CreateSchoolRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	school, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, school)
}

// Update godoc
// @Summary Update school
// @Tags Schools
// @Accept json
// @Produce json
// @Param id path int true "School ID"
// @Param payload body dto.UpdateSchoolRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /schools/{id} [put]
func (h *SchoolHandler) Update(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateSchoolRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	school, err := h.service.Update(c.Request.Context(), id, req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// Delete godoc
// @Summary Delete school
// @Tags Schools
// @Param id path int true "School ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /schools/{id} [delete]
func (h *SchoolHandler) Delete(c *gin.Context) {
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
