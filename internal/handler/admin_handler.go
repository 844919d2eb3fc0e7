package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qa-reports-api/internal/dto"
	"github.com/noah-isme/qa-reports-api/internal/models"
	"github.com/noah-isme/qa-reports-api/internal/service"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
	"github.com/noah-isme/qa-reports-api/pkg/response"
)

type settingsService interface {
	List(ctx context.Context) ([]dto.SettingItem, error)
	Update(ctx context.Context, req dto.UpdateSettingsRequest, actor *models.JWTClaims) ([]dto.SettingItem, error)
}

type statsService interface {
	Get(ctx context.Context, claims *models.JWTClaims) (*models.Stats, error)
}

type systemService interface {
	Me(claims *models.JWTClaims) dto.MeResponse
	Check(ctx context.Context) service.SystemReport
}

type auditService interface {
	Trail(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error)
}

// AdminHandler serves the caller profile, settings, dashboard stats, the audit
// trail and the system check.
type AdminHandler struct {
	settings settingsService
	stats    statsService
	system   systemService
	audit    auditService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(settings settingsService, stats statsService, system systemService, audit auditService) *AdminHandler {
	return &AdminHandler{settings: settings, stats: stats, system: system, audit: audit}
}

// Me godoc
// @Summary Current caller and capability map
// @Tags Session
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me [get]
func (h *AdminHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, h.system.Me(claims), nil)
}

// ListSettings godoc
// @Summary List settings (secrets masked)
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings [get]
func (h *AdminHandler) ListSettings(c *gin.Context) {
	items, err := h.settings.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// UpdateSettings godoc
// @Summary Bulk update settings
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body dto.UpdateSettingsRequest true "Settings"
// @Success 200 {object} response.Envelope
// @Router /settings [post]
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var req dto.UpdateSettingsRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.settings.Update(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Stats godoc
// @Summary Dashboard statistics
// @Tags Stats
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.stats.Get(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// SystemCheck godoc
// @Summary Dependency health
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /system-check [get]
func (h *AdminHandler) SystemCheck(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.system.Check(c.Request.Context()), nil)
}

// AuditTrail godoc
// @Summary Change trail, newest first
// @Tags System
// @Produce json
// @Param resource query string false "report, school or settings"
// @Param resource_id query string false "Resource identifier"
// @Param user_id query string false "Acting user"
// @Param action query string false "Audit action"
// @Param limit query int false "Rows (max 200)"
// @Success 200 {object} response.Envelope
// @Router /audit [get]
func (h *AdminHandler) AuditTrail(c *gin.Context) {
	rows, err := h.audit.Trail(c.Request.Context(), models.AuditFilter{
		Resource:   c.Query("resource"),
		ResourceID: c.Query("resource_id"),
		UserID:     c.Query("user_id"),
		Action:     c.Query("action"),
		Limit:      parseQueryInt(c, 0, "limit"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
