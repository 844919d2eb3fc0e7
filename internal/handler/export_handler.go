package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qa-reports-api/internal/models"
	"github.com/noah-isme/qa-reports-api/internal/service"
	"github.com/noah-isme/qa-reports-api/pkg/response"
)

type exportService interface {
	ReportPDF(ctx context.Context, id int64, claims *models.JWTClaims) (*service.ExportFile, error)
	ReportList(ctx context.Context, filter models.ReportFilter, format string, claims *models.JWTClaims) (*service.ExportFile, error)
}

// ExportHandler serves report downloads.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// ReportPDF godoc
// @Summary Download a report as PDF
// @Tags Export
// @Produce application/pdf
// @Param id path int true "Report ID"
// @Success 200
// @Router /reports/{id}/pdf [get]
func (h *ExportHandler) ReportPDF(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.service.ReportPDF(c.Request.Context(), id, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data, c.Query("inline") == "1")
}

// ReportList godoc
// @Summary Download the filtered report list as CSV or XLSX
// @Tags Export
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "csv (default) or xlsx"
// @Param school_id query int false "School ID"
// @Param status query string false "Status"
// @Param report_type query string false "Report type"
// @Param search query string false "Free text"
// @Success 200
// @Router /reports/export [get]
func (h *ExportHandler) ReportList(c *gin.Context) {
	claims := claimsFromContext(c)
	filter, err := parseReportFilter(c, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.service.ReportList(c.Request.Context(), filter, c.Query("format"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data, false)
}
