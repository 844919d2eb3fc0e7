package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qa-reports-api/internal/dto"
	"github.com/noah-isme/qa-reports-api/internal/models"
	"github.com/noah-isme/qa-reports-api/internal/service"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
	"github.com/noah-isme/qa-reports-api/pkg/response"
)

// MaxDocumentBytes caps documents sent to /ai/parse-document.
const MaxDocumentBytes = 10 << 20

type aiService interface {
	Generate(ctx context.Context, reportID int64, claims *models.JWTClaims) (*models.AISummary, error)
	ParseDocument(ctx context.Context, doc service.Document, claims *models.JWTClaims) (*dto.ParsedDocument, error)
}

// AIHandler exposes summary generation and document parsing.
type AIHandler struct {
	service aiService
}

// NewAIHandler constructs the handler.
func NewAIHandler(service aiService) *AIHandler {
	return &AIHandler{service: service}
}

// GenerateSummary godoc
// @Summary Generate an AI summary for a report
// @Tags AI
// @Produce json
// @Param id path int true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /reports/{id}/generate-summary [post]
func (h *AIHandler) GenerateSummary(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.service.Generate(c.Request.Context(), id, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// ParseDocument godoc
// @Summary Extract a draft report from an inspection document
// @Tags AI
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF, image or text document"
// @Success 200 {object} response.Envelope
// @Router /ai/parse-document [post]
func (h *AIHandler) ParseDocument(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Validation("file", "a document is required"))
		return
	}
	if header.Size > MaxDocumentBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "document exceeds 10 MiB"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable document"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxDocumentBytes+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable document"))
		return
	}
	if len(data) > MaxDocumentBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "document exceeds 10 MiB"))
		return
	}
	if len(data) == 0 {
		response.Error(c, appErrors.Validation("file", "document is empty"))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	parsed, err := h.service.ParseDocument(c.Request.Context(), service.Document{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, claimsFromContext(c))
	if err != nil {
		var appErr *appErrors.Error
		if !errors.As(err, &appErr) {
			err = appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "document parsing failed")
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, parsed, nil)
}
