// Package response writes the JSON envelope every endpoint returns.
package response

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

// Envelope wraps every JSON body. Exactly one of Data or Error is set.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}

// JSON writes data with optional pagination and meta.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	noStore(c)
	body := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 {
		body.Meta = meta[0]
	}
	c.JSON(status, body)
}

// Created writes a 201 envelope.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// NoContent writes a bare 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
	c.Writer.WriteHeaderNow()
}

// Error aborts the chain with the error envelope. Server-side failures are
// also pushed onto c.Errors for the logging and telemetry middleware; rate
// limit errors get a Retry-After header from their retry_after detail.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	if appErr.Status == http.StatusTooManyRequests {
		if secs, ok := retryAfter(appErr.Details["retry_after"]); ok {
			c.Header("Retry-After", strconv.Itoa(secs))
		}
	}
	noStore(c)
	c.AbortWithStatusJSON(appErr.Status, Envelope{Error: appErr})
}

func retryAfter(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n + 0.999), true
	case string:
		secs, err := strconv.Atoi(n)
		return secs, err == nil
	}
	return 0, false
}

// Attachment streams a generated file. inline asks browsers to render it in
// place; non-ASCII filenames are encoded per RFC 2231.
func Attachment(c *gin.Context, filename, contentType string, data []byte, inline bool) {
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	if header := mime.FormatMediaType(disposition, map[string]string{"filename": filename}); header != "" {
		c.Header("Content-Disposition", header)
	} else {
		c.Header("Content-Disposition", disposition)
	}
	noStore(c)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, contentType, data)
}
