package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, rec
}

func TestErrorSetsRetryAfterForRateLimits(t *testing.T) {
	c, rec := newContext()
	Error(c, appErrors.Clone(appErrors.ErrRateLimited, "").WithDetails(map[string]interface{}{"retry_after": 12}))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "12", rec.Header().Get("Retry-After"))
	assert.True(t, c.IsAborted())
	assert.Empty(t, c.Errors)
}

func TestErrorRecordsServerFailures(t *testing.T) {
	c, rec := newContext()
	Error(c, errors.New("connection reset"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Len(t, c.Errors, 1)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestAttachmentEncodesFilenames(t *testing.T) {
	c, rec := newContext()
	Attachment(c, "report 7.pdf", "application/pdf", []byte("%PDF"), false)
	assert.Equal(t, `attachment; filename="report 7.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	c, rec = newContext()
	Attachment(c, "sekolah_é.pdf", "application/pdf", nil, true)
	assert.Equal(t, "inline; filename*=utf-8''sekolah_%C3%A9.pdf", rec.Header().Get("Content-Disposition"))
}

func TestNoContentWritesStatusImmediately(t *testing.T) {
	c, rec := newContext()
	NoContent(c)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
}
