package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qa-reports-api/internal/middleware"
	"github.com/noah-isme/qa-reports-api/internal/models"
	"github.com/noah-isme/qa-reports-api/internal/service"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

func parseIDParam(c *gin.Context, name string) (int64, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Validation(name, "must be a positive integer")
	}
	return id, nil
}

func parseQueryInt(c *gin.Context, def int, keys ...string) int {
	for _, key := range keys {
		if raw := strings.TrimSpace(c.Query(key)); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				return v
			}
		}
	}
	return def
}

func parseQueryInt64(c *gin.Context, key string) (int64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, appErrors.Validation(key, "must be a positive integer")
	}
	return v, nil
}

// parsePreconditions reads If-Unmodified-Since (HTTP-date or RFC 3339) and X-Version.
func parsePreconditions(c *gin.Context) (service.Preconditions, error) {
	var pre service.Preconditions
	if raw := strings.TrimSpace(c.GetHeader("If-Unmodified-Since")); raw != "" {
		ts, err := http.ParseTime(raw)
		if err != nil {
			ts, err = time.Parse(time.RFC3339, raw)
		}
		if err != nil {
			return pre, appErrors.Validation("If-Unmodified-Since", "must be an HTTP date")
		}
		pre.IfUnmodifiedSince = &ts
	}
	if raw := strings.TrimSpace(c.GetHeader("X-Version")); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return pre, appErrors.Validation("X-Version", "must be a non-negative integer")
		}
		pre.Version = &v
	}
	return pre, nil
}

func bindJSON(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	return nil
}
