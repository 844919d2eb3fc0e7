package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qa-reports-api/internal/models"
	"github.com/noah-isme/qa-reports-api/pkg/middleware/requestid"
)

// AuditSink persists audit rows.
type AuditSink interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type accessRecord struct {
	Route     string `json:"route"`
	Method    string `json:"method"`
	Status    int    `json:"status"`
	Query     string `json:"query,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Bytes     int    `json:"bytes"`
}

// Audit records an access row after a successful request. Services audit
// their own mutations; this covers reads such as exports.
func Audit(sink AuditSink, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		if sink == nil || c.Writer.Status() >= 400 {
			return
		}
		entry := &models.AuditLog{
			Action:    action,
			Resource:  resource,
			RequestID: requestid.Value(c),
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		if claims := Claims(c); claims != nil {
			uid := claims.UserID
			entry.UserID = &uid
		}
		if id := c.Param("id"); id != "" {
			entry.ResourceID = &id
		}
		entry.After, _ = json.Marshal(accessRecord{
			Route:     c.FullPath(),
			Method:    c.Request.Method,
			Status:    c.Writer.Status(),
			Query:     c.Request.URL.RawQuery,
			LatencyMS: time.Since(started).Milliseconds(),
			Bytes:     c.Writer.Size(),
		})
		_ = sink.CreateAuditLog(c.Request.Context(), entry)
	}
}
