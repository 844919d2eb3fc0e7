// Package requestid tags every request with a correlation id that follows it
// into logs, audit rows and error reports.
package requestid

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderKey carries the id in both directions.
const HeaderKey = "X-Request-ID"

const (
	ginKey = "request_id"
	maxLen = 64
)

type ctxKey struct{}

// Middleware reuses a well-formed inbound id or mints a UUID, echoes it back
// and stores it on both the gin context and the request context.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderKey)
		if !Valid(id) {
			id = uuid.NewString()
		}
		c.Set(ginKey, id)
		c.Request = c.Request.WithContext(WithID(c.Request.Context(), id))
		c.Header(HeaderKey, id)
		c.Next()
	}
}

// Valid accepts 1-64 characters of [A-Za-z0-9._:-]. Anything else is replaced
// so client-supplied ids cannot smuggle spaces or control bytes into logs.
func Valid(id string) bool {
	if id == "" || len(id) > maxLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		ch := id[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-', ch == '_', ch == '.', ch == ':':
		default:
			return false
		}
	}
	return true
}

// Value returns the id stored on the gin context.
func Value(c *gin.Context) string {
	if id := c.GetString(ginKey); id != "" {
		return id
	}
	if c.Request != nil {
		return FromContext(c.Request.Context())
	}
	return ""
}

// WithID attaches id to ctx.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the id attached by the middleware, or "".
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
