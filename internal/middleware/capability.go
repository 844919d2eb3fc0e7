package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
	"github.com/noah-isme/qa-reports-api/pkg/response"
)

// RequireCapability admits callers holding at least one of the listed capabilities.
// Ownership-scoped checks (edit_own, delete_own, view_own) stay in the services.
func RequireCapability(caps ...models.Capability) gin.HandlerFunc {
	names := make([]string, len(caps))
	for i, capability := range caps {
		names[i] = string(capability)
	}
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		for _, capability := range caps {
			if claims.Can(capability) {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "missing capability").WithDetails(map[string]interface{}{
			"required": strings.Join(names, "|"),
		}))
		c.Abort()
	}
}
