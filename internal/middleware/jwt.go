package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
	"github.com/noah-isme/qa-reports-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

const realm = "qa-reports"

// TokenValidator turns a bearer token into caller claims.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT requires a bearer token on every request. Rejections carry an RFC 6750
// challenge so clients can tell a missing token from an expired one.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			challenge(c, "", "")
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "bearer token required"))
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			appErr := appErrors.FromError(err)
			if appErr.Status == appErrors.ErrUnauthorized.Status {
				challenge(c, "invalid_token", appErr.Message)
			}
			response.Error(c, appErr)
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func challenge(c *gin.Context, code, description string) {
	value := fmt.Sprintf("Bearer realm=%q", realm)
	if code != "" {
		value += fmt.Sprintf(", error=%q, error_description=%q", code, description)
	}
	c.Header("WWW-Authenticate", value)
}

// Claims returns the authenticated caller, or nil on public routes.
func Claims(c *gin.Context) *models.JWTClaims {
	if value, ok := c.Get(ContextUserKey); ok {
		claims, _ := value.(*models.JWTClaims)
		return claims
	}
	return nil
}
