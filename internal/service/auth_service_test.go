package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

func TestAuthServiceRoundTrip(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "qa-platform", Audience: "qa-reports"})

	token, expires, err := svc.IssueToken(&models.User{ID: "user-1", Email: "a@example.com", FullName: "Ada", Role: models.RoleQAOfficer})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleQAOfficer, claims.Role)
	assert.True(t, claims.Can(models.CapCreate))
}

func TestAuthServiceRejectsForeignTokens(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "qa-platform"})

	other := NewAuthService(nil, AuthConfig{AccessTokenSecret: "other", Issuer: "qa-platform"})
	token, _, err := other.IssueToken(&models.User{ID: "user-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errorCode(err))

	wrongIssuer := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "elsewhere"})
	token, _, err = wrongIssuer.IssueToken(&models.User{ID: "user-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errorCode(err))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assert.Error(t, err)
}

func TestAuthServiceNormalisesRoleAndSubject(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret"})
	claims := &models.JWTClaims{Role: " admin ", RegisteredClaims: jwt.RegisteredClaims{Subject: "user-9", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	parsed, err := svc.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-9", parsed.UserID)
	assert.Equal(t, models.RoleAdmin, parsed.Role)
}

func TestAuthServiceExpiryHonoursLeeway(t *testing.T) {
	issuer := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Minute})
	token, expires, err := issuer.IssueToken(&models.User{ID: "user-1", Role: models.RoleQAOfficer})
	require.NoError(t, err)

	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Leeway: 30 * time.Second})
	svc.now = func() time.Time { return expires.Add(10 * time.Second) }
	_, err = svc.ValidateToken(token)
	require.NoError(t, err)

	svc.now = func() time.Time { return expires.Add(time.Minute) }
	_, err = svc.ValidateToken(token)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
	assert.Equal(t, TokenReasonExpired, appErr.Details["reason"])
}

func TestAuthServiceRejectsUnknownRoles(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret"})
	token, _, err := svc.IssueToken(&models.User{ID: "user-1", Role: "JANITOR"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(err))
}

func TestAuthServiceRequiresExpiry(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret"})
	forever := &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, forever).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errorCode(err))
}
