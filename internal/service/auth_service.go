package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

// AuthConfig defines how identity tokens are verified.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	Audience          string
	Leeway            time.Duration
}

// Token rejection reasons, surfaced in error details and WWW-Authenticate.
const (
	TokenReasonExpired = "expired"
	TokenReasonInvalid = "invalid"
	TokenReasonRole    = "unknown_role"
)

// AuthService verifies the HS256 identity tokens minted by the surrounding
// platform. Sessions and passwords live there, not here.
type AuthService struct {
	logger *zap.Logger
	config AuthConfig
	parser *jwt.Parser
	now    func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = time.Hour
	}
	if config.Leeway < 0 {
		config.Leeway = 0
	}
	s := &AuthService{logger: logger, config: config, now: time.Now}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(config.Leeway),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	s.parser = jwt.NewParser(opts...)
	return s
}

// ValidateToken checks signature, lifetime, issuer and audience, then
// normalises the caller. The subject doubles as the user id when the token
// has no explicit user_id claim.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	_, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.config.AccessTokenSecret), nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, rejectToken(TokenReasonExpired, "token expired")
	case err != nil:
		s.logger.Debug("token rejected", zap.Error(err))
		return nil, rejectToken(TokenReasonInvalid, "invalid token")
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, rejectToken(TokenReasonInvalid, "token has no subject")
	}
	claims.Role = models.UserRole(strings.ToUpper(strings.TrimSpace(string(claims.Role))))
	if !claims.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unrecognised role").
			WithDetails(map[string]interface{}{"reason": TokenReasonRole})
	}
	return claims, nil
}

func rejectToken(reason, message string) error {
	return appErrors.Clone(appErrors.ErrUnauthorized, message).
		WithDetails(map[string]interface{}{"reason": reason})
}

// IssueToken signs a token for a user. Used by the qa-admin CLI and tests.
func (s *AuthService) IssueToken(user *models.User) (string, time.Time, error) {
	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	if s.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	s.logger.Debug("issued access token", zap.String("user_id", user.ID), zap.Time("expires_at", expiresAt))
	return signed, expiresAt, nil
}
