package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

// Rate-limited actions.
const (
	ActionCreateReport    = "create_report"
	ActionGenerateSummary = "generate_summary"
	ActionParseDocument   = "parse_document"
	ActionUploadPhotos    = "upload_photos"
)

// WindowCounter is a transient store that counts hits atomically. IncrWithin
// admits a hit only while the counter is below limit; the first hit opens a
// window that expires after window. It returns the time left in the window.
type WindowCounter interface {
	IncrWithin(ctx context.Context, key string, limit int64, window time.Duration) (bool, time.Duration, error)
}

// RateLimiter keeps fixed-window counters per action and subject in the transient store.
type RateLimiter struct {
	store   WindowCounter
	metrics *MetricsService
	logger  *zap.Logger
}

// NewRateLimiter constructs a limiter.
func NewRateLimiter(store WindowCounter, metrics *MetricsService, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, metrics: metrics, logger: logger}
}

// SubjectKey identifies the caller: the authenticated user, else the network address.
func SubjectKey(claims *models.JWTClaims, clientIP string) string {
	if claims != nil && claims.UserID != "" {
		return "user:" + claims.UserID
	}
	return "ip:" + clientIP
}

func rateLimitKey(action, subject string) string {
	return fmt.Sprintf("rate_limit:%s:%s", action, subject)
}

// Check admits or rejects one request. A store outage admits the request.
func (l *RateLimiter) Check(ctx context.Context, action, subject string, limit int, window time.Duration) error {
	if l == nil || l.store == nil || limit <= 0 || window <= 0 {
		return nil
	}
	key := rateLimitKey(action, subject)

	admitted, remaining, err := l.store.IncrWithin(ctx, key, int64(limit), window)
	if err != nil {
		l.logger.Warn("rate limiter store unavailable", zap.String("key", key), zap.Error(err))
		return nil
	}
	if admitted {
		return nil
	}

	l.metrics.RecordRateLimited(action)
	retryAfter := int(math.Ceil(remaining.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return appErrors.Clone(appErrors.ErrRateLimited, "").WithDetails(map[string]interface{}{
		"action":      action,
		"limit":       limit,
		"retry_after": retryAfter,
	})
}
