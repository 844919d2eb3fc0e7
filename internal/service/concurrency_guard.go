package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

type userDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Preconditions are the optimistic-locking assertions a caller may attach to a mutation.
// Absent preconditions are not evaluated.
type Preconditions struct {
	IfUnmodifiedSince *time.Time
	Version           *int64
}

// ConcurrencyGuard rejects mutations based on stale reads of a report.
type ConcurrencyGuard struct {
	users   userDirectory
	metrics *MetricsService
	logger  *zap.Logger
}

// NewConcurrencyGuard constructs the guard.
func NewConcurrencyGuard(users userDirectory, metrics *MetricsService, logger *zap.Logger) *ConcurrencyGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConcurrencyGuard{users: users, metrics: metrics, logger: logger}
}

// Check evaluates the preconditions against the stored report.
func (g *ConcurrencyGuard) Check(ctx context.Context, report *models.Report, pre Preconditions) error {
	if pre.IfUnmodifiedSince != nil {
		// HTTP dates carry whole seconds only.
		server := report.UpdatedAt.Truncate(time.Second)
		client := pre.IfUnmodifiedSince.Truncate(time.Second)
		if server.After(client) {
			g.metrics.RecordConflict("timestamp")
			return appErrors.Clone(appErrors.ErrConflict, "report was modified after the supplied timestamp").WithDetails(map[string]interface{}{
				"updated_by": g.lastModifier(ctx, report),
				"updated_at": report.UpdatedAt.UTC().Format(time.RFC3339),
			})
		}
	}
	if pre.Version != nil && *pre.Version < report.VersionID {
		g.metrics.RecordConflict("version")
		return VersionConflict(*pre.Version, report.VersionID)
	}
	return nil
}

// VersionConflict builds the 409 returned for a stale version.
func VersionConflict(clientVersion, serverVersion int64) error {
	return appErrors.Clone(appErrors.ErrVersionConflict, "").WithDetails(map[string]interface{}{
		"client_version": clientVersion,
		"server_version": serverVersion,
	})
}

func (g *ConcurrencyGuard) lastModifier(ctx context.Context, report *models.Report) string {
	userID := report.AuthorID
	if report.UpdatedBy != nil && *report.UpdatedBy != "" {
		userID = *report.UpdatedBy
	}
	if userID == report.AuthorID && report.AuthorName != "" {
		return report.AuthorName
	}
	if g.users != nil {
		user, err := g.users.FindByID(ctx, userID)
		if err == nil && user.FullName != "" {
			return user.FullName
		}
		if err != nil {
			g.logger.Debug("resolve last modifier", zap.String("user_id", userID), zap.Error(err))
		}
	}
	if report.AuthorName != "" {
		return report.AuthorName
	}
	return userID
}
