package service

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
	"github.com/noah-isme/qa-reports-api/pkg/middleware/requestid"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// recordAudit writes a change row tagged with the caller and request id.
// Failures are logged; the mutation they describe has already committed.
func recordAudit(ctx context.Context, writer auditWriter, logger *zap.Logger, claims *models.JWTClaims, action, resource, resourceID string, before, after interface{}) {
	if writer == nil {
		return
	}
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		RequestID: requestid.FromContext(ctx),
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if claims != nil {
		userID := claims.UserID
		entry.UserID = &userID
	}
	entry.Before = snapshot(before)
	entry.After = snapshot(after)
	if err := writer.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("audit log failed",
			zap.String("action", action),
			zap.String("request_id", entry.RequestID),
			zap.Error(err))
	}
}

func snapshot(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil || string(raw) == "null" {
		return nil
	}
	return raw
}

const defaultAuditPage = 50

type auditTrailReader interface {
	AuditTrail(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error)
}

// AuditService exposes the change trail to administrators.
type AuditService struct {
	repo auditTrailReader
}

// NewAuditService constructs the service.
func NewAuditService(repo auditTrailReader) *AuditService {
	return &AuditService{repo: repo}
}

var auditResources = map[string]bool{"": true, "report": true, "school": true, "settings": true}

// Trail lists trail rows newest first.
func (s *AuditService) Trail(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error) {
	filter.Resource = strings.ToLower(strings.TrimSpace(filter.Resource))
	if !auditResources[filter.Resource] {
		return nil, appErrors.Validation("resource", "must be one of report, school, settings")
	}
	if filter.ResourceID != "" && filter.Resource == "" {
		return nil, appErrors.Validation("resource", "required when resource_id is set")
	}
	filter.Action = strings.ToUpper(strings.TrimSpace(filter.Action))
	if filter.Limit <= 0 {
		filter.Limit = defaultAuditPage
	}
	rows, err := s.repo.AuditTrail(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}
	if rows == nil {
		rows = []models.AuditLog{}
	}
	return rows, nil
}
