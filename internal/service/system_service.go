package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/qa-reports-api/internal/dto"
	"github.com/noah-isme/qa-reports-api/internal/models"
	"github.com/noah-isme/qa-reports-api/pkg/jobs"
)

const (
	componentOK       = "ok"
	componentError    = "error"
	componentDisabled = "disabled"
	componentNoKey    = "missing_key"
)

type databasePinger interface {
	PingContext(ctx context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type queueStatter interface {
	Stats() jobs.Stats
}

type aiConfiguration interface {
	Configured(ctx context.Context) bool
}

// SystemServiceParams groups the dependencies probed by the system check.
type SystemServiceParams struct {
	Database   databasePinger
	Transient  pinger
	Remote     pinger
	AI         aiConfiguration
	DocumentAI bool
	Toggles    featureToggles
	Queue      queueStatter
	Metrics    *MetricsService
	Logger     *zap.Logger
	Timeout    time.Duration
}

// SystemReport is the system check plus a metrics snapshot.
type SystemReport struct {
	dto.SystemCheck
	Metrics MetricsSnapshot `json:"metrics"`
	Queue   *jobs.Stats     `json:"queue,omitempty"`
}

// SystemService reports dependency health to administrators.
type SystemService struct {
	params SystemServiceParams
	logger *zap.Logger
}

// NewSystemService constructs a SystemService.
func NewSystemService(params SystemServiceParams) *SystemService {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Timeout <= 0 {
		params.Timeout = 3 * time.Second
	}
	return &SystemService{params: params, logger: params.Logger}
}

// Me describes the caller with a capability map.
func (s *SystemService) Me(claims *models.JWTClaims) dto.MeResponse {
	return dto.MeResponse{
		ID:           claims.UserID,
		Email:        claims.Email,
		FullName:     claims.FullName,
		Role:         claims.Role,
		Capabilities: models.CapabilitiesFor(claims.Role).Map(),
	}
}

// Check probes every configured dependency with a bounded timeout.
func (s *SystemService) Check(ctx context.Context) SystemReport {
	ctx, cancel := context.WithTimeout(ctx, s.params.Timeout)
	defer cancel()

	components := map[string]dto.ComponentStatus{
		"database":        s.probe(ctx, "database", s.databasePing()),
		"transient_store": s.probe(ctx, "transient_store", s.params.Transient),
		"remote_storage":  s.probe(ctx, "remote_storage", s.params.Remote),
		"ai":              s.aiStatus(ctx),
		"document_ai":     {Status: componentDisabled},
	}
	if s.params.DocumentAI {
		components["document_ai"] = dto.ComponentStatus{Status: componentOK}
	}
	if s.params.Remote == nil {
		components["remote_storage"] = dto.ComponentStatus{Status: componentDisabled, Detail: "photos are stored on the local tier"}
	}

	status := componentOK
	for _, component := range components {
		if component.Status == componentError {
			status = "degraded"
			break
		}
	}
	report := SystemReport{
		SystemCheck: dto.SystemCheck{Status: status, Components: components},
		Metrics:     s.params.Metrics.Snapshot(),
	}
	if s.params.Queue != nil {
		stats := s.params.Queue.Stats()
		report.Queue = &stats
	}
	return report
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func (s *SystemService) databasePing() pinger {
	if s.params.Database == nil {
		return nil
	}
	return pingFunc(s.params.Database.PingContext)
}

func (s *SystemService) probe(ctx context.Context, name string, target pinger) dto.ComponentStatus {
	if target == nil {
		return dto.ComponentStatus{Status: componentDisabled}
	}
	if err := target.Ping(ctx); err != nil {
		s.logger.Warn("system check failed", zap.String("component", name), zap.Error(err))
		return dto.ComponentStatus{Status: componentError, Detail: err.Error()}
	}
	return dto.ComponentStatus{Status: componentOK}
}

func (s *SystemService) aiStatus(ctx context.Context) dto.ComponentStatus {
	if s.params.Toggles != nil && !s.params.Toggles.Enabled(ctx, models.SettingEnableAI) {
		return dto.ComponentStatus{Status: componentDisabled, Detail: "disabled in settings"}
	}
	if s.params.AI == nil || !s.params.AI.Configured(ctx) {
		return dto.ComponentStatus{Status: componentNoKey, Detail: "API key not configured"}
	}
	return dto.ComponentStatus{Status: componentOK, Detail: "API key set, connectivity not tested"}
}

// Ready reports whether the service can take traffic. Only the database is
// required; the transient store and remote tier have fallbacks.
func (s *SystemService) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.params.Timeout)
	defer cancel()
	if db := s.databasePing(); db != nil {
		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	return nil
}
