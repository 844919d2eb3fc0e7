package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

type statsRepository interface {
	CountSchools(ctx context.Context) (int, error)
	OverdueSchools(ctx context.Context, overdueDays, limit int) ([]models.OverdueSchool, int, error)
	Compliance(ctx context.Context) (models.ComplianceBreakdown, error)
	CompliantSchools(ctx context.Context) (int, error)
	CountByAuthor(ctx context.Context, authorID string) (int, error)
	Trend(ctx context.Context, months int) ([]models.TrendPoint, error)
	CriticalReports(ctx context.Context, days, limit int) ([]models.StaleReport, error)
	StaleDrafts(ctx context.Context, authorID string, days, limit int) ([]models.StaleReport, error)
}

// StatsServiceConfig tunes dashboard thresholds.
type StatsServiceConfig struct {
	CacheTTL       time.Duration
	OverdueDays    int
	OverdueListMax int
	TrendMonths    int
	CriticalDays   int
	StaleDraftDays int
}

// StatsServiceParams groups constructor dependencies.
type StatsServiceParams struct {
	Repo   statsRepository
	Cache  *CacheService
	Logger *zap.Logger
	Config StatsServiceConfig
}

// StatsService composes the dashboard numbers shown to every signed-in user.
type StatsService struct {
	repo   statsRepository
	cache  *CacheService
	logger *zap.Logger
	cfg    StatsServiceConfig
}

// NewStatsService constructs a StatsService with sane defaults.
func NewStatsService(params StatsServiceParams) *StatsService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.OverdueDays <= 0 {
		cfg.OverdueDays = 90
	}
	if cfg.OverdueListMax <= 0 {
		cfg.OverdueListMax = 5
	}
	if cfg.TrendMonths <= 0 {
		cfg.TrendMonths = 6
	}
	if cfg.CriticalDays <= 0 {
		cfg.CriticalDays = 30
	}
	if cfg.StaleDraftDays <= 0 {
		cfg.StaleDraftDays = 3
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{repo: params.Repo, cache: params.Cache, logger: logger, cfg: cfg}
}

// Get returns the dashboard for the caller, served from the transient store when fresh.
func (s *StatsService) Get(ctx context.Context, claims *models.JWTClaims) (*models.Stats, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	var stats models.Stats
	load := func(ctx context.Context) error {
		composed, err := s.compose(ctx, claims.UserID)
		if err != nil {
			return err
		}
		stats = *composed
		return nil
	}
	if s.cache == nil {
		if err := load(ctx); err != nil {
			return nil, err
		}
		return &stats, nil
	}
	key := fmt.Sprintf("stats:%s", claims.UserID)
	if err := s.cache.Remember(ctx, key, s.cfg.CacheTTL, &stats, load); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *StatsService) compose(ctx context.Context, userID string) (*models.Stats, error) {
	stats := &models.Stats{}
	var critical, drafts []models.StaleReport

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalSchools, err = s.repo.CountSchools(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.OverdueSchools, stats.OverdueVisits, err = s.repo.OverdueSchools(gctx, s.cfg.OverdueDays, s.cfg.OverdueListMax)
		return err
	})
	g.Go(func() (err error) {
		stats.Compliance, err = s.repo.Compliance(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.CompliantSchools, err = s.repo.CompliantSchools(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.MyReports, err = s.repo.CountByAuthor(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		stats.Trend, err = s.repo.Trend(gctx, s.cfg.TrendMonths)
		return err
	})
	g.Go(func() (err error) {
		critical, err = s.repo.CriticalReports(gctx, s.cfg.CriticalDays, 5)
		return err
	})
	g.Go(func() (err error) {
		drafts, err = s.repo.StaleDrafts(gctx, userID, s.cfg.StaleDraftDays, 5)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute stats")
	}

	if stats.OverdueSchools == nil {
		stats.OverdueSchools = []models.OverdueSchool{}
	}
	if stats.Trend == nil {
		stats.Trend = []models.TrendPoint{}
	}
	stats.ActionItems = buildActionItems(critical, stats.OverdueSchools, drafts)
	return stats, nil
}

func buildActionItems(critical []models.StaleReport, overdue []models.OverdueSchool, drafts []models.StaleReport) []models.ActionItem {
	items := make([]models.ActionItem, 0, len(critical)+len(drafts)+3)
	for _, report := range critical {
		id, school := report.ID, report.SchoolID
		items = append(items, models.ActionItem{
			Kind:       "critical_report",
			Title:      fmt.Sprintf("Needs improvement on %s", report.InspectionDate),
			ReportID:   &id,
			SchoolID:   &school,
			SchoolName: report.SchoolName,
		})
	}
	for i, school := range overdue {
		if i == 3 {
			break
		}
		id := school.ID
		title := "No inspection on record"
		if school.LastInspectionDate != nil {
			title = fmt.Sprintf("Last inspected %s", *school.LastInspectionDate)
		}
		items = append(items, models.ActionItem{Kind: "overdue_visit", Title: title, SchoolID: &id, SchoolName: school.Name})
	}
	for _, draft := range drafts {
		id, school := draft.ID, draft.SchoolID
		items = append(items, models.ActionItem{
			Kind:       "stale_draft",
			Title:      fmt.Sprintf("Draft from %s is waiting", draft.InspectionDate),
			ReportID:   &id,
			SchoolID:   &school,
			SchoolName: draft.SchoolName,
		})
	}
	return items
}
