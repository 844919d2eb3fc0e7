package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qa-reports-api/internal/models"
	"github.com/noah-isme/qa-reports-api/internal/repository"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

type statsRepoStub struct {
	calls    int32
	failWith error
}

func (s *statsRepoStub) CountSchools(ctx context.Context) (int, error) {
	atomic.AddInt32(&s.calls, 1)
	return 12, s.failWith
}

func (s *statsRepoStub) OverdueSchools(ctx context.Context, overdueDays, limit int) ([]models.OverdueSchool, int, error) {
	last := "2023-01-04"
	return []models.OverdueSchool{
		{ID: 1, Name: "Maple Street"},
		{ID: 2, Name: "Oak Avenue", LastInspectionDate: &last},
		{ID: 3, Name: "Pine Road"},
		{ID: 4, Name: "Elm Court"},
	}, 7, nil
}

func (s *statsRepoStub) Compliance(ctx context.Context) (models.ComplianceBreakdown, error) {
	return models.ComplianceBreakdown{Exceeds: 2, Meets: 5, NeedsImprovement: 1}, nil
}

func (s *statsRepoStub) CompliantSchools(ctx context.Context) (int, error) { return 6, nil }

func (s *statsRepoStub) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	if authorID == "officer-1" {
		return 3, nil
	}
	return 0, nil
}

func (s *statsRepoStub) Trend(ctx context.Context, months int) ([]models.TrendPoint, error) {
	return []models.TrendPoint{{Month: "2024-02", Score: 85, Count: 2}}, nil
}

func (s *statsRepoStub) CriticalReports(ctx context.Context, days, limit int) ([]models.StaleReport, error) {
	return []models.StaleReport{{ID: 9, SchoolID: 2, SchoolName: "Oak Avenue", InspectionDate: "2024-03-01"}}, nil
}

func (s *statsRepoStub) StaleDrafts(ctx context.Context, authorID string, days, limit int) ([]models.StaleReport, error) {
	return nil, nil
}

func TestStatsServiceComposesDashboard(t *testing.T) {
	svc := NewStatsService(StatsServiceParams{Repo: &statsRepoStub{}})

	stats, err := svc.Get(context.Background(), officerClaims)
	require.NoError(t, err)
	assert.Equal(t, 12, stats.TotalSchools)
	assert.Equal(t, 7, stats.OverdueVisits)
	assert.Len(t, stats.OverdueSchools, 4)
	assert.Equal(t, 3, stats.MyReports)
	assert.Equal(t, 6, stats.CompliantSchools)

	// One critical report plus the top three overdue schools.
	require.Len(t, stats.ActionItems, 4)
	assert.Equal(t, "critical_report", stats.ActionItems[0].Kind)
	assert.Equal(t, "No inspection on record", stats.ActionItems[1].Title)
	assert.Equal(t, "Last inspected 2023-01-04", stats.ActionItems[2].Title)
}

func TestStatsServiceCachesPerUser(t *testing.T) {
	repo := &statsRepoStub{}
	cache := NewCacheService(CacheServiceParams{Store: repository.NewMemoryCacheRepository(time.Minute), TTL: time.Minute})
	svc := NewStatsService(StatsServiceParams{Repo: repo, Cache: cache})
	ctx := context.Background()

	_, err := svc.Get(ctx, officerClaims)
	require.NoError(t, err)
	cached, err := svc.Get(ctx, officerClaims)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&repo.calls))
	assert.Equal(t, 3, cached.MyReports)

	other, err := svc.Get(ctx, otherOfficer)
	require.NoError(t, err)
	assert.Equal(t, 0, other.MyReports)
	assert.Equal(t, int32(2), atomic.LoadInt32(&repo.calls))

	require.NoError(t, cache.Invalidate(ctx, statsCachePattern))
	_, err = svc.Get(ctx, officerClaims)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&repo.calls))
}

func TestStatsServiceWrapsRepositoryErrors(t *testing.T) {
	svc := NewStatsService(StatsServiceParams{Repo: &statsRepoStub{failWith: errors.New("db down")}})

	_, err := svc.Get(context.Background(), officerClaims)
	assert.Equal(t, appErrors.ErrInternal.Code, errorCode(err))

	_, err = svc.Get(context.Background(), nil)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errorCode(err))
}
