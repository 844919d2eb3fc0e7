package service

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"go.uber.org/zap"
)

const cleanupLockKey = "lock:cleanup:temp-uploads"

type lockObtainer interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

type staleFileSweeper interface {
	CleanupOlderThan(age time.Duration) ([]string, error)
}

// CleanupConfig schedules the sweep.
type CleanupConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
	LockTTL  time.Duration
}

// CleanupService removes abandoned temporary uploads. With a locker configured only one
// replica sweeps per interval.
type CleanupService struct {
	locker lockObtainer
	temp   staleFileSweeper
	logger *zap.Logger
	cfg    CleanupConfig
}

// NewCleanupService constructs the sweeper. locker may be nil for single-instance deployments.
func NewCleanupService(locker lockObtainer, temp staleFileSweeper, logger *zap.Logger, cfg CleanupConfig) *CleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	return &CleanupService{locker: locker, temp: temp, logger: logger, cfg: cfg}
}

// RunOnce performs a single sweep and returns the removed file names. A sweep already held
// by another replica is skipped without error.
func (s *CleanupService) RunOnce(ctx context.Context) ([]string, error) {
	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, cleanupLockKey, s.cfg.LockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			s.logger.Debug("cleanup already running elsewhere")
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				s.logger.Warn("release cleanup lock", zap.Error(err))
			}
		}()
	}

	removed, err := s.temp.CleanupOlderThan(s.cfg.MaxAge)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		s.logger.Info("removed stale temporary uploads", zap.Int("count", len(removed)))
	}
	return removed, nil
}

// Start sweeps on every interval until ctx is cancelled.
func (s *CleanupService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Warn("cleanup sweep failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
