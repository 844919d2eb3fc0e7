package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/qa-reports-api/api/swagger"
	"github.com/noah-isme/qa-reports-api/internal/models"
	"github.com/noah-isme/qa-reports-api/internal/repository"
	"github.com/noah-isme/qa-reports-api/internal/service"
	"github.com/noah-isme/qa-reports-api/pkg/ai"
	"github.com/noah-isme/qa-reports-api/pkg/cache"
	"github.com/noah-isme/qa-reports-api/pkg/config"
	"github.com/noah-isme/qa-reports-api/pkg/database"
	"github.com/noah-isme/qa-reports-api/pkg/export"
	"github.com/noah-isme/qa-reports-api/pkg/jobs"
	"github.com/noah-isme/qa-reports-api/pkg/logger"
	"github.com/noah-isme/qa-reports-api/pkg/storage"
	"github.com/noah-isme/qa-reports-api/pkg/telemetry"
)

// @title QA Reports API
// @version 1.0.0
// @description Quality assurance inspection reports for school networks.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type transientStore interface {
	service.CacheRepository
	service.WindowCounter
	Ping(ctx context.Context) error
}

type remoteStore interface {
	Upload(ctx context.Context, folder, name, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, object string) error
	URL(object string) string
	Ping(ctx context.Context) error
}

type textExtractor interface {
	ExtractText(ctx context.Context, content []byte, mimeType string) (string, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	tracker, err := telemetry.New(cfg.Sentry, cfg.Env, nil)
	if err != nil {
		logr.Fatal("failed to init error tracking", zap.Error(err))
	}
	defer tracker.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var (
		redisClient *redis.Client
		store       transientStore
	)
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, using in-memory transient store", zap.Error(err))
			redisClient = nil
		}
	}
	if redisClient != nil {
		defer redisClient.Close()
		store = repository.NewCacheRepository(redisClient, cfg.Redis.KeyPrefix, logr)
	} else {
		store = repository.NewMemoryCacheRepository(time.Minute)
	}

	var remote remoteStore
	if cfg.Remote.Bucket != "" {
		gcs, err := storage.NewGCSStorage(ctx, cfg.Remote)
		if err != nil {
			logr.Warn("remote storage disabled", zap.Error(err))
		} else {
			defer gcs.Close()
			remote = gcs
		}
	}

	var extractor textExtractor
	if cfg.DocumentAI.ProjectID != "" && cfg.DocumentAI.ProcessorID != "" {
		docs, err := ai.NewDocumentExtractor(ctx, cfg.DocumentAI, cfg.Remote.CredentialsFile)
		if err != nil {
			logr.Warn("document ai disabled", zap.Error(err))
		} else {
			defer docs.Close()
			extractor = docs
		}
	}

	local, err := storage.NewLocalStorage(cfg.Attachments.LocalDir)
	if err != nil {
		logr.Fatal("failed to prepare local storage", zap.Error(err))
	}
	temp, err := storage.NewLocalStorage(cfg.Attachments.TempDir)
	if err != nil {
		logr.Fatal("failed to prepare temp storage", zap.Error(err))
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(service.CacheServiceParams{
		Store:   store,
		Metrics: metrics,
		TTL:     cfg.Stats.CacheTTL,
		Logger:  logr,
	})

	userRepo := repository.NewUserRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	reportRepo := repository.NewReportRepository(db)

	settingsSvc := service.NewSettingsService(repository.NewSettingsRepository(db), userRepo, validate, logr, service.SettingsServiceConfig{
		Defaults: map[string]string{models.SettingGeminiAPIKey: cfg.AI.APIKey},
	})

	var attachments *service.AttachmentService
	queue := jobs.NewQueue("attachments", func(ctx context.Context, job jobs.Job) error {
		return attachments.HandleJob(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		BufferSize: 256,
		MaxRetries: cfg.Jobs.Retries,
		RetryDelay: 2 * time.Second,
		Observe:    metrics.RecordJob,
		OnDead: func(job jobs.Job, err error) {
			logr.Error("photo bytes left behind", zap.String("job_id", job.ID), zap.Any("ref", job.Payload), zap.Error(err))
			tracker.CaptureError(err, map[string]string{"queue": "attachments", "job_type": job.Type})
		},
		Logger: logr,
	})
	attachments = service.NewAttachmentService(
		repository.NewPhotoRepository(db), remote, local, temp,
		storage.NewSignedURLSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL),
		queue, settingsSvc, metrics, logr,
		service.AttachmentConfig{
			APIPrefix:      cfg.APIPrefix,
			MaxFileSize:    cfg.Attachments.MaxFileSizeBytes,
			RemoteTimeout:  cfg.Attachments.RemoteTimeout,
			Concurrency:    cfg.Attachments.Concurrency,
			InlineEnabled:  cfg.Attachments.InlineEnabled,
			ThumbnailWidth: cfg.Attachments.ThumbnailWidth,
		},
	)
	queue.Start(ctx)
	defer queue.Stop()

	gemini := ai.NewGeminiClient(cfg.AI, nil, func(ctx context.Context) string {
		return settingsSvc.Value(ctx, models.SettingGeminiAPIKey)
	}, logr)

	checklist := service.NewChecklistService(repository.NewChecklistRepository(db), cfg.Checklist.Strict, logr)
	summaries := service.NewAISummaryService(service.AISummaryServiceParams{
		Summaries: repository.NewAISummaryRepository(db),
		Reports:   reportRepo,
		Schools:   schoolRepo,
		Checklist: checklist,
		Generator: gemini,
		Extractor: extractor,
		Toggles:   settingsSvc,
		Audit:     userRepo,
		Logger:    logr,
	})
	reports := service.NewReportService(service.ReportServiceParams{
		Reports:     reportRepo,
		Schools:     schoolRepo,
		Users:       userRepo,
		Checklist:   checklist,
		Attachments: attachments,
		Summaries:   summaries,
		Guard:       service.NewConcurrencyGuard(userRepo, metrics, logr),
		Cache:       cacheSvc,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
		Location:    cfg.Location(),
	})

	var locker *redislock.Client
	if redisClient != nil {
		locker = redislock.New(redisClient)
	}
	cleanupCfg := service.CleanupConfig{Interval: cfg.Cleanup.Interval, MaxAge: cfg.Cleanup.MaxAge, LockTTL: cfg.Cleanup.LockTTL}
	if locker != nil {
		service.NewCleanupService(locker, temp, logr, cleanupCfg).Start(ctx)
	} else {
		service.NewCleanupService(nil, temp, logr, cleanupCfg).Start(ctx)
	}

	deps := routeDeps{
		cfg:        cfg,
		logger:     logr,
		tracker:    tracker,
		auth:       service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer, Audience: cfg.JWT.Audience, Leeway: cfg.JWT.Leeway}),
		metrics:    metrics,
		limiter:    service.NewRateLimiter(store, metrics, logr),
		audit:      userRepo,
		auditTrail: service.NewAuditService(userRepo),
		reports:    reports,
		files:      attachments,
		ai:         summaries,
		schools:    service.NewSchoolService(schoolRepo, userRepo, cacheSvc, validate, logr),
		settings:   settingsSvc,
		stats: service.NewStatsService(service.StatsServiceParams{
			Repo:   repository.NewStatsRepository(db),
			Cache:  cacheSvc,
			Logger: logr,
			Config: service.StatsServiceConfig{CacheTTL: cfg.Stats.CacheTTL},
		}),
		system: service.NewSystemService(service.SystemServiceParams{
			Database:   db,
			Transient:  store,
			Remote:     remote,
			AI:         gemini,
			DocumentAI: extractor != nil,
			Toggles:    settingsSvc,
			Queue:      queue,
			Metrics:    metrics,
			Logger:     logr,
		}),
		exports: service.NewExportService(service.ExportServiceParams{
			Reports:  reports,
			Settings: settingsSvc,
			CSV:      export.NewCSVExporter(),
			XLSX:     export.NewXLSXExporter("Reports"),
			PDF:      export.NewPDFExporter(),
			Logger:   logr,
		}),
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
