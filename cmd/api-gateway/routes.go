package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/qa-reports-api/internal/handler"
	"github.com/noah-isme/qa-reports-api/internal/middleware"
	"github.com/noah-isme/qa-reports-api/internal/models"
	"github.com/noah-isme/qa-reports-api/internal/service"
	"github.com/noah-isme/qa-reports-api/pkg/config"
	"github.com/noah-isme/qa-reports-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/qa-reports-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/qa-reports-api/pkg/middleware/requestid"
	"github.com/noah-isme/qa-reports-api/pkg/telemetry"
)

type routeDeps struct {
	cfg        *config.Config
	logger     *zap.Logger
	tracker    *telemetry.Tracker
	auth       *service.AuthService
	metrics    *service.MetricsService
	limiter    *service.RateLimiter
	audit      middleware.AuditSink
	auditTrail *service.AuditService
	reports    *service.ReportService
	files      *service.AttachmentService
	ai         *service.AISummaryService
	schools    *service.SchoolService
	settings   *service.SettingsService
	stats      *service.StatsService
	system     *service.SystemService
	exports    *service.ExportService
}

func newRouter(d routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(d.tracker.GinMiddleware())
	r.Use(logger.GinMiddleware(d.logger))
	r.Use(corsmiddleware.New(d.cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(d.metrics))

	probes := handler.NewProbeHandler(d.metrics, d.system)
	r.GET("/health", probes.Live)
	r.GET("/ready", probes.Ready)
	r.GET("/metrics", probes.Metrics)
	if d.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	reports := handler.NewReportHandler(d.reports, d.cfg.Attachments.MaxFileSizeBytes)
	photos := handler.NewPhotoFileHandler(d.files)
	aiHandler := handler.NewAIHandler(d.ai)
	schools := handler.NewSchoolHandler(d.schools)
	admin := handler.NewAdminHandler(d.settings, d.stats, d.system, d.auditTrail)
	exports := handler.NewExportHandler(d.exports)

	limits := d.cfg.RateLimits
	api := r.Group(d.cfg.APIPrefix)

	// Signed links are the credential for local-tier photo bytes.
	api.GET("/photos/:id/file", photos.File)
	api.GET("/photos/:id/thumbnail", photos.Thumbnail)

	secured := api.Group("")
	secured.Use(middleware.JWT(d.auth))

	secured.GET("/me", admin.Me)
	secured.GET("/stats", admin.Stats)

	secured.GET("/reports", reports.List)
	secured.POST("/reports",
		middleware.RequireCapability(models.CapCreate),
		middleware.RateLimit(d.limiter, service.ActionCreateReport, limits.CreateReport, limits.Window),
		reports.Create)
	secured.GET("/reports/export",
		middleware.RequireCapability(models.CapExport),
		middleware.Audit(d.audit, models.AuditActionReportExport, "report"),
		exports.ReportList)
	secured.GET("/reports/:id", reports.Get)
	secured.PUT("/reports/:id", reports.Update)
	secured.DELETE("/reports/:id", reports.Delete)
	secured.GET("/reports/:id/responses", reports.GetResponses)
	secured.POST("/reports/:id/responses", reports.SaveResponses)
	secured.POST("/reports/:id/photos",
		middleware.RateLimit(d.limiter, service.ActionUploadPhotos, limits.UploadPhotos, limits.Window),
		reports.UploadPhotos)
	secured.GET("/reports/:id/pdf",
		middleware.RequireCapability(models.CapExport),
		middleware.Audit(d.audit, models.AuditActionReportExport, "report"),
		exports.ReportPDF)
	secured.POST("/reports/:id/generate-summary",
		middleware.RequireCapability(models.CapUseAI),
		middleware.RateLimit(d.limiter, service.ActionGenerateSummary, limits.GenerateSummary, limits.Window),
		aiHandler.GenerateSummary)
	secured.POST("/ai/parse-document",
		middleware.RequireCapability(models.CapUseAI),
		middleware.RateLimit(d.limiter, service.ActionParseDocument, limits.ParseDocument, limits.Window),
		aiHandler.ParseDocument)

	secured.PUT("/photos/:id", reports.UpdatePhoto)
	secured.DELETE("/photos/:id", reports.DeletePhoto)

	secured.GET("/schools", schools.List)
	secured.GET("/schools/:id", schools.Get)
	secured.GET("/schools/:id/reports", reports.SchoolReports)
	manageSchools := middleware.RequireCapability(models.CapManageSchools)
	secured.POST("/schools", manageSchools, schools.Create)
	secured.PUT("/schools/:id", manageSchools, schools.Update)
	secured.DELETE("/schools/:id", manageSchools, schools.Delete)

	manageSettings := middleware.RequireCapability(models.CapManageSettings)
	secured.GET("/settings", manageSettings, admin.ListSettings)
	secured.POST("/settings", manageSettings, admin.UpdateSettings)
	secured.GET("/system-check", manageSettings, admin.SystemCheck)
	secured.GET("/audit", manageSettings, admin.AuditTrail)

	return r
}
