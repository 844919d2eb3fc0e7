package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	Timezone  string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	RateLimits  RateLimitConfig
	Attachments AttachmentsConfig
	Remote      RemoteStorageConfig
	AI          AIConfig
	DocumentAI  DocumentAIConfig
	Checklist   ChecklistConfig
	Stats       StatsConfig
	Cleanup     CleanupConfig
	Jobs        JobsConfig
	Sentry      SentryConfig
}

type DatabaseConfig struct {
	// URL, when set, takes precedence over the discrete connection fields.
	URL          string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

type RedisConfig struct {
	Enabled   bool
	URL       string
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// JWTConfig describes how identity tokens issued by the calling environment are verified.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RateLimitConfig holds per-action request budgets sharing one window.
type RateLimitConfig struct {
	Window          time.Duration
	CreateReport    int
	GenerateSummary int
	ParseDocument   int
	UploadPhotos    int
}

// AttachmentsConfig controls the photo pipeline.
type AttachmentsConfig struct {
	LocalDir         string
	TempDir          string
	MaxFileSizeBytes int64
	RemoteTimeout    time.Duration
	Concurrency      int
	InlineEnabled    bool
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	ThumbnailWidth   int
}

// RemoteStorageConfig configures the Cloud Storage tier. An empty bucket disables it.
type RemoteStorageConfig struct {
	Bucket          string
	CredentialsFile string
	EmulatorHost    string
	PublicBaseURL   string
}

// AIConfig configures the Gemini summary client.
type AIConfig struct {
	Endpoint          string
	Model             string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// DocumentAIConfig configures text extraction for uploaded documents.
type DocumentAIConfig struct {
	ProjectID   string
	Location    string
	ProcessorID string
}

type ChecklistConfig struct {
	Strict bool
}

type StatsConfig struct {
	CacheTTL time.Duration
}

// CleanupConfig schedules removal of abandoned temporary uploads.
type CleanupConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
	LockTTL  time.Duration
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN        string
	Release    string
	SampleRate float64
}

type JobsConfig struct {
	Workers int
	Retries int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Timezone = v.GetString("TIMEZONE")

	cfg.Database = DatabaseConfig{
		URL:          v.GetString("DATABASE_URL"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnLifetime: parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), time.Hour),
	}

	cfg.Redis = RedisConfig{
		Enabled:   v.GetBool("REDIS_ENABLED"),
		URL:       v.GetString("REDIS_URL"),
		Host:      v.GetString("REDIS_HOST"),
		Port:      v.GetInt("REDIS_PORT"),
		Password:  v.GetString("REDIS_PASSWORD"),
		DB:        v.GetInt("REDIS_DB"),
		KeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: v.GetString("JWT_AUDIENCE"),
		Leeway:   v.GetDuration("JWT_LEEWAY"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.RateLimits = RateLimitConfig{
		Window:          parseDuration(v.GetString("RATE_LIMIT_WINDOW"), time.Minute),
		CreateReport:    positiveInt(v.GetInt("RATE_LIMIT_CREATE_REPORT"), 30),
		GenerateSummary: positiveInt(v.GetInt("RATE_LIMIT_AI_SUMMARY"), 10),
		ParseDocument:   positiveInt(v.GetInt("RATE_LIMIT_PARSE_DOCUMENT"), 20),
		UploadPhotos:    positiveInt(v.GetInt("RATE_LIMIT_UPLOAD_PHOTOS"), 100),
	}

	maxFileSize := v.GetInt64("ATTACHMENTS_MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 10 * 1024 * 1024
	}
	cfg.Attachments = AttachmentsConfig{
		LocalDir:         v.GetString("ATTACHMENTS_LOCAL_DIR"),
		TempDir:          v.GetString("ATTACHMENTS_TEMP_DIR"),
		MaxFileSizeBytes: maxFileSize,
		RemoteTimeout:    parseDuration(v.GetString("ATTACHMENTS_REMOTE_TIMEOUT"), 15*time.Second),
		Concurrency:      positiveInt(v.GetInt("ATTACHMENTS_CONCURRENCY"), 4),
		InlineEnabled:    v.GetBool("ENABLE_INLINE_UPLOADS"),
		SignedURLSecret:  v.GetString("ATTACHMENTS_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("ATTACHMENTS_SIGNED_URL_TTL"), time.Hour),
		ThumbnailWidth:   positiveInt(v.GetInt("ATTACHMENTS_THUMBNAIL_WIDTH"), 320),
	}

	cfg.Remote = RemoteStorageConfig{
		Bucket:          v.GetString("GCS_BUCKET"),
		CredentialsFile: v.GetString("GCS_CREDENTIALS_FILE"),
		EmulatorHost:    v.GetString("STORAGE_EMULATOR_HOST"),
		PublicBaseURL:   strings.TrimRight(v.GetString("GCS_PUBLIC_BASE_URL"), "/"),
	}

	cfg.AI = AIConfig{
		Endpoint:          strings.TrimRight(v.GetString("GEMINI_ENDPOINT"), "/"),
		Model:             v.GetString("GEMINI_MODEL"),
		APIKey:            v.GetString("GEMINI_API_KEY"),
		Timeout:           parseDuration(v.GetString("GEMINI_TIMEOUT"), 60*time.Second),
		RequestsPerSecond: v.GetFloat64("GEMINI_REQUESTS_PER_SECOND"),
		Burst:             positiveInt(v.GetInt("GEMINI_BURST"), 2),
	}

	cfg.DocumentAI = DocumentAIConfig{
		ProjectID:   v.GetString("DOCUMENTAI_PROJECT_ID"),
		Location:    v.GetString("DOCUMENTAI_LOCATION"),
		ProcessorID: v.GetString("DOCUMENTAI_PROCESSOR_ID"),
	}

	cfg.Checklist = ChecklistConfig{Strict: v.GetBool("CHECKLIST_STRICT")}

	cfg.Stats = StatsConfig{CacheTTL: parseDuration(v.GetString("STATS_CACHE_TTL"), 5*time.Minute)}

	cfg.Cleanup = CleanupConfig{
		Interval: parseDuration(v.GetString("CLEANUP_INTERVAL"), 24*time.Hour),
		MaxAge:   parseDuration(v.GetString("CLEANUP_MAX_AGE"), 24*time.Hour),
		LockTTL:  parseDuration(v.GetString("CLEANUP_LOCK_TTL"), 10*time.Minute),
	}

	cfg.Jobs = JobsConfig{
		Workers: positiveInt(v.GetInt("JOBS_WORKERS"), 2),
		Retries: positiveInt(v.GetInt("JOBS_RETRIES"), 3),
	}

	cfg.Sentry = SentryConfig{
		DSN:        v.GetString("SENTRY_DSN"),
		Release:    v.GetString("SENTRY_RELEASE"),
		SampleRate: v.GetFloat64("SENTRY_SAMPLE_RATE"),
	}

	return cfg
}

// Location resolves the configured timezone used for "today" comparisons.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("TIMEZONE", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "qa_reports")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "qa:")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")
	v.SetDefault("JWT_LEEWAY", "30s")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("RATE_LIMIT_WINDOW", "60s")
	v.SetDefault("RATE_LIMIT_CREATE_REPORT", 30)
	v.SetDefault("RATE_LIMIT_AI_SUMMARY", 10)
	v.SetDefault("RATE_LIMIT_PARSE_DOCUMENT", 20)
	v.SetDefault("RATE_LIMIT_UPLOAD_PHOTOS", 100)

	v.SetDefault("ATTACHMENTS_LOCAL_DIR", "./uploads")
	v.SetDefault("ATTACHMENTS_TEMP_DIR", "./uploads/tmp")
	v.SetDefault("ATTACHMENTS_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("ATTACHMENTS_REMOTE_TIMEOUT", "15s")
	v.SetDefault("ATTACHMENTS_CONCURRENCY", 4)
	v.SetDefault("ENABLE_INLINE_UPLOADS", false)
	v.SetDefault("ATTACHMENTS_SIGNED_URL_SECRET", "dev_attachments_secret")
	v.SetDefault("ATTACHMENTS_SIGNED_URL_TTL", "1h")
	v.SetDefault("ATTACHMENTS_THUMBNAIL_WIDTH", 320)

	v.SetDefault("GCS_BUCKET", "")
	v.SetDefault("GCS_CREDENTIALS_FILE", "")
	v.SetDefault("STORAGE_EMULATOR_HOST", "")
	v.SetDefault("GCS_PUBLIC_BASE_URL", "https://storage.googleapis.com")

	v.SetDefault("GEMINI_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_TIMEOUT", "60s")
	v.SetDefault("GEMINI_REQUESTS_PER_SECOND", 1.0)
	v.SetDefault("GEMINI_BURST", 2)

	v.SetDefault("DOCUMENTAI_PROJECT_ID", "")
	v.SetDefault("DOCUMENTAI_LOCATION", "us")
	v.SetDefault("DOCUMENTAI_PROCESSOR_ID", "")

	v.SetDefault("CHECKLIST_STRICT", false)
	v.SetDefault("STATS_CACHE_TTL", "5m")

	v.SetDefault("CLEANUP_INTERVAL", "24h")
	v.SetDefault("CLEANUP_MAX_AGE", "24h")
	v.SetDefault("CLEANUP_LOCK_TTL", "10m")

	v.SetDefault("JOBS_WORKERS", 2)
	v.SetDefault("JOBS_RETRIES", 3)

	v.SetDefault("SENTRY_DSN", "")
	v.SetDefault("SENTRY_RELEASE", "")
	v.SetDefault("SENTRY_SAMPLE_RATE", 1.0)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
