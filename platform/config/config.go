// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// AuthConfig provides settings needed by the auth service.
type AuthConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
	GetDashboardEmail() string
	GetDashboardPasswordHash() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq queue and background loops.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetDispatchInterval() time.Duration
	GetDispatchBatchSize() int
	GetRetrySweepInterval() time.Duration
	GetReplyPollInterval() time.Duration
}

// MailConfig provides settings for SMTP sending.
type MailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetEmailEnabled() bool
}

// IMAPConfig provides settings for reply polling over IMAP.
type IMAPConfig interface {
	GetIMAPHost() string
	GetIMAPPort() int
	GetIMAPUsername() string
	GetIMAPPassword() string
	GetIMAPMailbox() string
	IsIMAPEnabled() bool
}

// GenerationConfig provides settings for the LLM email composer.
type GenerationConfig interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
	IsGenerationEnabled() bool
}

// LeadSourceConfig provides settings for the external lead search provider.
type LeadSourceConfig interface {
	GetLeadSourceURL() string
	GetLeadSourceAPIKey() string
	IsLeadSourceEnabled() bool
}

// EnrichmentConfig provides settings for website enrichment and its cache.
type EnrichmentConfig interface {
	GetRedisURL() string
	GetEnrichmentCacheTTL() time.Duration
	GetEnrichmentTimeout() time.Duration
}

// NotifyConfig provides settings for outbound webhook notifications.
type NotifyConfig interface {
	GetWebhookURL() string
	GetWebhookSecret() string
	IsWebhookEnabled() bool
}

// OutreachConfig provides the outreach policy knobs. These are business
// parameters, not domain constants, and must never be hard-coded elsewhere.
type OutreachConfig interface {
	GetQuotaCeiling() int
	GetMaxRetryAttempts() int
	GetBackoffSchedule() []time.Duration
	GetFollowupOffsets() [2]time.Duration
	GetWindowStartHour() int
	GetWindowEndHour() int
	GetWindowDays() map[time.Weekday]bool
	GetSendTimeout() time.Duration
	GetQuotaRetention() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	JWTAccessSecret       string
	AccessTokenTTL        time.Duration
	DashboardEmail        string
	DashboardPasswordHash string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool

	RedisURL           string
	RedisTLSInsecure   bool
	AsynqQueueName     string
	AsynqConcurrency   int
	DispatchInterval   time.Duration
	DispatchBatchSize  int
	RetrySweepInterval time.Duration
	ReplyPollInterval  time.Duration

	EmailEnabled     bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string

	IMAPHost     string
	IMAPPort     int
	IMAPUsername string
	IMAPPassword string
	IMAPMailbox  string

	GeminiAPIKey string
	GeminiModel  string

	LeadSourceURL    string
	LeadSourceAPIKey string

	EnrichmentCacheTTL time.Duration
	EnrichmentTimeout  time.Duration

	WebhookURL    string
	WebhookSecret string

	QuotaCeiling     int
	MaxRetryAttempts int
	BackoffSchedule  []time.Duration
	FollowupOffset1  time.Duration
	FollowupOffset2  time.Duration
	WindowStartHour  int
	WindowEndHour    int
	WindowDays       map[time.Weekday]bool
	SendTimeout      time.Duration
	QuotaRetention   time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig / AuthConfig implementation
func (c *Config) GetJWTAccessSecret() string       { return c.JWTAccessSecret }
func (c *Config) GetAccessTokenTTL() time.Duration { return c.AccessTokenTTL }
func (c *Config) GetDashboardEmail() string        { return c.DashboardEmail }
func (c *Config) GetDashboardPasswordHash() string { return c.DashboardPasswordHash }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                  { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool            { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string            { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int             { return c.AsynqConcurrency }
func (c *Config) GetDispatchInterval() time.Duration   { return c.DispatchInterval }
func (c *Config) GetDispatchBatchSize() int            { return c.DispatchBatchSize }
func (c *Config) GetRetrySweepInterval() time.Duration { return c.RetrySweepInterval }
func (c *Config) GetReplyPollInterval() time.Duration  { return c.ReplyPollInterval }

// MailConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }

// IMAPConfig implementation
func (c *Config) GetIMAPHost() string     { return c.IMAPHost }
func (c *Config) GetIMAPPort() int        { return c.IMAPPort }
func (c *Config) GetIMAPUsername() string { return c.IMAPUsername }
func (c *Config) GetIMAPPassword() string { return c.IMAPPassword }
func (c *Config) GetIMAPMailbox() string  { return c.IMAPMailbox }
func (c *Config) IsIMAPEnabled() bool     { return c.IMAPHost != "" && c.IMAPUsername != "" }

// GenerationConfig implementation
func (c *Config) GetGeminiAPIKey() string   { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string    { return c.GeminiModel }
func (c *Config) IsGenerationEnabled() bool { return c.GeminiAPIKey != "" }

// LeadSourceConfig implementation
func (c *Config) GetLeadSourceURL() string    { return c.LeadSourceURL }
func (c *Config) GetLeadSourceAPIKey() string { return c.LeadSourceAPIKey }
func (c *Config) IsLeadSourceEnabled() bool {
	return c.LeadSourceURL != "" && c.LeadSourceAPIKey != ""
}

// EnrichmentConfig implementation
func (c *Config) GetEnrichmentCacheTTL() time.Duration { return c.EnrichmentCacheTTL }
func (c *Config) GetEnrichmentTimeout() time.Duration  { return c.EnrichmentTimeout }

// NotifyConfig implementation
func (c *Config) GetWebhookURL() string    { return c.WebhookURL }
func (c *Config) GetWebhookSecret() string { return c.WebhookSecret }
func (c *Config) IsWebhookEnabled() bool { return c.WebhookURL != "" }

// OutreachConfig implementation
func (c *Config) GetQuotaCeiling() int                { return c.QuotaCeiling }
func (c *Config) GetMaxRetryAttempts() int            { return c.MaxRetryAttempts }
func (c *Config) GetBackoffSchedule() []time.Duration { return c.BackoffSchedule }
func (c *Config) GetFollowupOffsets() [2]time.Duration {
	return [2]time.Duration{c.FollowupOffset1, c.FollowupOffset2}
}
func (c *Config) GetWindowStartHour() int              { return c.WindowStartHour }
func (c *Config) GetWindowEndHour() int                { return c.WindowEndHour }
func (c *Config) GetWindowDays() map[time.Weekday]bool { return c.WindowDays }
func (c *Config) GetSendTimeout() time.Duration        { return c.SendTimeout }
func (c *Config) GetQuotaRetention() time.Duration     { return c.QuotaRetention }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")
	smtpHost := getEnv("SMTP_HOST", "")

	backoff, err := parseDurationList(getEnv("OUTREACH_BACKOFF_SCHEDULE", "5m,30m,2h"))
	if err != nil {
		return nil, fmt.Errorf("invalid OUTREACH_BACKOFF_SCHEDULE: %w", err)
	}

	windowDays, err := parseWeekdays(getEnv("OUTREACH_WINDOW_DAYS", "Mon,Tue,Wed,Thu,Fri,Sat"))
	if err != nil {
		return nil, fmt.Errorf("invalid OUTREACH_WINDOW_DAYS: %w", err)
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		AccessTokenTTL:        mustDuration(getEnv("JWT_ACCESS_TTL", "15m")),
		DashboardEmail:        getEnv("DASHBOARD_EMAIL", ""),
		DashboardPasswordHash: getEnv("DASHBOARD_PASSWORD_HASH", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:           getEnv("REDIS_URL", ""),
		RedisTLSInsecure:   strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:     getEnv("ASYNQ_QUEUE", "outreach"),
		AsynqConcurrency:   mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		DispatchInterval:   mustDuration(getEnv("OUTREACH_DISPATCH_INTERVAL", "15m")),
		DispatchBatchSize:  mustInt(getEnv("OUTREACH_DISPATCH_BATCH_SIZE", "50")),
		RetrySweepInterval: mustDuration(getEnv("OUTREACH_RETRY_SWEEP_INTERVAL", "1h")),
		ReplyPollInterval:  mustDuration(getEnv("OUTREACH_REPLY_POLL_INTERVAL", "15m")),

		EmailEnabled:     emailEnabled && smtpHost != "",
		SMTPHost:         smtpHost,
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Outreach"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     mustInt(getEnv("IMAP_PORT", "993")),
		IMAPUsername: getEnv("IMAP_USERNAME", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMailbox:  getEnv("IMAP_MAILBOX", "INBOX"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		LeadSourceURL:    getEnv("LEAD_SOURCE_URL", ""),
		LeadSourceAPIKey: getEnv("LEAD_SOURCE_API_KEY", ""),

		EnrichmentCacheTTL: mustDuration(getEnv("ENRICHMENT_CACHE_TTL", "24h")),
		EnrichmentTimeout:  mustDuration(getEnv("ENRICHMENT_TIMEOUT", "20s")),

		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),

		QuotaCeiling:     mustInt(getEnv("OUTREACH_QUOTA_CEILING", "400")),
		MaxRetryAttempts: mustInt(getEnv("OUTREACH_MAX_RETRY_ATTEMPTS", "3")),
		BackoffSchedule:  backoff,
		FollowupOffset1:  mustDuration(getEnv("OUTREACH_FOLLOWUP_1_OFFSET", "120h")),
		FollowupOffset2:  mustDuration(getEnv("OUTREACH_FOLLOWUP_2_OFFSET", "240h")),
		WindowStartHour:  mustInt(getEnv("OUTREACH_WINDOW_START_HOUR", "9")),
		WindowEndHour:    mustInt(getEnv("OUTREACH_WINDOW_END_HOUR", "18")),
		WindowDays:       windowDays,
		SendTimeout:      mustDuration(getEnv("OUTREACH_SEND_TIMEOUT", "30s")),
		QuotaRetention:   mustDuration(getEnv("OUTREACH_QUOTA_RETENTION", "168h")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.QuotaCeiling < 1 {
		return nil, fmt.Errorf("OUTREACH_QUOTA_CEILING must be positive")
	}
	if cfg.MaxRetryAttempts < 1 {
		return nil, fmt.Errorf("OUTREACH_MAX_RETRY_ATTEMPTS must be positive")
	}
	if cfg.WindowStartHour < 0 || cfg.WindowEndHour > 24 || cfg.WindowStartHour >= cfg.WindowEndHour {
		return nil, fmt.Errorf("invalid business window hours: start=%d end=%d", cfg.WindowStartHour, cfg.WindowEndHour)
	}
	if cfg.FollowupOffset1 <= 0 || cfg.FollowupOffset2 <= cfg.FollowupOffset1 {
		return nil, fmt.Errorf("follow-up offsets must be positive and increasing")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

func parseDurationList(value string) ([]time.Duration, error) {
	parts := splitCSV(value)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty schedule")
	}
	results := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, err
		}
		if d <= 0 {
			return nil, fmt.Errorf("duration %q must be positive", part)
		}
		results = append(results, d)
	}
	return results, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func parseWeekdays(value string) (map[time.Weekday]bool, error) {
	days := make(map[time.Weekday]bool)
	for _, part := range splitCSV(value) {
		key := strings.ToLower(part)
		if len(key) > 3 {
			key = key[:3]
		}
		day, ok := weekdayNames[key]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		days[day] = true
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("at least one weekday is required")
	}
	return days, nil
}
