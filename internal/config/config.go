package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Env      string
	HTTPAddr string
	BaseURL  string

	DBDSN     string
	JWTSecret string
	RedisURL  string

	LogLevel    string
	SessionDays int

	OpenAIAPIKey string
	OpenAIModel  string
	AITimeoutMS  int

	IngestDelayMS  int
	IngestWorkers  int
	MaxUploadBytes int64
	UploadRPM      int

	ResendAPIKey    string
	EmailFrom       string
	NotifyTimeoutMS int

	StatsCacheSeconds   int
	InviteRetentionDays int
}

// Load reads configuration from FIQ_* environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Env = strings.TrimSpace(os.Getenv("FIQ_ENV"))
	if cfg.Env == "" {
		return nil, fmt.Errorf("FIQ_ENV is required")
	}
	if cfg.Env != "dev" && cfg.Env != "prod" {
		return nil, fmt.Errorf("FIQ_ENV must be one of: dev, prod (got: %s)", cfg.Env)
	}

	cfg.HTTPAddr = getEnvOrDefault("FIQ_HTTP_ADDR", ":8080")

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("FIQ_BASE_URL")), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("FIQ_BASE_URL is required")
	}

	cfg.DBDSN = strings.TrimSpace(os.Getenv("FIQ_DB_DSN"))
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("FIQ_DB_DSN is required")
	}

	cfg.JWTSecret = os.Getenv("FIQ_JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("FIQ_JWT_SECRET is required")
	}
	if cfg.Env == "prod" && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("FIQ_JWT_SECRET must be at least 32 characters (currently %d)", len(cfg.JWTSecret))
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("FIQ_REDIS_URL"))

	cfg.LogLevel = getEnvOrDefault("FIQ_LOG_LEVEL", "info")
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("FIQ_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", cfg.LogLevel)
	}

	cfg.OpenAIAPIKey = strings.TrimSpace(os.Getenv("FIQ_OPENAI_API_KEY"))
	cfg.OpenAIModel = getEnvOrDefault("FIQ_OPENAI_MODEL", "gpt-4o-mini")
	cfg.ResendAPIKey = strings.TrimSpace(os.Getenv("FIQ_RESEND_API_KEY"))
	cfg.EmailFrom = getEnvOrDefault("FIQ_EMAIL_FROM", "onboarding@resend.dev")

	var err error
	if cfg.SessionDays, err = getEnvIntInRange("FIQ_SESSION_DAYS", 7, 1, 90); err != nil {
		return nil, err
	}
	if cfg.AITimeoutMS, err = getEnvIntInRange("FIQ_AI_TIMEOUT_MS", 20000, 100, 120000); err != nil {
		return nil, err
	}
	if cfg.IngestDelayMS, err = getEnvIntInRange("FIQ_INGEST_DELAY_MS", 100, 0, 10000); err != nil {
		return nil, err
	}
	if cfg.IngestWorkers, err = getEnvIntInRange("FIQ_INGEST_WORKERS", 1, 1, 16); err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes, err = getEnvInt64OrDefault("FIQ_MAX_UPLOAD_BYTES", 5*1024*1024); err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("FIQ_MAX_UPLOAD_BYTES must be positive (got: %d)", cfg.MaxUploadBytes)
	}
	if cfg.UploadRPM, err = getEnvIntInRange("FIQ_UPLOAD_RPM", 10, 1, 1000); err != nil {
		return nil, err
	}
	if cfg.NotifyTimeoutMS, err = getEnvIntInRange("FIQ_NOTIFY_TIMEOUT_MS", 5000, 1, 30000); err != nil {
		return nil, err
	}
	if cfg.StatsCacheSeconds, err = getEnvIntInRange("FIQ_STATS_CACHE_SECONDS", 60, 0, 3600); err != nil {
		return nil, err
	}
	if cfg.InviteRetentionDays, err = getEnvIntInRange("FIQ_INVITE_RETENTION_DAYS", 30, 1, 365); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsDev returns true if running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// AIEnabled reports whether a classifier credential is configured.
func (c *Config) AIEnabled() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AITimeoutMS) * time.Millisecond
}

func (c *Config) IngestDelay() time.Duration {
	return time.Duration(c.IngestDelayMS) * time.Millisecond
}

func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutMS) * time.Millisecond
}

func (c *Config) StatsCacheTTL() time.Duration {
	return time.Duration(c.StatsCacheSeconds) * time.Second
}

// RedactedValues returns a map of config values with secrets redacted.
func (c *Config) RedactedValues() map[string]string {
	return map[string]string{
		"FIQ_ENV":                   c.Env,
		"FIQ_HTTP_ADDR":             c.HTTPAddr,
		"FIQ_BASE_URL":              c.BaseURL,
		"FIQ_DB_DSN":                redactDSN(c.DBDSN),
		"FIQ_JWT_SECRET":            "[REDACTED]",
		"FIQ_REDIS_URL":             redactDSN(c.RedisURL),
		"FIQ_LOG_LEVEL":             c.LogLevel,
		"FIQ_SESSION_DAYS":          strconv.Itoa(c.SessionDays),
		"FIQ_OPENAI_API_KEY":        redactSecret(c.OpenAIAPIKey),
		"FIQ_OPENAI_MODEL":          c.OpenAIModel,
		"FIQ_AI_TIMEOUT_MS":         strconv.Itoa(c.AITimeoutMS),
		"FIQ_INGEST_DELAY_MS":       strconv.Itoa(c.IngestDelayMS),
		"FIQ_INGEST_WORKERS":        strconv.Itoa(c.IngestWorkers),
		"FIQ_MAX_UPLOAD_BYTES":      strconv.FormatInt(c.MaxUploadBytes, 10),
		"FIQ_UPLOAD_RPM":            strconv.Itoa(c.UploadRPM),
		"FIQ_RESEND_API_KEY":        redactSecret(c.ResendAPIKey),
		"FIQ_EMAIL_FROM":            c.EmailFrom,
		"FIQ_NOTIFY_TIMEOUT_MS":     strconv.Itoa(c.NotifyTimeoutMS),
		"FIQ_STATS_CACHE_SECONDS":   strconv.Itoa(c.StatsCacheSeconds),
		"FIQ_INVITE_RETENTION_DAYS": strconv.Itoa(c.InviteRetentionDays),
	}
}

func redactSecret(v string) string {
	if v == "" {
		return ""
	}
	return "[REDACTED]"
}

func redactDSN(dsn string) string {
	if start := strings.Index(dsn, "://"); start != -1 {
		if end := strings.Index(dsn[start+3:], "@"); end != -1 {
			return dsn[:start+3] + "[REDACTED]" + dsn[start+3+end:]
		}
	}
	return dsn
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntInRange(key string, defaultValue, min, max int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got: %q)", key, value)
	}
	if parsed < min || parsed > max {
		return 0, fmt.Errorf("%s must be between %d and %d (got: %d)", key, min, max, parsed)
	}
	return parsed, nil
}

func getEnvInt64OrDefault(key string, defaultValue int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got: %q)", key, value)
	}
	return parsed, nil
}
