package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/helpdesk-sla/internal/sla"
)

const defaultBusinessHours = "monday=09:00-17:00,tuesday=09:00-17:00,wednesday=09:00-17:00,thursday=09:00-17:00,friday=09:00-17:00"

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	SLA          SLAConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN             string
	ConnectAttempts int
	MaxConns        int32
	MinConns        int32
	RunMigrations   bool
	MigrationsDir   string
	ConnMaxIdleSec  int32
	ConnMaxLifeSec  int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines how staff bearer tokens are verified.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig holds SLA alert delivery settings. Empty SMTP host or
// webhook URL disables that channel.
type NotificationConfig struct {
	EmailFrom             string
	EmailTo               []string
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	WebhookURL            string
	WebhookTimeoutSeconds int
}

// SLAConfig describes the business calendar and the alert feed.
type SLAConfig struct {
	Timezone                string
	BusinessHours           string
	Holidays                []string
	HolidaysFile            string
	WarningThresholdPercent float64
	FeedCooldownSeconds     int
	FeedSeenTTLMinutes      int
	MonitorIntervalSeconds  int
	SeedDefaultPolicies     bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	threshold, err := strconv.ParseFloat(getEnv("SLA_WARNING_THRESHOLD_PERCENT", "75"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SLA_WARNING_THRESHOLD_PERCENT: %w", err)
	}
	if threshold <= 0 || threshold > 100 {
		return nil, fmt.Errorf("invalid SLA_WARNING_THRESHOLD_PERCENT: %v not in (0, 100]", threshold)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-sla"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			ConnectAttempts: getEnvAsInt("POSTGRES_CONNECT_ATTEMPTS", 5),
			MaxConns:        maxConns,
			MinConns:        minConns,
			RunMigrations:   runMigrations,
			MigrationsDir:   getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec:  connMaxIdle,
			ConnMaxLifeSec:  connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:             getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			EmailTo:               getEnvAsList("NOTIFY_EMAIL_TO"),
			SMTPHost:              os.Getenv("NOTIFY_SMTP_HOST"),
			SMTPPort:              getEnvAsInt("NOTIFY_SMTP_PORT", 587),
			SMTPUsername:          os.Getenv("NOTIFY_SMTP_USERNAME"),
			SMTPPassword:          os.Getenv("NOTIFY_SMTP_PASSWORD"),
			WebhookURL:            getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookTimeoutSeconds: getEnvAsInt("NOTIFY_WEBHOOK_TIMEOUT_SECONDS", 5),
		},
		SLA: SLAConfig{
			Timezone:                getEnv("SLA_TIMEZONE", "UTC"),
			BusinessHours:           getEnv("SLA_BUSINESS_HOURS", defaultBusinessHours),
			Holidays:                getEnvAsList("SLA_HOLIDAYS"),
			HolidaysFile:            os.Getenv("SLA_HOLIDAYS_FILE"),
			WarningThresholdPercent: threshold,
			FeedCooldownSeconds:     getEnvAsInt("SLA_FEED_COOLDOWN_SECONDS", 60),
			FeedSeenTTLMinutes:      getEnvAsInt("SLA_FEED_SEEN_TTL_MINUTES", 24*60),
			MonitorIntervalSeconds:  getEnvAsInt("SLA_MONITOR_INTERVAL_SECONDS", 60),
			SeedDefaultPolicies:     getEnvAsBool("SLA_SEED_DEFAULT_POLICIES", false),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// WebhookTimeout bounds a single webhook delivery.
func (n NotificationConfig) WebhookTimeout() time.Duration {
	if n.WebhookTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(n.WebhookTimeoutSeconds) * time.Second
}

// FeedCooldown is the minimum gap between rescans for one feed session.
func (s SLAConfig) FeedCooldown() time.Duration {
	if s.FeedCooldownSeconds < 0 {
		return 0
	}
	return time.Duration(s.FeedCooldownSeconds) * time.Second
}

// FeedSeenTTL bounds how long a session remembers delivered alerts.
func (s SLAConfig) FeedSeenTTL() time.Duration {
	if s.FeedSeenTTLMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.FeedSeenTTLMinutes) * time.Minute
}

// MonitorInterval returns zero when the background monitor is disabled.
func (s SLAConfig) MonitorInterval() time.Duration {
	if s.MonitorIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(s.MonitorIntervalSeconds) * time.Second
}

// BuildCalendar turns the SLA settings into a validated business calendar.
func BuildCalendar(cfg SLAConfig) (*sla.BusinessCalendar, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, &sla.ConfigError{Field: "timezone", Reason: err.Error()}
	}
	days, err := sla.ParseWeeklyHours(cfg.BusinessHours)
	if err != nil {
		return nil, err
	}
	holidays, err := sla.ParseHolidays(cfg.Holidays)
	if err != nil {
		return nil, err
	}
	if cfg.HolidaysFile != "" {
		fromFile, err := sla.LoadHolidaysFile(cfg.HolidaysFile)
		if err != nil {
			return nil, err
		}
		holidays = holidays.Merge(fromFile)
	}
	return sla.NewBusinessCalendar(loc, days, holidays)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
