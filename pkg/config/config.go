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

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Booking       BookingConfig
	Invoicing     InvoicingConfig
	Jobs          JobsConfig
	Notifications NotificationsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig describes verification of tokens issued by the external identity
// provider. This service never issues tokens itself.
type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BookingConfig governs the booking engine's policy knobs.
type BookingConfig struct {
	// DefaultTimezone applies when a teacher profile has no timezone set.
	// It is consulted in exactly one place (profile timezone resolution).
	DefaultTimezone       string
	DefaultRecurringWeeks int
	MinLessonMinutes      int
	MaxLessonMinutes      int
	AvailabilityCacheTTL  time.Duration
}

// InvoicingConfig controls invoice numbering and due dates.
type InvoicingConfig struct {
	DueInDays    int
	NumberPrefix string
}

// JobsConfig drives the background job schedules and the singleton locks.
type JobsConfig struct {
	Enabled         bool
	InvoiceCron     string
	LessonCron      string
	OverdueCron     string
	GenerationWeeks int
	LockTTL         time.Duration
}

// NotificationsConfig tunes the post-commit notification queue.
type NotificationsConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
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

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Booking = BookingConfig{
		DefaultTimezone:       v.GetString("BOOKING_DEFAULT_TIMEZONE"),
		DefaultRecurringWeeks: v.GetInt("BOOKING_DEFAULT_RECURRING_WEEKS"),
		MinLessonMinutes:      v.GetInt("BOOKING_MIN_LESSON_MINUTES"),
		MaxLessonMinutes:      v.GetInt("BOOKING_MAX_LESSON_MINUTES"),
		AvailabilityCacheTTL:  parseDuration(v.GetString("AVAILABILITY_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Invoicing = InvoicingConfig{
		DueInDays:    v.GetInt("INVOICE_DUE_IN_DAYS"),
		NumberPrefix: v.GetString("INVOICE_NUMBER_PREFIX"),
	}

	cfg.Jobs = JobsConfig{
		Enabled:         v.GetBool("ENABLE_BACKGROUND_JOBS"),
		InvoiceCron:     v.GetString("JOBS_INVOICE_CRON"),
		LessonCron:      v.GetString("JOBS_LESSON_CRON"),
		OverdueCron:     v.GetString("JOBS_OVERDUE_CRON"),
		GenerationWeeks: v.GetInt("JOBS_GENERATION_WEEKS"),
		LockTTL:         parseDuration(v.GetString("JOBS_LOCK_TTL"), 10*time.Minute),
	}

	cfg.Notifications = NotificationsConfig{
		Workers:    v.GetInt("NOTIFICATIONS_WORKERS"),
		MaxRetries: v.GetInt("NOTIFICATIONS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFICATIONS_RETRY_DELAY"), 5*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "studio_api")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BOOKING_DEFAULT_TIMEZONE", "America/New_York")
	v.SetDefault("BOOKING_DEFAULT_RECURRING_WEEKS", 12)
	v.SetDefault("BOOKING_MIN_LESSON_MINUTES", 15)
	v.SetDefault("BOOKING_MAX_LESSON_MINUTES", 180)
	v.SetDefault("AVAILABILITY_CACHE_TTL", "5m")

	v.SetDefault("INVOICE_DUE_IN_DAYS", 14)
	v.SetDefault("INVOICE_NUMBER_PREFIX", "INV")

	v.SetDefault("ENABLE_BACKGROUND_JOBS", true)
	v.SetDefault("JOBS_INVOICE_CRON", "0 3 1 * *")
	v.SetDefault("JOBS_LESSON_CRON", "0 4 * * 1")
	v.SetDefault("JOBS_OVERDUE_CRON", "0 5 * * *")
	v.SetDefault("JOBS_GENERATION_WEEKS", 8)
	v.SetDefault("JOBS_LOCK_TTL", "10m")

	v.SetDefault("NOTIFICATIONS_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_MAX_RETRIES", 3)
	v.SetDefault("NOTIFICATIONS_RETRY_DELAY", "5s")
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
