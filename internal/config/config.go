package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Port            string
	Store           string
	DBConn          string
	LogLevel        string
	Debug           bool
	JWTSecret       string
	QRSecret        string
	JobSecret       string
	DeductionCron   string
	DefaultTimezone string
	HolidayFeedURL  string
	SMTPHost        string
	SMTPPort        string
	SMTPUsername    string
	SMTPPassword    string
	SenderEmail     string
}

// NewConfig loads configuration from environment variables.
// A .env file in the working directory, when present, is loaded first.
func NewConfig() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Store:           getEnv("STORE", StorePostgres),
		DBConn:          getEnv("DB_CONN", "host=localhost port=5432 user=decembrrr password=decembrrr dbname=decembrrr sslmode=disable"),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		Debug:           getEnvBool("DEBUG", false),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		QRSecret:        getEnv("QR_SECRET", ""),
		JobSecret:       getEnv("JOB_SECRET", ""),
		DeductionCron:   getEnv("DEDUCTION_CRON", "5 0 * * *"),
		DefaultTimezone: getEnv("DEFAULT_TIMEZONE", "UTC"),
		HolidayFeedURL:  getEnv("HOLIDAY_FEED_URL", "https://xmlcalendar.ru/data/ru/%d/calendar.xml"),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnv("SMTP_PORT", "587"),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SenderEmail:     getEnv("SENDER_EMAIL", "noreply@decembrrr.app"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first missing or malformed setting.
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DBConn == "" {
			return fmt.Errorf("DB_CONN is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.QRSecret == "" {
		c.QRSecret = c.JWTSecret
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("DEFAULT_TIMEZONE %q is invalid: %w", c.DefaultTimezone, err)
	}
	return nil
}

// Location returns the default class timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MailEnabled reports whether SMTP delivery is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultVal
	}
	return b
}
