package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingDatabaseURL is returned by Validate when DATABASE_URL is unset.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

// ErrInvalidCookieSameSite is returned by Validate for an unknown
// TOKEN_COOKIE_SAMESITE value.
var ErrInvalidCookieSameSite = errors.New("TOKEN_COOKIE_SAMESITE must be lax, strict or none")

// App holds runtime configuration derived from env vars.
type App struct {
	DatabaseURL string
	LogTable    string

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBAcquireTimeout  time.Duration

	APIPort     string
	Environment string
	LogLevel    string
	LogEncoding string
	CORSOrigins []string

	TokenCookieName string
	// TokenCookieSameSite is lax, strict or none. Pages embedding the reader
	// on another origin need none to send the cookie with POST /save.
	TokenCookieSameSite string
	TokenIssuance       bool

	SkipPrivateTitles     bool
	SchemaTolerateFailure bool
	SchemaCheckSchedule   string

	KafkaBrokers string
	KafkaTopic   string
}

// FromEnv loads the application configuration from environment variables.
func FromEnv() App {
	return App{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogTable:    getEnv("LOG_TABLE", "reading_logs"),

		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 5),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 1),
		DBConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		DBAcquireTimeout:  getEnvDuration("DB_ACQUIRE_TIMEOUT", 5*time.Second),

		APIPort:     getEnv("API_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "production"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogEncoding: getEnv("LOG_ENCODING", "json"),
		CORSOrigins: getCORSOrigins(),

		TokenCookieName:     getEnv("TOKEN_COOKIE_NAME", "token"),
		TokenCookieSameSite: strings.ToLower(getEnv("TOKEN_COOKIE_SAMESITE", "lax")),
		TokenIssuance:       getEnvBool("TOKEN_ISSUANCE", true),

		SkipPrivateTitles:     getEnvBool("SKIP_PRIVATE_TITLES", false),
		SchemaTolerateFailure: getEnvBool("SCHEMA_TOLERATE_FAILURE", false),
		SchemaCheckSchedule:   os.Getenv("SCHEMA_CHECK_SCHEDULE"),

		KafkaBrokers: os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "reading-log-events"),
	}
}

// Validate reports configuration that makes startup impossible.
func (a App) Validate() error {
	if strings.TrimSpace(a.DatabaseURL) == "" {
		return ErrMissingDatabaseURL
	}
	switch a.TokenCookieSameSite {
	case "", "lax", "strict", "none":
	default:
		return ErrInvalidCookieSameSite
	}
	return nil
}

// KafkaBrokerList splits KafkaBrokers into trimmed addresses.
func (a App) KafkaBrokerList() []string {
	return splitList(a.KafkaBrokers)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getCORSOrigins() []string {
	raw := os.Getenv("CORS_ORIGINS")
	if raw == "" {
		return []string{"*"}
	}
	return splitList(raw)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
