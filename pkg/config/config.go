// ==============================================================================
// CONFIG PACKAGE - pkg/config/config.go
// ==============================================================================
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Email    EmailConfig
	Store    StoreConfig
	Policy   PolicyConfig
	Retry    RetryConfig

	Bootstrap BootstrapConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RateLimit    int
	RateWindow   time.Duration

	// AllowedOrigins restricts CORS; empty reflects the request origin.
	AllowedOrigins []string
	IdempotencyTTL time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPUseTLS   bool
}

// Enabled reports whether an SMTP relay is configured.
func (c EmailConfig) Enabled() bool {
	return strings.TrimSpace(c.SMTPHost) != ""
}

// Store backends.
const (
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"
	StoreBackendMemory   = "memory"
)

type StoreConfig struct {
	Backend string
}

// BusinessHours is a daily working window, [StartHour, EndHour) in local time.
type BusinessHours struct {
	StartHour int
	EndHour   int
	Days      []time.Weekday
}

type PolicyConfig struct {
	Currency             string
	DualAuthThreshold    decimal.Decimal
	Timezone             string
	BusinessHours        BusinessHours
	EnforceBusinessHours bool
	NotificationTimeout  time.Duration
}

// Location resolves the policy timezone, falling back to UTC.
func (p PolicyConfig) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BootstrapConfig names the super_admin created on startup when it does not exist.
type BootstrapConfig struct {
	AdminID    string
	AdminName  string
	AdminEmail string
}

type RetryConfig struct {
	// MaxAttempts counts the first try; 2 means one reload-and-retry on a stale version.
	MaxAttempts int
}

// Load reads configuration from the environment after applying an optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("SERVER_PORT", "8080"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:    getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			RateLimit:      getIntEnv("RATE_LIMIT", 120),
			RateWindow:     getDurationEnv("RATE_WINDOW", time.Minute),
			AllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS"),
			IdempotencyTTL: getDurationEnv("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:      normalizeRedisURL(getEnv("REDIS_URL", "localhost:6379")),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "change-this-secret"),
			Expiration: getDurationEnv("JWT_EXPIRATION", 15*time.Minute),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getIntEnv("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			SMTPFrom:     getEnv("SMTP_FROM", ""),
			SMTPUseTLS:   getBoolEnv("SMTP_USE_TLS", true),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", StoreBackendPostgres)),
		},
		Policy: PolicyConfig{
			Currency:          getEnv("POLICY_CURRENCY", "NGN"),
			DualAuthThreshold: getDecimalEnv("DUAL_AUTH_THRESHOLD", decimal.NewFromInt(250000)),
			Timezone:          getEnv("BUSINESS_TIMEZONE", "Africa/Lagos"),
			BusinessHours: BusinessHours{
				StartHour: getIntEnv("BUSINESS_HOURS_START", 8),
				EndHour:   getIntEnv("BUSINESS_HOURS_END", 18),
				Days:      getWeekdaysEnv("BUSINESS_DAYS", []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}),
			},
			EnforceBusinessHours: getBoolEnv("ENFORCE_BUSINESS_HOURS", true),
			NotificationTimeout:  getDurationEnv("NOTIFICATION_TIMEOUT", 10*time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts: getIntEnv("STALE_VERSION_MAX_ATTEMPTS", 2),
		},
		Bootstrap: BootstrapConfig{
			AdminID:    getEnv("BOOTSTRAP_ADMIN_ID", ""),
			AdminName:  getEnv("BOOTSTRAP_ADMIN_NAME", "Platform Owner"),
			AdminEmail: getEnv("BOOTSTRAP_ADMIN_EMAIL", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getListEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func normalizeRedisURL(url string) string {
	// Strip redis:// or redis+tls:// scheme if present
	if strings.HasPrefix(url, "redis+tls://") {
		return url[len("redis+tls://"):]
	}
	if strings.HasPrefix(url, "redis://") {
		return url[len("redis://"):]
	}
	return url
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return defaultValue
}

func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// getWeekdaysEnv parses a comma separated list such as "mon,tue,wed".
func getWeekdaysEnv(key string, defaultValue []time.Weekday) []time.Weekday {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var days []time.Weekday
	for _, part := range strings.Split(value, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if len(name) > 3 {
			name = name[:3]
		}
		if d, ok := weekdayNames[name]; ok {
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		return defaultValue
	}
	return days
}
