package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Extractor    ExtractorConfig
	Ingest       IngestConfig
	Session      SessionConfig
	Admin        AdminConfig
	Notification NotificationConfig
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

// PostgresConfig holds DB connection values. An empty DSN selects the
// in-memory ticket store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr selects the
// in-memory session store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// ExtractorConfig selects and bounds the field extraction capability.
type ExtractorConfig struct {
	Provider        string
	AnthropicAPIKey string
	AnthropicModel  string
	TimeoutSeconds  int
}

// IngestConfig bounds datadump uploads.
type IngestConfig struct {
	MaxUploadBytes int64
}

// SessionConfig tunes session persistence and the per-session writer lock.
type SessionConfig struct {
	TTLHours       int
	LockTTLSeconds int
}

// AdminConfig guards the import surface. Empty values disable the guard.
type AdminConfig struct {
	JWTSecret          string
	PasswordBcryptHash string
	TokenTTLMinutes    int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "enrollment-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Extractor: ExtractorConfig{
			Provider:        getEnv("EXTRACTOR_PROVIDER", "rules"),
			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicModel:  getEnv("EXTRACTOR_ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			TimeoutSeconds:  getEnvAsInt("EXTRACTOR_TIMEOUT_SECONDS", 15),
		},
		Ingest: IngestConfig{
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 10*1024*1024)),
		},
		Session: SessionConfig{
			TTLHours:       getEnvAsInt("SESSION_TTL_HOURS", 72),
			LockTTLSeconds: getEnvAsInt("SESSION_LOCK_TTL_SECONDS", 90),
		},
		Admin: AdminConfig{
			JWTSecret:          os.Getenv("ADMIN_JWT_SECRET"),
			PasswordBcryptHash: os.Getenv("ADMIN_PASSWORD_BCRYPT_HASH"),
			TokenTTLMinutes:    getEnvAsInt("ADMIN_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
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

// Timeout returns the extractor call deadline.
func (e ExtractorConfig) Timeout() time.Duration {
	if e.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// LockTTL returns the per-session writer lock expiry. The default keeps the
// lock alive through the worst-case turn: two extractor attempts at the full
// extraction timeout plus backoff and store writes.
func (s SessionConfig) LockTTL() time.Duration {
	if s.LockTTLSeconds <= 0 {
		return 90 * time.Second
	}
	return time.Duration(s.LockTTLSeconds) * time.Second
}

// TTL returns how long idle sessions are retained. Zero disables expiry.
func (s SessionConfig) TTL() time.Duration {
	if s.TTLHours <= 0 {
		return 0
	}
	return time.Duration(s.TTLHours) * time.Hour
}

// GuardEnabled reports whether the admin guard should be enforced.
func (a AdminConfig) GuardEnabled() bool {
	return a.JWTSecret != "" && a.PasswordBcryptHash != ""
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
