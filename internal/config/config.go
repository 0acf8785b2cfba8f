package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bridge.
type Config struct {
	App          AppConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	Dedup        DedupConfig
	Idempotency  IdempotencyConfig
	Helpdesk     HelpdeskConfig
	Health       HealthConfig
	Analytics    AnalyticsConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
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

// AuthConfig defines inbound authentication parameters.
type AuthConfig struct {
	// SharedToken is the plaintext static token; SharedTokenHash, when set,
	// takes precedence and holds a bcrypt hash of the token.
	SharedToken       string
	SharedTokenHash   string
	SigningSecret     string
	SkewWindowMinutes int
}

// RateLimitConfig bounds per-identity throughput.
type RateLimitConfig struct {
	Limit         int
	WindowSeconds int
	UseRedis      bool
}

// DedupConfig controls the ticket dedup cache.
type DedupConfig struct {
	WindowHours  int
	SweepMinutes int
	UseRedis     bool
}

// IdempotencyConfig controls the idempotency cache.
type IdempotencyConfig struct {
	TTLMinutes   int
	SweepMinutes int
	UseRedis     bool
}

// HelpdeskConfig locates the external helpdesk.
type HelpdeskConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// HealthConfig carries the composite health-score weights.
type HealthConfig struct {
	VolumeWeight     float64
	EscalationWeight float64
	ResolutionWeight float64
}

// AnalyticsConfig tunes analytics report defaults.
type AnalyticsConfig struct {
	RepeatThreshold    int
	PerStaffThroughput int
}

// PostgresConfig holds the optional read-only reporting replica DSN.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
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

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "handoff-bridge"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Auth: AuthConfig{
			SharedToken:       os.Getenv("AUTH_SHARED_TOKEN"),
			SharedTokenHash:   os.Getenv("AUTH_SHARED_TOKEN_BCRYPT"),
			SigningSecret:     os.Getenv("AUTH_SIGNING_SECRET"),
			SkewWindowMinutes: getEnvAsInt("AUTH_SKEW_WINDOW_MINUTES", 5),
		},
		RateLimit: RateLimitConfig{
			Limit:         getEnvAsInt("RATE_LIMIT_PER_WINDOW", 10),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 1),
			UseRedis:      getEnvAsBool("RATE_LIMIT_USE_REDIS", false),
		},
		Dedup: DedupConfig{
			WindowHours:  getEnvAsInt("DEDUP_WINDOW_HOURS", 4),
			SweepMinutes: getEnvAsInt("DEDUP_SWEEP_MINUTES", 5),
			UseRedis:     getEnvAsBool("DEDUP_USE_REDIS", false),
		},
		Idempotency: IdempotencyConfig{
			TTLMinutes:   getEnvAsInt("IDEMPOTENCY_TTL_MINUTES", 15),
			SweepMinutes: getEnvAsInt("IDEMPOTENCY_SWEEP_MINUTES", 5),
			UseRedis:     getEnvAsBool("IDEMPOTENCY_USE_REDIS", false),
		},
		Helpdesk: HelpdeskConfig{
			BaseURL:        getEnv("HELPDESK_BASE_URL", "http://127.0.0.1:9090"),
			APIKey:         os.Getenv("HELPDESK_API_KEY"),
			TimeoutSeconds: getEnvAsInt("HELPDESK_TIMEOUT_SECONDS", 10),
		},
		Health: HealthConfig{
			VolumeWeight:     getEnvAsFloat("HEALTH_VOLUME_WEIGHT", 20),
			EscalationWeight: getEnvAsFloat("HEALTH_ESCALATION_WEIGHT", 40),
			ResolutionWeight: getEnvAsFloat("HEALTH_RESOLUTION_WEIGHT", 40),
		},
		Analytics: AnalyticsConfig{
			RepeatThreshold:    getEnvAsInt("ANALYTICS_REPEAT_THRESHOLD", 2),
			PerStaffThroughput: getEnvAsInt("ANALYTICS_STAFF_THROUGHPUT", 6),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if cfg.Auth.SharedToken == "" && cfg.Auth.SharedTokenHash == "" && cfg.Auth.SigningSecret == "" {
		return nil, fmt.Errorf("no inbound credentials configured: set AUTH_SHARED_TOKEN, AUTH_SHARED_TOKEN_BCRYPT or AUTH_SIGNING_SECRET")
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

// SkewWindow returns the signed-payload acceptance window.
func (a AuthConfig) SkewWindow() time.Duration {
	if a.SkewWindowMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(a.SkewWindowMinutes) * time.Minute
}

// Window returns the rate-limit window duration.
func (r RateLimitConfig) Window() time.Duration {
	if r.WindowSeconds <= 0 {
		return time.Second
	}
	return time.Duration(r.WindowSeconds) * time.Second
}

// Window returns the ticket dedup recency window.
func (d DedupConfig) Window() time.Duration {
	if d.WindowHours <= 0 {
		return 4 * time.Hour
	}
	return time.Duration(d.WindowHours) * time.Hour
}

// SweepInterval returns the dedup sweep cadence.
func (d DedupConfig) SweepInterval() time.Duration {
	if d.SweepMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(d.SweepMinutes) * time.Minute
}

// TTL returns the idempotency entry lifetime.
func (i IdempotencyConfig) TTL() time.Duration {
	if i.TTLMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(i.TTLMinutes) * time.Minute
}

// SweepInterval returns the idempotency sweep cadence.
func (i IdempotencyConfig) SweepInterval() time.Duration {
	if i.SweepMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(i.SweepMinutes) * time.Minute
}

// Timeout returns the helpdesk request timeout.
func (h HelpdeskConfig) Timeout() time.Duration {
	if h.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(h.TimeoutSeconds) * time.Second
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

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
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
