package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	CORSAllowedOrigins []string

	StoreDriver   string
	StoreFile     string
	StoreSeed     bool
	DatabaseURL   string
	AutoMigrate   bool
	RedisURL      string
	RedisPrefix   string
	MongoURL      string
	MongoDatabase string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	LoginRateLimit  int
	LoginRateWindow time.Duration

	TaxRateBps             int
	MaxDiscountBps         int
	CurrencyCode           string
	CurrencyFractionDigits int
	PaymentDelay           time.Duration
	RefundDelay            time.Duration
	IDMaxAttempts          int

	LockTTL           time.Duration
	LockRetryBackoff  time.Duration
	CatalogCacheTTL   time.Duration
	AnalyticsCacheTTL time.Duration
	IdempotencyTTL    time.Duration
	SessionIdleTTL    time.Duration

	StoreName    string
	StoreAddress string
	StorePhone   string

	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	SMTPFrom         string
	QueueConcurrency int

	LogFormat       string
	LogLevel        string
	OTLPEndpoint    string
	TracingEnabled  bool
	TraceSampling   float64
	MetricsBuckets  string
	BodyLimitBytes  int64
	SecurityHeaders bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	appEnv := valueOrDefault(k.String("APP_ENV"), "development")
	cfg := &Config{
		AppEnv:             appEnv,
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		StoreDriver:   strings.ToLower(valueOrDefault(k.String("STORE_DRIVER"), "memory")),
		StoreFile:     valueOrDefault(k.String("STORE_FILE"), "data/pos.json"),
		StoreSeed:     parseBool(k.String("STORE_SEED"), appEnv == "development"),
		DatabaseURL:   k.String("DATABASE_URL"),
		AutoMigrate:   parseBool(k.String("DATABASE_AUTO_MIGRATE"), true),
		RedisURL:      k.String("REDIS_URL"),
		RedisPrefix:   valueOrDefault(k.String("REDIS_PREFIX"), "pos:"),
		MongoURL:      k.String("MONGO_URL"),
		MongoDatabase: valueOrDefault(k.String("MONGO_DATABASE"), "kasir"),

		JWTSecret:       k.String("JWT_SECRET"),
		AccessTokenTTL:  parseDuration(k.String("ACCESS_TOKEN_TTL"), "12h"),
		LoginRateLimit:  parseInt(k.String("LOGIN_RATE_LIMIT"), 10),
		LoginRateWindow: parseDuration(k.String("LOGIN_RATE_WINDOW"), "1m"),

		TaxRateBps:             parseInt(k.String("TAX_RATE_BPS"), 1000),
		MaxDiscountBps:         parseInt(k.String("MAX_DISCOUNT_BPS"), 10000),
		CurrencyCode:           strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "IDR")),
		CurrencyFractionDigits: parseInt(k.String("CURRENCY_FRACTION_DIGITS"), 0),
		PaymentDelay:           parseDuration(k.String("PAYMENT_DELAY"), "2s"),
		RefundDelay:            parseDuration(k.String("REFUND_DELAY"), "2s"),
		IDMaxAttempts:          parseInt(k.String("ID_MAX_ATTEMPTS"), 5),

		LockTTL:           parseDuration(k.String("LOCK_TTL"), "10s"),
		LockRetryBackoff:  parseDuration(k.String("LOCK_RETRY_BACKOFF"), "25ms"),
		CatalogCacheTTL:   parseDuration(k.String("CATALOG_CACHE_TTL"), "30s"),
		AnalyticsCacheTTL: parseDuration(k.String("ANALYTICS_CACHE_TTL"), "60s"),
		IdempotencyTTL:    parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		SessionIdleTTL:    parseDuration(k.String("SESSION_IDLE_TTL"), "8h"),

		StoreName:    valueOrDefault(k.String("STORE_NAME"), "POS SYSTEM"),
		StoreAddress: k.String("STORE_ADDRESS"),
		StorePhone:   k.String("STORE_PHONE"),

		SMTPHost:         k.String("SMTP_HOST"),
		SMTPPort:         parseInt(k.String("SMTP_PORT"), 587),
		SMTPUsername:     k.String("SMTP_USERNAME"),
		SMTPPassword:     k.String("SMTP_PASSWORD"),
		SMTPFrom:         k.String("SMTP_FROM"),
		QueueConcurrency: parseInt(k.String("QUEUE_CONCURRENCY"), 5),

		LogFormat:       valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:        valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		OTLPEndpoint:    k.String("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TracingEnabled:  parseBool(k.String("OBS_TRACING_ENABLED"), false),
		TraceSampling:   parseFloat(k.String("OBS_TRACE_SAMPLING"), 1),
		MetricsBuckets:  k.String("OBS_HTTP_BUCKETS_MS"),
		BodyLimitBytes:  int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 1<<20)),
		SecurityHeaders: parseBool(k.String("SECURITY_HEADERS_ENABLED"), true),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.StoreDriver {
	case "memory", "file":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for STORE_DRIVER=postgres")
		}
	case "redis":
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for STORE_DRIVER=redis")
		}
	case "mongo":
		if c.MongoURL == "" {
			return errors.New("MONGO_URL is required for STORE_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.TaxRateBps < 0 || c.TaxRateBps > 10000 {
		return errors.New("TAX_RATE_BPS must be within [0, 10000]")
	}
	if c.MaxDiscountBps < 0 || c.MaxDiscountBps > 10000 {
		return errors.New("MAX_DISCOUNT_BPS must be within [0, 10000]")
	}
	if c.CurrencyFractionDigits < 0 || c.CurrencyFractionDigits > 4 {
		return errors.New("CURRENCY_FRACTION_DIGITS must be within [0, 4]")
	}
	return nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// SMTPEnabled reports whether receipt e-mail delivery is configured.
func (c *Config) SMTPEnabled() bool {
	return strings.TrimSpace(c.SMTPHost) != "" && strings.TrimSpace(c.SMTPFrom) != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
