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

	"github.com/noah-isme/backend-vat/internal/tax"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string

	TaxEnabled          bool
	TaxEnabledCountries []string
	BundleDisplay       tax.DisplayMode
	RateCacheTTL        time.Duration
	BaseCountry         string

	RenewalPeriod  time.Duration
	RenewalLockTTL time.Duration

	AdminRateLimit           int64
	AdminRateLimitWindow     time.Duration
	ProductMutationRateLimit int64
	MaxBodyBytes             int64
	IdempotencyTTL           time.Duration
	AccessTokenTTL           time.Duration
	GeoIPBaseURL             string
	AuditEnabled             bool
	AuditSampleRate          float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		TaxEnabled:          parseBoolDefault(k.String("TAX_OVERRIDES_ENABLED"), true),
		TaxEnabledCountries: splitAndTrim(valueOrDefault(k.String("TAX_ENABLED_COUNTRIES"), "DE")),
		BundleDisplay:       tax.ParseDisplayMode(k.String("TAX_BUNDLE_DISPLAY")),
		RateCacheTTL:        parseDuration(k.String("TAX_RATE_CACHE_TTL"), "1h"),
		BaseCountry:         valueOrDefault(k.String("SHOP_BASE_COUNTRY"), "DE"),

		RenewalPeriod:  parseDuration(k.String("BILLING_RENEWAL_PERIOD"), "720h"),
		RenewalLockTTL: parseDuration(k.String("BILLING_RENEWAL_LOCK_TTL"), "1m"),

		AdminRateLimit:           parseInt64(k.String("ADMIN_RATE_LIMIT"), 60),
		AdminRateLimitWindow:     parseDuration(k.String("ADMIN_RATE_LIMIT_WINDOW"), "1m"),
		ProductMutationRateLimit: parseInt64(k.String("ADMIN_PRODUCT_MUTATION_RATE_LIMIT"), 30),
		MaxBodyBytes:             parseInt64(k.String("MAX_BODY_BYTES"), 1<<20),
		IdempotencyTTL:           parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		AccessTokenTTL:           parseDuration(k.String("ACCESS_TOKEN_TTL"), "15m"),
		GeoIPBaseURL:             k.String("GEOIP_BASE_URL"),
		AuditEnabled:             parseBoolDefault(k.String("AUDIT_ENABLED"), true),
		AuditSampleRate:          parseFloat(k.String("AUDIT_SAMPLE_RATE"), 1.0),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// TaxConfig builds the immutable engine configuration snapshot.
func (c *Config) TaxConfig() tax.Config {
	return tax.NewConfig(c.TaxEnabled, c.TaxEnabledCountries, c.BundleDisplay)
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
		return value
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

func parseInt64(value string, fallback int64) int64 {
	base := strings.TrimSpace(value)
	if base == "" {
		return fallback
	}
	n, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	base := strings.TrimSpace(value)
	if base == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(base, 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBoolDefault(value string, fallback bool) bool {
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
