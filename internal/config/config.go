package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName         string
	AppEnv          string
	AppURL          string
	Port            string
	ShutdownTimeout time.Duration

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret string
	JWTExpiry time.Duration

	// Rate limiting for signup/login. Redis is used when RedisAddr is set,
	// otherwise an in-process limiter.
	RateLimitAuthMax    int
	RateLimitAuthWindow time.Duration
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	// Proxies whose X-Forwarded-For / X-Real-IP headers are believed.
	TrustedProxies      []string

	// Email
	EmailFrom    string
	ResendAPIKey string

	// Payment
	PaymentProvider string // "intasend", "stripe" or "polar"
	PaymentTimeout  time.Duration
	// Payment - IntaSend
	IntaSendSecretKey        string
	IntaSendBaseURL          string
	IntaSendWebhookChallenge string
	IntaSendWebhookSecret    string
	// Payment - Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	// Payment - Polar
	PolarAPIKey           string
	PolarWebhookSecret    string
	PolarSandboxMode      bool
	PolarProductIDPremium string

	// Observability (optional)
	SentryDSN string

	// Webhook archive (optional, S3-compatible). Disabled when S3Bucket is empty.
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string
}

// Load reads configuration once at startup. The returned value is treated
// as immutable and handed to the components that need it.
func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName:         envString("APP_NAME", "Flipwise"),
		AppEnv:          envRequired("APP_ENV"), // 'development' or 'production'
		AppURL:          envRequired("APP_URL"), // payment redirect target
		Port:            envString("PORT", "5000"),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/flipwise.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"),

		// Security
		JWTSecret: envRequired("JWT_SECRET"),
		JWTExpiry: envDuration("JWT_EXPIRY", 168*time.Hour), // 7 days

		// Rate limiting
		RateLimitAuthMax:    envInt("RATE_LIMIT_AUTH_MAX", 20),
		RateLimitAuthWindow: envDuration("RATE_LIMIT_AUTH_WINDOW", 15*time.Minute),
		RedisAddr:           envString("REDIS_ADDR", ""),
		RedisPassword:       envString("REDIS_PASSWORD", ""),
		RedisDB:             envInt("REDIS_DB", 0),
		TrustedProxies:      envList("TRUSTED_PROXIES"),

		// Email (RESEND_API_KEY optional in development)
		EmailFrom:    envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),

		// Payment
		PaymentProvider:          envString("PAYMENT_PROVIDER", "intasend"),
		PaymentTimeout:           envDuration("PAYMENT_TIMEOUT", 20*time.Second),
		IntaSendSecretKey:        envString("INTASEND_SECRET_KEY", ""),
		IntaSendBaseURL:          envString("INTASEND_BASE_URL", "https://api.intasend.com"),
		IntaSendWebhookChallenge: envString("INTASEND_WEBHOOK_CHALLENGE", ""),
		IntaSendWebhookSecret:    envString("INTASEND_WEBHOOK_SECRET", ""),
		StripeSecretKey:          envString("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:      envString("STRIPE_WEBHOOK_SECRET", ""),
		PolarAPIKey:              envString("POLAR_API_KEY", ""),
		PolarWebhookSecret:       envString("POLAR_WEBHOOK_SECRET", ""),
		PolarSandboxMode:         envBool("POLAR_SANDBOX_MODE", envString("APP_ENV", "development") == "development"),
		PolarProductIDPremium:    envString("POLAR_PRODUCT_ID_PREMIUM", ""),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Webhook archive
		S3Region:    envString("S3_REGION", "us-east-1"),
		S3Bucket:    envString("S3_BUCKET", ""),
		S3AccessKey: envString("S3_ACCESS_KEY", ""),
		S3SecretKey: envString("S3_SECRET_KEY", ""),
		S3Endpoint:  envString("S3_ENDPOINT", ""),
	}

	if cfg.IsProduction() {
		warnProduction(cfg)
	}

	return cfg
}

// warnProduction logs production deployments that run without webhook
// authenticity checks. Payment credentials stay optional: a missing key
// surfaces as a configuration error when a payment link is requested.
func warnProduction(cfg *Config) {
	if cfg.JWTSecret == "dev-secret-change-me" {
		slog.Error("production deployment is using the development JWT_SECRET")
		os.Exit(1)
	}
	switch cfg.PaymentProvider {
	case "intasend":
		if cfg.IntaSendWebhookChallenge == "" && cfg.IntaSendWebhookSecret == "" {
			slog.Warn("intasend webhooks are not verified",
				"hint", "set INTASEND_WEBHOOK_CHALLENGE or INTASEND_WEBHOOK_SECRET")
		}
	case "stripe":
		if cfg.StripeWebhookSecret == "" {
			slog.Warn("stripe webhooks cannot be verified", "hint", "set STRIPE_WEBHOOK_SECRET")
		}
	case "polar":
		if cfg.PolarWebhookSecret == "" {
			slog.Warn("polar webhooks are not verified", "hint", "set POLAR_WEBHOOK_SECRET")
		}
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

// envList splits a comma separated value, dropping empty entries.
func envList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// ArchiveEnabled reports whether webhook payloads are archived to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}
