package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("APP_URL", "http://localhost:5000")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg := Load()

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 168*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, "intasend", cfg.PaymentProvider)
	assert.Equal(t, 20*time.Second, cfg.PaymentTimeout)
	assert.Equal(t, 20, cfg.RateLimitAuthMax)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.ArchiveEnabled())
	assert.True(t, cfg.PolarSandboxMode)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_EXPIRY", "30m")
	t.Setenv("RATE_LIMIT_AUTH_MAX", "5")
	t.Setenv("PAYMENT_PROVIDER", "stripe")
	t.Setenv("S3_BUCKET", "webhooks")
	t.Setenv("POLAR_SANDBOX_MODE", "false")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, ,192.168.1.5")

	cfg := Load()

	assert.Equal(t, 30*time.Minute, cfg.JWTExpiry)
	assert.Equal(t, 5, cfg.RateLimitAuthMax)
	assert.Equal(t, "stripe", cfg.PaymentProvider)
	assert.True(t, cfg.ArchiveEnabled())
	assert.False(t, cfg.PolarSandboxMode)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.5"}, cfg.TrustedProxies)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("FLIPWISE_TEST_INT", "abc")
	t.Setenv("FLIPWISE_TEST_DURATION", "soon")
	t.Setenv("FLIPWISE_TEST_BOOL", "maybe")

	assert.Equal(t, 7, envInt("FLIPWISE_TEST_INT", 7))
	assert.Equal(t, time.Second, envDuration("FLIPWISE_TEST_DURATION", time.Second))
	assert.True(t, envBool("FLIPWISE_TEST_BOOL", true))
	assert.Equal(t, "fallback", envString("FLIPWISE_TEST_UNSET", "fallback"))
}
