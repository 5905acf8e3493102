package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPlatformDefaults(t *testing.T) {
	env := map[string]string{
		"DATABASE_URL": "postgres://clinic@db/clinic",
		"PORT":         "9000",
	}
	cfg := Config{Addr: defaultAddr}
	cfg.applyPlatformDefaults(func(k string) string { return env[k] })

	assert.Equal(t, "postgres://clinic@db/clinic", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestApplyPlatformDefaultsKeepsExplicitValues(t *testing.T) {
	env := map[string]string{
		"DATABASE_URL": "postgres://platform",
		"PORT":         "9000",
	}
	cfg := Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit"}
	cfg.applyPlatformDefaults(func(k string) string { return env[k] })

	assert.Equal(t, "postgres://explicit", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		DatabaseURL: "postgres://clinic@db/clinic",
		RateLimit:   RateLimitConfig{Max: 10, Window: time.Minute},
	}
	require.NoError(t, valid.validate())

	noDB := valid
	noDB.DatabaseURL = ""
	assert.ErrorContains(t, noDB.validate(), "database URL is required")

	noRate := valid
	noRate.RateLimit.Max = 0
	assert.Error(t, noRate.validate())

	badProxy := valid
	badProxy.RateLimit.TrustedProxies = []string{"10.0.0.0/33"}
	assert.ErrorContains(t, badProxy.validate(), "trusted proxy")

	proxies := valid
	proxies.RateLimit.TrustedProxies = []string{"10.0.0.0/8", "127.0.0.1"}
	assert.NoError(t, proxies.validate())
}
