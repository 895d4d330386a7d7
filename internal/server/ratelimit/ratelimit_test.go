package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(configs []EndpointConfig) *Limiter {
	return NewLimiter(&Config{
		Enabled:         true,
		DefaultLimit:    100,
		DefaultWindow:   time.Minute,
		EndpointConfigs: configs,
	})
}

func TestAllow_BurstThenLimited(t *testing.T) {
	l := newTestLimiter([]EndpointConfig{
		{Path: "/subjects/", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
	})
	defer l.Stop()

	allowed, _ := l.Allow("1.2.3.4", "/subjects/s1/documents", "POST")
	assert.True(t, allowed)
	allowed, _ = l.Allow("1.2.3.4", "/subjects/s1/documents", "POST")
	assert.True(t, allowed)

	allowed, info := l.Allow("1.2.3.4", "/subjects/s1/documents", "POST")
	assert.False(t, allowed)
	assert.Equal(t, 10, info.Limit)
	assert.Greater(t, info.RetryAfter, time.Duration(0))
}

func TestAllow_ClientsAreIndependent(t *testing.T) {
	l := newTestLimiter([]EndpointConfig{
		{Path: "/subjects/", Method: "POST", Limit: 10, Window: time.Hour, Burst: 1},
	})
	defer l.Stop()

	allowed, _ := l.Allow("1.1.1.1", "/subjects/s1/documents", "POST")
	assert.True(t, allowed)
	allowed, _ = l.Allow("1.1.1.1", "/subjects/s1/documents", "POST")
	assert.False(t, allowed)

	allowed, _ = l.Allow("2.2.2.2", "/subjects/s1/documents", "POST")
	assert.True(t, allowed, "a second client has its own bucket")
}

func TestAllow_HealthIsUnlimited(t *testing.T) {
	l := newTestLimiter(nil)
	defer l.Stop()

	for i := 0; i < 500; i++ {
		allowed, _ := l.Allow("1.2.3.4", "/health", "GET")
		assert.True(t, allowed)
	}
}

func TestAllow_DisabledAllowsEverything(t *testing.T) {
	l := NewLimiter(&Config{Enabled: false})
	defer l.Stop()

	for i := 0; i < 100; i++ {
		allowed, _ := l.Allow("1.2.3.4", "/subjects/s1/documents", "POST")
		assert.True(t, allowed)
	}
}

func TestAllow_WhitelistBypassesLimits(t *testing.T) {
	l := NewLimiter(&Config{
		Enabled:   true,
		Whitelist: map[string]bool{"10.0.0.1": true},
		EndpointConfigs: []EndpointConfig{
			{Path: "/subjects/", Method: "POST", Limit: 1, Window: time.Hour, Burst: 1},
		},
		DefaultLimit:  1,
		DefaultWindow: time.Hour,
	})
	defer l.Stop()

	for i := 0; i < 10; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/subjects/s1/documents", "POST")
		assert.True(t, allowed)
	}
}

func TestMatchEndpoint_PrefixAndExact(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/auditors", Method: "POST", Limit: 30},
		{Path: "/subjects/", Method: "POST", Limit: 60},
	}

	assert.NotNil(t, MatchEndpoint("/auditors", "POST", configs))
	assert.NotNil(t, MatchEndpoint("/subjects/s1/documents", "POST", configs))
	assert.Nil(t, MatchEndpoint("/subjects/s1/verdicts", "GET", configs))
	assert.Nil(t, MatchEndpoint("/auditors", "GET", configs))
}

func TestLoadConfig_Disabled(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	cfg := LoadConfig()
	assert.False(t, cfg.Enabled)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "")
	t.Setenv("RATE_LIMIT_WHITELIST", "10.0.0.1, 10.0.0.2")

	cfg := LoadConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 600, cfg.DefaultLimit)
	assert.True(t, cfg.Whitelist["10.0.0.2"])
	assert.NotEmpty(t, cfg.EndpointConfigs)
}
