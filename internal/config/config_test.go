package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATASTORE", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "groq", cfg.AIProvider)
	assert.Equal(t, 30*time.Second, cfg.AITimeout)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpire)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.FrontendOrigins)
	assert.True(t, cfg.RateLimitEnabled)
	assert.False(t, cfg.ChatAutoTitle)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATASTORE", "mongo")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("AI_PROVIDER", "Gemini")
	t.Setenv("AI_TIMEOUT", "5s")
	t.Setenv("JWT_EXPIRE", "30d")
	t.Setenv("CHAT_AUTO_TITLE", "true")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("FRONTEND_URL", "https://a.example, https://b.example")
	t.Setenv("NODE_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.AIProvider)
	assert.Equal(t, 5*time.Second, cfg.AITimeout)
	assert.Equal(t, 30*24*time.Hour, cfg.JWTExpire)
	assert.True(t, cfg.ChatAutoTitle)
	assert.False(t, cfg.RateLimitEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.FrontendOrigins)
	assert.True(t, cfg.IsProduction())
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATASTORE", "mongo")
	t.Setenv("MONGODB_URI", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "MONGODB_URI")
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("AI_TIMEOUT", "soon")
	t.Setenv("RATE_LIMIT_ENABLED", "maybe")
	assert.Equal(t, 30*time.Second, getEnvAsDuration("AI_TIMEOUT", 30*time.Second))
	assert.True(t, getEnvAsBool("RATE_LIMIT_ENABLED", true))
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("7d")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, d)

	d, err = parseDuration("90m")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	_, err = parseDuration("xd")
	assert.Error(t, err)
}
