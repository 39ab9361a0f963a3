package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAIBaseURL)
	assert.Equal(t, WireAPIChat, cfg.WireAPI)
	assert.Equal(t, "gpt-4o", cfg.BigModel)
	assert.Equal(t, "gpt-4o", cfg.MiddleModel, "middle inherits big")
	assert.Equal(t, "gpt-4o-mini", cfg.SmallModel)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8082, cfg.Port)
	assert.Equal(t, 90, cfg.RequestTimeout)
	assert.Equal(t, 0, cfg.StreamRequestTimeout)
	assert.Equal(t, 16*1024*1024, cfg.RequestBodyMaxSize)
	assert.Equal(t, 1800, cfg.SessionTTLMinSecs)
	assert.Equal(t, 86400, cfg.SessionTTLMaxSecs)
	assert.Equal(t, 60, cfg.SessionCleanupIntervalSecs)
	assert.False(t, cfg.DebugToolIDMatching)
	assert.False(t, cfg.ForwardThinkingItems)
}

func TestLoadMissingRequiredKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadFileValues(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	path := writeConfigFile(t, `
openai_base_url: "https://gateway.example.com/v1/"
wire_api: responses
big_model: gpt-4.1
port: 9000
session_ttl_min_secs: 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://gateway.example.com/v1", cfg.OpenAIBaseURL, "trailing slash trimmed")
	assert.Equal(t, WireAPIResponses, cfg.WireAPI)
	assert.Equal(t, "gpt-4.1", cfg.BigModel)
	assert.Equal(t, "gpt-4.1", cfg.MiddleModel)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 60, cfg.SessionTTLMinSecs)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("BIG_MODEL", "gpt-env")
	t.Setenv("PORT", "9100")
	path := writeConfigFile(t, `
big_model: gpt-file
port: 9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-env", cfg.BigModel)
	assert.Equal(t, 9100, cfg.Port)
}

func TestCustomHeaderEnvMapping(t *testing.T) {
	headers := collectCustomHeaders([]string{
		"CUSTOM_HEADER_FOO_BAR=value1",
		"CUSTOM_HEADER_X_TRACE=value2",
		"OTHER_VAR=ignored",
		"CUSTOM_HEADER_=ignored",
	})

	assert.Equal(t, map[string]string{
		"FOO-BAR": "value1",
		"X-TRACE": "value2",
	}, headers)
}

func TestCustomHeaderEnvOverridesFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CUSTOM_HEADER_X_GATEWAY", "from-env")
	path := writeConfigFile(t, `
custom_headers:
  X-GATEWAY: from-file
  X-OTHER: kept
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.CustomHeaders["X-GATEWAY"])
	assert.Equal(t, "kept", cfg.CustomHeaders["X-OTHER"])
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Port = -1 }},
		{"bad scheme", func(c *Config) { c.OpenAIBaseURL = "ftp://example.com" }},
		{"bad wire api", func(c *Config) { c.WireAPI = "grpc" }},
		{"bad thinking level", func(c *Config) { c.MinThinkingLevel = "max" }},
		{"ttl max below min", func(c *Config) { c.SessionTTLMaxSecs = 1 }},
		{"zero body size", func(c *Config) { c.RequestBodyMaxSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			cfg.OpenAIAPIKey = "sk-test"
			cfg.Normalize()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateOpenAIKeyFormat(t *testing.T) {
	cfg := defaults()
	cfg.OpenAIAPIKey = "sk-abc123"
	assert.True(t, cfg.ValidateOpenAIKeyFormat())

	cfg.OpenAIAPIKey = "gateway-token"
	assert.False(t, cfg.ValidateOpenAIKeyFormat())
}
