package config

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// WireAPI selects the upstream protocol flavor.
type WireAPI string

const (
	WireAPIChat      WireAPI = "chat"
	WireAPIResponses WireAPI = "responses"
)

// Config holds the full bridge configuration.
// Constructed once at startup and treated as read-only afterwards;
// every component receives it explicitly.
type Config struct {
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	AzureAPIVersion string `yaml:"azure_api_version"`

	WireAPI WireAPI `yaml:"wire_api"`

	BigModel    string `yaml:"big_model"`
	MiddleModel string `yaml:"middle_model"`
	SmallModel  string `yaml:"small_model"`

	// MinThinkingLevel is the floor for the derived reasoning effort when the
	// client enables thinking: "low", "medium" or "high".
	MinThinkingLevel string `yaml:"min_thinking_level"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	RequestTimeout       int `yaml:"request_timeout"`        // seconds, non-streaming upstream calls
	StreamRequestTimeout int `yaml:"stream_request_timeout"` // seconds, 0 disables the bound
	RequestBodyMaxSize   int `yaml:"request_body_max_size"`  // bytes

	SessionTTLMinSecs          int `yaml:"session_ttl_min_secs"`
	SessionTTLMaxSecs          int `yaml:"session_ttl_max_secs"`
	SessionCleanupIntervalSecs int `yaml:"session_cleanup_interval_secs"`

	DebugToolIDMatching  bool `yaml:"debug_tool_id_matching"`
	ForwardThinkingItems bool `yaml:"forward_thinking_items"`

	CustomHeaders map[string]string `yaml:"custom_headers"`

	// UsageLogDBURL enables async usage logging to Postgres when set.
	UsageLogDBURL string `yaml:"usage_log_db_url"`

	AuthBan AuthBanConfig `yaml:"auth_ban"`
}

// AuthBanConfig controls temporary bans of clients that repeatedly fail
// API key validation.
type AuthBanConfig struct {
	Enabled     bool `yaml:"enabled"`
	MaxAttempts int  `yaml:"max_attempts"`
	BanDuration int  `yaml:"ban_duration_secs"`
}

// Load builds the configuration with precedence environment > config file > defaults.
// path may be empty or point to a missing file, in which case only defaults
// and environment variables apply.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		OpenAIBaseURL:              "https://api.openai.com/v1",
		WireAPI:                    WireAPIChat,
		BigModel:                   "gpt-4o",
		SmallModel:                 "gpt-4o-mini",
		MinThinkingLevel:           "low",
		Host:                       "0.0.0.0",
		Port:                       8082,
		LogLevel:                   "INFO",
		RequestTimeout:             90,
		StreamRequestTimeout:       0,
		RequestBodyMaxSize:         16 * 1024 * 1024,
		SessionTTLMinSecs:          1800,
		SessionTTLMaxSecs:          86400,
		SessionCleanupIntervalSecs: 60,
		CustomHeaders:              map[string]string{},
		AuthBan: AuthBanConfig{
			Enabled:     false,
			MaxAttempts: 10,
			BanDuration: 300,
		},
	}
}

// Normalize cleans up configuration values.
func (c *Config) Normalize() {
	// Trailing slash on base_url would double up when joining paths.
	for len(c.OpenAIBaseURL) > 0 && c.OpenAIBaseURL[len(c.OpenAIBaseURL)-1] == '/' {
		c.OpenAIBaseURL = c.OpenAIBaseURL[:len(c.OpenAIBaseURL)-1]
	}

	if c.MiddleModel == "" {
		c.MiddleModel = c.BigModel
	}
	if c.CustomHeaders == nil {
		c.CustomHeaders = map[string]string{}
	}
}

func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("openai_api_key is required")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	parsedURL, err := url.Parse(c.OpenAIBaseURL)
	if err != nil {
		return fmt.Errorf("invalid openai_base_url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("openai_base_url must use http or https scheme, got: %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("openai_base_url must have a host")
	}

	switch c.WireAPI {
	case WireAPIChat, WireAPIResponses:
	default:
		return fmt.Errorf("invalid wire_api: %s (must be chat or responses)", c.WireAPI)
	}

	switch c.MinThinkingLevel {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("invalid min_thinking_level: %s (must be low, medium, or high)", c.MinThinkingLevel)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request_timeout: %d", c.RequestTimeout)
	}
	if c.StreamRequestTimeout < 0 {
		return fmt.Errorf("invalid stream_request_timeout: %d", c.StreamRequestTimeout)
	}
	if c.RequestBodyMaxSize <= 0 {
		return fmt.Errorf("invalid request_body_max_size: %d", c.RequestBodyMaxSize)
	}

	if c.SessionTTLMinSecs <= 0 {
		return fmt.Errorf("invalid session_ttl_min_secs: %d", c.SessionTTLMinSecs)
	}
	if c.SessionTTLMaxSecs < c.SessionTTLMinSecs {
		return fmt.Errorf("session_ttl_max_secs (%d) must be >= session_ttl_min_secs (%d)",
			c.SessionTTLMaxSecs, c.SessionTTLMinSecs)
	}
	if c.SessionCleanupIntervalSecs <= 0 {
		return fmt.Errorf("invalid session_cleanup_interval_secs: %d", c.SessionCleanupIntervalSecs)
	}

	if c.AuthBan.Enabled {
		if c.AuthBan.MaxAttempts <= 0 {
			return fmt.Errorf("invalid auth_ban.max_attempts: %d", c.AuthBan.MaxAttempts)
		}
		if c.AuthBan.BanDuration < 0 {
			return fmt.Errorf("invalid auth_ban.ban_duration_secs: %d", c.AuthBan.BanDuration)
		}
	}

	return nil
}

// ValidateOpenAIKeyFormat reports whether the upstream key looks like an
// OpenAI-issued key. Informational only; third-party gateways use other formats.
func (c *Config) ValidateOpenAIKeyFormat() bool {
	return len(c.OpenAIAPIKey) > 3 && c.OpenAIAPIKey[:3] == "sk-"
}
