package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnvOverrides applies environment variables on top of file values.
// Environment always wins over the config file.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&cfg.AzureAPIVersion, "AZURE_API_VERSION")

	if value, ok := os.LookupEnv("WIRE_API"); ok && value != "" {
		cfg.WireAPI = WireAPI(strings.ToLower(strings.TrimSpace(value)))
	}

	setString(&cfg.BigModel, "BIG_MODEL")
	setString(&cfg.MiddleModel, "MIDDLE_MODEL")
	setString(&cfg.SmallModel, "SMALL_MODEL")
	setString(&cfg.MinThinkingLevel, "MIN_THINKING_LEVEL")

	setString(&cfg.Host, "HOST")
	setInt(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")

	setInt(&cfg.RequestTimeout, "REQUEST_TIMEOUT")
	setInt(&cfg.StreamRequestTimeout, "STREAM_REQUEST_TIMEOUT")
	setInt(&cfg.RequestBodyMaxSize, "REQUEST_BODY_MAX_SIZE")

	setInt(&cfg.SessionTTLMinSecs, "SESSION_TTL_MIN_SECS")
	setInt(&cfg.SessionTTLMaxSecs, "SESSION_TTL_MAX_SECS")
	setInt(&cfg.SessionCleanupIntervalSecs, "SESSION_CLEANUP_INTERVAL_SECS")

	setBool(&cfg.DebugToolIDMatching, "DEBUG_TOOL_ID_MATCHING")
	setBool(&cfg.ForwardThinkingItems, "FORWARD_THINKING_ITEMS")

	setString(&cfg.UsageLogDBURL, "USAGE_LOG_DB_URL")

	if cfg.CustomHeaders == nil {
		cfg.CustomHeaders = map[string]string{}
	}
	for name, value := range collectCustomHeaders(os.Environ()) {
		cfg.CustomHeaders[name] = value
	}
}

// collectCustomHeaders maps CUSTOM_HEADER_FOO_BAR=v environment entries to a
// FOO-BAR: v header. Underscores become hyphens, the prefix is stripped.
func collectCustomHeaders(environ []string) map[string]string {
	headers := map[string]string{}
	for _, entry := range environ {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			continue
		}
		name, ok := strings.CutPrefix(key, "CUSTOM_HEADER_")
		if !ok || name == "" {
			continue
		}
		headers[strings.ReplaceAll(name, "_", "-")] = value
	}
	return headers
}

func setString(dst *string, key string) {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return
	}
	*dst = parsed
}

func setBool(dst *bool, key string) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return
	}
	*dst = parsed
}
