// Package testhelpers holds shared constructors for unit tests.
package testhelpers

import (
	"io"
	"log/slog"

	"github.com/mixaill76/claude_openai_bridge/internal/config"
)

// NewTestLogger creates a logger that discards all output.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// NewTestConfig returns a valid chat-wire configuration pointing at baseURL.
func NewTestConfig(baseURL string) *config.Config {
	return &config.Config{
		OpenAIAPIKey:               "sk-test",
		OpenAIBaseURL:              baseURL,
		WireAPI:                    config.WireAPIChat,
		BigModel:                   "gpt-4o",
		MiddleModel:                "gpt-4o",
		SmallModel:                 "gpt-4o-mini",
		MinThinkingLevel:           "low",
		Host:                       "127.0.0.1",
		Port:                       8082,
		LogLevel:                   "error",
		RequestTimeout:             5,
		RequestBodyMaxSize:         16 * 1024 * 1024,
		SessionTTLMinSecs:          1800,
		SessionTTLMaxSecs:          86400,
		SessionCleanupIntervalSecs: 60,
		CustomHeaders:              map[string]string{},
	}
}
