package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mixaill76/claude_openai_bridge/internal/auth"
	"github.com/mixaill76/claude_openai_bridge/internal/config"
	"github.com/mixaill76/claude_openai_bridge/internal/fail2ban"
	"github.com/mixaill76/claude_openai_bridge/internal/logger"
	"github.com/mixaill76/claude_openai_bridge/internal/monitoring"
	"github.com/mixaill76/claude_openai_bridge/internal/proxy"
	"github.com/mixaill76/claude_openai_bridge/internal/router"
	"github.com/mixaill76/claude_openai_bridge/internal/security"
	"github.com/mixaill76/claude_openai_bridge/internal/session"
	"github.com/mixaill76/claude_openai_bridge/internal/upstream"
	"github.com/mixaill76/claude_openai_bridge/internal/usagelog"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	log.Info("Starting claude_openai_bridge",
		"log_level", cfg.LogLevel,
		"host", cfg.Host,
		"port", cfg.Port,
		"wire_api", cfg.WireAPI,
		"openai_base_url", cfg.OpenAIBaseURL,
		"openai_api_key", security.MaskAPIKey(cfg.OpenAIAPIKey),
		"big_model", cfg.BigModel,
		"middle_model", cfg.MiddleModel,
		"small_model", cfg.SmallModel,
	)
	if cfg.AnthropicAPIKey == "" {
		log.Warn("ANTHROPIC_API_KEY not set. Client API key validation is disabled.")
	}
	if !cfg.ValidateOpenAIKeyFormat() {
		log.Warn("OPENAI_API_KEY does not look like an OpenAI key; assuming a compatible gateway")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, err := session.NewManager(
		cfg.SessionTTLMinSecs,
		cfg.SessionTTLMaxSecs,
		cfg.SessionCleanupIntervalSecs,
		log,
	)
	if err != nil {
		log.Error("Failed to initialize session manager", "error", err)
		os.Exit(1)
	}
	sessions.StartCleanup(ctx)

	var usageLogger *usagelog.Logger
	if cfg.UsageLogDBURL != "" {
		usageLogger, err = usagelog.New(ctx, cfg.UsageLogDBURL, log)
		if err != nil {
			log.Error("Failed to initialize usage logging",
				"db_url", security.MaskDatabaseURL(cfg.UsageLogDBURL),
				"error", err,
			)
			os.Exit(1)
		}
		defer usageLogger.Close()
	}

	var bans *fail2ban.Fail2Ban
	if cfg.AuthBan.Enabled {
		bans = fail2ban.New(cfg.AuthBan.MaxAttempts, time.Duration(cfg.AuthBan.BanDuration)*time.Second)
		log.Info("Auth failure banning enabled",
			"max_attempts", cfg.AuthBan.MaxAttempts,
			"ban_duration_secs", cfg.AuthBan.BanDuration,
		)
	}

	metrics := monitoring.New(true)
	gate := auth.NewGate(cfg.AnthropicAPIKey)
	upstreamClient := upstream.New(cfg, log)
	prx := proxy.New(cfg, log, upstreamClient, sessions, gate, bans, metrics, usageLogger)

	mux := http.NewServeMux()
	mux.Handle("/", router.New(prx))
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Server shutdown complete")
}
