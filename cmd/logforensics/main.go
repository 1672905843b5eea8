// Command logforensics runs the log-forensics pipeline's HTTP server:
// config load, database migration, cache/LLM/backend wiring, and the
// staged orchestrator serving spec.md §6's endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/codeready-toolchain/logforensics/pkg/agents"
	"github.com/codeready-toolchain/logforensics/pkg/api"
	"github.com/codeready-toolchain/logforensics/pkg/cachecore"
	"github.com/codeready-toolchain/logforensics/pkg/config"
	"github.com/codeready-toolchain/logforensics/pkg/database"
	"github.com/codeready-toolchain/logforensics/pkg/dynconfig"
	"github.com/codeready-toolchain/logforensics/pkg/llmcache"
	"github.com/codeready-toolchain/logforensics/pkg/llmprovider"
	"github.com/codeready-toolchain/logforensics/pkg/logbackend"
	"github.com/codeready-toolchain/logforensics/pkg/logbackend/file"
	"github.com/codeready-toolchain/logforensics/pkg/logbackend/remote"
	"github.com/codeready-toolchain/logforensics/pkg/logcache"
	"github.com/codeready-toolchain/logforensics/pkg/orchestrator"
	"github.com/codeready-toolchain/logforensics/pkg/redact"
	"github.com/codeready-toolchain/logforensics/pkg/session"
	"github.com/codeready-toolchain/logforensics/pkg/sse"
	"github.com/codeready-toolchain/logforensics/pkg/telemetry"
	"github.com/codeready-toolchain/logforensics/pkg/traceid"
)

func main() {
	if err := run(); err != nil {
		slog.Error("logforensics: fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "directory containing a .env file")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("logforensics: no .env file loaded, using process environment", "path", envPath, "error", err)
	} else {
		slog.Info("logforensics: loaded environment", "path", envPath)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := database.NewClient(ctx, database.Config{
		DSN:    cfg.DatabaseURL,
		Schema: cfg.DatabaseSchema,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("logforensics: error closing database client", "error", err)
		}
	}()
	slog.Info("logforensics: connected to database, migrations applied")

	metrics := telemetry.New(prometheus.DefaultRegisterer)

	llmL2, err := buildRedisCache(cfg.LLMCache.L2Enabled, cfg.LLMCache.L2URL)
	if err != nil {
		return fmt.Errorf("build LLM cache L2: %w", err)
	}
	gw, err := llmcache.NewGateway(llmcache.Config{
		Enabled:            cfg.LLMCache.Enabled,
		Mode:               llmcache.Mode(cfg.LLMCache.Mode),
		Namespace:          cfg.LLMCache.Namespace,
		L1MaxEntries:       cfg.LLMCache.L1MaxEntries,
		L1TTL:              cfg.LLMCache.L1TTL(),
		SupportedCallTypes: cfg.LLMCache.SupportedCallTypes,
		GatewayVersion:     cfg.LLMCache.GatewayVersion,
		PromptVersion:      cfg.LLMCache.PromptVersion,
		DefaultTTL:         cfg.LLMCache.L1TTL(),
	}, llmL2)
	if err != nil {
		return fmt.Errorf("build LLM cache gateway: %w", err)
	}
	gw.SetTelemetry(metrics)

	logL2, err := buildRedisCache(cfg.LogCache.L2Enabled, cfg.LogCache.L2URL)
	if err != nil {
		return fmt.Errorf("build log cache L2: %w", err)
	}
	logSearchCache, err := logcache.NewCache(logcache.Config{
		L1MaxEntries: cfg.LogCache.L1MaxEntries,
		TraceTTL:     cfg.LogCache.TraceTTL(),
		GeneralTTL:   cfg.LogCache.GeneralTTL(),
	}, logL2)
	if err != nil {
		return fmt.Errorf("build log search cache: %w", err)
	}
	logSearchCache.SetTelemetry(metrics)

	provider, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("build LLM provider: %w", err)
	}

	store := dynconfig.New(dbClient.Client, dynconfig.Flags{
		UseDBPrompts:  cfg.UseDBPrompts,
		UseDBSettings: cfg.UseDBSettings,
		UseDBProjects: cfg.UseDBProjects,
	})

	paramAgent := agents.NewParameterAgent(gw, provider, store, cfg.LLMModel)
	planningAgent := agents.NewPlanningAgent(gw, provider, store, cfg.LLMModel)
	analyzeAgent := agents.NewAnalyzeAgent(gw, provider, store, cfg.LLMModel)
	verifyAgent := agents.NewVerifyAgent(gw, provider, store, cfg.LLMModel)

	fileBackend := logbackend.NewCachedBackend(file.New(), logSearchCache, "file-backend")
	remoteBackend := logbackend.NewCachedBackend(remote.New(
		remote.WithToken(getEnv("REMOTE_BACKEND_TOKEN", "")),
	), logSearchCache, "remote-backend")

	orch := orchestrator.New(orchestrator.Config{
		Store:          store,
		ParamAgent:     paramAgent,
		PlanningAgent:  planningAgent,
		AnalyzeAgent:   analyzeAgent,
		VerifyAgent:    verifyAgent,
		FileBackend:    fileBackend,
		RemoteBackend:  remoteBackend,
		Extractor:      traceid.New(traceid.DefaultPatterns()),
		Redactor:       redact.New(),
		Metrics:        metrics,
		Concurrency:    cfg.AnalyzeConcurrency,
		MaxLogBytes:    cfg.MaxLogBytes,
		Timeouts:       orchestrator.DefaultTimeouts(),
		AnalysisDir:    cfg.AnalysisDir,
		AllowedDomains: cfg.AllowedDomains,
		AllowedKeys:    cfg.AllowedKeys,
		ExcludedKeys:   cfg.ExcludedKeys,
	})

	registry := session.NewRegistry(time.Duration(cfg.SessionTimeoutSecs) * time.Second)
	registry.SetMetrics(metrics)

	streamer := sse.New(5 * time.Second)

	server := api.NewServer(registry, streamer, orch, gw, cfg.AnalysisDir)
	server.MountMetrics(prometheus.DefaultGatherer)

	addr := ":" + getEnv("HTTP_PORT", "8080")
	slog.Info("logforensics: starting HTTP server", "addr", addr)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		slog.Info("logforensics: shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return <-serveErr
	}
}

// buildProvider selects an LLM provider by cfg.LLMProvider. Only OpenAI
// (and OpenAI-compatible gateways via LLM_BASE_URL) is wired today; an
// unrecognized value is a configuration error rather than a silent
// fallback, so a typo'd LLM_PROVIDER fails fast at startup.
func buildProvider(cfg *config.Config) (llmprovider.Provider, error) {
	switch cfg.LLMProvider {
	case "openai", "":
		return llmprovider.NewOpenAIProvider(llmprovider.OpenAIConfig{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
		})
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

// buildRedisCache returns nil (L1-only caching) when enabled is false.
func buildRedisCache(enabled bool, url string) (cachecore.RemoteCache, error) {
	if !enabled {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return cachecore.NewRedisCache(redis.NewClient(opts)), nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
