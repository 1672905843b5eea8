// Package config loads the module's static, process-wide configuration
// from environment variables at startup (the spec.md §6 env var table).
//
// Grounded on the teacher's pkg/config/loader.go Initialize entry point
// shape (load → validate → return ready-to-use Config), simplified from
// YAML+env-template merging to pure os.Getenv parsing: this module has
// no multi-agent/MCP-server/chain registries to merge, so the teacher's
// YAML layer has no concern left to serve here (see DESIGN.md's final
// adaptation pass).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the complete static process configuration.
type Config struct {
	DatabaseURL    string
	DatabaseSchema string
	AnalysisDir    string

	LLMProvider string
	LLMAPIKey   string
	LLMBaseURL  string
	LLMModel    string

	LLMCache LLMCacheConfig
	LogCache LogCacheConfig

	UseDBPrompts  bool
	UseDBSettings bool
	UseDBProjects bool

	MaxLogBytes        int64
	SessionTimeoutSecs int
	MaxContextMessages int
	AnalyzeConcurrency int

	AllowedDomains []string
	AllowedKeys    []string
	ExcludedKeys   []string
}

// LLMCacheConfig mirrors the LLM_CACHE_* env vars.
type LLMCacheConfig struct {
	Enabled            bool
	Mode               string
	Namespace          string
	L1MaxEntries       int
	L1TTLSeconds       int
	L2Enabled          bool
	L2URL              string
	SupportedCallTypes []string
	GatewayVersion     string
	PromptVersion      string
}

// L1TTL returns the L1 TTL as a time.Duration.
func (c LLMCacheConfig) L1TTL() time.Duration {
	return time.Duration(c.L1TTLSeconds) * time.Second
}

// LogCacheConfig mirrors the LOG_CACHE_* env vars.
type LogCacheConfig struct {
	L1MaxEntries   int
	TraceTTLSecs   int
	GeneralTTLSecs int
	L2Enabled      bool
	L2URL          string
}

// TraceTTL returns the trace-query TTL as a time.Duration.
func (c LogCacheConfig) TraceTTL() time.Duration { return time.Duration(c.TraceTTLSecs) * time.Second }

// GeneralTTL returns the general-query TTL as a time.Duration.
func (c LogCacheConfig) GeneralTTL() time.Duration {
	return time.Duration(c.GeneralTTLSecs) * time.Second
}

// Load reads and validates configuration from the process environment.
// This is the module's equivalent of the teacher's config.Initialize.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DatabaseSchema: getEnv("DATABASE_SCHEMA", "public"),
		AnalysisDir:    getEnv("ANALYSIS_DIR", "./analysis"),

		LLMProvider: getEnv("LLM_PROVIDER", "openai"),
		LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		LLMBaseURL:  getEnv("LLM_BASE_URL", ""),
		LLMModel:    getEnv("LLM_MODEL", "gpt-4o-mini"),

		UseDBPrompts:  getBool("USE_DB_PROMPTS", false),
		UseDBSettings: getBool("USE_DB_SETTINGS", false),
		UseDBProjects: getBool("USE_DB_PROJECTS", false),

		MaxLogBytes:        getInt64("MAX_LOG_BYTES", 50*1024*1024),
		SessionTimeoutSecs: getInt("SESSION_TIMEOUT_SECONDS", 1800),
		MaxContextMessages: getInt("MAX_CONTEXT_MESSAGES", 40),
		AnalyzeConcurrency: getInt("ANALYZE_CONCURRENCY", 4),

		AllowedDomains: getListOrDefault("ALLOWED_DOMAINS", []string{"default", "payments", "switch", "gateway"}),
		AllowedKeys:    getList("ALLOWED_QUERY_KEYS"),
		ExcludedKeys:   getList("EXCLUDED_QUERY_KEYS"),

		LLMCache: LLMCacheConfig{
			Enabled:            getBool("LLM_CACHE_ENABLED", true),
			Mode:               getEnv("LLM_CACHE_MODE", "default_on"),
			Namespace:          getEnv("LLM_CACHE_NAMESPACE", "logforensics"),
			L1MaxEntries:       getInt("LLM_CACHE_L1_MAX_ENTRIES", 2000),
			L1TTLSeconds:       getInt("LLM_CACHE_L1_TTL_SECONDS", 600),
			L2Enabled:          getBool("LLM_CACHE_L2_ENABLED", false),
			L2URL:              getEnv("LLM_CACHE_L2_URL", ""),
			SupportedCallTypes: getList("LLM_CACHE_SUPPORTED_CALL_TYPES"),
			GatewayVersion:     getEnv("LLM_GATEWAY_VERSION", "v1"),
			PromptVersion:      getEnv("PROMPT_VERSION", "v1"),
		},

		LogCache: LogCacheConfig{
			L1MaxEntries:   getInt("LOG_CACHE_L1_MAX_ENTRIES", 2000),
			TraceTTLSecs:   getInt("LOG_CACHE_TRACE_TTL_SECONDS", 6*3600),
			GeneralTTLSecs: getInt("LOG_CACHE_GENERAL_TTL_SECONDS", 4*3600),
			L2Enabled:      getBool("LOG_CACHE_L2_ENABLED", false),
			L2URL:          getEnv("LOG_CACHE_L2_URL", ""),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.LLMCache.Mode != "default_on" && cfg.LLMCache.Mode != "default_off" {
		return fmt.Errorf("LLM_CACHE_MODE must be default_on or default_off, got %q", cfg.LLMCache.Mode)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getInt64(key string, fallback int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getListOrDefault(key string, fallback []string) []string {
	if v := getList(key); v != nil {
		return v
	}
	return fallback
}

func getList(key string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
