package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// MaxContextMessages is the hard cap on conversation turns sent to the LLM.
	MaxContextMessages = 10
	// MaxSearchLimit is the hard cap on candidates returned for disambiguation.
	MaxSearchLimit = 10
)

// Date fallback policies applied when an extracted date cannot be parsed.
const (
	DateFallbackTomorrow = "tomorrow"
	DateFallbackToday    = "today"
	DateFallbackNone     = "none"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where familycal stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// Secret signs and verifies actor access tokens.
	Secret string
	// Timezone is the default timezone for date normalization.
	Timezone string

	// Assistant configuration
	AIEnabled        bool    // FAMILYCAL_AI_ENABLED
	AILLMProvider    string  // FAMILYCAL_AI_LLM_PROVIDER (default: openai)
	AILLMModel       string  // FAMILYCAL_AI_LLM_MODEL (default: gpt-4o-mini)
	AILLMAPIKey      string  // FAMILYCAL_AI_LLM_API_KEY
	AILLMBaseURL     string  // FAMILYCAL_AI_LLM_BASE_URL (default: https://api.openai.com/v1)
	AILLMMaxTokens   int     // FAMILYCAL_AI_LLM_MAX_TOKENS (default: 1024)
	AILLMTemperature float32 // FAMILYCAL_AI_LLM_TEMPERATURE (default: 0.2)
	AIConcurrency    int     // FAMILYCAL_AI_CONCURRENCY (default: 4)
	AIRequestTimeout time.Duration

	// Resolver policy
	ContextWindow int    // FAMILYCAL_CONTEXT_WINDOW (default: 10, capped at 10)
	SearchLimit   int    // FAMILYCAL_SEARCH_LIMIT (default: 5, capped at 10)
	DateFallback  string // FAMILYCAL_DATE_FALLBACK (tomorrow|today|none)

	// Rate limiting per actor
	RateLimitPerSecond float64 // FAMILYCAL_RATE_LIMIT_RPS (default: 2)
	RateLimitBurst     int     // FAMILYCAL_RATE_LIMIT_BURST (default: 5)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if the assistant is enabled and an endpoint is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.AIEnabled && (p.AILLMAPIKey != "" || p.AILLMProvider == "ollama")
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		slog.Warn("ignoring invalid integer env value", slog.String("key", key), slog.String("value", value))
	}
	return defaultValue
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		slog.Warn("ignoring invalid float env value", slog.String("key", key), slog.String("value", value))
	}
	return defaultValue
}

// FromEnv loads assistant and policy configuration from environment variables.
// Values already set on the profile (e.g. from flags) are kept.
func (p *Profile) FromEnv() {
	p.AIEnabled = p.AIEnabled || os.Getenv("FAMILYCAL_AI_ENABLED") == "true"
	if p.AILLMProvider == "" {
		p.AILLMProvider = getEnvOrDefault("FAMILYCAL_AI_LLM_PROVIDER", "openai")
	}
	if p.AILLMModel == "" {
		p.AILLMModel = getEnvOrDefault("FAMILYCAL_AI_LLM_MODEL", "gpt-4o-mini")
	}
	if p.AILLMAPIKey == "" {
		p.AILLMAPIKey = os.Getenv("FAMILYCAL_AI_LLM_API_KEY")
	}
	if p.AILLMBaseURL == "" {
		p.AILLMBaseURL = getEnvOrDefault("FAMILYCAL_AI_LLM_BASE_URL", defaultBaseURL(p.AILLMProvider))
	}
	if p.AILLMMaxTokens == 0 {
		p.AILLMMaxTokens = getIntEnvOrDefault("FAMILYCAL_AI_LLM_MAX_TOKENS", 1024)
	}
	if p.AILLMTemperature == 0 {
		p.AILLMTemperature = float32(getFloatEnvOrDefault("FAMILYCAL_AI_LLM_TEMPERATURE", 0.2))
	}
	if p.AIConcurrency == 0 {
		p.AIConcurrency = getIntEnvOrDefault("FAMILYCAL_AI_CONCURRENCY", 4)
	}
	if p.AIRequestTimeout == 0 {
		p.AIRequestTimeout = time.Duration(getIntEnvOrDefault("FAMILYCAL_AI_TIMEOUT_SECONDS", 30)) * time.Second
	}

	if p.ContextWindow == 0 {
		p.ContextWindow = getIntEnvOrDefault("FAMILYCAL_CONTEXT_WINDOW", MaxContextMessages)
	}
	if p.SearchLimit == 0 {
		p.SearchLimit = getIntEnvOrDefault("FAMILYCAL_SEARCH_LIMIT", 5)
	}
	if p.DateFallback == "" {
		p.DateFallback = getEnvOrDefault("FAMILYCAL_DATE_FALLBACK", DateFallbackTomorrow)
	}
	if p.Timezone == "" {
		p.Timezone = getEnvOrDefault("FAMILYCAL_TIMEZONE", "UTC")
	}
	if p.Secret == "" {
		p.Secret = os.Getenv("FAMILYCAL_SECRET")
	}
	if p.RateLimitPerSecond == 0 {
		p.RateLimitPerSecond = getFloatEnvOrDefault("FAMILYCAL_RATE_LIMIT_RPS", 2)
	}
	if p.RateLimitBurst == 0 {
		p.RateLimitBurst = getIntEnvOrDefault("FAMILYCAL_RATE_LIMIT_BURST", 5)
	}
}

func defaultBaseURL(provider string) string {
	switch provider {
	case "deepseek":
		return "https://api.deepseek.com"
	case "ollama":
		return "http://localhost:11434"
	default:
		return "https://api.openai.com/v1"
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// normalizePolicy clamps resolver policy values into their supported ranges.
func (p *Profile) normalizePolicy() {
	if p.ContextWindow <= 0 || p.ContextWindow > MaxContextMessages {
		p.ContextWindow = MaxContextMessages
	}
	if p.SearchLimit <= 0 {
		p.SearchLimit = 5
	}
	if p.SearchLimit > MaxSearchLimit {
		p.SearchLimit = MaxSearchLimit
	}
	switch p.DateFallback {
	case DateFallbackTomorrow, DateFallbackToday, DateFallbackNone:
	default:
		slog.Warn("unknown date fallback policy, using tomorrow", slog.String("policy", p.DateFallback))
		p.DateFallback = DateFallbackTomorrow
	}
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "familycal")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/familycal"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("familycal_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return errors.Wrapf(err, "invalid timezone %q", p.Timezone)
	}
	if p.Mode == "prod" && p.Secret == "" {
		return errors.New("secret is required in prod mode")
	}

	p.normalizePolicy()
	return nil
}
