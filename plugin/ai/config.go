package ai

import (
	"errors"
	"time"

	"github.com/hrygo/familycal/internal/profile"
)

// Config represents assistant configuration.
type Config struct {
	Enabled bool

	LLM LLMConfig
}

// LLMConfig represents LLM configuration.
type LLMConfig struct {
	Provider    string // openai, deepseek, ollama
	Model       string // gpt-4o-mini
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 1024
	Temperature float32 // default: 0.2
	Timeout     time.Duration
}

// NewConfigFromProfile creates assistant config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Enabled: p.IsAIEnabled(),
	}

	if !cfg.Enabled {
		return cfg
	}

	cfg.LLM = LLMConfig{
		Provider:    p.AILLMProvider,
		Model:       p.AILLMModel,
		APIKey:      p.AILLMAPIKey,
		BaseURL:     p.AILLMBaseURL,
		MaxTokens:   p.AILLMMaxTokens,
		Temperature: p.AILLMTemperature,
		Timeout:     p.AIRequestTimeout,
	}
	if cfg.LLM.MaxTokens <= 0 {
		cfg.LLM.MaxTokens = 1024
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	switch c.LLM.Provider {
	case "":
		return errors.New("LLM provider is required")
	case "openai", "deepseek", "ollama":
	default:
		return errors.New("unsupported LLM provider: " + c.LLM.Provider)
	}

	if c.LLM.Model == "" {
		return errors.New("LLM model is required")
	}

	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return errors.New("LLM API key is required")
	}

	return nil
}
