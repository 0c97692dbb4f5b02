// Package provider holds the reasoning-provider clients the engine can
// drive: Gemini and OpenAI, both speaking their native HTTP APIs.
package provider

import (
	"errors"
	"time"

	"github.com/forensicflow/forensicflow/internal/engine"
)

// Kind selects a reasoning provider implementation.
type Kind string

const (
	Gemini Kind = "gemini"
	OpenAI Kind = "openai"
	None   Kind = "none"
)

// Config carries the provider settings from the configuration layer.
type Config struct {
	Kind        Kind
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// New creates a reasoning provider from config. Kind "none" (or empty)
// returns nil with no error; the engine treats a nil provider as
// fallback-only mode.
func New(cfg Config) (engine.ReasoningProvider, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	switch cfg.Kind {
	case Gemini:
		if cfg.APIKey == "" {
			return nil, errors.New("gemini API key not set")
		}
		model := cfg.Model
		if model == "" {
			model = "gemini-2.0-flash"
		}
		return NewGeminiClient(cfg.APIKey, model, cfg.Temperature, cfg.Timeout), nil
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("openai API key not set")
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return NewOpenAIClient(cfg.APIKey, model, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	case None, "":
		return nil, nil
	default:
		return nil, errors.New("unsupported reasoning provider")
	}
}
