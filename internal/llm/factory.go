package llm

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/model"
)

// NewDriver creates a driver for the configured provider. A nil driver
// with a nil error means natural-language mode is disabled.
func NewDriver(config Config, invoker Invoker, logger *zap.Logger) (Driver, error) {
	if invoker == nil && config.Provider != "" {
		return nil, fmt.Errorf("llm: tool invoker is required")
	}

	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIDriver(config, invoker, logger)

	case "anthropic", "claude":
		return NewAnthropicDriver(config, invoker, logger)

	case "ollama":
		return NewOllamaDriver(config, invoker, logger)

	case "":
		// No provider configured - return nil (LLM disabled)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig) Config {
	return Config{
		Provider:      modelConfig.Provider,
		Model:         modelConfig.Model,
		APIKey:        modelConfig.APIKey,
		BaseURL:       modelConfig.BaseURL,
		Timeout:       modelConfig.Timeout,
		MaxTokens:     modelConfig.MaxTokens,
		MaxIterations: modelConfig.MaxIterations,
		Proxy:         modelConfig.Proxy,
	}
}

func requestTimeout(config Config, fallback time.Duration) time.Duration {
	if config.Timeout <= 0 {
		return fallback
	}
	return time.Duration(config.Timeout) * time.Second
}
