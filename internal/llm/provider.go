package llm

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/tools"
)

// SystemPrompt sets the screener persona for every provider
const SystemPrompt = "You are a friendly and professional intake screener for Simple Health Services (SHS), " +
	"a Minnesota nonprofit that helps adults with disabilities and seniors access housing support. " +
	"Your job is to ask a series of questions to gather key information, assess likely eligibility, " +
	"and make the client feel comfortable. Always be clear, concise, and supportive.\n\n" +
	"Record every answer with the matching tool, use next_question to decide what to ask, " +
	"and call assess once all answers are collected. Never guess an answer the client has not given."

// ErrMaxIterations is returned when the model keeps calling tools past the configured limit
var ErrMaxIterations = errors.New("llm: tool call limit reached without a reply")

// Driver turns free-text client messages into tool surface operations
type Driver interface {
	// Name returns the provider name
	Name() string

	// Respond sends one user message and returns the model's final reply,
	// running any tool calls it makes along the way
	Respond(ctx context.Context, text string) (string, error)

	// Reset drops the conversation history
	Reset()

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Invoker runs a named operation. *tools.Surface satisfies it.
type Invoker interface {
	InvokeByName(ctx context.Context, name, arg string) (string, error)
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, OpenAI-compatible servers)
	BaseURL string

	// Timeout for each API request
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// MaxIterations bounds tool rounds per user message
	MaxIterations int

	// Proxy for provider calls; environment settings apply when empty
	Proxy string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:      "", // Disabled by default
		Timeout:       30,
		MaxTokens:     1000,
		MaxIterations: 20,
	}
}

func (c Config) maxIterations() int {
	if c.MaxIterations <= 0 {
		return 20
	}
	return c.MaxIterations
}

func (c Config) maxTokens() int {
	if c.MaxTokens <= 0 {
		return 1000
	}
	return c.MaxTokens
}

// toolParameters builds the JSON schema for an operation's single argument
func toolParameters(spec tools.Spec) map[string]any {
	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	if !spec.HasArgument() {
		return params
	}
	params["properties"] = map[string]any{
		spec.Argument: map[string]any{
			"type":        "string",
			"description": spec.ArgumentDoc,
		},
	}
	// An empty disability answer is meaningful, so it may be omitted
	if spec.Op != tools.OpSetDisability {
		params["required"] = []string{spec.Argument}
	}
	return params
}

// argumentValue pulls the operation argument out of a model's tool input.
// Models sometimes send numbers or booleans for string fields.
func argumentValue(spec tools.Spec, input map[string]any) string {
	if !spec.HasArgument() {
		return ""
	}
	v, ok := input[spec.Argument]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// runTool executes one tool call and returns the text handed back to the model
func runTool(ctx context.Context, inv Invoker, logger *zap.Logger, name string, rawInput []byte) string {
	spec, ok := tools.Lookup(name)
	if !ok {
		logger.Warn("model called unknown tool", zap.String("tool", name))
		return "Unknown tool: " + name
	}

	input := map[string]any{}
	if len(rawInput) > 0 && string(rawInput) != "null" {
		if err := json.Unmarshal(rawInput, &input); err != nil {
			return fmt.Sprintf("Invalid arguments for %s: %v", name, err)
		}
	}

	msg, err := inv.InvokeByName(ctx, name, argumentValue(spec, input))
	if err != nil {
		logger.Error("tool failed", zap.String("tool", name), zap.Error(err))
		return fmt.Sprintf("%s\nError: %v", msg, err)
	}
	logger.Debug("tool called", zap.String("tool", name))
	return msg
}
