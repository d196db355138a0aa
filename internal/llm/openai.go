package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/tools"
	"github.com/ppiankov/intake/internal/util"
)

// OpenAIDriver drives the tool surface with OpenAI function calling.
// BaseURL may point at any OpenAI-compatible endpoint.
type OpenAIDriver struct {
	client  *openai.Client
	config  Config
	invoker Invoker
	logger  *zap.Logger
	tools   []openai.Tool

	mu      sync.Mutex
	history []openai.ChatCompletionMessage
}

// NewOpenAIDriver creates a new OpenAI driver
func NewOpenAIDriver(config Config, invoker Invoker, logger *zap.Logger) (*OpenAIDriver, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = util.NewHTTPClient(requestTimeout(config, 30*time.Second), config.Proxy)

	return &OpenAIDriver{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  config,
		invoker: invoker,
		logger:  logger,
		tools:   openAITools(),
	}, nil
}

func openAITools() []openai.Tool {
	specs := tools.Catalog()
	out := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.ToolName(),
				Description: spec.Description,
				Parameters:  toolParameters(spec),
			},
		})
	}
	return out
}

// Name returns the provider name
func (d *OpenAIDriver) Name() string {
	return "openai"
}

// IsAvailable checks if the provider is properly configured
func (d *OpenAIDriver) IsAvailable(ctx context.Context) bool {
	if _, err := d.client.ListModels(ctx); err != nil {
		d.logger.Warn("OpenAI API check failed", zap.Error(err))
		return false
	}
	return true
}

// Reset drops the conversation history
func (d *OpenAIDriver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = nil
}

// Respond sends text as a user message and runs tool calls until the model replies
func (d *OpenAIDriver) Respond(ctx context.Context, text string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	model := d.config.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	if len(d.history) == 0 {
		d.history = append(d.history, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: SystemPrompt,
		})
	}
	d.history = append(d.history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})

	for i := 0; i < d.config.maxIterations(); i++ {
		resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       model,
			Messages:    d.history,
			Tools:       d.tools,
			MaxTokens:   d.config.maxTokens(),
			Temperature: 0.3,
		})
		if err != nil {
			return "", fmt.Errorf("OpenAI API error: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("no response from OpenAI")
		}

		msg := resp.Choices[0].Message
		d.history = append(d.history, msg)

		if len(msg.ToolCalls) == 0 {
			return strings.TrimSpace(msg.Content), nil
		}

		for _, call := range msg.ToolCalls {
			result := runTool(ctx, d.invoker, d.logger, call.Function.Name, []byte(call.Function.Arguments))
			d.history = append(d.history, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			})
		}
	}

	return "", ErrMaxIterations
}
