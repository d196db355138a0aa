package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/tools"
	"github.com/ppiankov/intake/internal/util"
)

// AnthropicDriver drives the tool surface with Claude tool use
type AnthropicDriver struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	config     Config
	invoker    Invoker
	logger     *zap.Logger
	tools      []anthropicTool

	mu      sync.Mutex
	history []anthropicMessage
}

// Anthropic API structures
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

// anthropicContentBlock is a text, tool_use or tool_result block
type anthropicContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []anthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicDriver creates a new Anthropic driver
func NewAnthropicDriver(config Config, invoker Invoker, logger *zap.Logger) (*AnthropicDriver, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	return &AnthropicDriver{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: util.NewHTTPClient(requestTimeout(config, 30*time.Second), config.Proxy),
		config:     config,
		invoker:    invoker,
		logger:     logger,
		tools:      anthropicTools(),
	}, nil
}

func anthropicTools() []anthropicTool {
	specs := tools.Catalog()
	out := make([]anthropicTool, 0, len(specs))
	for _, spec := range specs {
		out = append(out, anthropicTool{
			Name:        spec.ToolName(),
			Description: spec.Description,
			InputSchema: toolParameters(spec),
		})
	}
	return out
}

// Name returns the provider name
func (d *AnthropicDriver) Name() string {
	return "anthropic"
}

// IsAvailable checks if the provider is properly configured
func (d *AnthropicDriver) IsAvailable(ctx context.Context) bool {
	req := anthropicRequest{
		Model:     "claude-3-5-haiku-20241022",
		MaxTokens: 10,
		Messages: []anthropicMessage{
			{Role: "user", Content: []anthropicContentBlock{{Type: "text", Text: "Hi"}}},
		},
	}

	if _, err := d.makeRequest(ctx, req); err != nil {
		d.logger.Warn("Anthropic API check failed", zap.Error(err))
		return false
	}
	return true
}

// Reset drops the conversation history
func (d *AnthropicDriver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = nil
}

// Respond sends text as a user message and runs tool calls until the model replies
func (d *AnthropicDriver) Respond(ctx context.Context, text string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	model := d.config.Model
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}

	d.history = append(d.history, anthropicMessage{
		Role:    "user",
		Content: []anthropicContentBlock{{Type: "text", Text: text}},
	})

	for i := 0; i < d.config.maxIterations(); i++ {
		resp, err := d.makeRequest(ctx, anthropicRequest{
			Model:       model,
			MaxTokens:   d.config.maxTokens(),
			System:      SystemPrompt,
			Messages:    d.history,
			Tools:       d.tools,
			Temperature: 0.3,
		})
		if err != nil {
			return "", fmt.Errorf("Anthropic API error: %w", err)
		}
		if len(resp.Content) == 0 {
			return "", fmt.Errorf("no content in Anthropic response")
		}

		d.history = append(d.history, anthropicMessage{Role: "assistant", Content: resp.Content})

		var results []anthropicContentBlock
		var reply []string
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				reply = append(reply, block.Text)
			case "tool_use":
				results = append(results, anthropicContentBlock{
					Type:      "tool_result",
					ToolUseID: block.ID,
					Content:   runTool(ctx, d.invoker, d.logger, block.Name, block.Input),
				})
			}
		}

		if len(results) == 0 {
			return strings.TrimSpace(strings.Join(reply, "\n")), nil
		}
		d.history = append(d.history, anthropicMessage{Role: "user", Content: results})
	}

	return "", ErrMaxIterations
}

// makeRequest makes an HTTP request to the Anthropic API
func (d *AnthropicDriver) makeRequest(ctx context.Context, apiReq anthropicRequest) (*anthropicResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/messages", d.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", d.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr anthropicError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s - %s", httpResp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, string(respBody))
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &resp, nil
}
