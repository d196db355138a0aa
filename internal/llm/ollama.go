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

// OllamaDriver drives the tool surface with a local model through /api/chat
type OllamaDriver struct {
	baseURL    string
	httpClient *http.Client
	config     Config
	invoker    Invoker
	logger     *zap.Logger
	tools      []ollamaTool

	mu      sync.Mutex
	history []ollamaMessage
}

// Ollama API structures
type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaResponse struct {
	Model     string        `json:"model"`
	CreatedAt string        `json:"created_at"`
	Message   ollamaMessage `json:"message"`
	Done      bool          `json:"done"`

	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaDriver creates a new Ollama driver
func NewOllamaDriver(config Config, invoker Invoker, logger *zap.Logger) (*OllamaDriver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	// Ollama can be slower for local models
	timeout := requestTimeout(config, 60*time.Second)

	return &OllamaDriver{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: util.NewHTTPClient(timeout, config.Proxy),
		config:     config,
		invoker:    invoker,
		logger:     logger,
		tools:      ollamaTools(),
	}, nil
}

func ollamaTools() []ollamaTool {
	specs := tools.Catalog()
	out := make([]ollamaTool, 0, len(specs))
	for _, spec := range specs {
		out = append(out, ollamaTool{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        spec.ToolName(),
				Description: spec.Description,
				Parameters:  toolParameters(spec),
			},
		})
	}
	return out
}

// Name returns the provider name
func (d *OllamaDriver) Name() string {
	return "ollama"
}

// IsAvailable checks if Ollama is running by listing models
func (d *OllamaDriver) IsAvailable(ctx context.Context) bool {
	url := fmt.Sprintf("%s/api/tags", d.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		d.logger.Warn("Ollama availability check failed", zap.Error(err))
		return false
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Warn("Ollama availability check failed", zap.String("base_url", d.baseURL), zap.Error(err))
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		d.logger.Warn("Ollama availability check failed", zap.String("base_url", d.baseURL), zap.Int("status", resp.StatusCode))
		return false
	}

	return true
}

// Reset drops the conversation history
func (d *OllamaDriver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = nil
}

// Respond sends text as a user message and runs tool calls until the model replies
func (d *OllamaDriver) Respond(ctx context.Context, text string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.config.Model == "" {
		return "", fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, qwen2.5)")
	}

	if len(d.history) == 0 {
		d.history = append(d.history, ollamaMessage{Role: "system", Content: SystemPrompt})
	}
	d.history = append(d.history, ollamaMessage{Role: "user", Content: text})

	for i := 0; i < d.config.maxIterations(); i++ {
		resp, err := d.makeRequest(ctx, ollamaRequest{
			Model:    d.config.Model,
			Messages: d.history,
			Tools:    d.tools,
			Stream:   false,
			Options: ollamaOptions{
				Temperature: 0.3,
				NumPredict:  d.config.maxTokens(),
			},
		})
		if err != nil {
			return "", fmt.Errorf("ollama API error: %w", err)
		}

		msg := resp.Message
		if msg.Role == "" {
			msg.Role = "assistant"
		}
		d.history = append(d.history, msg)

		if len(msg.ToolCalls) == 0 {
			return strings.TrimSpace(msg.Content), nil
		}

		for _, call := range msg.ToolCalls {
			result := runTool(ctx, d.invoker, d.logger, call.Function.Name, call.Function.Arguments)
			d.history = append(d.history, ollamaMessage{
				Role:     "tool",
				Content:  result,
				ToolName: call.Function.Name,
			})
		}
	}

	return "", ErrMaxIterations
}

// makeRequest makes an HTTP request to the Ollama chat API
func (d *OllamaDriver) makeRequest(ctx context.Context, apiReq ollamaRequest) (*ollamaResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", d.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, string(respBody))
	}

	var resp ollamaResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &resp, nil
}
