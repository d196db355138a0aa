package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

type openAIRecordedRequest struct {
	Messages []struct {
		Role       string `json:"role"`
		Content    string `json:"content"`
		ToolCallID string `json:"tool_call_id"`
	} `json:"messages"`
	Tools []struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	} `json:"tools"`
}

const openAIToolCallResponse = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": "",
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "set_age", "arguments": "{\"age\": 45}"}
      }]
    }
  }]
}`

const openAITextResponse = `{
  "id": "chatcmpl-2",
  "object": "chat.completion",
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "Thanks! Do you currently have Medicaid?"}
  }]
}`

func TestOpenAIDriver_Respond_ToolRound(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	var requests []openAIRecordedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header Bearer test-key, got %s", r.Header.Get("Authorization"))
		}

		body, _ := io.ReadAll(r.Body)
		var req openAIRecordedRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = w.Write([]byte(openAIToolCallResponse))
			return
		}
		_, _ = w.Write([]byte(openAITextResponse))
	}))
	defer server.Close()

	surface := newTestSurface()
	driver, err := NewOpenAIDriver(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5}, surface, nil)
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}

	reply, err := driver.Respond(context.Background(), "I'm 45")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if reply != "Thanks! Do you currently have Medicaid?" {
		t.Errorf("Unexpected reply: %s", reply)
	}

	rec := surface.Session().Snapshot()
	if rec.Age == nil || *rec.Age != 45 {
		t.Errorf("Expected age 45 to be recorded, got %v", rec.Age)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(requests) != 2 {
		t.Fatalf("Expected 2 requests, got %d", len(requests))
	}
	if len(requests[0].Tools) != len(openAITools()) {
		t.Errorf("Expected every operation as a tool, got %d", len(requests[0].Tools))
	}
	if requests[0].Messages[0].Role != "system" || requests[0].Messages[0].Content != SystemPrompt {
		t.Errorf("Expected system prompt first, got %+v", requests[0].Messages[0])
	}

	last := requests[1].Messages[len(requests[1].Messages)-1]
	if last.Role != "tool" || last.ToolCallID != "call_1" || last.Content != "Age collected: 45" {
		t.Errorf("Unexpected tool result message: %+v", last)
	}
}

func TestOpenAIDriver_KeepsHistory(t *testing.T) {
	var mu sync.Mutex
	var sizes []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req openAIRecordedRequest
		_ = json.Unmarshal(body, &req)
		mu.Lock()
		sizes = append(sizes, len(req.Messages))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(openAITextResponse))
	}))
	defer server.Close()

	driver, err := NewOpenAIDriver(Config{APIKey: "test-key", BaseURL: server.URL}, newTestSurface(), nil)
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}

	for _, text := range []string{"hello", "my name is John"} {
		if _, err := driver.Respond(context.Background(), text); err != nil {
			t.Fatalf("Respond failed: %v", err)
		}
	}
	driver.Reset()
	if _, err := driver.Respond(context.Background(), "start over"); err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	// system+user, then +assistant+user, then fresh system+user
	mu.Lock()
	defer mu.Unlock()
	want := []int{2, 4, 2}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("Request %d: expected %d messages, got %d", i, want[i], sizes[i])
		}
	}
}

func TestOpenAIDriver_MaxIterations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(openAIToolCallResponse))
	}))
	defer server.Close()

	driver, err := NewOpenAIDriver(Config{APIKey: "test-key", BaseURL: server.URL, MaxIterations: 3}, newTestSurface(), nil)
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}

	_, err = driver.Respond(context.Background(), "I'm 45")
	if !errors.Is(err, ErrMaxIterations) {
		t.Errorf("Expected ErrMaxIterations, got %v", err)
	}
}

func TestOpenAIDriver_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "Internal Server Error"}}`))
	}))
	defer server.Close()

	driver, err := NewOpenAIDriver(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5}, newTestSurface(), nil)
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}

	if _, err := driver.Respond(context.Background(), "hi"); err == nil {
		t.Fatal("Expected error, got nil")
	}
}

func TestOpenAIDriver_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{malformed json`))
	}))
	defer server.Close()

	driver, err := NewOpenAIDriver(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5}, newTestSurface(), nil)
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}

	if _, err := driver.Respond(context.Background(), "hi"); err == nil {
		t.Fatal("Expected error for malformed JSON, got nil")
	}
}

func TestOpenAIDriver_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	driver, err := NewOpenAIDriver(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5}, newTestSurface(), nil)
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := driver.Respond(ctx, "hi"); err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
}

func TestOpenAIDriver_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"data": [{"id": "gpt-4o-mini"}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	driver, err := NewOpenAIDriver(Config{APIKey: "test-key", BaseURL: server.URL}, newTestSurface(), nil)
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}

	if !driver.IsAvailable(context.Background()) {
		t.Error("Expected available to be true")
	}

	server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if driver.IsAvailable(context.Background()) {
		t.Error("Expected available to be false on error")
	}
}

func TestNewOpenAIDriver_MissingKey(t *testing.T) {
	_, err := NewOpenAIDriver(Config{}, newTestSurface(), nil)
	if err == nil || !strings.Contains(err.Error(), "API key is required") {
		t.Errorf("Expected missing key error, got %v", err)
	}
}
