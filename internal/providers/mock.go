package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

const MockName = "mock"

// MockLLM is an LLMClient for testing.
type MockLLM struct {
	// Configurable behavior
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string

	// ResponseFunc, when set, overrides ResponseText per request.
	ResponseFunc func(req *ChatRequest) string

	// State
	requestCount atomic.Int64
}

// NewMockLLM creates a new mock client with sensible defaults.
func NewMockLLM() *MockLLM {
	return &MockLLM{
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockLLM) Name() string {
	return MockName
}

// Calls returns the number of chat requests made.
func (c *MockLLM) Calls() int {
	return int(c.requestCount.Load())
}

// Chat sends a mock chat request.
func (c *MockLLM) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	count := c.requestCount.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.ShouldFail {
		return nil, fmt.Errorf("mock client configured to fail")
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return nil, fmt.Errorf("mock client failed after %d requests", c.FailAfter)
	}

	content := c.ResponseText
	if c.ResponseFunc != nil {
		content = c.ResponseFunc(req)
	}

	result := &ChatResult{
		Content:       content,
		Provider:      MockName,
		ModelUsed:     req.Model,
		RequestID:     fmt.Sprintf("mock-%d", count),
		Attempts:      1,
		ExecutionTime: time.Millisecond,
	}

	if req.ResponseFormat != nil && content != "" {
		var parsed json.RawMessage
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			return result, fmt.Errorf("failed to parse JSON response: %w", err)
		}
		result.ParsedJSON = parsed
	}

	return result, nil
}

// MockOCR is an OCRClient for testing.
type MockOCR struct {
	ShouldFail bool
	Text       string

	requestCount atomic.Int64
}

// NewMockOCR creates a new mock OCR client.
func NewMockOCR(text string) *MockOCR {
	return &MockOCR{Text: text}
}

// Name returns the provider identifier.
func (c *MockOCR) Name() string {
	return MockName
}

// Calls returns the number of OCR requests made.
func (c *MockOCR) Calls() int {
	return int(c.requestCount.Load())
}

// Process extracts mock text.
func (c *MockOCR) Process(ctx context.Context, filename string, data []byte) (*OCRResult, error) {
	c.requestCount.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.ShouldFail {
		return nil, fmt.Errorf("mock OCR configured to fail")
	}

	return &OCRResult{
		Text:          c.Text,
		Pages:         1,
		ModelUsed:     "mock-ocr",
		ExecutionTime: time.Millisecond,
	}, nil
}

// Verify interfaces
var (
	_ LLMClient = (*MockLLM)(nil)
	_ OCRClient = (*MockOCR)(nil)
)
