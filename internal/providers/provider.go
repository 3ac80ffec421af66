package providers

import (
	"context"
	"encoding/json"
	"time"
)

// LLMClient is the interface for chat/completion requests. Both the content
// verifier and the titler speak through it.
type LLMClient interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g., "mistral").
	Name() string
}

// OCRClient handles document-to-text extraction. Separate from LLM because
// it has different rate limiting, retry patterns, and result handling
// (markdown text vs structured responses).
type OCRClient interface {
	// Name returns the provider identifier (e.g., "mistral-ocr").
	Name() string

	// Process extracts text from a raw document file. The filename is used
	// to decide between the PDF and image submission paths.
	Process(ctx context.Context, filename string, data []byte) (*OCRResult, error)
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ResponseFormat specifies structured output format.
type ResponseFormat struct {
	Type string `json:"type"` // "json_object"
}

// ChatRequest is a request to an LLM.
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	// Generation parameters
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	// Structured output
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// Request tracking
	RequestID string `json:"-"`
}

// ChatResult is the complete response from an LLM call.
type ChatResult struct {
	Content    string          `json:"content"`
	ParsedJSON json.RawMessage `json:"parsed_json,omitempty"` // Parsed if ResponseFormat was set

	// Token counts
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// Timing
	ExecutionTime time.Duration `json:"execution_time"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	// Request tracking
	RequestID string `json:"request_id"`
	Attempts  int    `json:"attempts"`
}

// OCRResult is the response from an OCR provider.
type OCRResult struct {
	Text string `json:"text"` // Markdown formatted

	// Metadata from provider (page count, document size, etc.)
	Pages        int `json:"pages"`
	DocSizeBytes int `json:"doc_size_bytes,omitempty"`

	ExecutionTime time.Duration `json:"execution_time"`
	ModelUsed     string        `json:"model_used"`
}
