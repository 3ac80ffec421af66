package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MistralName    = "mistral"
	MistralBaseURL = "https://api.mistral.ai/v1"
	MistralModel   = "mistral-large-latest"
)

// MistralConfig holds configuration for the Mistral chat client.
type MistralConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	// Rate limiting
	RPM        int           // Requests per minute (default: 60)
	MaxRetries int           // Max retry attempts (default: 3)
	RetryDelay time.Duration // Base delay between retries (default: 1s)
}

// MistralClient implements LLMClient using the Mistral chat completions API.
type MistralClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
	limiter      *RateLimiter
	maxRetries   int
	retryDelay   time.Duration
}

// NewMistralClient creates a new Mistral chat client.
func NewMistralClient(cfg MistralConfig) *MistralClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = MistralBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = MistralModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RPM == 0 {
		cfg.RPM = 60
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	return &MistralClient{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		defaultModel: cfg.DefaultModel,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:    NewRateLimiter(cfg.RPM),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Name returns the client identifier.
func (c *MistralClient) Name() string {
	return MistralName
}

// Chat sends a chat completion request.
func (c *MistralClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	mReq := mistralChatRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.ResponseFormat != nil {
		mReq.ResponseFormat = &mistralResponseFormat{Type: req.ResponseFormat.Type}
	}

	mResp, attempts, err := c.doRequest(ctx, "/chat/completions", mReq)
	if err != nil {
		return nil, err
	}

	if len(mResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in Mistral response (id=%s)", mResp.ID)
	}

	result := &ChatResult{
		Content:          mResp.Choices[0].Message.Content,
		PromptTokens:     mResp.Usage.PromptTokens,
		CompletionTokens: mResp.Usage.CompletionTokens,
		TotalTokens:      mResp.Usage.TotalTokens,
		ExecutionTime:    time.Since(start),
		Provider:         MistralName,
		ModelUsed:        mResp.Model,
		RequestID:        requestID,
		Attempts:         attempts,
	}

	// Parse JSON if structured output was requested
	if req.ResponseFormat != nil && result.Content != "" {
		var parsed json.RawMessage
		if err := json.Unmarshal([]byte(result.Content), &parsed); err != nil {
			return result, fmt.Errorf("failed to parse JSON response: %w", err)
		}
		result.ParsedJSON = parsed
	}

	return result, nil
}

// doRequest makes an HTTP request to the Mistral API with retry logic.
func (c *MistralClient) doRequest(ctx context.Context, path string, body any) (*mistralChatResponse, int, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt, err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, attempt, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, attempt, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			c.backoff(ctx, attempt)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			c.backoff(ctx, attempt)
			continue
		}

		if shouldRetryStatus(resp.StatusCode) {
			lastErr = mistralAPIError(resp.StatusCode, respBody)
			c.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, attempt + 1, mistralAPIError(resp.StatusCode, respBody)
		}

		var mResp mistralChatResponse
		if err := json.Unmarshal(respBody, &mResp); err != nil {
			return nil, attempt + 1, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		return &mResp, attempt + 1, nil
	}

	return nil, c.maxRetries, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// backoff sleeps with exponential backoff, respecting context cancellation.
func (c *MistralClient) backoff(ctx context.Context, attempt int) {
	delay := c.retryDelay * time.Duration(1<<attempt)
	if delay > 10*time.Second {
		delay = 10 * time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

// shouldRetryStatus returns true for status codes that should be retried.
func shouldRetryStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests:
		return true
	default:
		return statusCode >= 500
	}
}

// mistralAPIError extracts a useful error message from an error response.
func mistralAPIError(status int, body []byte) error {
	var errResp mistralErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
		return fmt.Errorf("mistral error (status %d): %s", status, errResp.Message)
	}
	return fmt.Errorf("mistral error (status %d): %s", status, string(body))
}

// Mistral chat API types

type mistralChatRequest struct {
	Model          string                 `json:"model"`
	Messages       []Message              `json:"messages"`
	Temperature    float64                `json:"temperature,omitempty"`
	MaxTokens      int                    `json:"max_tokens,omitempty"`
	ResponseFormat *mistralResponseFormat `json:"response_format,omitempty"`
}

type mistralResponseFormat struct {
	Type string `json:"type"`
}

type mistralChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type mistralErrorResponse struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Verify interface
var _ LLMClient = (*MistralClient)(nil)
