package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

const (
	MistralOCRName  = "mistral-ocr"
	MistralOCRModel = "mistral-ocr-latest"

	// Inline image submissions above this size are rejected by the API;
	// PDFs go through the file upload path and are not affected.
	maxInlineImageBytes = 10 << 20
)

// MistralOCRConfig holds configuration for the Mistral OCR client.
type MistralOCRConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	RPM     int // Requests per minute (default: 60)
}

// MistralOCRClient implements OCRClient using the Mistral OCR API.
//
// PDFs are uploaded with purpose "ocr", processed via a signed URL and the
// uploaded file is deleted afterwards. Images are submitted inline as base64
// data URLs.
type MistralOCRClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	limiter *RateLimiter
}

// NewMistralOCRClient creates a new Mistral OCR client.
func NewMistralOCRClient(cfg MistralOCRConfig) *MistralOCRClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = MistralBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = MistralOCRModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.RPM == 0 {
		cfg.RPM = 60
	}

	return &MistralOCRClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: NewRateLimiter(cfg.RPM),
	}
}

// Name returns the provider identifier.
func (c *MistralOCRClient) Name() string {
	return MistralOCRName
}

// Process extracts text from a raw document file.
func (c *MistralOCRClient) Process(ctx context.Context, filename string, data []byte) (*OCRResult, error) {
	start := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var document mistralOCRDocument
	if isPDF(filename, data) {
		fileID, signedURL, err := c.uploadForOCR(ctx, filename, data)
		if err != nil {
			return nil, err
		}
		// Best effort cleanup of the uploaded file.
		defer c.deleteFile(context.WithoutCancel(ctx), fileID)

		document = mistralOCRDocument{
			Type:        "document_url",
			DocumentURL: signedURL,
		}
	} else {
		if len(data) > maxInlineImageBytes {
			return nil, fmt.Errorf("image %s too large for inline OCR (%d bytes)", filename, len(data))
		}
		document = mistralOCRDocument{
			Type:     "image_url",
			ImageURL: "data:" + imageMIMEType(filename, data) + ";base64," + base64.StdEncoding.EncodeToString(data),
		}
	}

	reqBody := mistralOCRRequest{
		Model:    c.model,
		Document: document,
	}

	resp, err := c.processRequest(ctx, reqBody)
	if err != nil {
		return nil, err
	}
	if len(resp.Pages) == 0 {
		return nil, fmt.Errorf("no pages in OCR response")
	}

	// Concatenate page markdown, blank line between pages.
	var sb strings.Builder
	for i, page := range resp.Pages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(page.Markdown)
	}

	result := &OCRResult{
		Text:          strings.TrimSpace(sb.String()),
		Pages:         len(resp.Pages),
		ExecutionTime: time.Since(start),
		ModelUsed:     resp.Model,
	}
	if resp.UsageInfo != nil {
		result.Pages = resp.UsageInfo.PagesProcessed
		result.DocSizeBytes = resp.UsageInfo.DocSizeBytes
	}
	return result, nil
}

// uploadForOCR uploads a file with purpose "ocr" and returns its id and a
// signed download URL for the /ocr endpoint.
func (c *MistralOCRClient) uploadForOCR(ctx context.Context, filename string, data []byte) (string, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", "ocr"); err != nil {
		return "", "", fmt.Errorf("failed to build upload request: %w", err)
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return "", "", fmt.Errorf("failed to build upload request: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", "", fmt.Errorf("failed to build upload request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", "", fmt.Errorf("failed to build upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &buf)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var uploaded mistralFile
	if err := c.doJSON(req, &uploaded); err != nil {
		return "", "", fmt.Errorf("file upload failed: %w", err)
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files/"+uploaded.ID+"/url", nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var signed mistralSignedURL
	if err := c.doJSON(req, &signed); err != nil {
		return "", "", fmt.Errorf("signed url fetch failed: %w", err)
	}

	return uploaded.ID, signed.URL, nil
}

// deleteFile removes an uploaded file. Errors are ignored; the file expires
// server-side anyway.
func (c *MistralOCRClient) deleteFile(ctx context.Context, fileID string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/files/"+fileID, nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return
	}
	_ = resp.Body.Close()
}

// processRequest calls the /ocr endpoint.
func (c *MistralOCRClient) processRequest(ctx context.Context, body mistralOCRRequest) (*mistralOCRResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var ocrResp mistralOCRResponse
	if err := c.doJSON(req, &ocrResp); err != nil {
		return nil, err
	}
	return &ocrResp, nil
}

// doJSON executes a request and decodes a JSON response into out.
func (c *MistralOCRClient) doJSON(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return mistralAPIError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// isPDF checks the filename extension and the file magic.
func isPDF(filename string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// imageMIMEType picks a MIME type for the data URL from the extension,
// falling back to content sniffing.
func imageMIMEType(filename string, data []byte) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	if mt := http.DetectContentType(data); strings.HasPrefix(mt, "image/") {
		return mt
	}
	return "image/jpeg"
}

// Mistral OCR API types

type mistralOCRRequest struct {
	Model    string             `json:"model"`
	Document mistralOCRDocument `json:"document"`
	Pages    []int              `json:"pages,omitempty"`
}

type mistralOCRDocument struct {
	Type        string `json:"type"` // "image_url" or "document_url"
	ImageURL    string `json:"image_url,omitempty"`
	DocumentURL string `json:"document_url,omitempty"`
}

type mistralOCRResponse struct {
	Model     string            `json:"model"`
	Pages     []mistralOCRPage  `json:"pages"`
	UsageInfo *mistralUsageInfo `json:"usage_info,omitempty"`
}

type mistralOCRPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type mistralUsageInfo struct {
	PagesProcessed int `json:"pages_processed"`
	DocSizeBytes   int `json:"doc_size_bytes,omitempty"`
}

type mistralFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

type mistralSignedURL struct {
	URL string `json:"url"`
}

// Verify interface
var _ OCRClient = (*MistralOCRClient)(nil)
