// Package paperless is a typed client for the Paperless-ngx REST API,
// covering the document, search and custom field surfaces the enrichment
// pipeline needs.
package paperless

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// Sentinel errors for the paperless package.
var (
	// ErrNotFound is returned when the backend reports 404 for a document.
	ErrNotFound = errors.New("document not found")

	// ErrUnauthorized is returned when the API token is rejected.
	ErrUnauthorized = errors.New("paperless rejected the API token")
)

// Config holds configuration for the Paperless client.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries uint
}

// Client is a Paperless-ngx HTTP client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries uint
}

// NewClient creates a new Paperless client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxRetries: cfg.MaxRetries,
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetDocument fetches a single document by id.
func (c *Client) GetDocument(ctx context.Context, id int) (*Document, error) {
	var doc Document
	url := fmt.Sprintf("%s/api/documents/%d/", c.baseURL, id)
	if err := c.do(ctx, http.MethodGet, url, nil, &doc); err != nil {
		return nil, fmt.Errorf("get document %d: %w", id, err)
	}
	return &doc, nil
}

// DownloadDocument fetches the raw source file for a document.
func (c *Client) DownloadDocument(ctx context.Context, id int) ([]byte, error) {
	url := fmt.Sprintf("%s/api/documents/%d/download/", c.baseURL, id)

	var data []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			c.setHeaders(req)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if err := c.checkStatus(resp.StatusCode, nil); err != nil {
				return err
			}

			data, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.maxRetries),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("download document %d: %w", id, err)
	}
	return data, nil
}

// SearchDocuments lists documents matching an optional raw filter string
// (url query parameters understood by the documents endpoint). All result
// pages are followed via the next links, preserving backend order.
func (c *Client) SearchDocuments(ctx context.Context, filter string) ([]Document, error) {
	next := c.baseURL + "/api/documents/"
	if filter != "" {
		next += "?" + filter
	}

	var docs []Document
	for next != "" {
		var page documentPage
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		docs = append(docs, page.Results...)
		next = page.Next
	}
	return docs, nil
}

// FindSimilar returns up to limit documents the backend judges similar to the
// given document, best match first. The target document itself is excluded.
func (c *Client) FindSimilar(ctx context.Context, id, limit int) ([]Document, error) {
	q := url.Values{}
	q.Set("more_like_id", fmt.Sprintf("%d", id))
	q.Set("ordering", "-score")
	q.Set("page_size", fmt.Sprintf("%d", limit))

	var page documentPage
	u := c.baseURL + "/api/documents/?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, u, nil, &page); err != nil {
		return nil, fmt.Errorf("find similar to document %d: %w", id, err)
	}

	similar := make([]Document, 0, len(page.Results))
	for _, doc := range page.Results {
		if doc.ID == id {
			continue
		}
		similar = append(similar, doc)
		if len(similar) == limit {
			break
		}
	}
	return similar, nil
}

// UpdateDocument patches the mutable attributes of a document.
func (c *Client) UpdateDocument(ctx context.Context, id int, patch Patch) error {
	if patch.IsEmpty() {
		return nil
	}
	url := fmt.Sprintf("%s/api/documents/%d/", c.baseURL, id)
	if err := c.do(ctx, http.MethodPatch, url, patch, nil); err != nil {
		return fmt.Errorf("update document %d: %w", id, err)
	}
	return nil
}

// ListCustomFields returns all custom field definitions.
func (c *Client) ListCustomFields(ctx context.Context) ([]CustomField, error) {
	next := c.baseURL + "/api/custom_fields/"

	var fields []CustomField
	for next != "" {
		var page customFieldPage
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("list custom fields: %w", err)
		}
		fields = append(fields, page.Results...)
		next = page.Next
	}
	return fields, nil
}

// CreateCustomField creates a number-typed custom field and returns its id.
// Number fields hold the UNIX timestamp of the processing run.
func (c *Client) CreateCustomField(ctx context.Context, name string) (int, error) {
	body := map[string]any{
		"name":      name,
		"data_type": "number",
		"required":  false,
	}

	var created CustomField
	url := c.baseURL + "/api/custom_fields/"
	if err := c.do(ctx, http.MethodPost, url, body, &created); err != nil {
		return 0, fmt.Errorf("create custom field %q: %w", name, err)
	}
	return created.ID, nil
}

// SetCustomField writes a value into one custom field of a document while
// preserving all other custom fields already on it. Paperless replaces the
// whole custom_fields list on PATCH, so the current list is fetched and
// merged first.
func (c *Client) SetCustomField(ctx context.Context, docID, fieldID int, value any) error {
	doc, err := c.GetDocument(ctx, docID)
	if err != nil {
		return err
	}

	merged := make([]CustomFieldValue, 0, len(doc.CustomFields)+1)
	found := false
	for _, cf := range doc.CustomFields {
		if cf.Field == fieldID {
			cf.Value = value
			found = true
		}
		merged = append(merged, cf)
	}
	if !found {
		merged = append(merged, CustomFieldValue{Field: fieldID, Value: value})
	}

	body := map[string]any{"custom_fields": merged}
	url := fmt.Sprintf("%s/api/documents/%d/", c.baseURL, docID)
	if err := c.do(ctx, http.MethodPatch, url, body, nil); err != nil {
		return fmt.Errorf("set custom field %d on document %d: %w", fieldID, docID, err)
	}
	return nil
}

// do performs a JSON request with retries on transport errors, 429 and 5xx.
func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	return retry.Do(
		func() error {
			var reader io.Reader
			if bodyBytes != nil {
				reader = bytes.NewReader(bodyBytes)
			}
			req, err := http.NewRequestWithContext(ctx, method, url, reader)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			c.setHeaders(req)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			respBody, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}

			if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
				return err
			}

			if out == nil || len(respBody) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to unmarshal response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.maxRetries),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

// checkStatus classifies a response status. Retryable statuses return plain
// errors; everything else 4xx is wrapped as unrecoverable so retry.Do stops.
func (c *Client) checkStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("paperless error (status %d): %s", status, truncate(body, 200))
	case status == http.StatusNotFound:
		return retry.Unrecoverable(ErrNotFound)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return retry.Unrecoverable(fmt.Errorf("%w (status %d)", ErrUnauthorized, status))
	default:
		return retry.Unrecoverable(fmt.Errorf("paperless error (status %d): %s", status, truncate(body, 200)))
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Token "+c.token)
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json; version=2")
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
