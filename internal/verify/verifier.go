// Package verify gates OCR output on an LLM classification: meaningful text
// passes, garbage is rejected before it can overwrite backend content.
package verify

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/jackzampolin/paperflow/internal/providers"
)

//go:embed system.tmpl
var systemPrompt string

// maxExcerptChars bounds how much OCR text is sent for classification.
const maxExcerptChars = 4000

// Verifier classifies extracted text as meaningful or garbage.
type Verifier struct {
	LLM    providers.LLMClient
	Model  string
	Logger *slog.Logger
}

// verdict is the expected classification response.
type verdict struct {
	IsGarbage bool `json:"is_garbage"`
}

// IsMeaningful reports whether the text is worth persisting. Empty or
// whitespace-only text is rejected without an LLM call. Unparseable
// responses reject (fail-closed); transport errors are returned to the
// caller, which also treats them as rejection.
func (v *Verifier) IsMeaningful(ctx context.Context, text string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}

	excerpt := text
	if len(excerpt) > maxExcerptChars {
		excerpt = excerpt[:maxExcerptChars]
	}

	result, err := v.LLM.Chat(ctx, &providers.ChatRequest{
		Model: v.Model,
		Messages: []providers.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: excerpt},
		},
		ResponseFormat: &providers.ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return false, err
	}

	var vd verdict
	if err := json.Unmarshal(result.ParsedJSON, &vd); err != nil {
		v.Logger.Warn("unparseable verification verdict, rejecting",
			"response", result.Content,
			"error", err)
		return false, nil
	}

	v.Logger.Debug("content verified",
		"is_garbage", vd.IsGarbage,
		"model", result.ModelUsed,
		"request_id", result.RequestID)

	return !vd.IsGarbage, nil
}
