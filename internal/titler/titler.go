// Package titler proposes document titles using an LLM, conditioned on the
// titles of similar already-filed documents so new titles follow the
// existing naming conventions.
package titler

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/paperflow/internal/paperless"
	"github.com/jackzampolin/paperflow/internal/providers"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

var userTemplate = template.Must(template.New("user").Parse(userPromptTmpl))

// ErrEmptyTitle is returned when the LLM produced no usable title.
var ErrEmptyTitle = errors.New("empty title proposal")

const (
	// MaxNeighbors bounds how many similar documents inform the prompt.
	MaxNeighbors = 5

	// maxExcerptChars bounds how much document text goes into the prompt.
	maxExcerptChars = 4000
)

// responseSchema validates the structured title response.
const responseSchema = `{
	"type": "object",
	"required": ["title"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"explanation": {"type": "string"}
	}
}`

var titleSchema = func() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("title.json", strings.NewReader(responseSchema)); err != nil {
		panic(err)
	}
	return c.MustCompile("title.json")
}()

// Titler generates titles informed by a similarity neighborhood.
type Titler struct {
	LLM    providers.LLMClient
	Model  string
	Logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Titler.
func New(llm providers.LLMClient, model string, logger *slog.Logger) *Titler {
	return &Titler{
		LLM:    llm,
		Model:  model,
		Logger: logger,
		now:    time.Now,
	}
}

// proposal is the expected LLM response.
type proposal struct {
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
}

// Propose generates a title for the document. Neighbors beyond MaxNeighbors
// are ignored to bound prompt size.
func (t *Titler) Propose(ctx context.Context, doc *paperless.Document, text string, neighbors []paperless.Document) (string, error) {
	if len(neighbors) > MaxNeighbors {
		neighbors = neighbors[:MaxNeighbors]
	}

	titles := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		if strings.TrimSpace(n.Title) != "" {
			titles = append(titles, n.Title)
		}
	}

	user, err := t.userPrompt(text, titles)
	if err != nil {
		return "", err
	}

	result, err := t.LLM.Chat(ctx, &providers.ChatRequest{
		Model: t.Model,
		Messages: []providers.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		ResponseFormat: &providers.ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("title generation failed for document %d: %w", doc.ID, err)
	}

	var parsed any
	if err := json.Unmarshal(result.ParsedJSON, &parsed); err != nil {
		return "", fmt.Errorf("invalid title response for document %d: %w", doc.ID, err)
	}
	if err := titleSchema.Validate(parsed); err != nil {
		return "", fmt.Errorf("invalid title response for document %d: %w", doc.ID, err)
	}

	var p proposal
	if err := json.Unmarshal(result.ParsedJSON, &p); err != nil {
		return "", fmt.Errorf("invalid title response for document %d: %w", doc.ID, err)
	}

	title := strings.TrimSpace(p.Title)
	if title == "" {
		return "", ErrEmptyTitle
	}

	t.Logger.Info("title proposed",
		"document_id", doc.ID,
		"title", title,
		"explanation", p.Explanation,
		"neighbors", len(titles),
		"request_id", result.RequestID)

	return title, nil
}

// userPrompt renders the user message: today's date, a bounded excerpt of
// the document text and the neighbor titles.
func (t *Titler) userPrompt(text string, neighborTitles []string) (string, error) {
	excerpt := text
	if len(excerpt) > maxExcerptChars {
		excerpt = excerpt[:maxExcerptChars]
	}

	data := struct {
		Date      string
		Excerpt   string
		Neighbors []string
	}{
		Date:      t.now().Format("01/02/2006"),
		Excerpt:   excerpt,
		Neighbors: neighborTitles,
	}

	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render title prompt: %w", err)
	}
	return buf.String(), nil
}
