// Package tracker records per-document processed state in a Paperless
// custom field, so repeated runs skip documents that were already enriched.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/paperflow/internal/paperless"
)

// ErrFieldMismatch is returned when the configured field id resolves to a
// field with a different name. Tracking against the wrong field silently
// misbehaves, so this fails fast at startup.
var ErrFieldMismatch = errors.New("custom field id/name mismatch")

// Tracker reads and writes the processed marker on documents.
type Tracker struct {
	Client    *paperless.Client
	FieldID   int
	FieldName string
	Reprocess bool
	DryRun    bool
	Logger    *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Tracker.
func New(client *paperless.Client, fieldID int, fieldName string, logger *slog.Logger) *Tracker {
	return &Tracker{
		Client:    client,
		FieldID:   fieldID,
		FieldName: fieldName,
		Logger:    logger,
		now:       time.Now,
	}
}

// Ensure validates the tracking field against the backend's definitions.
// The configured id must resolve to a field with the configured name. If the
// id is unknown but a field with the name exists, its id is adopted. If
// neither exists, the field is created.
func (t *Tracker) Ensure(ctx context.Context) error {
	fields, err := t.Client.ListCustomFields(ctx)
	if err != nil {
		return fmt.Errorf("ensure tracking field: %w", err)
	}

	for _, f := range fields {
		if f.ID == t.FieldID {
			if f.Name != t.FieldName {
				return fmt.Errorf("%w: field %d is named %q, expected %q",
					ErrFieldMismatch, t.FieldID, f.Name, t.FieldName)
			}
			t.Logger.Debug("tracking field verified",
				"field_id", t.FieldID,
				"field_name", t.FieldName)
			return nil
		}
	}

	for _, f := range fields {
		if f.Name == t.FieldName {
			t.Logger.Info("tracking field found under different id, adopting",
				"field_name", t.FieldName,
				"configured_id", t.FieldID,
				"actual_id", f.ID)
			t.FieldID = f.ID
			return nil
		}
	}

	id, err := t.Client.CreateCustomField(ctx, t.FieldName)
	if err != nil {
		return fmt.Errorf("ensure tracking field: %w", err)
	}
	t.Logger.Info("created tracking field",
		"field_name", t.FieldName,
		"field_id", id)
	t.FieldID = id
	return nil
}

// IsProcessed reports whether the document carries a truthy processed
// marker. The reprocess override forces false so a full re-run recomputes
// everything without clearing stored state.
func (t *Tracker) IsProcessed(doc *paperless.Document) bool {
	if t.Reprocess {
		return false
	}
	value, ok := doc.CustomFieldByID(t.FieldID)
	return ok && truthy(value)
}

// MarkProcessed writes the current UNIX timestamp into the tracking field.
// No-op under dry-run.
func (t *Tracker) MarkProcessed(ctx context.Context, docID int) error {
	if t.DryRun {
		t.Logger.Info("dry run: would mark document processed",
			"document_id", docID,
			"field_id", t.FieldID)
		return nil
	}

	ts := t.now().Unix()
	if err := t.Client.SetCustomField(ctx, docID, t.FieldID, ts); err != nil {
		return fmt.Errorf("mark document %d processed: %w", docID, err)
	}
	t.Logger.Info("marked document processed",
		"document_id", docID,
		"field_id", t.FieldID,
		"timestamp", ts)
	return nil
}

// truthy interprets a stored custom field value as a processed flag. Number
// fields hold timestamps, but older fields may hold booleans or strings.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case string:
		return v != "" && v != "false" && v != "0"
	default:
		return true
	}
}
