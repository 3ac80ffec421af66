package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackzampolin/paperflow/internal/paperless"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fieldsServer serves the custom field definitions and records created ones.
func fieldsServer(t *testing.T, fields []paperless.CustomField, created *map[string]any) *paperless.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{"results": fields})
		case http.MethodPost:
			if created != nil {
				json.NewDecoder(r.Body).Decode(created)
			}
			json.NewEncoder(w).Encode(paperless.CustomField{ID: 77, Name: "mistral_processed", DataType: "number"})
		}
	}))
	t.Cleanup(server.Close)
	return paperless.NewClient(paperless.Config{BaseURL: server.URL, Token: "t", Timeout: 5 * time.Second})
}

func TestEnsureFieldMatches(t *testing.T) {
	client := fieldsServer(t, []paperless.CustomField{
		{ID: 3, Name: "mistral_processed", DataType: "number"},
	}, nil)

	tr := New(client, 3, "mistral_processed", discardLogger())
	if err := tr.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if tr.FieldID != 3 {
		t.Errorf("FieldID = %d, want 3", tr.FieldID)
	}
}

func TestEnsureFieldMismatch(t *testing.T) {
	client := fieldsServer(t, []paperless.CustomField{
		{ID: 3, Name: "something_else", DataType: "string"},
	}, nil)

	tr := New(client, 3, "mistral_processed", discardLogger())
	err := tr.Ensure(context.Background())
	if !errors.Is(err, ErrFieldMismatch) {
		t.Errorf("expected ErrFieldMismatch, got %v", err)
	}
}

func TestEnsureAdoptsIDByName(t *testing.T) {
	client := fieldsServer(t, []paperless.CustomField{
		{ID: 12, Name: "mistral_processed", DataType: "number"},
	}, nil)

	tr := New(client, 3, "mistral_processed", discardLogger())
	if err := tr.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if tr.FieldID != 12 {
		t.Errorf("FieldID = %d, want adopted id 12", tr.FieldID)
	}
}

func TestEnsureCreatesMissingField(t *testing.T) {
	var created map[string]any
	client := fieldsServer(t, nil, &created)

	tr := New(client, 3, "mistral_processed", discardLogger())
	if err := tr.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if tr.FieldID != 77 {
		t.Errorf("FieldID = %d, want created id 77", tr.FieldID)
	}
	if created["name"] != "mistral_processed" || created["data_type"] != "number" {
		t.Errorf("created field = %v", created)
	}
}

func TestIsProcessed(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"timestamp", float64(1700000000), true},
		{"zero number", float64(0), false},
		{"bool true", true, true},
		{"bool false", false, false},
		{"string timestamp", "1700000000", true},
		{"string false", "false", false},
		{"empty string", "", false},
		{"nil", nil, false},
	}

	tr := New(nil, 3, "mistral_processed", discardLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &paperless.Document{
				ID:           1,
				CustomFields: []paperless.CustomFieldValue{{Field: 3, Value: tt.value}},
			}
			if got := tr.IsProcessed(doc); got != tt.want {
				t.Errorf("IsProcessed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsProcessedFieldAbsent(t *testing.T) {
	tr := New(nil, 3, "mistral_processed", discardLogger())
	doc := &paperless.Document{ID: 1}
	if tr.IsProcessed(doc) {
		t.Error("document without the field must not count as processed")
	}
}

func TestIsProcessedReprocessOverride(t *testing.T) {
	tr := New(nil, 3, "mistral_processed", discardLogger())
	tr.Reprocess = true

	doc := &paperless.Document{
		ID:           1,
		CustomFields: []paperless.CustomFieldValue{{Field: 3, Value: float64(1700000000)}},
	}
	if tr.IsProcessed(doc) {
		t.Error("reprocess must override the stored marker")
	}
}

func TestMarkProcessed(t *testing.T) {
	var patched struct {
		CustomFields []paperless.CustomFieldValue `json:"custom_fields"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(paperless.Document{ID: 5})
		case http.MethodPatch:
			json.NewDecoder(r.Body).Decode(&patched)
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()
	client := paperless.NewClient(paperless.Config{BaseURL: server.URL, Token: "t"})

	tr := New(client, 3, "mistral_processed", discardLogger())
	fixed := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return fixed }

	if err := tr.MarkProcessed(context.Background(), 5); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if len(patched.CustomFields) != 1 || patched.CustomFields[0].Field != 3 {
		t.Fatalf("unexpected patch: %+v", patched.CustomFields)
	}
	if ts := patched.CustomFields[0].Value.(float64); int64(ts) != fixed.Unix() {
		t.Errorf("timestamp = %v, want %d", ts, fixed.Unix())
	}
}

func TestMarkProcessedDryRun(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()
	client := paperless.NewClient(paperless.Config{BaseURL: server.URL, Token: "t"})

	tr := New(client, 3, "mistral_processed", discardLogger())
	tr.DryRun = true

	if err := tr.MarkProcessed(context.Background(), 5); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if calls != 0 {
		t.Errorf("dry run must not touch the backend, got %d calls", calls)
	}
}
