// Package ocr selects where a document's text comes from: the backend's own
// OCR output or a remote OCR provider. The source is chosen once at startup
// from configuration.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/jackzampolin/paperflow/internal/paperless"
	"github.com/jackzampolin/paperflow/internal/providers"
)

// ErrFailed is returned when a source cannot produce text for a document.
var ErrFailed = errors.New("ocr failed")

// Source produces the text for a document.
type Source interface {
	// Name returns the source identifier.
	Name() string

	// Text returns the extracted text for the document.
	Text(ctx context.Context, doc *paperless.Document) (string, error)

	// Rewrites reports whether the produced text is new content that should
	// be written back to the backend. The native source returns what the
	// backend already stores, so there is nothing to write.
	Rewrites() bool
}

// NativeSource returns the backend's stored OCR content.
type NativeSource struct{}

// Name returns the source identifier.
func (NativeSource) Name() string { return "paperless" }

// Text returns the document's stored content.
func (NativeSource) Text(ctx context.Context, doc *paperless.Document) (string, error) {
	return doc.Content, nil
}

// Rewrites reports that native content is never written back.
func (NativeSource) Rewrites() bool { return false }

// RemoteSource downloads the document's source file and runs it through an
// external OCR provider.
type RemoteSource struct {
	Paperless *paperless.Client
	OCR       providers.OCRClient
	Logger    *slog.Logger
}

// Name returns the source identifier.
func (s *RemoteSource) Name() string { return s.OCR.Name() }

// Rewrites reports that remote OCR output replaces the stored content.
func (s *RemoteSource) Rewrites() bool { return true }

// Text downloads the document file and extracts its text via the OCR
// provider. PDF page counts are checked first so a corrupt download fails
// before any OCR budget is spent.
func (s *RemoteSource) Text(ctx context.Context, doc *paperless.Document) (string, error) {
	data, err := s.Paperless.DownloadDocument(ctx, doc.ID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFailed, err)
	}

	filename := fmt.Sprintf("document_%d", doc.ID)
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		filename += ".pdf"
		pages, err := api.PageCount(bytes.NewReader(data), nil)
		if err != nil {
			return "", fmt.Errorf("%w: unreadable pdf for document %d: %w", ErrFailed, doc.ID, err)
		}
		s.Logger.Debug("downloaded document file",
			"document_id", doc.ID,
			"bytes", len(data),
			"pages", pages)
	} else {
		s.Logger.Debug("downloaded document file",
			"document_id", doc.ID,
			"bytes", len(data))
	}

	result, err := s.OCR.Process(ctx, filename, data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFailed, err)
	}

	s.Logger.Info("remote ocr complete",
		"document_id", doc.ID,
		"provider", s.OCR.Name(),
		"pages", result.Pages,
		"chars", len(result.Text))

	return result.Text, nil
}

// Verify interfaces
var (
	_ Source = NativeSource{}
	_ Source = (*RemoteSource)(nil)
)
