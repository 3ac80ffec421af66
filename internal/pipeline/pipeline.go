// Package pipeline runs the enrichment state machine for one document at a
// time: tracking check, OCR, verification, title generation, persistence,
// processed marking. All per-document errors are absorbed into the returned
// Record; they never abort a batch.
package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jackzampolin/paperflow/internal/ocr"
	"github.com/jackzampolin/paperflow/internal/paperless"
	"github.com/jackzampolin/paperflow/internal/titler"
	"github.com/jackzampolin/paperflow/internal/tracker"
	"github.com/jackzampolin/paperflow/internal/verify"
)

// Orchestrator drives the per-document pipeline. Optional stages are nil
// when disabled by configuration.
type Orchestrator struct {
	Paperless *paperless.Client
	Source    ocr.Source
	Verifier  *verify.Verifier // nil: any non-empty text is accepted
	Titler    *titler.Titler   // nil: titles are left untouched
	Tracker   *tracker.Tracker // nil: no processed-state tracking
	Logger    *slog.Logger

	DryRun bool

	// MarkRejected marks rejected documents as processed so they are not
	// re-OCRed every run. Off by default: an unmarked rejection is retried
	// after the next (possibly better) OCR pass.
	MarkRejected bool

	// SimilarLimit bounds the similarity neighborhood for title generation.
	SimilarLimit int
}

// ProcessID fetches a document and runs the pipeline on it.
func (o *Orchestrator) ProcessID(ctx context.Context, id int) *Record {
	rec := &Record{DocumentID: id}

	doc, err := o.Paperless.GetDocument(ctx, id)
	if err != nil {
		return o.fail(rec, err)
	}
	return o.Process(ctx, doc)
}

// Process runs the pipeline on an already-fetched document.
func (o *Orchestrator) Process(ctx context.Context, doc *paperless.Document) *Record {
	rec := &Record{DocumentID: doc.ID}

	// Idempotency gate: no OCR or LLM calls for documents already marked.
	if o.Tracker != nil && o.Tracker.IsProcessed(doc) {
		rec.Action = ActionSkipped
		o.Logger.Info("document already processed, skipping (use --reprocess to force)",
			"document_id", doc.ID)
		return rec
	}

	text, err := o.Source.Text(ctx, doc)
	if err != nil {
		return o.fail(rec, err)
	}
	rec.OCRText = text

	if o.Verifier != nil {
		ok, err := o.Verifier.IsMeaningful(ctx, text)
		if err != nil {
			o.Logger.Warn("content verification errored, rejecting",
				"document_id", doc.ID,
				"error", err)
			ok = false
		}
		rec.Verified = ok
	} else {
		rec.Verified = strings.TrimSpace(text) != ""
	}

	if !rec.Verified {
		rec.Action = ActionRejected
		o.Logger.Info("extracted text rejected, nothing persisted",
			"document_id", doc.ID,
			"chars", len(text))
		if o.MarkRejected && o.Tracker != nil && !o.DryRun {
			if err := o.Tracker.MarkProcessed(ctx, doc.ID); err != nil {
				return o.fail(rec, err)
			}
		}
		return rec
	}

	// Title generation failure never blocks the content update.
	if o.Titler != nil {
		rec.ProposedTitle = o.proposeTitle(ctx, doc, text)
	}

	patch := paperless.Patch{}
	if o.Source.Rewrites() {
		patch.Content = &text
	}
	if rec.ProposedTitle != "" && rec.ProposedTitle != doc.Title {
		patch.Title = &rec.ProposedTitle
	}

	if o.DryRun {
		o.Logger.Info("dry run: would update document",
			"document_id", doc.ID,
			"write_content", patch.Content != nil,
			"content_chars", len(text),
			"old_title", doc.Title,
			"new_title", rec.ProposedTitle)
		rec.Action = ActionDryRun
		return rec
	}

	if !patch.IsEmpty() {
		if err := o.Paperless.UpdateDocument(ctx, doc.ID, patch); err != nil {
			// Tracking is deliberately not marked here: the document must be
			// retried on the next run.
			return o.fail(rec, err)
		}
		o.Logger.Info("document updated",
			"document_id", doc.ID,
			"wrote_content", patch.Content != nil,
			"wrote_title", patch.Title != nil)
	}

	if o.Tracker != nil {
		if err := o.Tracker.MarkProcessed(ctx, doc.ID); err != nil {
			return o.fail(rec, err)
		}
	}

	rec.Action = ActionUpdated
	return rec
}

// proposeTitle fetches the similarity neighborhood and asks the titler for a
// proposal. Any failure returns an empty title and is only logged.
func (o *Orchestrator) proposeTitle(ctx context.Context, doc *paperless.Document, text string) string {
	limit := o.SimilarLimit
	if limit <= 0 || limit > titler.MaxNeighbors {
		limit = titler.MaxNeighbors
	}

	neighbors, err := o.Paperless.FindSimilar(ctx, doc.ID, limit)
	if err != nil {
		o.Logger.Warn("similar document lookup failed, titling without neighbors",
			"document_id", doc.ID,
			"error", err)
		neighbors = nil
	}

	title, err := o.Titler.Propose(ctx, doc, text, neighbors)
	if err != nil {
		o.Logger.Warn("title generation failed, keeping existing title",
			"document_id", doc.ID,
			"error", err)
		return ""
	}
	return title
}

func (o *Orchestrator) fail(rec *Record, err error) *Record {
	rec.Action = ActionFailed
	rec.Err = err
	o.Logger.Error("document processing failed",
		"document_id", rec.DocumentID,
		"error", err)
	return rec
}
