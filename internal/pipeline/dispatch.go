package pipeline

import (
	"context"
	"fmt"
	"log/slog"
)

// Dispatcher resolves document id sets for the three entry modes and feeds
// them one at a time into the Orchestrator.
type Dispatcher struct {
	Orchestrator *Orchestrator
	Logger       *slog.Logger
}

// Summary aggregates batch results.
type Summary struct {
	Total    int
	Updated  int
	Skipped  int
	Rejected int
	Failed   int
}

func (s *Summary) observe(rec *Record) {
	s.Total++
	switch rec.Action {
	case ActionUpdated, ActionDryRun:
		s.Updated++
	case ActionSkipped:
		s.Skipped++
	case ActionRejected:
		s.Rejected++
	case ActionFailed:
		s.Failed++
	}
}

// RunSingle processes one explicitly named document.
func (d *Dispatcher) RunSingle(ctx context.Context, id int) *Record {
	d.Logger.Info("running for document", "document_id", id)
	return d.Orchestrator.ProcessID(ctx, id)
}

// RunConsume processes one newly ingested document. Same pipeline as
// RunSingle, invoked from the backend's post-consume hook.
func (d *Dispatcher) RunConsume(ctx context.Context, id int) *Record {
	d.Logger.Info("post-consume run for document", "document_id", id)
	return d.Orchestrator.ProcessID(ctx, id)
}

// RunAll processes every document matching the filter, minus the excluded
// ids, strictly in the order the backend returns them. A failure on one
// document never prevents processing of the next.
func (d *Dispatcher) RunAll(ctx context.Context, filter string, exclude []int) (*Summary, error) {
	docs, err := d.Orchestrator.Paperless.SearchDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("resolve document set: %w", err)
	}
	d.Logger.Info("found documents", "count", len(docs), "filter", filter)

	excluded := make(map[int]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	summary := &Summary{}
	for i, doc := range docs {
		if excluded[doc.ID] {
			d.Logger.Debug("document excluded", "document_id", doc.ID)
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		d.Logger.Info("processing document",
			"document_id", doc.ID,
			"position", fmt.Sprintf("%d/%d", i+1, len(docs)))

		rec := d.Orchestrator.Process(ctx, &doc)
		summary.observe(rec)

		if summary.Total%10 == 0 {
			d.logProgress(summary)
		}
	}

	d.logProgress(summary)
	return summary, nil
}

func (d *Dispatcher) logProgress(s *Summary) {
	d.Logger.Info("batch progress",
		"processed", s.Total,
		"updated", s.Updated,
		"skipped", s.Skipped,
		"rejected", s.Rejected,
		"failed", s.Failed)
}
