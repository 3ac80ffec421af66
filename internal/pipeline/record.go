package pipeline

// Action is the outcome of one document's pipeline run.
type Action string

const (
	// ActionSkipped means the document was already marked processed.
	ActionSkipped Action = "skipped"

	// ActionRejected means the extracted text failed the content quality
	// gate; nothing was persisted.
	ActionRejected Action = "rejected"

	// ActionUpdated means content and/or title were written and the
	// document was marked processed.
	ActionUpdated Action = "updated"

	// ActionDryRun means changes were computed but not persisted.
	ActionDryRun Action = "dry-run-would-update"

	// ActionFailed means the document was left for a later run.
	ActionFailed Action = "failed"
)

// Record is the per-document outcome of a pipeline run. It exists for the
// duration of one orchestration call and feeds logging and the batch
// summary; nothing persists it.
type Record struct {
	DocumentID    int
	OCRText       string
	Verified      bool
	ProposedTitle string
	Action        Action
	Err           error
}
