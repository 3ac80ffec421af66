package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var consumeCmd = &cobra.Command{
	Use:   "consume [document_id]",
	Short: "Run the pipeline as a Paperless post-consume hook",
	Long: `Run the pipeline for one newly ingested document. The document id is
read from the DOCUMENT_ID environment variable, which Paperless sets for
post-consume scripts; an explicit argument overrides it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := os.Getenv("DOCUMENT_ID")
		if len(args) == 1 {
			raw = args[0]
		}
		if raw == "" {
			return fmt.Errorf("no document id: set DOCUMENT_ID or pass an argument")
		}
		id, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid document id %q: %w", raw, err)
		}

		svc, err := buildServices(cmd.Context())
		if err != nil {
			return err
		}

		rec := svc.dispatcher.RunConsume(cmd.Context(), id)
		svc.logger.Info("post-consume run complete",
			"document_id", rec.DocumentID,
			"action", rec.Action)
		return nil
	},
}
