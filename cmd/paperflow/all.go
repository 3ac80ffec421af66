package main

import (
	"github.com/spf13/cobra"
)

var (
	allFilter  string
	allExclude []int
)

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run the pipeline on all documents",
	Long: `Run the pipeline on every document the backend returns, in backend
order. Documents already marked processed are skipped. A failure on one
document is logged and never stops the rest of the batch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices(cmd.Context())
		if err != nil {
			return err
		}

		summary, err := svc.dispatcher.RunAll(cmd.Context(), allFilter, allExclude)
		if err != nil {
			return err
		}

		svc.logger.Info("batch complete",
			"processed", summary.Total,
			"updated", summary.Updated,
			"skipped", summary.Skipped,
			"rejected", summary.Rejected,
			"failed", summary.Failed)
		return nil
	},
}

func init() {
	allCmd.Flags().StringVar(&allFilter, "filterstr", "", "raw query parameters to filter the document listing")
	allCmd.Flags().IntSliceVar(&allExclude, "exclude", nil, "document id to skip (repeatable)")
}
