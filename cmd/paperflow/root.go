package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/paperflow/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "paperflow",
	Short: "Paperless-ngx enrichment pipeline with Mistral OCR and LLM titling",
	Long: `Paperflow enriches documents already ingested into a Paperless-ngx
instance. For each document it extracts text via the Mistral OCR API (or
reuses the Paperless-native OCR output), checks that the extracted text is
meaningful, proposes a title consistent with similar already-filed
documents, writes the results back, and records processed state in a
custom field so repeat runs are cheap no-ops.

Modes:
  single <id>   process one document
  all           process every document matching an optional filter
  consume       post-consume hook, document id from DOCUMENT_ID`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	defaults := config.Default()
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.paperflow/config.yaml)")

	pf.String("paperlessurl", defaults.PaperlessURL, "URL for the Paperless instance")
	pf.String("paperlesskey", "", "API key for the Paperless instance")
	pf.String("mistralkey", "", "Mistral API key")
	pf.String("mistralmodel", defaults.MistralModel, "Mistral chat model for verification and titling")
	pf.String("ocr-model", defaults.MistralOCRModel, "Mistral OCR model")
	pf.String("mistralbaseurl", "", "override the Mistral API base URL")
	pf.Bool("use-paperless-ocr", false, "use Paperless-ngx built-in OCR output instead of Mistral OCR")
	pf.Bool("verify", defaults.VerifyContent, "verify extracted text is meaningful before persisting")
	pf.Bool("titles", defaults.GenerateTitles, "generate titles informed by similar documents")
	pf.Int("similar-limit", defaults.SimilarLimit, "max similar documents used as titling context")
	pf.Bool("track-processed", defaults.TrackProcessed, "track processed documents using a custom field")
	pf.Int("processed-field-id", defaults.ProcessedFieldID, "custom field id for tracking processed documents")
	pf.String("processed-field-name", defaults.ProcessedFieldName, "custom field name for tracking processed documents")
	pf.Bool("reprocess", false, "reprocess documents even if they were processed before")
	pf.Bool("mark-rejected", false, "mark rejected documents as processed to avoid repeated OCR cost")
	pf.Bool("dry", false, "run without making any changes")
	pf.String("loglevel", defaults.LogLevel, "log level: debug, info, warn, error")
	pf.Int("timeout", defaults.TimeoutSeconds, "per-request timeout in seconds for Paperless calls")

	rootCmd.AddCommand(singleCmd, allCmd, consumeCmd, configCmd, versionCmd)
}
