package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackzampolin/paperflow/internal/config"
	"github.com/jackzampolin/paperflow/internal/ocr"
	"github.com/jackzampolin/paperflow/internal/paperless"
	"github.com/jackzampolin/paperflow/internal/pipeline"
	"github.com/jackzampolin/paperflow/internal/providers"
	"github.com/jackzampolin/paperflow/internal/titler"
	"github.com/jackzampolin/paperflow/internal/tracker"
	"github.com/jackzampolin/paperflow/internal/verify"
)

// services wires configuration, clients and the pipeline together once per
// invocation and is passed into the command handlers.
type services struct {
	cfg        *config.Config
	logger     *slog.Logger
	dispatcher *pipeline.Dispatcher
}

// buildServices loads and validates configuration, constructs the clients
// and verifies the tracking field. Any error here is a configuration error:
// the process exits non-zero before any document is touched.
func buildServices(ctx context.Context) (*services, error) {
	cfg, err := config.Load(cfgFile, rootCmd.PersistentFlags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	if cfg.DryRun {
		logger.Info("running in dry mode, no changes will be persisted")
	}

	client := paperless.NewClient(paperless.Config{
		BaseURL: cfg.PaperlessURL,
		Token:   cfg.PaperlessKey,
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	})

	var source ocr.Source
	if cfg.UsePaperlessOCR {
		source = ocr.NativeSource{}
	} else {
		source = &ocr.RemoteSource{
			Paperless: client,
			OCR: providers.NewMistralOCRClient(providers.MistralOCRConfig{
				APIKey:  cfg.MistralKey,
				BaseURL: cfg.MistralBaseURL,
				Model:   cfg.MistralOCRModel,
			}),
			Logger: logger,
		}
	}

	var llm providers.LLMClient
	if cfg.VerifyContent || cfg.GenerateTitles {
		llm = providers.NewMistralClient(providers.MistralConfig{
			APIKey:       cfg.MistralKey,
			BaseURL:      cfg.MistralBaseURL,
			DefaultModel: cfg.MistralModel,
		})
	}

	var verifier *verify.Verifier
	if cfg.VerifyContent {
		verifier = &verify.Verifier{
			LLM:    llm,
			Model:  cfg.MistralModel,
			Logger: logger,
		}
	}

	var tl *titler.Titler
	if cfg.GenerateTitles {
		tl = titler.New(llm, cfg.MistralModel, logger)
	}

	var tr *tracker.Tracker
	if cfg.TrackProcessed {
		tr = tracker.New(client, cfg.ProcessedFieldID, cfg.ProcessedFieldName, logger)
		tr.Reprocess = cfg.Reprocess
		tr.DryRun = cfg.DryRun
		if err := tr.Ensure(ctx); err != nil {
			return nil, err
		}
	}

	orch := &pipeline.Orchestrator{
		Paperless:    client,
		Source:       source,
		Verifier:     verifier,
		Titler:       tl,
		Tracker:      tr,
		Logger:       logger,
		DryRun:       cfg.DryRun,
		MarkRejected: cfg.MarkRejected,
		SimilarLimit: cfg.SimilarLimit,
	}

	return &services{
		cfg:    cfg,
		logger: logger,
		dispatcher: &pipeline.Dispatcher{
			Orchestrator: orch,
			Logger:       logger,
		},
	}, nil
}
