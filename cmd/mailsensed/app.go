package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mailsense/internal/config"
	"github.com/fyrsmithlabs/mailsense/internal/embeddings"
	"github.com/fyrsmithlabs/mailsense/internal/enrich"
	"github.com/fyrsmithlabs/mailsense/internal/index"
	"github.com/fyrsmithlabs/mailsense/internal/llm"
	"github.com/fyrsmithlabs/mailsense/internal/logging"
	"github.com/fyrsmithlabs/mailsense/internal/mail"
	"github.com/fyrsmithlabs/mailsense/internal/pipeline"
	"github.com/fyrsmithlabs/mailsense/internal/retry"
	"github.com/fyrsmithlabs/mailsense/internal/telemetry"
	"github.com/fyrsmithlabs/mailsense/internal/vectorstore"
)

const shutdownTimeout = 10 * time.Second

// app holds the wired pipeline and its teardown hooks.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	tel    *telemetry.Telemetry
	store  vectorstore.Store
	index  *index.EmailIndex

	// processor is nil when the app was built without enrichment
	// (search, index-only runs without an API key).
	processor *pipeline.Processor
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received signal %v, shutting down\n", sig)
		cancel()
	}()
	return ctx, cancel
}

// newApp loads config and wires the pipeline. withEnrichment controls
// whether the completion client is built; commands that never call the
// LLM run without a completion API key.
func newApp(ctx context.Context, withEnrichment bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	tel, err := telemetry.New(ctx, &cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	logger, err := logging.New(cfg.Logging, tel.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("initializing embedder: %w", err)
	}

	store, err := vectorstore.NewStore(cfg.Vector, cfg.Pipeline, embedder, logger,
		vectorstore.NewPayloadIsolation())
	if err != nil {
		return nil, fmt.Errorf("initializing vector store: %w", err)
	}

	idx := index.New(store, index.Config{
		BatchSize:        cfg.Vector.BatchSize,
		MinContentLength: cfg.Pipeline.MinContentLength,
		MetadataBudget:   cfg.Vector.MetadataBudget,
	}, logger)

	a := &app{
		cfg:    cfg,
		logger: logger,
		tel:    tel,
		store:  store,
		index:  idx,
	}

	if withEnrichment {
		client, err := llm.NewHTTPClient(cfg.LLM)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("initializing completion client: %w", err)
		}
		cleaner := mail.NewCleaner(cfg.Pipeline.MaxContentLength, cfg.Pipeline.MinContentLength)
		enricher := enrich.NewEnricher(client, cleaner, retry.Policy{
			Attempts: cfg.Pipeline.RetryAttempts,
			Delay:    cfg.Pipeline.RetryDelay.Duration(),
		}, cfg.LLM.Temperature, cfg.LLM.MaxTokens, logger)

		a.processor = pipeline.NewProcessor(enricher, idx, pipeline.NewMemoryGateway(), cleaner,
			pipeline.Config{
				ChunkSize:  cfg.Pipeline.ChunkSize,
				ChunkPause: cfg.Pipeline.ChunkPause.Duration(),
			}, logger)
	}

	return a, nil
}

// indexOnlyProcessor builds a processor that never calls the LLM.
func (a *app) indexOnlyProcessor() *pipeline.Processor {
	if a.processor != nil {
		return a.processor
	}
	cleaner := mail.NewCleaner(a.cfg.Pipeline.MaxContentLength, a.cfg.Pipeline.MinContentLength)
	return pipeline.NewProcessor(nil, a.index, nil, cleaner, pipeline.Config{
		ChunkSize:  a.cfg.Pipeline.ChunkSize,
		ChunkPause: a.cfg.Pipeline.ChunkPause.Duration(),
	}, a.logger)
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing vector store", zap.Error(err))
		}
	}
	if a.tel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.tel.Shutdown(ctx); err != nil {
			a.logger.Warn("shutting down telemetry", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
