// Package pipeline orchestrates batch email processing: enrichment,
// indexing, or both, in fixed-size chunks with bounded concurrency.
//
// A chunk's items run concurrently; chunks run strictly in sequence with a
// fixed pause between them. One item's failure is recorded in its own
// outcome and never aborts its siblings.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mailsense/internal/enrich"
	"github.com/fyrsmithlabs/mailsense/internal/index"
	"github.com/fyrsmithlabs/mailsense/internal/mail"
)

var tracer = otel.Tracer("mailsense.pipeline")

// Mode selects which stages of the pipeline run.
type Mode string

const (
	// ModeFull enriches and indexes.
	ModeFull Mode = "full"

	// ModeIndexOnly indexes without any LLM calls.
	ModeIndexOnly Mode = "index_only"

	// ModeAnalyzeOnly enriches without touching the vector store.
	ModeAnalyzeOnly Mode = "analyze_only"
)

// Enricher derives structured metadata from one email.
type Enricher interface {
	Enrich(ctx context.Context, email *mail.Email) (*enrich.Result, error)
}

// Indexer writes email records into the semantic index.
type Indexer interface {
	Store(ctx context.Context, rec index.Record) error
}

// Outcome reports one email's processing result. Degraded means the email
// was processed but its enrichment carries only defaults; it is neither a
// success nor a failure.
type Outcome struct {
	EmailID  string
	Success  bool
	Degraded bool
	Err      string
	Result   *enrich.Result
}

// BatchResult aggregates a ProcessBatch run.
type BatchResult struct {
	Outcomes []Outcome

	// SucceededCount excludes degraded items.
	SucceededCount int
	DegradedCount  int
	TotalCount     int
}

// Processor runs the enrichment and indexing pipeline.
type Processor struct {
	enricher   Enricher
	indexer    Indexer
	gateway    MetadataGateway
	cleaner    *mail.Cleaner
	chunkSize  int
	chunkPause time.Duration
	logger     *zap.Logger
}

// Config holds Processor tuning knobs.
type Config struct {
	// ChunkSize is the number of emails processed concurrently per chunk.
	ChunkSize int

	// ChunkPause is the fixed pause between chunks.
	ChunkPause time.Duration
}

// NewProcessor creates a Processor. The gateway may be nil, in which case
// no skip-if-enriched lookups or writebacks happen.
func NewProcessor(enricher Enricher, indexer Indexer, gateway MetadataGateway, cleaner *mail.Cleaner, cfg Config, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 5
	}
	return &Processor{
		enricher:   enricher,
		indexer:    indexer,
		gateway:    gateway,
		cleaner:    cleaner,
		chunkSize:  cfg.ChunkSize,
		chunkPause: cfg.ChunkPause,
		logger:     logger,
	}
}

// ProcessEmail runs one email through the selected stages.
func (p *Processor) ProcessEmail(ctx context.Context, email *mail.Email, mode Mode) Outcome {
	ctx, span := tracer.Start(ctx, "Processor.ProcessEmail")
	defer span.End()
	span.SetAttributes(attribute.String("mode", string(mode)))
	if email != nil {
		span.SetAttributes(attribute.String("email_id", email.ID))
	}

	outcome := p.process(ctx, email, mode)

	result := "success"
	switch {
	case outcome.Err != "":
		result = "error"
	case outcome.Degraded:
		result = "degraded"
	}
	EmailsProcessed.WithLabelValues(string(mode), result).Inc()
	span.SetAttributes(
		attribute.Bool("success", outcome.Success),
		attribute.Bool("degraded", outcome.Degraded),
	)
	return outcome
}

func (p *Processor) process(ctx context.Context, email *mail.Email, mode Mode) Outcome {
	if email == nil {
		return Outcome{Err: "nil email"}
	}

	outcome := Outcome{EmailID: email.ID}

	if email.OwnerID == "" {
		outcome.Err = "email has no owner id"
		return outcome
	}

	var result *enrich.Result

	if mode != ModeIndexOnly {
		if p.gateway != nil {
			stored, err := p.gateway.GetEnrichment(ctx, email.OwnerID, email.ID)
			if err != nil {
				p.logger.Warn("gateway lookup failed, enriching anyway",
					zap.String("email_id", email.ID),
					zap.Error(err))
			} else if stored != nil {
				EnrichmentSkips.Inc()
				result = stored
			}
		}

		if result == nil {
			var err error
			result, err = p.enricher.Enrich(ctx, email)
			if err != nil {
				outcome.Err = fmt.Sprintf("enriching: %v", err)
				return outcome
			}
			if p.gateway != nil && !result.Degraded {
				if err := p.gateway.UpsertEnrichment(ctx, email.OwnerID, email.ID, result); err != nil {
					p.logger.Warn("gateway writeback failed",
						zap.String("email_id", email.ID),
						zap.Error(err))
				}
			}
		}
		outcome.Result = result
		outcome.Degraded = result.Degraded
	} else if p.gateway != nil {
		// Index-only still attaches any enrichment already on record.
		if stored, err := p.gateway.GetEnrichment(ctx, email.OwnerID, email.ID); err == nil && stored != nil {
			result = stored
			outcome.Result = result
		}
	}

	if mode != ModeAnalyzeOnly {
		content := p.cleaner.Clean(email)
		if !p.cleaner.Sufficient(content) {
			// Nothing worth embedding. The enrichment outcome stands.
			outcome.Degraded = true
			outcome.Success = false
			return outcome
		}
		rec := index.Record{
			EmailID:    email.ID,
			OwnerID:    email.OwnerID,
			Content:    content,
			Subject:    email.Subject,
			From:       email.From,
			ReceivedAt: email.ReceivedAt,
			Enrichment: result,
		}
		if err := p.indexer.Store(ctx, rec); err != nil {
			outcome.Err = fmt.Sprintf("indexing: %v", err)
			return outcome
		}
	}

	outcome.Success = !outcome.Degraded
	return outcome
}

// ProcessBatch runs emails through the pipeline in fixed-size chunks.
// Outcomes are returned in input order. The error return is reserved for
// context cancellation between chunks.
func (p *Processor) ProcessBatch(ctx context.Context, emails []*mail.Email, mode Mode) (*BatchResult, error) {
	ctx, span := tracer.Start(ctx, "Processor.ProcessBatch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("email_count", len(emails)),
		attribute.String("mode", string(mode)),
	)

	start := time.Now()
	result := &BatchResult{
		Outcomes:   make([]Outcome, len(emails)),
		TotalCount: len(emails),
	}

	for chunkStart := 0; chunkStart < len(emails); chunkStart += p.chunkSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if chunkStart > 0 && p.chunkPause > 0 {
			select {
			case <-time.After(p.chunkPause):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}

		chunkEnd := min(chunkStart+p.chunkSize, len(emails))

		var wg sync.WaitGroup
		for i := chunkStart; i < chunkEnd; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				result.Outcomes[i] = p.ProcessEmail(ctx, emails[i], mode)
			}(i)
		}
		wg.Wait()
	}

	for _, o := range result.Outcomes {
		switch {
		case o.Success:
			result.SucceededCount++
		case o.Degraded && o.Err == "":
			result.DegradedCount++
		}
	}

	BatchDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("succeeded", result.SucceededCount),
		attribute.Int("degraded", result.DegradedCount),
	)
	p.logger.Info("batch complete",
		zap.Int("total", result.TotalCount),
		zap.Int("succeeded", result.SucceededCount),
		zap.Int("degraded", result.DegradedCount),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}
