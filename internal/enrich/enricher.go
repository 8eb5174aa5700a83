package enrich

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mailsense/internal/llm"
	"github.com/fyrsmithlabs/mailsense/internal/mail"
	"github.com/fyrsmithlabs/mailsense/internal/retry"
)

var tracer = otel.Tracer("mailsense.enrich")

// Enricher derives an enrichment Result from an email via the completion
// service.
//
// One comprehensive call requests all fields as a single JSON object. When
// its output cannot be parsed, five narrower per-field calls are issued,
// each independently retried and independently defaultable. Exhaustion
// degrades to defaults; it never fails the caller.
type Enricher struct {
	client      llm.Client
	cleaner     *mail.Cleaner
	policy      retry.Policy
	logger      *zap.Logger
	temperature float64
	maxTokens   int
}

// NewEnricher creates an Enricher. The client must already be constructed;
// credential validation happens there, at startup, not per call.
func NewEnricher(client llm.Client, cleaner *mail.Cleaner, policy retry.Policy, temperature float64, maxTokens int, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		client:      client,
		cleaner:     cleaner,
		policy:      policy,
		logger:      logger,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Enrich analyzes one email. The returned Result is never nil; on total
// provider failure it carries defaults with Degraded set. The error return
// is reserved for context cancellation.
func (e *Enricher) Enrich(ctx context.Context, email *mail.Email) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Enricher.Enrich")
	defer span.End()

	start := time.Now()

	content := e.cleaner.Clean(email)
	if !e.cleaner.Sufficient(content) {
		span.SetAttributes(attribute.Bool("insufficient_content", true))
		res := DefaultResult(e.client.Model())
		res.Elapsed = time.Since(start)
		return res, nil
	}

	res, err := e.comprehensive(ctx, content)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// The call itself failed after retries. Per-field calls would hit
		// the same provider; degrade to defaults immediately.
		e.logger.Warn("comprehensive enrichment call failed, using defaults",
			zap.String("email_id", email.ID),
			zap.Error(err))
		res = DefaultResult(e.client.Model())
	}

	if res == nil {
		// The call succeeded but no strategy could parse the output.
		// Recover what the model can still give us field by field.
		res, err = e.perField(ctx, content, nil)
		if err != nil {
			return nil, err
		}
	}

	res.Model = e.client.Model()
	res.Elapsed = time.Since(start)
	span.SetAttributes(
		attribute.String("category", res.Category),
		attribute.String("priority", res.Priority),
		attribute.Bool("degraded", res.Degraded),
	)
	return res, nil
}

// comprehensive issues the single all-fields call. Returns (nil, nil) when
// the call succeeded but no strategy could parse the output.
func (e *Enricher) comprehensive(ctx context.Context, content string) (*Result, error) {
	raw, err := e.complete(ctx, "enrich", comprehensiveSystemPrompt, comprehensivePrompt(content))
	if err != nil {
		return nil, err
	}

	res, outcome := ParseEnrichment(raw)
	ParseOutcomes.WithLabelValues(outcome.String()).Inc()
	switch outcome {
	case ParseFull:
		return res, nil
	case ParsePartial:
		// Keep what was recovered; fill the gaps field by field.
		return e.perField(ctx, content, res)
	default:
		return nil, nil
	}
}

// perField issues the five narrower calls, skipping fields already present
// in partial. Each call is independently retried and independently
// defaultable; only context cancellation aborts the sequence.
func (e *Enricher) perField(ctx context.Context, content string, partial *Result) (*Result, error) {
	res := partial
	recovered := 0
	if res == nil {
		res = &Result{
			Category:    CategoryUncategorized,
			Priority:    PriorityDefault,
			Summary:     SummaryDefault,
			ActionItems: []string{},
			ContactInfo: map[string]string{},
		}
	} else {
		// A partial result already carries model-derived fields.
		recovered++
	}

	prompt := fieldPrompt(content)

	if res.Category == CategoryUncategorized {
		FieldFallbacks.WithLabelValues("category").Inc()
		if raw, err := e.complete(ctx, "enrich.category", categorySystemPrompt, prompt); err == nil {
			res.Category = NormalizeCategory(raw)
			recovered++
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if res.PriorityReason == "" {
		FieldFallbacks.WithLabelValues("priority").Inc()
		if raw, err := e.complete(ctx, "enrich.priority", prioritySystemPrompt, prompt); err == nil {
			res.Priority, res.PriorityReason = ParsePriorityResponse(raw)
			recovered++
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if res.Summary == SummaryDefault {
		FieldFallbacks.WithLabelValues("summary").Inc()
		if raw, err := e.complete(ctx, "enrich.summary", summarySystemPrompt, prompt); err == nil {
			if s := strings.TrimSpace(raw); s != "" {
				res.Summary = clampSummary(s)
				recovered++
			}
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if len(res.ActionItems) == 0 {
		FieldFallbacks.WithLabelValues("action_items").Inc()
		if raw, err := e.complete(ctx, "enrich.action_items", actionItemsSystemPrompt, prompt); err == nil {
			res.ActionItems = ParseActionItems(raw)
			recovered++
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if len(res.ContactInfo) == 0 {
		FieldFallbacks.WithLabelValues("contact_info").Inc()
		if raw, err := e.complete(ctx, "enrich.contact_info", contactInfoSystemPrompt, prompt); err == nil {
			res.ContactInfo = ParseContactInfo(raw)
			recovered++
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	res.Degraded = recovered == 0
	return res, nil
}

// complete wraps one completion call in the shared retry policy.
func (e *Enricher) complete(ctx context.Context, name, system, prompt string) (string, error) {
	var raw string
	err := e.policy.Do(ctx, name, func(ctx context.Context) error {
		var err error
		raw, err = e.client.Complete(ctx, llm.Request{
			System:      system,
			Prompt:      prompt,
			Temperature: e.temperature,
			MaxTokens:   e.maxTokens,
		})
		return err
	})
	if err != nil && ctx.Err() == nil {
		RetryExhaustions.WithLabelValues(name).Inc()
	}
	return raw, err
}
