// Package index maintains the semantic email index on top of the vector
// store.
//
// The index owns the ownership contract: every write stamps the record's
// owner, every query is scoped to one owner, and deletion verifies stored
// ownership before touching anything. Requests that would fail these
// checks are rejected before any network traffic.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mailsense/internal/enrich"
	"github.com/fyrsmithlabs/mailsense/internal/vectorstore"
)

var tracer = otel.Tracer("mailsense.index")

var (
	// ErrMissingOwnerID indicates a record or query without an owner.
	ErrMissingOwnerID = errors.New("owner id required")

	// ErrContentTooShort indicates content below the indexable minimum.
	ErrContentTooShort = errors.New("content too short to index")
)

// Record is one email prepared for indexing. Content is the cleaned text
// that gets embedded; enrichment metadata rides along as payload.
type Record struct {
	EmailID    string
	OwnerID    string
	Content    string
	Subject    string
	From       string
	ReceivedAt time.Time
	Enrichment *enrich.Result
}

// ScoredMatch is one query hit.
type ScoredMatch struct {
	EmailID  string
	Score    float32
	Content  string
	Metadata map[string]interface{}
}

// BatchOutcome reports a StoreBatch run. A failed chunk marks its records
// failed and the batch moves on; one bad chunk never voids the rest.
type BatchOutcome struct {
	StoredCount int
	Failed      []FailedRecord
}

// FailedRecord identifies one record that could not be stored and why.
type FailedRecord struct {
	EmailID string
	Err     string
}

// EmailIndex stores, queries, and deletes email records with owner
// enforcement layered over the vector store.
type EmailIndex struct {
	store          vectorstore.Store
	logger         *zap.Logger
	batchSize      int
	minContent     int
	metadataBudget int
}

// Config holds EmailIndex tuning knobs.
type Config struct {
	// BatchSize is the maximum records per upsert call.
	BatchSize int

	// MinContentLength rejects records whose content is shorter, pre-network.
	MinContentLength int

	// MetadataBudget bounds stored metadata bytes per record.
	MetadataBudget int
}

// New creates an EmailIndex over the given store.
func New(store vectorstore.Store, cfg Config, logger *zap.Logger) *EmailIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &EmailIndex{
		store:          store,
		logger:         logger,
		batchSize:      cfg.BatchSize,
		minContent:     cfg.MinContentLength,
		metadataBudget: cfg.MetadataBudget,
	}
}

// validate applies the pre-network checks shared by Store and StoreBatch.
func (x *EmailIndex) validate(rec Record) error {
	if rec.OwnerID == "" {
		return ErrMissingOwnerID
	}
	if rec.EmailID == "" {
		return errors.New("email id required")
	}
	if len(strings.TrimSpace(rec.Content)) < x.minContent {
		return ErrContentTooShort
	}
	return nil
}

// document converts a record into its vector store form. Owner metadata is
// left to the isolation layer; the rest of the payload is budget-bounded.
func (x *EmailIndex) document(rec Record) vectorstore.Document {
	meta := map[string]interface{}{
		"email_id": rec.EmailID,
	}
	if rec.Subject != "" {
		meta["subject"] = rec.Subject
	}
	if rec.From != "" {
		meta["from"] = rec.From
	}
	if !rec.ReceivedAt.IsZero() {
		meta["received_at"] = rec.ReceivedAt.UTC().Format(time.RFC3339)
	}
	if e := rec.Enrichment; e != nil {
		meta["category"] = e.Category
		meta["priority"] = e.Priority
		if e.PriorityReason != "" {
			meta["priority_reason"] = e.PriorityReason
		}
		meta["summary"] = e.Summary
		if len(e.ActionItems) > 0 {
			meta["action_items"] = strings.Join(e.ActionItems, "; ")
		}
		if len(e.ContactInfo) > 0 {
			pairs := make([]string, 0, len(e.ContactInfo))
			for k, v := range e.ContactInfo {
				pairs = append(pairs, k+": "+v)
			}
			meta["contact_info"] = strings.Join(pairs, "; ")
		}
	}
	return vectorstore.Document{
		ID:       rec.EmailID,
		Content:  rec.Content,
		Metadata: vectorstore.BoundMetadata(meta, x.metadataBudget),
	}
}

// Store indexes one record. Validation failures return before any network
// call is made.
func (x *EmailIndex) Store(ctx context.Context, rec Record) error {
	ctx, span := tracer.Start(ctx, "EmailIndex.Store")
	defer span.End()
	span.SetAttributes(attribute.String("email_id", rec.EmailID))

	if err := x.validate(rec); err != nil {
		span.RecordError(err)
		return err
	}

	start := time.Now()
	ctx = vectorstore.ContextWithOwner(ctx, &vectorstore.OwnerInfo{OwnerID: rec.OwnerID})
	_, err := x.store.AddDocuments(ctx, []vectorstore.Document{x.document(rec)})
	vectorstore.RecordOperation("index.store", time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("storing email %s: %w", rec.EmailID, err)
	}
	vectorstore.DocumentsStored.Inc()
	return nil
}

// StoreBatch indexes records in fixed-size chunks. Records that fail
// validation are reported without being sent. A chunk that fails at the
// store marks only its own records failed; later chunks still run.
func (x *EmailIndex) StoreBatch(ctx context.Context, recs []Record) (*BatchOutcome, error) {
	ctx, span := tracer.Start(ctx, "EmailIndex.StoreBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("record_count", len(recs)))

	outcome := &BatchOutcome{}

	valid := make([]Record, 0, len(recs))
	for _, rec := range recs {
		if err := x.validate(rec); err != nil {
			outcome.Failed = append(outcome.Failed, FailedRecord{EmailID: rec.EmailID, Err: err.Error()})
			continue
		}
		valid = append(valid, rec)
	}

	for start := 0; start < len(valid); start += x.batchSize {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		end := min(start+x.batchSize, len(valid))
		chunk := valid[start:end]

		for owner, group := range groupByOwner(chunk) {
			opStart := time.Now()
			ownerCtx := vectorstore.ContextWithOwner(ctx, &vectorstore.OwnerInfo{OwnerID: owner})
			docs := make([]vectorstore.Document, len(group))
			for i, rec := range group {
				docs[i] = x.document(rec)
			}
			_, err := x.store.AddDocuments(ownerCtx, docs)
			vectorstore.RecordOperation("index.store_batch", time.Since(opStart), err)
			if err != nil {
				x.logger.Warn("batch chunk failed, continuing with remaining chunks",
					zap.Int("chunk_start", start),
					zap.Int("chunk_size", len(group)),
					zap.Error(err))
				for _, rec := range group {
					outcome.Failed = append(outcome.Failed, FailedRecord{EmailID: rec.EmailID, Err: err.Error()})
				}
				continue
			}
			outcome.StoredCount += len(group)
			vectorstore.DocumentsStored.Add(float64(len(group)))
		}
	}

	span.SetAttributes(
		attribute.Int("stored_count", outcome.StoredCount),
		attribute.Int("failed_count", len(outcome.Failed)),
	)
	return outcome, nil
}

// groupByOwner splits a chunk into per-owner groups, preserving order
// within each group.
func groupByOwner(recs []Record) map[string][]Record {
	groups := make(map[string][]Record)
	for _, rec := range recs {
		groups[rec.OwnerID] = append(groups[rec.OwnerID], rec)
	}
	return groups
}

// Query searches the owner's emails for text similarity.
func (x *EmailIndex) Query(ctx context.Context, text, ownerID string, topK int) ([]ScoredMatch, error) {
	ctx, span := tracer.Start(ctx, "EmailIndex.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("top_k", topK))

	if ownerID == "" {
		return nil, ErrMissingOwnerID
	}
	if topK <= 0 {
		topK = 10
	}

	start := time.Now()
	ctx = vectorstore.ContextWithOwner(ctx, &vectorstore.OwnerInfo{OwnerID: ownerID})
	results, err := x.store.Search(ctx, text, topK, nil)
	vectorstore.RecordOperation("index.query", time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("querying index: %w", err)
	}

	matches := make([]ScoredMatch, len(results))
	for i, r := range results {
		emailID := r.ID
		if id, ok := r.Metadata["email_id"].(string); ok && id != "" {
			emailID = id
		}
		matches[i] = ScoredMatch{
			EmailID:  emailID,
			Score:    r.Score,
			Content:  r.Content,
			Metadata: r.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("match_count", len(matches)))
	return matches, nil
}

// Delete removes the owner's emails from the index and returns how many
// were deleted. IDs that do not exist, or whose stored owner differs from
// ownerID, are skipped silently and not counted.
func (x *EmailIndex) Delete(ctx context.Context, ids []string, ownerID string) (int, error) {
	ctx, span := tracer.Start(ctx, "EmailIndex.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int("id_count", len(ids)))

	if ownerID == "" {
		return 0, ErrMissingOwnerID
	}
	if len(ids) == 0 {
		return 0, nil
	}

	start := time.Now()
	ctx = vectorstore.ContextWithOwner(ctx, &vectorstore.OwnerInfo{OwnerID: ownerID})

	// Fetch first: only ids whose stored owner matches are eligible.
	docs, err := x.store.Fetch(ctx, ids)
	if err != nil {
		vectorstore.RecordOperation("index.delete", time.Since(start), err)
		span.RecordError(err)
		return 0, fmt.Errorf("fetching documents for deletion: %w", err)
	}

	owned := make([]string, 0, len(docs))
	for _, doc := range docs {
		storedOwner, _ := doc.Metadata["owner_id"].(string)
		if storedOwner != ownerID {
			x.logger.Warn("skipping delete of document with mismatched owner",
				zap.String("id", doc.ID))
			continue
		}
		owned = append(owned, doc.ID)
	}
	if len(owned) == 0 {
		vectorstore.RecordOperation("index.delete", time.Since(start), nil)
		return 0, nil
	}

	err = x.store.DeleteDocuments(ctx, owned)
	vectorstore.RecordOperation("index.delete", time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("deleting documents: %w", err)
	}

	span.SetAttributes(attribute.Int("deleted_count", len(owned)))
	return len(owned), nil
}
