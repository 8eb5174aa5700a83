package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mailsense/internal/embeddings"
)

var chromemTracer = otel.Tracer("mailsense.vectorstore.chromem")

// ChromemConfig holds configuration for the embedded chromem-go store.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty means in-memory
	// only, which is what tests want.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Collection is the collection for all email records.
	Collection string

	// Isolation is the owner isolation mode. Defaults to PayloadIsolation.
	Isolation IsolationMode
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "mailsense_emails"
	}
	if c.Isolation == nil {
		c.Isolation = NewPayloadIsolation()
	}
}

// ChromemStore implements Store using chromem-go, an embeddable pure-Go
// vector database. No external service is needed; persistence is optional
// gob files on disk. Used for local mode and tests.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	config     ChromemConfig
	logger     *zap.Logger
	isolation  IsolationMode
}

// NewChromemStore creates a ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, embedder embeddings.Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	if err := ValidateCollectionName(config.Collection); err != nil {
		return nil, err
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		expanded, err := expandPath(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(expanded, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", expanded, err)
		}
		db, err = chromem.NewPersistentDB(expanded, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
	collection, err := db.GetOrCreateCollection(config.Collection, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", config.Collection, err)
	}

	store := &ChromemStore{
		db:         db,
		collection: collection,
		embedder:   embedder,
		config:     config,
		logger:     logger,
		isolation:  config.Isolation,
	}

	logger.Info("chromem store initialized",
		zap.String("path", config.Path),
		zap.String("collection", config.Collection),
		zap.String("isolation", store.isolation.Mode()),
	)
	return store, nil
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// AddDocuments embeds and stores documents. Owner metadata is injected per
// the isolation mode.
func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.AddDocuments")
	defer span.End()

	span.SetAttributes(attribute.Int("document_count", len(docs)))

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	if err := s.isolation.InjectMetadata(ctx, docs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("injecting owner metadata: %w", err)
	}

	texts := make([]string, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
		ids[i] = doc.ID
		if ids[i] == "" {
			return nil, fmt.Errorf("document at index %d has no ID", i)
		}
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        ids[i],
			Content:   doc.Content,
			Metadata:  metadataToString(doc.Metadata),
			Embedding: vectors[i],
		}
	}

	// Concurrency of 1 since embeddings are already computed.
	if err := s.collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	span.SetAttributes(attribute.Int("documents_added", len(ids)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("added documents to chromem",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(docs)))
	return ids, nil
}

// Search performs similarity search with a mandatory owner filter.
func (s *ChromemStore) Search(ctx context.Context, query string, k int, filters map[string]interface{}) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("k", k),
	)

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	filters, err := s.isolation.InjectFilter(ctx, filters)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("injecting owner filter: %w", err)
	}

	// chromem requires nResults <= document count.
	docCount := s.collection.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if k > docCount {
		k = docCount
	}

	results, err := s.collection.Query(ctx, query, k, metadataToString(filters), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: metadataFromString(r.Metadata),
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(searchResults)))
	span.SetStatus(codes.Ok, "success")
	return searchResults, nil
}

// Fetch retrieves stored documents by ID. Unknown IDs are skipped.
func (s *ChromemStore) Fetch(ctx context.Context, ids []string) ([]Document, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Fetch")
	defer span.End()

	span.SetAttributes(attribute.Int("id_count", len(ids)))

	docs := make([]Document, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := s.collection.GetByID(ctx, id)
		if err != nil {
			// chromem returns an error for unknown IDs; treat as absent.
			continue
		}
		docs = append(docs, Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: metadataFromString(doc.Metadata),
		})
	}

	span.SetAttributes(attribute.Int("fetched_count", len(docs)))
	span.SetStatus(codes.Ok, "success")
	return docs, nil
}

// DeleteDocuments deletes documents by their IDs.
func (s *ChromemStore) DeleteDocuments(ctx context.Context, ids []string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteDocuments")
	defer span.End()

	span.SetAttributes(attribute.Int("id_count", len(ids)))

	if len(ids) == 0 {
		return nil
	}

	var failures []string
	for _, id := range ids {
		if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
			span.RecordError(err)
			s.logger.Error("failed to delete document",
				zap.String("id", id),
				zap.Error(err))
			failures = append(failures, id)
		}
	}
	if len(failures) > 0 {
		span.SetStatus(codes.Error, "partial deletion failure")
		return fmt.Errorf("failed to delete %d of %d documents: %v", len(failures), len(ids), failures)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Close is a no-op; chromem persists on write.
func (s *ChromemStore) Close() error {
	return nil
}

// metadataToString converts metadata to chromem's string map format.
func metadataToString(metadata map[string]interface{}) map[string]string {
	if metadata == nil {
		return nil
	}
	result := make(map[string]string, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case string:
			result[k] = val
		default:
			result[k] = fmt.Sprintf("%v", val)
		}
	}
	return result
}

// metadataFromString converts chromem's string metadata back to the
// generic map form.
func metadataFromString(metadata map[string]string) map[string]interface{} {
	if metadata == nil {
		return nil
	}
	result := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		result[k] = v
	}
	return result
}

var _ Store = (*ChromemStore)(nil)
