// Package vectorstore provides owner-isolated vector storage for email
// records.
//
// Two backends implement the Store interface: QdrantStore over the native
// gRPC client, and ChromemStore over the embedded chromem-go database.
// Both enforce owner isolation through an IsolationMode; the default
// PayloadIsolation fails closed when no owner is present in the context.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// collectionNamePattern validates collection names: lowercase letters,
// numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName rejects names with uppercase, special characters,
// path traversal, or spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Store is the interface for owner-isolated vector storage.
//
// All implementations enforce the configured IsolationMode: with
// PayloadIsolation every document is stamped with the owner from context
// on write, and every search carries a mandatory owner filter. A missing
// owner in the context returns ErrMissingOwner, never unscoped results.
//
// Callers provide owner context:
//
//	ctx = vectorstore.ContextWithOwner(ctx, &vectorstore.OwnerInfo{OwnerID: "user-123"})
//	results, err := store.Search(ctx, query, 10, nil)
type Store interface {
	// AddDocuments embeds and stores documents, returning their IDs.
	// Owner metadata is injected per the isolation mode.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Search performs similarity search, returning up to k results ordered
	// by similarity score (highest first). Filters match document metadata;
	// the owner filter is always injected per the isolation mode and caller
	// filters may not name owner fields.
	Search(ctx context.Context, query string, k int, filters map[string]interface{}) ([]SearchResult, error)

	// Fetch retrieves stored documents by ID. Unknown IDs are skipped, not
	// errors. No owner filtering is applied; callers that must enforce
	// ownership check the returned metadata.
	Fetch(ctx context.Context, ids []string) ([]Document, error)

	// DeleteDocuments deletes documents by their IDs.
	DeleteDocuments(ctx context.Context, ids []string) error

	// Close closes the store connection and releases resources.
	Close() error
}
