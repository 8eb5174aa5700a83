package vectorstore

import (
	"context"
	"errors"
)

// Owner isolation errors. The model is fail closed: a missing owner is an
// error, never an unscoped query.
var (
	// ErrMissingOwner is returned when owner info is missing from context.
	ErrMissingOwner = errors.New("owner info missing from context")

	// ErrInvalidOwner is returned when the owner identifier is invalid.
	ErrInvalidOwner = errors.New("invalid owner identifier")
)

// ownerContextKey is the context key for OwnerInfo.
type ownerContextKey struct{}

// OwnerInfo holds the owner scope for filtering and isolation.
//
// Every stored email belongs to exactly one owner (the mailbox user). All
// fields are validated before use in queries.
type OwnerInfo struct {
	// OwnerID is the mailbox owner identifier (required).
	OwnerID string
}

// Validate checks that required fields are present.
func (o *OwnerInfo) Validate() error {
	if o.OwnerID == "" {
		return ErrInvalidOwner
	}
	return nil
}

// ContextWithOwner adds OwnerInfo to a context.
func ContextWithOwner(ctx context.Context, owner *OwnerInfo) context.Context {
	return context.WithValue(ctx, ownerContextKey{}, owner)
}

// OwnerFromContext extracts OwnerInfo from a context.
// Returns ErrMissingOwner if not present.
func OwnerFromContext(ctx context.Context) (*OwnerInfo, error) {
	val := ctx.Value(ownerContextKey{})
	if val == nil {
		return nil, ErrMissingOwner
	}
	owner, ok := val.(*OwnerInfo)
	if !ok || owner == nil {
		return nil, ErrMissingOwner
	}
	return owner, nil
}

// OwnerMetadata returns owner info as a metadata map for document storage.
func (o *OwnerInfo) OwnerMetadata() map[string]interface{} {
	return map[string]interface{}{
		"owner_id": o.OwnerID,
	}
}

// OwnerFilter returns filter conditions matching this owner's scope.
func (o *OwnerInfo) OwnerFilter() map[string]interface{} {
	return map[string]interface{}{
		"owner_id": o.OwnerID,
	}
}
