package vectorstore

import (
	"context"
	"fmt"
)

// IsolationMode defines how owner isolation is enforced in vector stores.
//
// Security: implementations must enforce fail-closed behavior.
type IsolationMode interface {
	// InjectFilter adds owner filtering to search filters.
	// Must fail with ErrMissingOwner if owner context is absent.
	InjectFilter(ctx context.Context, filters map[string]interface{}) (map[string]interface{}, error)

	// InjectMetadata adds owner metadata to documents before storage.
	// Must fail with ErrMissingOwner if owner context is absent.
	InjectMetadata(ctx context.Context, docs []Document) error

	// ValidateOwner checks that owner context is present and valid.
	ValidateOwner(ctx context.Context) error

	// Mode returns the isolation mode name for logging.
	Mode() string
}

// PayloadIsolation enforces owner isolation via metadata filtering.
//
// All documents share one collection; owner_id is stored as document
// metadata, every query is filtered by the owner from context, and a
// missing owner context is an error. Filter injection happens in private
// store methods, so there is no bypass path.
type PayloadIsolation struct{}

// NewPayloadIsolation creates a PayloadIsolation mode.
func NewPayloadIsolation() *PayloadIsolation {
	return &PayloadIsolation{}
}

// InjectFilter merges the owner filter into existing query filters.
// Caller filters naming owner fields are rejected; the context owner is
// authoritative.
func (p *PayloadIsolation) InjectFilter(ctx context.Context, filters map[string]interface{}) (map[string]interface{}, error) {
	owner, err := OwnerFromContext(ctx)
	if err != nil {
		IsolationRejections.Inc()
		return nil, err
	}
	if err := owner.Validate(); err != nil {
		IsolationRejections.Inc()
		return nil, err
	}
	return ApplyOwnerFilters(filters, owner.OwnerFilter())
}

// InjectMetadata stamps owner metadata onto all documents, overwriting any
// caller-supplied owner fields.
func (p *PayloadIsolation) InjectMetadata(ctx context.Context, docs []Document) error {
	owner, err := OwnerFromContext(ctx)
	if err != nil {
		IsolationRejections.Inc()
		return err
	}
	if err := owner.Validate(); err != nil {
		IsolationRejections.Inc()
		return err
	}

	ownerMeta := owner.OwnerMetadata()
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = make(map[string]interface{})
		}
		for k, v := range ownerMeta {
			docs[i].Metadata[k] = v
		}
	}
	return nil
}

// ValidateOwner checks owner context is present and valid.
func (p *PayloadIsolation) ValidateOwner(ctx context.Context) error {
	owner, err := OwnerFromContext(ctx)
	if err != nil {
		IsolationRejections.Inc()
		return err
	}
	if err := owner.Validate(); err != nil {
		IsolationRejections.Inc()
		return err
	}
	return nil
}

// Mode returns "payload".
func (p *PayloadIsolation) Mode() string {
	return "payload"
}

// NoIsolation provides no owner isolation. Testing only.
//
// WARNING: this mode provides no security guarantees.
type NoIsolation struct{}

// NewNoIsolation creates a NoIsolation mode (testing only).
func NewNoIsolation() *NoIsolation {
	return &NoIsolation{}
}

// InjectFilter passes filters through unchanged.
func (n *NoIsolation) InjectFilter(ctx context.Context, filters map[string]interface{}) (map[string]interface{}, error) {
	return filters, nil
}

// InjectMetadata is a no-op.
func (n *NoIsolation) InjectMetadata(ctx context.Context, docs []Document) error {
	return nil
}

// ValidateOwner always succeeds.
func (n *NoIsolation) ValidateOwner(ctx context.Context) error {
	return nil
}

// Mode returns "none".
func (n *NoIsolation) Mode() string {
	return "none"
}

var (
	_ IsolationMode = (*PayloadIsolation)(nil)
	_ IsolationMode = (*NoIsolation)(nil)
)

// IsolationModeFromString creates an IsolationMode from a string name.
func IsolationModeFromString(mode string) (IsolationMode, error) {
	switch mode {
	case "payload", "":
		return NewPayloadIsolation(), nil
	case "none":
		return NewNoIsolation(), nil
	default:
		return nil, fmt.Errorf("unknown isolation mode: %s", mode)
	}
}
