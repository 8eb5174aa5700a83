package pipeline

import (
	"context"
	"sync"

	"github.com/fyrsmithlabs/mailsense/internal/enrich"
)

// MetadataGateway is the system of record for enrichment results. The
// processor consults it before spending LLM calls and writes back results
// worth keeping.
//
// GetEnrichment returns (nil, nil) when no result is stored.
type MetadataGateway interface {
	GetEnrichment(ctx context.Context, ownerID, emailID string) (*enrich.Result, error)
	UpsertEnrichment(ctx context.Context, ownerID, emailID string, result *enrich.Result) error
}

// MemoryGateway is an in-process MetadataGateway keyed by owner and email
// id. It backs local mode and tests.
type MemoryGateway struct {
	mu      sync.RWMutex
	results map[string]*enrich.Result
}

// NewMemoryGateway creates an empty MemoryGateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{results: make(map[string]*enrich.Result)}
}

func gatewayKey(ownerID, emailID string) string {
	return ownerID + "\x00" + emailID
}

func (g *MemoryGateway) GetEnrichment(ctx context.Context, ownerID, emailID string) (*enrich.Result, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	res, ok := g.results[gatewayKey(ownerID, emailID)]
	if !ok {
		return nil, nil
	}
	copied := *res
	return &copied, nil
}

func (g *MemoryGateway) UpsertEnrichment(ctx context.Context, ownerID, emailID string, result *enrich.Result) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	copied := *result
	g.results[gatewayKey(ownerID, emailID)] = &copied
	return nil
}

var _ MetadataGateway = (*MemoryGateway)(nil)
