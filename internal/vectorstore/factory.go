package vectorstore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mailsense/internal/config"
	"github.com/fyrsmithlabs/mailsense/internal/embeddings"
	"github.com/fyrsmithlabs/mailsense/internal/retry"
)

// NewStore creates a Store based on the configuration.
//
// The VectorConfig.Backend field selects the implementation:
//   - "chromem" (default): embedded ChromemStore, no external service
//   - "qdrant": QdrantStore, requires a running Qdrant server
//
// Stores default to PayloadIsolation for fail-closed owner security; all
// operations require OwnerInfo in the context or return ErrMissingOwner.
// Pass a non-nil isolation to override, e.g. NewNoIsolation() in tests.
func NewStore(cfg config.VectorConfig, pipelineCfg config.PipelineConfig, embedder embeddings.Embedder, logger *zap.Logger, isolation IsolationMode) (Store, error) {
	switch cfg.Backend {
	case "chromem", "":
		return NewChromemStore(ChromemConfig{
			Path:       cfg.Chromem.Path,
			Compress:   cfg.Chromem.Compress,
			Collection: cfg.Collection,
			Isolation:  isolation,
		}, embedder, logger)

	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey.Value(),
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: cfg.Collection,
			VectorSize: uint64(embedder.Dimension()),
			Retry: retry.Policy{
				Attempts: pipelineCfg.RetryAttempts,
				Delay:    pipelineCfg.RetryDelay.Duration(),
			},
			Isolation: isolation,
		}, embedder)

	default:
		return nil, fmt.Errorf("unsupported vector backend: %s (supported: chromem, qdrant)", cfg.Backend)
	}
}
