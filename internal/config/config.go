// Package config provides configuration loading for mailsense.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the mailsense pipeline.
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	LLM       LLMConfig       `koanf:"llm"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Vector    VectorConfig    `koanf:"vector"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // trace, debug, info, warn, error
	Format string `koanf:"format"` // json or console
	Stdout bool   `koanf:"stdout"`
	OTEL   bool   `koanf:"otel"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	ServiceName    string   `koanf:"service_name"`
	ServiceVersion string   `koanf:"service_version"`
	Insecure       bool     `koanf:"insecure"`
	SamplingRate   float64  `koanf:"sampling_rate"`
	MetricInterval Duration `koanf:"metric_interval"`
}

// LLMConfig holds completion service configuration.
type LLMConfig struct {
	// APIKey authenticates against the completion service.
	// A missing key is a fatal configuration error, not a retryable one.
	APIKey      Secret   `koanf:"api_key"`
	BaseURL     string   `koanf:"base_url"`
	Model       string   `koanf:"model"`
	Temperature float64  `koanf:"temperature"`
	MaxTokens   int      `koanf:"max_tokens"`
	Timeout     Duration `koanf:"timeout"`
}

// EmbeddingConfig holds embedding service configuration.
type EmbeddingConfig struct {
	// Provider selects the embedder: "openai" (HTTP API) or "hash"
	// (deterministic local embedder, offline/test use only).
	Provider   string   `koanf:"provider"`
	APIKey     Secret   `koanf:"api_key"`
	BaseURL    string   `koanf:"base_url"`
	Model      string   `koanf:"model"`
	VectorSize int      `koanf:"vector_size"`
	Timeout    Duration `koanf:"timeout"`
}

// VectorConfig holds vector store configuration.
type VectorConfig struct {
	// Backend selects the store: "qdrant" (external gRPC) or "chromem"
	// (embedded, local mode).
	Backend    string        `koanf:"backend"`
	Qdrant     QdrantConfig  `koanf:"qdrant"`
	Chromem    ChromemConfig `koanf:"chromem"`
	Collection string        `koanf:"collection"`

	// BatchSize is the maximum number of records per upsert call.
	BatchSize int `koanf:"batch_size"`

	// MetadataBudget is the maximum total bytes of metadata stored per record.
	MetadataBudget int `koanf:"metadata_budget"`
}

// QdrantConfig holds Qdrant gRPC client configuration.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	APIKey Secret `koanf:"api_key"`
	UseTLS bool   `koanf:"use_tls"`
}

// ChromemConfig holds embedded chromem-go store configuration.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// PipelineConfig holds enrichment pipeline tuning knobs.
type PipelineConfig struct {
	// RetryAttempts is the total number of attempts per network call.
	RetryAttempts int `koanf:"retry_attempts"`

	// RetryDelay is the fixed pause between attempts. No backoff.
	RetryDelay Duration `koanf:"retry_delay"`

	// ChunkSize is the number of emails processed concurrently per chunk.
	ChunkSize int `koanf:"chunk_size"`

	// ChunkPause is the fixed pause between chunks.
	ChunkPause Duration `koanf:"chunk_pause"`

	// MaxContentLength caps cleaned subject+body length in runes.
	MaxContentLength int `koanf:"max_content_length"`

	// MinContentLength is the threshold below which an email is treated
	// as insufficient for enrichment or indexing.
	MinContentLength int `koanf:"min_content_length"`
}

// NewDefaultConfig returns a Config populated with production defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Stdout: true,
			OTEL:   false,
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			Endpoint:       "localhost:4317",
			ServiceName:    "mailsense",
			ServiceVersion: "0.1.0",
			Insecure:       true,
			SamplingRate:   1.0,
			MetricInterval: Duration(15 * time.Second),
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com",
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
			MaxTokens:   1024,
			Timeout:     Duration(60 * time.Second),
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			BaseURL:    "https://api.openai.com",
			Model:      "text-embedding-3-small",
			VectorSize: 1536,
			Timeout:    Duration(30 * time.Second),
		},
		Vector: VectorConfig{
			Backend: "chromem",
			Qdrant: QdrantConfig{
				Host: "localhost",
				Port: 6334,
			},
			Chromem: ChromemConfig{
				Path: "~/.config/mailsense/vectorstore",
			},
			Collection:     "mailsense_emails",
			BatchSize:      100,
			MetadataBudget: 40 * 1024,
		},
		Pipeline: PipelineConfig{
			RetryAttempts:    3,
			RetryDelay:       Duration(time.Second),
			ChunkSize:        5,
			ChunkPause:       Duration(time.Second),
			MaxContentLength: 8000,
			MinContentLength: 10,
		},
	}
}

// applyDefaults fills zero-valued fields from NewDefaultConfig.
func applyDefaults(cfg *Config) {
	def := NewDefaultConfig()

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
	if !cfg.Logging.Stdout && !cfg.Logging.OTEL {
		cfg.Logging.Stdout = true
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = def.Telemetry.Endpoint
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = def.Telemetry.ServiceName
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = def.Telemetry.ServiceVersion
	}
	if cfg.Telemetry.SamplingRate == 0 {
		cfg.Telemetry.SamplingRate = def.Telemetry.SamplingRate
	}
	if cfg.Telemetry.MetricInterval == 0 {
		cfg.Telemetry.MetricInterval = def.Telemetry.MetricInterval
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = def.LLM.BaseURL
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = def.LLM.Model
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = def.LLM.Temperature
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = def.LLM.MaxTokens
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = def.LLM.Timeout
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = def.Embedding.Provider
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = def.Embedding.BaseURL
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = def.Embedding.Model
	}
	if cfg.Embedding.VectorSize == 0 {
		cfg.Embedding.VectorSize = def.Embedding.VectorSize
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = def.Embedding.Timeout
	}

	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = def.Vector.Backend
	}
	if cfg.Vector.Qdrant.Host == "" {
		cfg.Vector.Qdrant.Host = def.Vector.Qdrant.Host
	}
	if cfg.Vector.Qdrant.Port == 0 {
		cfg.Vector.Qdrant.Port = def.Vector.Qdrant.Port
	}
	if cfg.Vector.Chromem.Path == "" {
		cfg.Vector.Chromem.Path = def.Vector.Chromem.Path
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = def.Vector.Collection
	}
	if cfg.Vector.BatchSize == 0 {
		cfg.Vector.BatchSize = def.Vector.BatchSize
	}
	if cfg.Vector.MetadataBudget == 0 {
		cfg.Vector.MetadataBudget = def.Vector.MetadataBudget
	}

	if cfg.Pipeline.RetryAttempts == 0 {
		cfg.Pipeline.RetryAttempts = def.Pipeline.RetryAttempts
	}
	if cfg.Pipeline.RetryDelay == 0 {
		cfg.Pipeline.RetryDelay = def.Pipeline.RetryDelay
	}
	if cfg.Pipeline.ChunkSize == 0 {
		cfg.Pipeline.ChunkSize = def.Pipeline.ChunkSize
	}
	if cfg.Pipeline.ChunkPause == 0 {
		cfg.Pipeline.ChunkPause = def.Pipeline.ChunkPause
	}
	if cfg.Pipeline.MaxContentLength == 0 {
		cfg.Pipeline.MaxContentLength = def.Pipeline.MaxContentLength
	}
	if cfg.Pipeline.MinContentLength == 0 {
		cfg.Pipeline.MinContentLength = def.Pipeline.MinContentLength
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		return fmt.Errorf("telemetry.sampling_rate must be in [0,1], got %f", c.Telemetry.SamplingRate)
	}

	switch c.Vector.Backend {
	case "qdrant", "chromem":
	default:
		return fmt.Errorf("vector.backend must be qdrant or chromem, got %q", c.Vector.Backend)
	}
	if c.Vector.Backend == "qdrant" {
		if c.Vector.Qdrant.Port <= 0 || c.Vector.Qdrant.Port > 65535 {
			return fmt.Errorf("vector.qdrant.port invalid: %d", c.Vector.Qdrant.Port)
		}
	}
	if c.Vector.BatchSize <= 0 {
		return fmt.Errorf("vector.batch_size must be positive, got %d", c.Vector.BatchSize)
	}

	switch c.Embedding.Provider {
	case "openai", "hash":
	default:
		return fmt.Errorf("embedding.provider must be openai or hash, got %q", c.Embedding.Provider)
	}
	if c.Embedding.VectorSize <= 0 {
		return fmt.Errorf("embedding.vector_size must be positive, got %d", c.Embedding.VectorSize)
	}

	if c.Pipeline.RetryAttempts <= 0 {
		return fmt.Errorf("pipeline.retry_attempts must be positive, got %d", c.Pipeline.RetryAttempts)
	}
	if c.Pipeline.ChunkSize <= 0 {
		return fmt.Errorf("pipeline.chunk_size must be positive, got %d", c.Pipeline.ChunkSize)
	}
	if c.Pipeline.MinContentLength < 0 {
		return fmt.Errorf("pipeline.min_content_length cannot be negative")
	}
	if c.Pipeline.MaxContentLength <= c.Pipeline.MinContentLength {
		return fmt.Errorf("pipeline.max_content_length must exceed min_content_length")
	}
	return nil
}
