package logging

import (
	"testing"

	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/fyrsmithlabs/mailsense/internal/config"
)

func TestNew(t *testing.T) {
	t.Run("json stdout logger", func(t *testing.T) {
		logger, err := New(config.LoggingConfig{Level: "info", Format: "json", Stdout: true}, nil)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		logger.Info("hello")
	})

	t.Run("console logger", func(t *testing.T) {
		logger, err := New(config.LoggingConfig{Level: "debug", Format: "console", Stdout: true}, nil)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		logger.Debug("hello")
	})

	t.Run("rejects invalid level", func(t *testing.T) {
		if _, err := New(config.LoggingConfig{Level: "loud", Format: "json", Stdout: true}, nil); err == nil {
			t.Fatal("New() expected error for invalid level")
		}
	})

	t.Run("otel core as the only output", func(t *testing.T) {
		provider := sdklog.NewLoggerProvider()
		logger, err := New(config.LoggingConfig{Level: "info", Format: "json", OTEL: true}, provider)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		logger.Info("hello")
	})

	t.Run("otel output without a provider is rejected", func(t *testing.T) {
		if _, err := New(config.LoggingConfig{Level: "info", Format: "json", OTEL: true}, nil); err == nil {
			t.Fatal("New() expected error when the OTEL core has no provider")
		}
	})

	t.Run("rejects no outputs", func(t *testing.T) {
		if _, err := New(config.LoggingConfig{Level: "info", Format: "json"}, nil); err == nil {
			t.Fatal("New() expected error with no outputs")
		}
	})
}
