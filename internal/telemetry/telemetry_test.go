package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/mailsense/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	cfg := config.NewDefaultConfig().Telemetry

	tel, err := New(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tel.Degraded() {
		t.Error("disabled telemetry should not be degraded")
	}

	// Disabled instance returns usable no-op tracer and meter.
	tracer := tel.Tracer("test")
	_, span := tracer.Start(context.Background(), "op")
	span.End()

	if tel.LoggerProvider() != nil {
		t.Error("disabled telemetry should have no logger provider")
	}

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNew_Enabled(t *testing.T) {
	cfg := config.NewDefaultConfig().Telemetry
	cfg.Enabled = true

	tel, err := New(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tel.Degraded() {
		t.Fatal("enabled telemetry with valid config should not be degraded")
	}

	// All three providers exist; the logging bridge gets a real provider.
	if tel.LoggerProvider() == nil {
		t.Error("LoggerProvider() = nil, want provider")
	}
	tel.Tracer("test")
	tel.Meter("test")

	// No collector is listening; shutdown flush errors are expected.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = tel.Shutdown(ctx)
}

func TestShutdown_NilSafe(t *testing.T) {
	var tel *Telemetry
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() on nil error = %v", err)
	}
}
