package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/reelforge/api/internal/config"
)

func TestInitTracing_NoneInstallsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), &config.TracingConfig{Exporter: "none"}, "test")
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}

	_, span := StartSpan(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("expected noop span to carry no trace id")
	}
	span.End()
}

func TestInitTracing_UnknownExporter(t *testing.T) {
	if _, err := InitTracing(context.Background(), &config.TracingConfig{Exporter: "zipkin"}, "test"); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestRecordError_PassesErrorThrough(t *testing.T) {
	_, span := StartSpan(context.Background(), "op")
	defer span.End()

	want := errors.New("boom")
	if got := RecordError(span, want); got != want {
		t.Errorf("expected same error back, got %v", got)
	}
	if RecordError(span, nil) != nil {
		t.Error("expected nil for nil error")
	}
}
