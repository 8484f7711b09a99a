package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

func TestInitExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Config{Enabled: true, Writer: &buf}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	t.Cleanup(func() {
		_, _ = Init(context.Background(), Config{}, zerolog.Nop())
	})

	_, span := otel.Tracer("test").Start(context.Background(), "estimate.event")
	span.End()
	ShutdownWithTimeout(shutdown, zerolog.Nop())

	if !strings.Contains(buf.String(), `"Name":"estimate.event"`) {
		t.Fatalf("expected exported span, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "loralocate") {
		t.Fatalf("expected default service name in resource, got %q", buf.String())
	}
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "x")
	if span.SpanContext().IsValid() {
		t.Fatalf("expected noop span")
	}
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown error: %v", err)
	}
}
