// Package telemetry provides a thin tracing layer over OpenTelemetry.
// Without an SDK installed the global provider is a no-op, so
// instrumentation costs nothing unless an exporter is wired in.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vinayprograms/pilot"

// Tracer hands out spans for engine operations.
type Tracer struct {
	tracer trace.Tracer
	debug  bool
}

var (
	global *Tracer
	mu     sync.Mutex
)

// GetTracer returns the process-wide tracer, creating a default one on
// first use.
func GetTracer() *Tracer {
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global = &Tracer{tracer: otel.Tracer(tracerName)}
	}
	return global
}

// SetDebug marks the tracer as debug, allowing spans to carry verbose
// payload attributes (command output and the like).
func SetDebug(debug bool) {
	t := GetTracer()
	mu.Lock()
	defer mu.Unlock()
	t.debug = debug
}

// StartSpan starts a named span under ctx.
func (t *Tracer) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name)
}

// Debug reports whether verbose span attributes are enabled.
func (t *Tracer) Debug() bool {
	mu.Lock()
	defer mu.Unlock()
	return t.debug
}
