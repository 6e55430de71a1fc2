package tracer

import (
	"context"
	"sync"

	"github.com/astro-web3/teams-gate/pkg/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	defaultTracer trace.Tracer
	initOnce      sync.Once
	errInit       error

	//nolint:gochecknoglobals // fallback used before InitTracer runs, e.g. in tests
	noopTracer = noop.NewTracerProvider().Tracer("noop")
)

func InitTracer(cfg otel.Config) error {
	initOnce.Do(func() {
		t, err := otel.InitTracer(cfg)
		if err != nil {
			errInit = err
			return
		}
		defaultTracer = t
	})

	return errInit
}

func Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if defaultTracer == nil {
		return noopTracer.Start(ctx, spanName, opts...)
	}
	return defaultTracer.Start(ctx, spanName, opts...)
}
