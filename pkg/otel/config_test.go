package otel

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
)

func TestConfig_ResourceAttributesCarryVersion(t *testing.T) {
	cfg := DefaultConfig("teams-gate")
	cfg.ServiceVersion = "1.4.2"

	found := false
	for _, kv := range cfg.resourceAttributes() {
		if string(kv.Key) == "service.version" && kv.Value.AsString() == "1.4.2" {
			found = true
		}
	}
	if !found {
		t.Error("expected service.version resource attribute")
	}
}

func TestConfig_MetricsEndpointFallsBackToTracing(t *testing.T) {
	cfg := DefaultConfig("teams-gate")
	cfg.EndpointURL = "grpc://collector:4317"

	if got := cfg.metricsEndpoint(); got != "grpc://collector:4317" {
		t.Errorf("expected tracing endpoint, got %q", got)
	}

	cfg.MetricsEndpointURL = "http://metrics:4318/v1/metrics"
	if got := cfg.metricsEndpoint(); got != "http://metrics:4318/v1/metrics" {
		t.Errorf("expected metrics endpoint, got %q", got)
	}

	cfg.MetricsInterval = 0
	if got := cfg.metricsInterval(); got != defaultMetricsInterval {
		t.Errorf("expected default interval, got %s", got)
	}
	cfg.MetricsInterval = 5 * time.Second
	if got := cfg.metricsInterval(); got != 5*time.Second {
		t.Errorf("expected 5s interval, got %s", got)
	}
}

func TestInitMeter_DisabledInstallsNoop(t *testing.T) {
	cfg := DefaultConfig("teams-gate")
	cfg.EndpointURL = "grpc://collector:4317"

	mp, err := InitMeter(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := mp.(noop.MeterProvider); !ok {
		t.Errorf("expected noop provider, got %T", mp)
	}
	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}
