package authz

import (
	"context"

	"github.com/astro-web3/teams-gate/pkg/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/astro-web3/teams-gate/internal/domain/authz"

type gateMetrics struct {
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	lookups        metric.Int64Counter
	lookupFailures metric.Int64Counter
	decisions      metric.Int64Counter
}

func newGateMetrics(mp metric.MeterProvider) *gateMetrics {
	if mp == nil {
		mp = otel.MeterProvider()
	}
	m := mp.Meter(meterName)
	counter := func(name, desc string) metric.Int64Counter {
		c, err := m.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			return noop.Int64Counter{}
		}
		return c
	}

	return &gateMetrics{
		cacheHits:      counter("teamsgate.membership.cache.hits", "Membership cache hits"),
		cacheMisses:    counter("teamsgate.membership.cache.misses", "Membership cache misses"),
		lookups:        counter("teamsgate.directory.lookups", "Directory membership lookups"),
		lookupFailures: counter("teamsgate.directory.failures", "Failed directory membership lookups"),
		decisions:      counter("teamsgate.decisions", "Gate decisions by outcome"),
	}
}

func (m *gateMetrics) decision(ctx context.Context, outcome Outcome) {
	m.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome.String())))
}
