package authz_test

import (
	"context"
	"errors"
	"testing"

	"github.com/astro-web3/teams-gate/internal/domain/authz"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newManualMeterProvider() (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), reader
}

// counterValues sums every data point of each int64 counter by name, and
// also by "name/outcome" when the outcome attribute is present.
func counterValues(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	values := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				values[m.Name] += dp.Value
				if outcome, ok := dp.Attributes.Value("outcome"); ok {
					values[m.Name+"/"+outcome.AsString()] += dp.Value
				}
			}
		}
	}
	return values
}

func TestMembershipCache_RecordsCounters(t *testing.T) {
	mp, reader := newManualMeterProvider()
	clock := newFakeClock()
	fail := false
	dir := &mockDirectory{
		isMemberFunc: func(context.Context, string, string) (bool, error) {
			if fail {
				return false, errors.New("connection reset")
			}
			return true, nil
		},
	}
	c, _ := newTestCache(t, dir, clock, authz.WithMeterProvider(mp))
	ctx := context.Background()

	for range 3 {
		if _, err := c.GetOrCompute(ctx, "team-1", "user-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	fail = true
	if _, err := c.GetOrCompute(ctx, "team-1", "user-2"); err == nil {
		t.Fatal("expected lookup failure")
	}

	got := counterValues(t, reader)
	want := map[string]int64{
		"teamsgate.membership.cache.hits":   2,
		"teamsgate.membership.cache.misses": 2,
		"teamsgate.directory.lookups":       2,
		"teamsgate.directory.failures":      1,
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s = %d, want %d", name, got[name], v)
		}
	}
}

func TestService_RecordsDecisionsByOutcome(t *testing.T) {
	mp, reader := newManualMeterProvider()
	memberships := &mockMemberships{
		getOrComputeFunc: func(_ context.Context, teamID, _ string) (bool, error) {
			return teamID == "T1", nil
		},
	}
	svc := authz.NewService(memberships, authz.WithServiceMeterProvider(mp))
	ctx := context.Background()

	svc.AuthorizeMember(ctx, authz.AuthorizationRequest{TeamID: "T1", UserID: "U1"})
	svc.AuthorizeMember(ctx, authz.AuthorizationRequest{TeamID: "T1", UserID: "U2"})
	svc.AuthorizeMember(ctx, authz.AuthorizationRequest{TeamID: "T2", UserID: "U1"})
	svc.AuthorizeMember(ctx, authz.AuthorizationRequest{UserID: "U1"})

	got := counterValues(t, reader)
	want := map[string]int64{
		"teamsgate.decisions":                  4,
		"teamsgate.decisions/granted":          2,
		"teamsgate.decisions/denied":           1,
		"teamsgate.decisions/resolution_error": 1,
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s = %d, want %d", name, got[name], v)
		}
	}
}
