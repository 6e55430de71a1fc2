package otel

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

var meterProvider *sdkmetric.MeterProvider

// InitMeter installs the global meter provider. Instruments are pushed to
// the OTLP endpoint every MetricsInterval.
func InitMeter(cfg Config) (metric.MeterProvider, error) {
	providerMu.Lock()
	defer providerMu.Unlock()

	endpoint := cfg.metricsEndpoint()
	if !cfg.MetricsEnabled || endpoint == "" {
		mp := noop.NewMeterProvider()
		otel.SetMeterProvider(mp)
		return mp, nil
	}

	ctx := context.Background()

	exporter, err := newMetricExporter(ctx, endpoint, cfg.Insecure)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(cfg.resourceAttributes()...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(cfg.metricsInterval()),
		)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	meterProvider = mp
	return mp, nil
}

// MeterProvider returns the global meter provider.
func MeterProvider() metric.MeterProvider {
	return otel.GetMeterProvider()
}

func newMetricExporter(ctx context.Context, endpointURL string, insecure bool) (sdkmetric.Exporter, error) {
	if endpoint, ok := strings.CutPrefix(endpointURL, "grpc://"); ok {
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(endpoint)}
		if insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP gRPC metric exporter: %w", err)
		}
		return exporter, nil
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpointURL(endpointURL)}
	if insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP HTTP metric exporter: %w", err)
	}
	return exporter, nil
}
