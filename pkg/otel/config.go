package otel

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
)

const defaultMetricsInterval = 30 * time.Second

// Config controls trace and metric export. A disabled signal or an empty
// endpoint installs a no-op provider for that signal.
type Config struct {
	ServiceName        string
	ServiceVersion     string
	EndpointURL        string
	Enabled            bool
	SampleRatio        float64
	Insecure           bool
	ResourceAttributes map[string]string

	MetricsEnabled bool
	// MetricsEndpointURL falls back to EndpointURL when empty.
	MetricsEndpointURL string
	MetricsInterval    time.Duration
}

func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName:        serviceName,
		SampleRatio:        1.0,
		Insecure:           true,
		ResourceAttributes: make(map[string]string),
		MetricsInterval:    defaultMetricsInterval,
	}
}

func (c Config) metricsEndpoint() string {
	if c.MetricsEndpointURL != "" {
		return c.MetricsEndpointURL
	}
	return c.EndpointURL
}

func (c Config) metricsInterval() time.Duration {
	if c.MetricsInterval <= 0 {
		return defaultMetricsInterval
	}
	return c.MetricsInterval
}

func (c Config) resourceAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(c.ResourceAttributes)+2)
	attrs = append(attrs, attribute.String("service.name", c.ServiceName))
	if c.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", c.ServiceVersion))
	}

	for k, v := range c.ResourceAttributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	return attrs
}

func (c Config) sampleRatio() float64 {
	switch {
	case c.SampleRatio < 0:
		return 0
	case c.SampleRatio > 1:
		return 1
	default:
		return c.SampleRatio
	}
}
