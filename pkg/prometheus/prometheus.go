// Package prometheus wires Blockframe's OpenTelemetry meter provider to a
// Prometheus exporter, so the counters in pkg/metrics are scrapeable
// alongside the rest of the serve daemon.
package prometheus

import (
	"context"

	"go.opentelemetry.io/otel"

	promclient "github.com/prometheus/client_golang/prometheus"
	prometheus "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/blockframe/blockframe/pkg/telemetry"
)

// SetupPrometheusMetrics configures OpenTelemetry to export metrics in
// Prometheus format only, sharing the resource attributes used for traces
// so scraped series and spans agree on service identity.
func SetupPrometheusMetrics(
	ctx context.Context,
	serviceName, serviceVersion string,
) (promclient.Gatherer, func(context.Context) error, error) {
	res, err := telemetry.NewResource(ctx, serviceName, serviceVersion)
	if err != nil {
		return nil, nil, err
	}

	registry := promclient.NewRegistry()

	prometheusExporter, err := prometheus.New(
		prometheus.WithRegisterer(registry),
	)
	if err != nil {
		return nil, nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(prometheusExporter),
	)

	otel.SetMeterProvider(meterProvider)

	return registry, meterProvider.Shutdown, nil
}
