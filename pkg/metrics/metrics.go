// Package metrics defines the OpenTelemetry instruments Blockframe
// actually emits, exported through pkg/prometheus's meter provider:
// segment cache hits/misses, shard reconstructions, and per-tier commit
// counts.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const otelPackageName = "github.com/blockframe/blockframe/pkg/metrics"

var (
	//nolint:gochecknoglobals
	segcacheHitsTotal metric.Int64Counter
	//nolint:gochecknoglobals
	segcacheMissesTotal metric.Int64Counter
	//nolint:gochecknoglobals
	reconstructionsTotal metric.Int64Counter
	//nolint:gochecknoglobals
	commitsTotal metric.Int64Counter
)

//nolint:gochecknoinits
func init() {
	meter := otel.Meter(otelPackageName)

	var err error

	segcacheHitsTotal, err = meter.Int64Counter(
		"blockframe_segcache_hits_total",
		metric.WithDescription("segment cache lookups that returned a cached value"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		panic(err)
	}

	segcacheMissesTotal, err = meter.Int64Counter(
		"blockframe_segcache_misses_total",
		metric.WithDescription("segment cache lookups that required a fetch from the source"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		panic(err)
	}

	reconstructionsTotal, err = meter.Int64Counter(
		"blockframe_reconstructions_total",
		metric.WithDescription("shard reconstructions performed via erasure recovery, by tier"),
		metric.WithUnit("{reconstruction}"),
	)
	if err != nil {
		panic(err)
	}

	commitsTotal, err = meter.Int64Counter(
		"blockframe_commits_total",
		metric.WithDescription("files committed to the archive, by tier"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		panic(err)
	}
}

// RecordCacheHit increments the segment cache hit counter.
func RecordCacheHit(ctx context.Context) { segcacheHitsTotal.Add(ctx, 1) }

// RecordCacheMiss increments the segment cache miss counter.
func RecordCacheMiss(ctx context.Context) { segcacheMissesTotal.Add(ctx, 1) }

// RecordReconstruction increments the shard reconstruction counter for
// the given tier label ("tier1", "tier2", "tier3").
func RecordReconstruction(ctx context.Context, tier string) {
	reconstructionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
}

// RecordCommit increments the per-tier commit counter.
func RecordCommit(ctx context.Context, tier string) {
	commitsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
}
