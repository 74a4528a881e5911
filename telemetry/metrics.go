// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	promEventsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "apimetrics_events_ingested_total",
			Help: "Raw usage events accepted (post-dedup)",
		})

	promEventsDeduped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "apimetrics_events_deduplicated_total",
			Help: "Usage events skipped because their ID was already persisted",
		})

	promBatchesRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "apimetrics_batches_rejected_total",
			Help: "Ingestion batches rejected by schema validation",
		})

	promAggregationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "apimetrics_aggregation_failures_total",
			Help: "Batches whose daily stats merge failed after a successful raw insert",
		})
)

func init() {
	prometheus.MustRegister(promEventsIngested)
	prometheus.MustRegister(promEventsDeduped)
	prometheus.MustRegister(promBatchesRejected)
	prometheus.MustRegister(promAggregationFailures)
}
