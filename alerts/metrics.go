// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package alerts

import "github.com/prometheus/client_golang/prometheus"

var (
	promAlertsTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apimetrics_alerts_triggered_total",
			Help: "Alerts whose metric met their threshold",
		},
		[]string{"type"})

	promNotifyFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apimetrics_notification_failures_total",
			Help: "Channel deliveries that failed",
		},
		[]string{"channel"})

	promSweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "apimetrics_alert_sweep_duration_seconds",
			Help:    "Duration of full alert evaluation sweeps",
			Buckets: prometheus.DefBuckets,
		})
)

func init() {
	prometheus.MustRegister(promAlertsTriggered)
	prometheus.MustRegister(promNotifyFailures)
	prometheus.MustRegister(promSweepDuration)
}
