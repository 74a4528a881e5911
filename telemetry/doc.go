// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

/*
Package telemetry implements the server side of the APImetrics usage
pipeline: batch ingestion of API call events, idempotent persistence,
and incremental aggregation into per-day statistics buckets.

# Ingestion

Batches arrive as {"calls":[...]} on POST /v1/track/batch. Every call
is validated before anything is persisted; one invalid call rejects the
whole batch. Persistence is idempotent on the caller-supplied call ID,
so a batch re-sent after a transport timeout never double-counts.

# Aggregation

After the raw insert, the batch is folded into daily_stats buckets
keyed by (user, date, provider, model) with a single atomic upsert per
bucket. Average latency is merged call-count-weighted. Aggregation
failures are logged and never roll back the raw insert: raw events are
the source of truth, aggregates are derived and repairable.
*/
package telemetry
