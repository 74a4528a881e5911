// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package telemetry

import "context"

// Repository defines the persistence contract for raw calls and daily
// stats buckets
type Repository interface {
	// InsertCalls bulk-inserts raw calls, silently skipping duplicate
	// IDs, and returns the IDs of the rows actually inserted. The
	// returned set is what may be folded into aggregates: duplicates
	// were already counted by an earlier batch.
	InsertCalls(ctx context.Context, calls []APICall) ([]string, error)

	// UpsertDailyStat atomically merges a partial stat into the
	// persisted bucket for its key
	UpsertDailyStat(ctx context.Context, stat *DailyStat) error

	// GetDailyStats returns a user's buckets for an inclusive date range
	GetDailyStats(ctx context.Context, userID, fromDate, toDate string) ([]DailyStat, error)

	// ListCalls returns a user's raw calls, newest first
	ListCalls(ctx context.Context, userID string, opts CallQueryOptions) ([]APICall, error)

	// Ping verifies store connectivity
	Ping(ctx context.Context) error
}
