// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"fmt"

	"apimetrics/platform/shared/logger"
)

// Aggregator folds batches of raw calls into daily_stats buckets
// without ever re-scanning raw events
type Aggregator struct {
	repo   Repository
	logger *logger.Logger
}

// NewAggregator creates a new aggregator
func NewAggregator(repo Repository) *Aggregator {
	return &Aggregator{
		repo:   repo,
		logger: logger.New("aggregator"),
	}
}

type bucketKey struct {
	date     string
	provider string
	model    string
}

// partialStat accumulates one batch's contribution to a bucket.
// Latencies are summed as int64 and divided once, so the partial
// average fed into the merge carries no chained-average drift.
type partialStat struct {
	totalCalls      int64
	successfulCalls int64
	failedCalls     int64
	totalCost       float64
	inputTokens     int64
	outputTokens    int64
	latencySum      int64
}

// Fold groups a user's batch by (date, provider, model) and merges each
// group into its persisted bucket via an atomic upsert. Buckets that
// fail to merge are logged and skipped; the returned error reports how
// many merges failed so the caller can surface the degradation.
func (a *Aggregator) Fold(ctx context.Context, userID string, calls []APICall) error {
	if len(calls) == 0 {
		return nil
	}

	groups := make(map[bucketKey]*partialStat)
	for _, call := range calls {
		key := bucketKey{date: call.Date(), provider: call.Provider, model: call.Model}
		p, ok := groups[key]
		if !ok {
			p = &partialStat{}
			groups[key] = p
		}

		p.totalCalls++
		if call.Status == StatusSuccess {
			p.successfulCalls++
		} else {
			p.failedCalls++
		}
		p.totalCost += call.Cost
		p.inputTokens += int64(call.InputTokens)
		p.outputTokens += int64(call.OutputTokens)
		p.latencySum += call.Latency
	}

	var failed int
	for key, p := range groups {
		stat := &DailyStat{
			UserID:            userID,
			Date:              key.date,
			Provider:          key.provider,
			Model:             key.model,
			TotalCalls:        p.totalCalls,
			SuccessfulCalls:   p.successfulCalls,
			FailedCalls:       p.failedCalls,
			TotalCost:         p.totalCost,
			TotalInputTokens:  p.inputTokens,
			TotalOutputTokens: p.outputTokens,
			AvgLatencyMs:      float64(p.latencySum) / float64(p.totalCalls),
		}

		if err := a.repo.UpsertDailyStat(ctx, stat); err != nil {
			failed++
			a.logger.ErrorWithErr(userID, "", "Failed to merge daily stat bucket", err, map[string]interface{}{
				"date":     key.date,
				"provider": key.provider,
				"model":    key.model,
			})
		}
	}

	if failed > 0 {
		return fmt.Errorf("aggregation incomplete: %d of %d buckets failed to merge", failed, len(groups))
	}

	return nil
}
