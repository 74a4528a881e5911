// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"fmt"

	"apimetrics/platform/shared/logger"
)

// Service accepts usage batches, validates them all-or-nothing, and
// persists events idempotently before folding them into daily stats
type Service struct {
	repo   Repository
	agg    *Aggregator
	logger *logger.Logger
}

// NewService creates a new ingestion service
func NewService(repo Repository, agg *Aggregator) *Service {
	return &Service{
		repo:   repo,
		agg:    agg,
		logger: logger.New("ingest"),
	}
}

// IngestBatch validates and persists a batch for one user and returns
// the number of events accepted (post-dedup). Validation is
// all-or-nothing: the first invalid call rejects the entire batch.
// Aggregation failure never rolls back the raw insert; raw events are
// the recoverable source of truth.
func (s *Service) IngestBatch(ctx context.Context, userID string, calls []APICall) (int, error) {
	if len(calls) == 0 {
		return 0, nil
	}

	for i := range calls {
		if err := calls[i].Validate(); err != nil {
			promBatchesRejected.Inc()
			return 0, fmt.Errorf("%w: call %d (%s): %w", ErrBatchRejected, i, calls[i].ID, err)
		}
		calls[i].UserID = userID
	}

	insertedIDs, err := s.repo.InsertCalls(ctx, calls)
	if err != nil {
		return 0, fmt.Errorf("failed to persist batch: %w", err)
	}
	accepted := len(insertedIDs)

	promEventsIngested.Add(float64(accepted))
	if dupes := len(calls) - accepted; dupes > 0 {
		promEventsDeduped.Add(float64(dupes))
	}

	// Only fold what was actually inserted: duplicates were already
	// counted by the batch that first carried them
	fold := calls
	if accepted < len(calls) {
		idSet := make(map[string]struct{}, accepted)
		for _, id := range insertedIDs {
			idSet[id] = struct{}{}
		}
		fold = make([]APICall, 0, accepted)
		for _, call := range calls {
			if _, ok := idSet[call.ID]; ok {
				fold = append(fold, call)
			}
		}
	}

	if err := s.agg.Fold(ctx, userID, fold); err != nil {
		// Raw insert already succeeded; aggregates are repairable from it
		promAggregationFailures.Inc()
		s.logger.ErrorWithErr(userID, "", "Aggregation failed after raw insert", err, map[string]interface{}{
			"batch_size": len(calls),
		})
	}

	s.logger.Info(userID, "", "Batch ingested", map[string]interface{}{
		"received": len(calls),
		"accepted": accepted,
	})

	return accepted, nil
}
