// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package alerts

import (
	"context"
	"time"
)

// Repository defines the persistence contract for alert configuration
// and the windowed usage reads the evaluator needs
type Repository interface {
	// Alert CRUD
	CreateAlert(ctx context.Context, alert *Alert) error
	GetAlert(ctx context.Context, id string) (*Alert, error)
	UpdateAlert(ctx context.Context, alert *Alert) error
	DeleteAlert(ctx context.Context, id string) error
	ListAlerts(ctx context.Context, userID string) ([]Alert, error)

	// Evaluation reads
	ListEnabledAlerts(ctx context.Context, userID string) ([]Alert, error)
	ListAlertUserIDs(ctx context.Context) ([]string, error)

	// TouchLastTriggered stamps last_triggered_at after a trigger,
	// regardless of channel delivery outcome
	TouchLastTriggered(ctx context.Context, alertID string, at time.Time) error

	// WindowCostSum sums cost of a user's calls since the given instant
	WindowCostSum(ctx context.Context, userID string, since time.Time) (float64, error)

	// WindowCallStats counts a user's calls and errors since the given
	// instant
	WindowCallStats(ctx context.Context, userID string, since time.Time) (total, errors int64, err error)
}
