// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package alerts

import (
	"context"
	"fmt"
	"time"

	"apimetrics/platform/shared/logger"
)

// Notifier is the delivery collaborator the evaluator hands triggered
// alerts to
type Notifier interface {
	Dispatch(ctx context.Context, alert *Alert, m *Measurement)
}

// Evaluator computes every enabled alert's windowed metric and triggers
// notification when the metric meets its threshold
type Evaluator struct {
	repo      Repository
	notifier  Notifier
	cooldowns CooldownStore
	now       func() time.Time
	logger    *logger.Logger
}

// NewEvaluator creates an alert evaluator. A nil cooldown store keeps
// the original behavior of re-firing on every sweep while the
// condition holds.
func NewEvaluator(repo Repository, notifier Notifier, cooldowns CooldownStore) *Evaluator {
	if cooldowns == nil {
		cooldowns = NoopCooldownStore{}
	}
	return &Evaluator{
		repo:      repo,
		notifier:  notifier,
		cooldowns: cooldowns,
		now:       time.Now,
		logger:    logger.New("alerts"),
	}
}

// EvaluateAlerts evaluates all of a user's enabled alerts. A triggered
// alert is dispatched to its channels and then stamped with the
// evaluation time regardless of delivery outcome.
func (e *Evaluator) EvaluateAlerts(ctx context.Context, userID string) error {
	alerts, err := e.repo.ListEnabledAlerts(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load alerts for user %s: %w", userID, err)
	}

	for i := range alerts {
		alert := &alerts[i]

		m, err := e.measure(ctx, alert)
		if err != nil {
			e.logger.ErrorWithErr(userID, "", "Failed to measure alert metric", err, map[string]interface{}{
				"alert_id": alert.ID,
				"type":     alert.Type,
			})
			continue
		}

		// Trigger on >=, not >: a metric exactly at threshold fires
		if m.Actual < alert.Threshold {
			continue
		}

		allowed, err := e.cooldowns.TryAcquire(ctx, alert.ID, alert.Type.Window())
		if err != nil {
			// The store fails open; the error is advisory
			e.logger.ErrorWithErr(userID, "", "Cooldown store error", err, map[string]interface{}{
				"alert_id": alert.ID,
			})
		}
		if !allowed {
			continue
		}

		promAlertsTriggered.WithLabelValues(string(alert.Type)).Inc()
		e.logger.Warn(userID, "", "Alert triggered", map[string]interface{}{
			"alert_id":  alert.ID,
			"name":      alert.Name,
			"type":      alert.Type,
			"actual":    m.Actual,
			"threshold": alert.Threshold,
		})

		e.notifier.Dispatch(ctx, alert, m)

		// Stamped unconditionally: delivery failure is channel-local
		if err := e.repo.TouchLastTriggered(ctx, alert.ID, m.EvaluatedAt); err != nil {
			e.logger.ErrorWithErr(userID, "", "Failed to stamp last_triggered_at", err, map[string]interface{}{
				"alert_id": alert.ID,
			})
		}
	}

	return nil
}

// measure computes the alert's metric over its trailing window
func (e *Evaluator) measure(ctx context.Context, alert *Alert) (*Measurement, error) {
	now := e.now().UTC()
	since := now.Add(-alert.Type.Window())

	m := &Measurement{Window: alert.Type.Window(), EvaluatedAt: now}

	switch alert.Type {
	case TypeDailyBudget, TypeHourlySpike:
		cost, err := e.repo.WindowCostSum(ctx, alert.UserID, since)
		if err != nil {
			return nil, err
		}
		total, errCount, err := e.repo.WindowCallStats(ctx, alert.UserID, since)
		if err != nil {
			return nil, err
		}
		m.Actual = cost
		m.TotalCost = cost
		m.TotalCalls = total
		m.ErrorCalls = errCount
	case TypeErrorRate:
		total, errCount, err := e.repo.WindowCallStats(ctx, alert.UserID, since)
		if err != nil {
			return nil, err
		}
		m.TotalCalls = total
		m.ErrorCalls = errCount
		if total > 0 {
			m.Actual = 100 * float64(errCount) / float64(total)
		}
	default:
		return nil, ErrInvalidAlertType
	}

	return m, nil
}

// RunSweep evaluates every user with at least one enabled alert,
// sequentially. Per-user failures are logged and the sweep continues;
// only the initial user enumeration can fail the sweep itself.
func (e *Evaluator) RunSweep(ctx context.Context) error {
	start := e.now()

	userIDs, err := e.repo.ListAlertUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate alert users: %w", err)
	}

	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := e.EvaluateAlerts(ctx, userID); err != nil {
			e.logger.ErrorWithErr(userID, "", "Alert evaluation failed, continuing sweep", err, nil)
		}
	}

	promSweepDuration.Observe(time.Since(start).Seconds())
	e.logger.Debug("", "", "Alert sweep complete", map[string]interface{}{
		"users":       len(userIDs),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}
