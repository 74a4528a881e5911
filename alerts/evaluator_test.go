// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAlertRepo is an in-memory Repository for evaluator and handler
// tests
type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts map[string]*Alert

	costByUser  map[string]float64
	totalByUser map[string]int64
	errsByUser  map[string]int64

	touched map[string]time.Time

	listErr    bool
	measureErr map[string]bool // per-user WindowCostSum failure
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{
		alerts:      make(map[string]*Alert),
		costByUser:  make(map[string]float64),
		totalByUser: make(map[string]int64),
		errsByUser:  make(map[string]int64),
		touched:     make(map[string]time.Time),
		measureErr:  make(map[string]bool),
	}
}

func (f *fakeAlertRepo) CreateAlert(_ context.Context, alert *Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.alerts[alert.ID]; ok {
		return ErrAlertExists
	}
	clone := *alert
	f.alerts[alert.ID] = &clone
	return nil
}

func (f *fakeAlertRepo) GetAlert(_ context.Context, id string) (*Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	alert, ok := f.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	clone := *alert
	return &clone, nil
}

func (f *fakeAlertRepo) UpdateAlert(_ context.Context, alert *Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.alerts[alert.ID]; !ok {
		return ErrAlertNotFound
	}
	clone := *alert
	f.alerts[alert.ID] = &clone
	return nil
}

func (f *fakeAlertRepo) DeleteAlert(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.alerts[id]; !ok {
		return ErrAlertNotFound
	}
	delete(f.alerts, id)
	return nil
}

func (f *fakeAlertRepo) ListAlerts(_ context.Context, userID string) ([]Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Alert
	for _, a := range f.alerts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAlertRepo) ListEnabledAlerts(_ context.Context, userID string) ([]Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr {
		return nil, errors.New("alerts table down")
	}
	var out []Alert
	for _, a := range f.alerts {
		if a.UserID == userID && a.Enabled {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAlertRepo) ListAlertUserIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, a := range f.alerts {
		if a.Enabled && !seen[a.UserID] {
			seen[a.UserID] = true
			out = append(out, a.UserID)
		}
	}
	return out, nil
}

func (f *fakeAlertRepo) TouchLastTriggered(_ context.Context, alertID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[alertID] = at
	return nil
}

func (f *fakeAlertRepo) WindowCostSum(_ context.Context, userID string, _ time.Time) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.measureErr[userID] {
		return 0, errors.New("api_calls unreachable")
	}
	return f.costByUser[userID], nil
}

func (f *fakeAlertRepo) WindowCallStats(_ context.Context, userID string, _ time.Time) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.measureErr[userID] {
		return 0, 0, errors.New("api_calls unreachable")
	}
	return f.totalByUser[userID], f.errsByUser[userID], nil
}

func (f *fakeAlertRepo) touchedAt(alertID string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.touched[alertID]
	return at, ok
}

// fakeNotifier records every dispatched alert
type fakeNotifier struct {
	mu         sync.Mutex
	dispatched []string
	actuals    map[string]float64
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{actuals: make(map[string]float64)}
}

func (f *fakeNotifier) Dispatch(_ context.Context, alert *Alert, m *Measurement) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, alert.ID)
	f.actuals[alert.ID] = m.Actual
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dispatched)
}

func seedAlert(repo *fakeAlertRepo, id, userID string, alertType AlertType, threshold float64) {
	repo.alerts[id] = &Alert{
		ID:        id,
		UserID:    userID,
		Name:      "test " + id,
		Type:      alertType,
		Threshold: threshold,
		Enabled:   true,
	}
}

func TestEvaluateAlertsThresholdBoundary(t *testing.T) {
	tests := []struct {
		name     string
		cost     float64
		expected int
	}{
		{name: "below threshold", cost: 9.99, expected: 0},
		{name: "exactly at threshold fires", cost: 10.00, expected: 1},
		{name: "above threshold fires", cost: 10.01, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeAlertRepo()
			seedAlert(repo, "a1", "user-1", TypeDailyBudget, 10.00)
			repo.costByUser["user-1"] = tt.cost

			notifier := newFakeNotifier()
			evaluator := NewEvaluator(repo, notifier, nil)

			require.NoError(t, evaluator.EvaluateAlerts(context.Background(), "user-1"))
			assert.Equal(t, tt.expected, notifier.count())

			_, touched := repo.touchedAt("a1")
			assert.Equal(t, tt.expected == 1, touched)
		})
	}
}

func TestEvaluateAlertsErrorRate(t *testing.T) {
	repo := newFakeAlertRepo()
	seedAlert(repo, "a1", "user-1", TypeErrorRate, 5.0)
	repo.totalByUser["user-1"] = 20
	repo.errsByUser["user-1"] = 1 // 5.0%, exactly at threshold

	notifier := newFakeNotifier()
	evaluator := NewEvaluator(repo, notifier, nil)

	require.NoError(t, evaluator.EvaluateAlerts(context.Background(), "user-1"))
	assert.Equal(t, 1, notifier.count())
	assert.InDelta(t, 5.0, notifier.actuals["a1"], 1e-9)
}

func TestEvaluateAlertsErrorRateNoCalls(t *testing.T) {
	repo := newFakeAlertRepo()
	seedAlert(repo, "a1", "user-1", TypeErrorRate, 5.0)
	// No calls in the window: rate is 0, not NaN

	notifier := newFakeNotifier()
	evaluator := NewEvaluator(repo, notifier, nil)

	require.NoError(t, evaluator.EvaluateAlerts(context.Background(), "user-1"))
	assert.Equal(t, 0, notifier.count())
}

func TestEvaluateAlertsSkipsDisabled(t *testing.T) {
	repo := newFakeAlertRepo()
	seedAlert(repo, "a1", "user-1", TypeDailyBudget, 10.00)
	repo.alerts["a1"].Enabled = false
	repo.costByUser["user-1"] = 100

	notifier := newFakeNotifier()
	evaluator := NewEvaluator(repo, notifier, nil)

	require.NoError(t, evaluator.EvaluateAlerts(context.Background(), "user-1"))
	assert.Equal(t, 0, notifier.count())
}

func TestEvaluateAlertsMeasureFailureContinues(t *testing.T) {
	repo := newFakeAlertRepo()
	seedAlert(repo, "a1", "user-1", TypeDailyBudget, 10.00)
	seedAlert(repo, "a2", "user-1", TypeErrorRate, 5.0)
	repo.measureErr["user-1"] = true

	notifier := newFakeNotifier()
	evaluator := NewEvaluator(repo, notifier, nil)

	// Measurement failures are per-alert, not fatal
	require.NoError(t, evaluator.EvaluateAlerts(context.Background(), "user-1"))
	assert.Equal(t, 0, notifier.count())
}

func TestEvaluateAlertsRefiresWithoutCooldown(t *testing.T) {
	repo := newFakeAlertRepo()
	seedAlert(repo, "a1", "user-1", TypeDailyBudget, 10.00)
	repo.costByUser["user-1"] = 50

	notifier := newFakeNotifier()
	evaluator := NewEvaluator(repo, notifier, nil)

	require.NoError(t, evaluator.EvaluateAlerts(context.Background(), "user-1"))
	require.NoError(t, evaluator.EvaluateAlerts(context.Background(), "user-1"))

	// Default behavior: the alert fires on every evaluation while the
	// condition holds
	assert.Equal(t, 2, notifier.count())
}

func TestEvaluateAlertsCooldownSuppressesRefire(t *testing.T) {
	repo := newFakeAlertRepo()
	seedAlert(repo, "a1", "user-1", TypeDailyBudget, 10.00)
	repo.costByUser["user-1"] = 50

	notifier := newFakeNotifier()
	evaluator := NewEvaluator(repo, notifier, NewMemoryCooldownStore())

	require.NoError(t, evaluator.EvaluateAlerts(context.Background(), "user-1"))
	require.NoError(t, evaluator.EvaluateAlerts(context.Background(), "user-1"))

	assert.Equal(t, 1, notifier.count())
}

func TestEvaluateAlertsStampsEvaluationTime(t *testing.T) {
	repo := newFakeAlertRepo()
	seedAlert(repo, "a1", "user-1", TypeDailyBudget, 10.00)
	repo.costByUser["user-1"] = 50

	evaluated := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	evaluator := NewEvaluator(repo, newFakeNotifier(), nil)
	evaluator.now = func() time.Time { return evaluated }

	require.NoError(t, evaluator.EvaluateAlerts(context.Background(), "user-1"))

	at, ok := repo.touchedAt("a1")
	require.True(t, ok)
	assert.Equal(t, evaluated, at)
}

func TestRunSweepCoversAllUsers(t *testing.T) {
	repo := newFakeAlertRepo()
	seedAlert(repo, "a1", "user-1", TypeDailyBudget, 10.00)
	seedAlert(repo, "a2", "user-2", TypeDailyBudget, 10.00)
	repo.costByUser["user-1"] = 50
	repo.costByUser["user-2"] = 50

	notifier := newFakeNotifier()
	evaluator := NewEvaluator(repo, notifier, nil)

	require.NoError(t, evaluator.RunSweep(context.Background()))
	assert.Equal(t, 2, notifier.count())
}

func TestRunSweepContinuesPastUserFailures(t *testing.T) {
	repo := newFakeAlertRepo()
	seedAlert(repo, "a1", "user-1", TypeDailyBudget, 10.00)
	seedAlert(repo, "a2", "user-2", TypeDailyBudget, 10.00)
	repo.measureErr["user-1"] = true
	repo.costByUser["user-2"] = 50

	notifier := newFakeNotifier()
	evaluator := NewEvaluator(repo, notifier, nil)

	require.NoError(t, evaluator.RunSweep(context.Background()))

	// user-1's failure did not stop user-2's evaluation
	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, "a2", notifier.dispatched[0])
}

func TestRunSweepCanceledContext(t *testing.T) {
	repo := newFakeAlertRepo()
	seedAlert(repo, "a1", "user-1", TypeDailyBudget, 10.00)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	evaluator := NewEvaluator(repo, newFakeNotifier(), nil)
	err := evaluator.RunSweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
