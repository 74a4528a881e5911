// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validAlert() Alert {
	return Alert{
		ID:        "alert-1",
		UserID:    "user-1",
		Name:      "Daily budget",
		Type:      TypeDailyBudget,
		Threshold: 10.00,
		Channels: []Channel{
			{Type: ChannelEmail, Value: "dev@example.com"},
		},
		Enabled: true,
	}
}

func TestAlertTypeWindow(t *testing.T) {
	assert.Equal(t, 24*time.Hour, TypeDailyBudget.Window())
	assert.Equal(t, time.Hour, TypeHourlySpike.Window())
	assert.Equal(t, time.Hour, TypeErrorRate.Window())
}

func TestAlertTypeValid(t *testing.T) {
	assert.True(t, TypeDailyBudget.Valid())
	assert.True(t, TypeHourlySpike.Valid())
	assert.True(t, TypeErrorRate.Valid())
	assert.False(t, AlertType("weekly_budget").Valid())
	assert.False(t, AlertType("").Valid())
}

func TestAlertValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Alert)
		wantErr error
	}{
		{
			name:   "valid alert",
			mutate: func(a *Alert) {},
		},
		{
			name:    "missing user",
			mutate:  func(a *Alert) { a.UserID = "" },
			wantErr: ErrMissingUserID,
		},
		{
			name:    "missing name",
			mutate:  func(a *Alert) { a.Name = "" },
			wantErr: ErrMissingName,
		},
		{
			name:    "unknown type",
			mutate:  func(a *Alert) { a.Type = "weekly_budget" },
			wantErr: ErrInvalidAlertType,
		},
		{
			name:    "zero threshold",
			mutate:  func(a *Alert) { a.Threshold = 0 },
			wantErr: ErrInvalidThreshold,
		},
		{
			name:    "negative threshold",
			mutate:  func(a *Alert) { a.Threshold = -5 },
			wantErr: ErrInvalidThreshold,
		},
		{
			name:    "email channel without address",
			mutate:  func(a *Alert) { a.Channels = []Channel{{Type: ChannelEmail}} },
			wantErr: ErrMissingChannelAddress,
		},
		{
			name:    "slack channel without webhook",
			mutate:  func(a *Alert) { a.Channels = []Channel{{Type: ChannelSlack}} },
			wantErr: ErrMissingChannelWebhook,
		},
		{
			name:    "unknown channel type",
			mutate:  func(a *Alert) { a.Channels = []Channel{{Type: "pagerduty", Value: "x"}} },
			wantErr: ErrInvalidChannelType,
		},
		{
			name:   "no channels is valid",
			mutate: func(a *Alert) { a.Channels = nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := validAlert()
			tt.mutate(&alert)

			err := alert.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMeasurementTimeRange(t *testing.T) {
	daily := Measurement{Window: 24 * time.Hour}
	hourly := Measurement{Window: time.Hour}
	assert.Equal(t, "daily", daily.TimeRange())
	assert.Equal(t, "hourly", hourly.TimeRange())
}
