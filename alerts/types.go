// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package alerts

import (
	"time"
)

// AlertType is the closed set of alert conditions. Each type carries
// its evaluation window and metric; the comparison is always
// metric >= threshold.
type AlertType string

const (
	// TypeDailyBudget fires when cost over the trailing 24h reaches the
	// threshold (currency)
	TypeDailyBudget AlertType = "daily_budget"

	// TypeHourlySpike fires when cost over the trailing hour reaches
	// the threshold (currency)
	TypeHourlySpike AlertType = "hourly_spike"

	// TypeErrorRate fires when the trailing-hour error percentage
	// reaches the threshold (percent)
	TypeErrorRate AlertType = "error_rate"
)

// Window returns the trailing time span the type's metric is computed
// over
func (t AlertType) Window() time.Duration {
	switch t {
	case TypeDailyBudget:
		return 24 * time.Hour
	case TypeHourlySpike, TypeErrorRate:
		return time.Hour
	}
	return time.Hour
}

// Valid reports whether t is a known alert type
func (t AlertType) Valid() bool {
	switch t {
	case TypeDailyBudget, TypeHourlySpike, TypeErrorRate:
		return true
	}
	return false
}

// ChannelType identifies a notification delivery mechanism
type ChannelType string

const (
	ChannelEmail ChannelType = "email"
	ChannelSlack ChannelType = "slack"
)

// Channel is a notification delivery target embedded in an alert:
// an email address or a Slack-style webhook URL
type Channel struct {
	Type    ChannelType `json:"type"`
	Value   string      `json:"value,omitempty"`
	Webhook string      `json:"webhook,omitempty"`
}

// Validate checks that the channel carries the address its type needs
func (c *Channel) Validate() error {
	switch c.Type {
	case ChannelEmail:
		if c.Value == "" {
			return ErrMissingChannelAddress
		}
	case ChannelSlack:
		if c.Webhook == "" {
			return ErrMissingChannelWebhook
		}
	default:
		return ErrInvalidChannelType
	}
	return nil
}

// Alert is a user-owned alert configuration. The evaluator consumes it
// read-only except for LastTriggeredAt.
type Alert struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Name            string     `json:"name"`
	Type            AlertType  `json:"type"`
	Threshold       float64    `json:"threshold"`
	Channels        []Channel  `json:"channels"`
	Enabled         bool       `json:"enabled"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Validate validates the alert configuration
func (a *Alert) Validate() error {
	if a.UserID == "" {
		return ErrMissingUserID
	}
	if a.Name == "" {
		return ErrMissingName
	}
	if !a.Type.Valid() {
		return ErrInvalidAlertType
	}
	if a.Threshold <= 0 {
		return ErrInvalidThreshold
	}
	for i := range a.Channels {
		if err := a.Channels[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Measurement is the result of evaluating one alert's metric over its
// window
type Measurement struct {
	Actual      float64       `json:"actual"`
	TotalCost   float64       `json:"total_cost"`
	TotalCalls  int64         `json:"total_calls"`
	ErrorCalls  int64         `json:"error_calls"`
	Window      time.Duration `json:"-"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
}

// TimeRange is a human label for the measurement window ("daily" or
// "hourly"), used in notification copy
func (m *Measurement) TimeRange() string {
	if m.Window >= 24*time.Hour {
		return "daily"
	}
	return "hourly"
}
