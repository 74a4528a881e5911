// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package alerts

import "errors"

var (
	// ErrAlertNotFound is returned when an alert is not found
	ErrAlertNotFound = errors.New("alert not found")

	// ErrAlertExists is returned when creating an alert with a taken ID
	ErrAlertExists = errors.New("alert already exists")

	// ErrMissingUserID is returned for an alert without an owner
	ErrMissingUserID = errors.New("user ID is required")

	// ErrMissingName is returned for an alert without a name
	ErrMissingName = errors.New("alert name is required")

	// ErrInvalidAlertType is returned for an unknown alert type
	ErrInvalidAlertType = errors.New("alert type must be daily_budget, hourly_spike, or error_rate")

	// ErrInvalidThreshold is returned for a non-positive threshold
	ErrInvalidThreshold = errors.New("threshold must be greater than 0")

	// ErrInvalidChannelType is returned for an unknown channel type
	ErrInvalidChannelType = errors.New("channel type must be email or slack")

	// ErrMissingChannelAddress is returned for an email channel without an address
	ErrMissingChannelAddress = errors.New("email channel requires an address")

	// ErrMissingChannelWebhook is returned for a slack channel without a webhook URL
	ErrMissingChannelWebhook = errors.New("slack channel requires a webhook URL")
)
