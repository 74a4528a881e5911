// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package telemetry

import "errors"

var (
	// ErrBatchRejected is returned when any call in a batch fails
	// structural validation; no partial acceptance happens
	ErrBatchRejected = errors.New("batch rejected")

	// ErrMissingID is returned for a call without an ID
	ErrMissingID = errors.New("call ID is required")

	// ErrInvalidTimestamp is returned for a non-positive timestamp
	ErrInvalidTimestamp = errors.New("timestamp must be a positive millisecond value")

	// ErrUnknownProvider is returned for a provider outside the accepted set
	ErrUnknownProvider = errors.New("provider must be openai, anthropic, or other")

	// ErrMissingModel is returned for a call without a model
	ErrMissingModel = errors.New("model is required")

	// ErrMissingEndpoint is returned for a call without an endpoint
	ErrMissingEndpoint = errors.New("endpoint is required")

	// ErrNegativeCost is returned for a negative cost value
	ErrNegativeCost = errors.New("cost must be non-negative")

	// ErrNegativeLatency is returned for a negative latency value
	ErrNegativeLatency = errors.New("latency must be non-negative")

	// ErrInvalidStatus is returned for a status outside success/error
	ErrInvalidStatus = errors.New("status must be success or error")

	// ErrUnauthorized is returned when no user can be resolved for a request
	ErrUnauthorized = errors.New("unauthorized")
)
