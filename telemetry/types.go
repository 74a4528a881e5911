// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"fmt"
	"time"
)

// CallStatus is the outcome of a tracked API call
type CallStatus string

const (
	StatusSuccess CallStatus = "success"
	StatusError   CallStatus = "error"
)

// Known providers accepted on the wire. "other" is a catch-all for
// providers the SDK has no dedicated wrapper for.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOther     = "other"
)

// APICall is a single immutable usage event reported by a client SDK.
// IDs are caller-supplied and globally unique per user; duplicate IDs
// are silently ignored at insert time.
type APICall struct {
	ID           string                 `json:"id"`
	UserID       string                 `json:"-"`
	Timestamp    int64                  `json:"timestamp"` // Unix milliseconds
	Provider     string                 `json:"provider"`
	Model        string                 `json:"model"`
	Endpoint     string                 `json:"endpoint"`
	InputTokens  int                    `json:"inputTokens,omitempty"`
	OutputTokens int                    `json:"outputTokens,omitempty"`
	TotalTokens  int                    `json:"totalTokens,omitempty"`
	Cost         float64                `json:"cost"`
	Latency      int64                  `json:"latency"` // milliseconds
	Status       CallStatus             `json:"status"`
	ErrorMessage string                 `json:"errorMessage,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// TrackBatch is the ingestion wire format for POST /v1/track/batch
type TrackBatch struct {
	Calls []APICall `json:"calls"`
}

// Validate checks the structural validity of a call. Batches are
// all-or-nothing: one invalid call rejects the whole batch.
func (c *APICall) Validate() error {
	if c.ID == "" {
		return ErrMissingID
	}
	if c.Timestamp <= 0 {
		return ErrInvalidTimestamp
	}
	if !isValidProvider(c.Provider) {
		return ErrUnknownProvider
	}
	if c.Model == "" {
		return ErrMissingModel
	}
	if c.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if c.Cost < 0 {
		return ErrNegativeCost
	}
	if c.Latency < 0 {
		return ErrNegativeLatency
	}
	if c.Status != StatusSuccess && c.Status != StatusError {
		return ErrInvalidStatus
	}
	return nil
}

// Date returns the UTC calendar date (YYYY-MM-DD) of the call timestamp
func (c *APICall) Date() string {
	return time.UnixMilli(c.Timestamp).UTC().Format("2006-01-02")
}

func isValidProvider(p string) bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderOther:
		return true
	}
	return false
}

// DailyStat is the mutable per-(user, date, provider, model) rolling
// accumulator maintained by the Aggregator. AvgLatencyMs is the
// call-count-weighted mean of every latency ever merged into the
// bucket, not a window average.
type DailyStat struct {
	UserID            string    `json:"user_id"`
	Date              string    `json:"date"` // YYYY-MM-DD (UTC)
	Provider          string    `json:"provider"`
	Model             string    `json:"model"`
	TotalCalls        int64     `json:"total_calls"`
	SuccessfulCalls   int64     `json:"successful_calls"`
	FailedCalls       int64     `json:"failed_calls"`
	TotalCost         float64   `json:"total_cost"`
	TotalInputTokens  int64     `json:"total_input_tokens"`
	TotalOutputTokens int64     `json:"total_output_tokens"`
	AvgLatencyMs      float64   `json:"avg_latency_ms"`
	UpdatedAt         time.Time `json:"updated_at,omitempty"`
}

// Key identifies the bucket a stat row belongs to
func (s *DailyStat) Key() string {
	return fmt.Sprintf("%s:%s:%s:%s", s.UserID, s.Date, s.Provider, s.Model)
}

// CallQueryOptions filters raw-call reads for the analytics surface
type CallQueryOptions struct {
	Provider string
	Model    string
	Status   CallStatus
	SinceMs  int64
	UntilMs  int64
	Limit    int
	Offset   int
}
