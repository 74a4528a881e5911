// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package sdk

import (
	"net/http"
	"time"
)

// Defaults for Config fields left zero
const (
	DefaultEndpoint      = "https://api.apimetrics.dev"
	DefaultBatchSize     = 50
	DefaultFlushInterval = 5 * time.Second
	DefaultMaxQueueSize  = 1000
	DefaultHTTPTimeout   = 15 * time.Second
)

// Config configures a Client. APIKey is the only required field.
type Config struct {
	// APIKey authenticates batch uploads (Bearer token)
	APIKey string

	// Endpoint is the platform base URL. Defaults to DefaultEndpoint.
	Endpoint string

	// BatchSize is the queue high-water mark that triggers an
	// immediate flush. Defaults to DefaultBatchSize.
	BatchSize int

	// FlushInterval is the periodic flush cadence. Defaults to
	// DefaultFlushInterval.
	FlushInterval time.Duration

	// MaxQueueSize caps the in-memory queue. When a failed batch is
	// requeued past the cap, the newest events are dropped. Defaults
	// to DefaultMaxQueueSize.
	MaxQueueSize int

	// HTTPClient overrides the default client used for uploads
	HTTPClient *http.Client

	// Debug enables client-side logging of flush activity
	Debug bool
}

func (c *Config) applyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
}

// TrackingOptions describes one API call to record. Provider, Model and
// Endpoint are required; everything else has a sensible default: ID is
// generated, Timestamp defaults to now, and Cost is computed from the
// built-in pricing table when left zero.
type TrackingOptions struct {
	// ID is the idempotency key. Leave empty to have one generated.
	ID string

	// Timestamp of the call. Defaults to time.Now().
	Timestamp time.Time

	Provider string
	Model    string
	Endpoint string

	InputTokens  int
	OutputTokens int
	TotalTokens  int

	// Cost in USD. When zero it is computed from token counts using
	// the pricing table.
	Cost float64

	Latency time.Duration

	// Failed marks the call as an error; ErrorMessage carries detail
	Failed       bool
	ErrorMessage string

	Metadata map[string]interface{}
}
