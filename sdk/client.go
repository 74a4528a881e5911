// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"apimetrics/platform/shared/logger"
	"apimetrics/platform/telemetry"
)

// Client buffers tracked calls and uploads them in batches. Track is
// cheap and never touches the network; uploads happen on the flush
// goroutine or when the queue hits the batch-size high-water mark.
type Client struct {
	config  Config
	pricing *telemetry.PricingTable
	logger  *logger.Logger

	mu    sync.Mutex
	queue []telemetry.APICall

	// flushMu serializes flushes so the timer and a high-water
	// trigger never race on the same events
	flushMu sync.Mutex

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewClient creates a client and starts its background flush loop
func NewClient(config Config) *Client {
	config.applyDefaults()

	c := &Client{
		config:  config,
		pricing: telemetry.DefaultPricing(),
		logger:  logger.New("sdk"),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go c.flushLoop()
	return c
}

// Track enqueues one call for upload. Required fields are validated
// up front so malformed events are surfaced at the call site instead
// of poisoning a whole batch at the server.
func (c *Client) Track(opts TrackingOptions) error {
	call := c.buildCall(opts)
	if err := call.Validate(); err != nil {
		return fmt.Errorf("invalid tracking options: %w", err)
	}

	c.mu.Lock()
	c.queue = append(c.queue, call)
	full := len(c.queue) >= c.config.BatchSize
	c.mu.Unlock()

	if full {
		go func() {
			if err := c.Flush(context.Background()); err != nil && c.config.Debug {
				c.logger.ErrorWithErr("", "", "Batch flush failed, events requeued", err, nil)
			}
		}()
	}
	return nil
}

func (c *Client) buildCall(opts TrackingOptions) telemetry.APICall {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	totalTokens := opts.TotalTokens
	if totalTokens == 0 {
		totalTokens = opts.InputTokens + opts.OutputTokens
	}

	cost := opts.Cost
	if cost == 0 {
		cost = c.pricing.CalculateCost(opts.Provider, opts.Model, opts.InputTokens, opts.OutputTokens)
	}

	status := telemetry.StatusSuccess
	if opts.Failed {
		status = telemetry.StatusError
	}

	return telemetry.APICall{
		ID:           id,
		Timestamp:    ts.UnixMilli(),
		Provider:     opts.Provider,
		Model:        opts.Model,
		Endpoint:     opts.Endpoint,
		InputTokens:  opts.InputTokens,
		OutputTokens: opts.OutputTokens,
		TotalTokens:  totalTokens,
		Cost:         cost,
		Latency:      opts.Latency.Milliseconds(),
		Status:       status,
		ErrorMessage: opts.ErrorMessage,
		Metadata:     opts.Metadata,
	}
}

// Flush uploads everything currently queued. On failure the events are
// requeued at the front of the queue, capped at MaxQueueSize, so they
// retry ahead of newer events on the next flush.
func (c *Client) Flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	if len(c.queue) == 0 {
		c.mu.Unlock()
		return nil
	}
	batch := c.queue
	c.queue = nil
	c.mu.Unlock()

	if err := c.upload(ctx, batch); err != nil {
		c.requeue(batch)
		return err
	}

	if c.config.Debug {
		c.logger.Info("", "", "Batch uploaded", map[string]interface{}{
			"events": len(batch),
		})
	}
	return nil
}

func (c *Client) upload(ctx context.Context, batch []telemetry.APICall) error {
	body, err := json.Marshal(telemetry.TrackBatch{Calls: batch})
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	url := c.config.Endpoint + "/v1/track/batch"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("batch upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("batch upload returned status %d", resp.StatusCode)
	}
	return nil
}

// requeue puts a failed batch back at the front of the queue. When the
// combined length exceeds the cap the newest events are dropped: the
// oldest events have been waiting longest and retry first.
func (c *Client) requeue(batch []telemetry.APICall) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queue = append(batch, c.queue...)
	if len(c.queue) > c.config.MaxQueueSize {
		dropped := len(c.queue) - c.config.MaxQueueSize
		c.queue = c.queue[:c.config.MaxQueueSize]
		if c.config.Debug {
			c.logger.Warn("", "", "Queue overflow, dropping newest events", map[string]interface{}{
				"dropped": dropped,
			})
		}
	}
}

// QueueLen reports the number of events waiting for upload
func (c *Client) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *Client) flushLoop() {
	defer close(c.done)

	ticker := time.NewTicker(c.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.Flush(context.Background()); err != nil && c.config.Debug {
				c.logger.ErrorWithErr("", "", "Periodic flush failed, events requeued", err, nil)
			}
		}
	}
}

// Shutdown stops the flush loop and uploads any remaining events.
// Safe to call more than once.
func (c *Client) Shutdown(ctx context.Context) error {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	<-c.done
	return c.Flush(ctx)
}
