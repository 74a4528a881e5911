// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apimetrics/platform/telemetry"
)

// batchServer records uploaded batches and can be toggled to fail
type batchServer struct {
	mu      sync.Mutex
	batches [][]telemetry.APICall
	auth    []string
	fail    bool

	server *httptest.Server
}

func newBatchServer(t *testing.T) *batchServer {
	t.Helper()

	bs := &batchServer{}
	bs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bs.mu.Lock()
		defer bs.mu.Unlock()

		if bs.fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var batch telemetry.TrackBatch
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		bs.batches = append(bs.batches, batch.Calls)
		bs.auth = append(bs.auth, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(bs.server.Close)
	return bs
}

func (bs *batchServer) setFail(fail bool) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.fail = fail
}

func (bs *batchServer) batchCount() int {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return len(bs.batches)
}

func (bs *batchServer) totalEvents() int {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	n := 0
	for _, b := range bs.batches {
		n += len(b)
	}
	return n
}

func testConfig(bs *batchServer) Config {
	return Config{
		APIKey:        "sk-test",
		Endpoint:      bs.server.URL,
		FlushInterval: time.Hour, // timer effectively disabled
	}
}

func trackOne(t *testing.T, client *Client) {
	t.Helper()
	require.NoError(t, client.Track(TrackingOptions{
		Provider:     "openai",
		Model:        "gpt-4o",
		Endpoint:     "/v1/chat/completions",
		InputTokens:  100,
		OutputTokens: 50,
		Latency:      200 * time.Millisecond,
	}))
}

func TestTrackDoesNotUploadBelowHighWater(t *testing.T) {
	bs := newBatchServer(t)
	client := NewClient(testConfig(bs))
	defer client.Shutdown(context.Background())

	for i := 0; i < DefaultBatchSize-1; i++ {
		trackOne(t, client)
	}

	assert.Equal(t, DefaultBatchSize-1, client.QueueLen())
	assert.Equal(t, 0, bs.batchCount())
}

func TestTrackFlushesAtHighWater(t *testing.T) {
	bs := newBatchServer(t)
	client := NewClient(testConfig(bs))
	defer client.Shutdown(context.Background())

	for i := 0; i < DefaultBatchSize; i++ {
		trackOne(t, client)
	}

	require.Eventually(t, func() bool {
		return bs.totalEvents() == DefaultBatchSize
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, client.QueueLen())
}

func TestTrackValidation(t *testing.T) {
	bs := newBatchServer(t)
	client := NewClient(testConfig(bs))
	defer client.Shutdown(context.Background())

	err := client.Track(TrackingOptions{Provider: "openai", Model: "gpt-4o"})
	assert.Error(t, err, "missing endpoint must be rejected at the call site")
	assert.Equal(t, 0, client.QueueLen())
}

func TestTrackFillsDefaults(t *testing.T) {
	bs := newBatchServer(t)
	client := NewClient(testConfig(bs))
	defer client.Shutdown(context.Background())

	trackOne(t, client)

	client.mu.Lock()
	call := client.queue[0]
	client.mu.Unlock()

	assert.NotEmpty(t, call.ID)
	assert.Positive(t, call.Timestamp)
	assert.Equal(t, 150, call.TotalTokens)
	assert.Equal(t, int64(200), call.Latency)
	assert.Equal(t, telemetry.StatusSuccess, call.Status)

	// Cost computed from the built-in table: 100/1M*2.50 + 50/1M*10.00
	assert.InDelta(t, 0.00075, call.Cost, 1e-9)
}

func TestFlushSendsAuthHeader(t *testing.T) {
	bs := newBatchServer(t)
	client := NewClient(testConfig(bs))
	defer client.Shutdown(context.Background())

	trackOne(t, client)
	require.NoError(t, client.Flush(context.Background()))

	require.Len(t, bs.auth, 1)
	assert.Equal(t, "Bearer sk-test", bs.auth[0])
}

func TestFlushRequeuesOnFailure(t *testing.T) {
	bs := newBatchServer(t)
	client := NewClient(testConfig(bs))
	defer client.Shutdown(context.Background())

	trackOne(t, client)
	trackOne(t, client)

	bs.setFail(true)
	assert.Error(t, client.Flush(context.Background()))
	assert.Equal(t, 2, client.QueueLen(), "failed batch stays queued")

	// Recovery: the same events go out on the next flush
	bs.setFail(false)
	require.NoError(t, client.Flush(context.Background()))
	assert.Equal(t, 0, client.QueueLen())
	assert.Equal(t, 2, bs.totalEvents())
}

func TestRequeuePreservesOrderAndCapsQueue(t *testing.T) {
	bs := newBatchServer(t)
	cfg := testConfig(bs)
	cfg.BatchSize = 1000 // keep the high-water trigger out of the way
	cfg.MaxQueueSize = 3
	client := NewClient(cfg)
	defer client.Shutdown(context.Background())

	bs.setFail(true)
	for _, id := range []string{"a", "b"} {
		require.NoError(t, client.Track(TrackingOptions{
			ID: id, Provider: "openai", Model: "gpt-4o", Endpoint: "/x",
		}))
	}
	assert.Error(t, client.Flush(context.Background()))

	// Two more arrive while the failed batch waits; cap of 3 drops the
	// newest
	for _, id := range []string{"c", "d"} {
		require.NoError(t, client.Track(TrackingOptions{
			ID: id, Provider: "openai", Model: "gpt-4o", Endpoint: "/x",
		}))
	}
	assert.Error(t, client.Flush(context.Background()))

	client.mu.Lock()
	ids := make([]string, 0, len(client.queue))
	for _, c := range client.queue {
		ids = append(ids, c.ID)
	}
	client.mu.Unlock()

	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestShutdownFlushesRemaining(t *testing.T) {
	bs := newBatchServer(t)
	client := NewClient(testConfig(bs))

	trackOne(t, client)
	trackOne(t, client)

	require.NoError(t, client.Shutdown(context.Background()))
	assert.Equal(t, 2, bs.totalEvents())

	// Second shutdown is a no-op
	require.NoError(t, client.Shutdown(context.Background()))
	assert.Equal(t, 1, bs.batchCount())
}

func TestPeriodicFlush(t *testing.T) {
	bs := newBatchServer(t)
	cfg := testConfig(bs)
	cfg.FlushInterval = 10 * time.Millisecond
	client := NewClient(cfg)
	defer client.Shutdown(context.Background())

	trackOne(t, client)

	require.Eventually(t, func() bool {
		return bs.totalEvents() == 1
	}, time.Second, 5*time.Millisecond)
}
