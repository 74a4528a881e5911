// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

// Package sdk is the client library for reporting API usage to an
// APImetrics platform server.
//
// Applications create one Client per process, record calls with Track
// (or wrap an LLM client with NewTrackedChatClient for automatic
// capture), and shut the client down on exit:
//
//	client := sdk.NewClient(sdk.Config{APIKey: os.Getenv("APIMETRICS_API_KEY")})
//	defer client.Shutdown(context.Background())
//
//	client.Track(sdk.TrackingOptions{
//		Provider:     "openai",
//		Model:        "gpt-4o",
//		Endpoint:     "/v1/chat/completions",
//		InputTokens:  1200,
//		OutputTokens: 450,
//		Latency:      820 * time.Millisecond,
//	})
//
// Tracked calls are buffered in memory and flushed in batches, so Track
// never blocks on the network. Delivery is at-least-once: failed
// batches are requeued and retried on the next flush, and the server
// deduplicates by call ID.
package sdk
