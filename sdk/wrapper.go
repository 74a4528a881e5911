// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package sdk

import (
	"context"
	"time"
)

// ChatMessage is one turn of a chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the provider-agnostic chat completion request shape
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// ChatUsage carries the token counts a provider reports for a
// completion
type ChatUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ChatResponse is the provider-agnostic chat completion response shape
type ChatResponse struct {
	Model   string    `json:"model"`
	Content string    `json:"content"`
	Usage   ChatUsage `json:"usage"`
}

// ChatCompleter abstracts an LLM provider client. Adapters for
// concrete provider SDKs implement this against their own types.
type ChatCompleter interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// TrackedChatClient decorates a ChatCompleter so every completion is
// tracked automatically, including failures. Tracking is best-effort
// and never alters the wrapped client's result.
type TrackedChatClient struct {
	inner    ChatCompleter
	client   *Client
	provider string
	endpoint string
	metadata map[string]interface{}
}

// NewTrackedChatClient wraps a provider client. provider names the
// upstream ("openai", "anthropic") for pricing and aggregation.
func NewTrackedChatClient(inner ChatCompleter, client *Client, provider string) *TrackedChatClient {
	return &TrackedChatClient{
		inner:    inner,
		client:   client,
		provider: provider,
		endpoint: "/v1/chat/completions",
	}
}

// WithEndpoint overrides the endpoint label attached to tracked calls
func (t *TrackedChatClient) WithEndpoint(endpoint string) *TrackedChatClient {
	t.endpoint = endpoint
	return t
}

// WithMetadata attaches metadata to every call tracked by this wrapper
func (t *TrackedChatClient) WithMetadata(metadata map[string]interface{}) *TrackedChatClient {
	t.metadata = metadata
	return t
}

// Complete runs the wrapped completion and tracks its outcome
func (t *TrackedChatClient) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	resp, err := t.inner.Complete(ctx, req)
	latency := time.Since(start)

	opts := TrackingOptions{
		Provider: t.provider,
		Model:    req.Model,
		Endpoint: t.endpoint,
		Latency:  latency,
		Metadata: t.metadata,
	}

	if err != nil {
		opts.Failed = true
		opts.ErrorMessage = err.Error()
	} else {
		// Providers may answer with a more specific model revision
		if resp.Model != "" {
			opts.Model = resp.Model
		}
		opts.InputTokens = resp.Usage.InputTokens
		opts.OutputTokens = resp.Usage.OutputTokens
		opts.TotalTokens = resp.Usage.TotalTokens
	}

	_ = t.client.Track(opts)
	return resp, err
}
