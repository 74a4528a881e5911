// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingEmailSender captures sends and can be made to fail
type recordingEmailSender struct {
	mu       sync.Mutex
	sent     []string // recipient addresses
	subjects []string
	fail     bool
}

func (s *recordingEmailSender) Send(_ context.Context, to, subject, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("smtp unavailable")
	}
	s.sent = append(s.sent, to)
	s.subjects = append(s.subjects, subject)
	return nil
}

func triggeredMeasurement() *Measurement {
	return &Measurement{
		Actual:      15.50,
		TotalCost:   15.50,
		TotalCalls:  120,
		ErrorCalls:  3,
		Window:      24 * time.Hour,
		EvaluatedAt: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestDispatchEmail(t *testing.T) {
	email := &recordingEmailSender{}
	dispatcher := NewDispatcher(email, nil)

	alert := validAlert()
	dispatcher.Dispatch(context.Background(), &alert, triggeredMeasurement())

	require.Len(t, email.sent, 1)
	assert.Equal(t, "dev@example.com", email.sent[0])
	assert.Contains(t, email.subjects[0], "$15.50")
}

func TestDispatchSlack(t *testing.T) {
	var payload slackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher := NewDispatcher(&recordingEmailSender{}, server.Client())

	alert := validAlert()
	alert.Channels = []Channel{{Type: ChannelSlack, Webhook: server.URL}}
	dispatcher.Dispatch(context.Background(), &alert, triggeredMeasurement())

	require.Len(t, payload.Blocks, 3)
	assert.Equal(t, "header", payload.Blocks[0].Type)
	assert.Equal(t, alert.Name, payload.Blocks[0].Text.Text)
	assert.Contains(t, payload.Blocks[1].Text.Text, "$15.50")
	assert.Contains(t, payload.Blocks[2].Elements[0].Text, "daily_budget")
}

func TestDispatchChannelIsolation(t *testing.T) {
	var slackDelivered bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slackDelivered = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// Email fails; slack must still be attempted
	email := &recordingEmailSender{fail: true}
	dispatcher := NewDispatcher(email, server.Client())

	alert := validAlert()
	alert.Channels = []Channel{
		{Type: ChannelEmail, Value: "dev@example.com"},
		{Type: ChannelSlack, Webhook: server.URL},
	}
	dispatcher.Dispatch(context.Background(), &alert, triggeredMeasurement())

	assert.True(t, slackDelivered)
}

func TestDispatchWebhookErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	dispatcher := NewDispatcher(&recordingEmailSender{}, server.Client())

	alert := validAlert()
	alert.Channels = []Channel{{Type: ChannelSlack, Webhook: server.URL}}

	// Must not panic or propagate; failure is logged and counted
	dispatcher.Dispatch(context.Background(), &alert, triggeredMeasurement())
}

func TestRenderEmailPerType(t *testing.T) {
	m := triggeredMeasurement()

	tests := []struct {
		alertType   AlertType
		wantSubject string
		wantBody    string
	}{
		{TypeDailyBudget, "Budget Alert", "Budget Exceeded"},
		{TypeHourlySpike, "Cost Spike Alert", "Cost Spike Detected"},
		{TypeErrorRate, "Error Rate Alert", "High Error Rate"},
	}

	for _, tt := range tests {
		t.Run(string(tt.alertType), func(t *testing.T) {
			alert := validAlert()
			alert.Type = tt.alertType

			subject, body := renderEmail(&alert, m)
			assert.Contains(t, subject, tt.wantSubject)
			assert.Contains(t, body, tt.wantBody)
		})
	}
}

func TestSlackSummaryErrorRate(t *testing.T) {
	alert := validAlert()
	alert.Type = TypeErrorRate
	alert.Threshold = 5.0

	m := &Measurement{Actual: 7.5, TotalCalls: 40, ErrorCalls: 3, Window: time.Hour}
	summary := slackSummary(&alert, m)
	assert.Contains(t, summary, "7.5%")
	assert.Contains(t, summary, "(3/40)")
}
