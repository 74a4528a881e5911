// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Slack Block Kit payload types, kept to the subset the dispatcher
// emits

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

// buildSlackMessage renders the structured webhook payload: header =
// alert name, section = human-readable summary, context = type and
// threshold
func buildSlackMessage(alert *Alert, m *Measurement) slackMessage {
	return slackMessage{
		Text: "APImetrics Alert",
		Blocks: []slackBlock{
			{
				Type: "header",
				Text: &slackText{Type: "plain_text", Text: alert.Name},
			},
			{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: slackSummary(alert, m)},
			},
			{
				Type: "context",
				Elements: []slackText{
					{
						Type: "mrkdwn",
						Text: fmt.Sprintf("Alert Type: `%s` | Threshold: %g", alert.Type, alert.Threshold),
					},
				},
			},
		},
	}
}

// slackSummary renders the human-readable body per alert type
func slackSummary(alert *Alert, m *Measurement) string {
	switch alert.Type {
	case TypeDailyBudget:
		return fmt.Sprintf(
			"Your daily API spending has reached *$%.2f*, exceeding your threshold of $%.2f.\n\nTotal calls: %d\nConsider reviewing your usage or adjusting your budget.",
			m.Actual, alert.Threshold, m.TotalCalls)
	case TypeHourlySpike:
		return fmt.Sprintf(
			"Unusual spike detected! API costs reached *$%.2f* in the last hour, exceeding your threshold of $%.2f.\n\nTotal calls: %d\nThis may indicate an issue or unexpected usage pattern.",
			m.Actual, alert.Threshold, m.TotalCalls)
	case TypeErrorRate:
		return fmt.Sprintf(
			"High error rate detected! *%.1f%%* of API calls are failing (%d/%d), exceeding your threshold of %.0f%%.\n\nPlease check your API configuration and error logs.",
			m.Actual, m.ErrorCalls, m.TotalCalls, alert.Threshold)
	}
	return fmt.Sprintf("Alert triggered: %s", alert.Name)
}

// postSlack delivers the payload to a webhook URL
func postSlack(ctx context.Context, client *http.Client, webhook string, msg slackMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
