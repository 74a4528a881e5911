// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"apimetrics/platform/shared/logger"
)

// EmailSender delivers a rendered alert message to an address. It may
// fail; failures surface as errors and never as panics across the
// dispatcher boundary.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// sendGridEndpoint is the SendGrid v3 mail send API
const sendGridEndpoint = "https://api.sendgrid.com/v3/mail/send"

// SendGridSender delivers email through the SendGrid v3 REST API
type SendGridSender struct {
	apiKey    string
	fromEmail string
	fromName  string
	client    *http.Client
}

// NewSendGridSender creates a SendGrid-backed email sender
func NewSendGridSender(apiKey, fromEmail, fromName string, client *http.Client) *SendGridSender {
	if client == nil {
		client = http.DefaultClient
	}
	if fromEmail == "" {
		fromEmail = "alerts@apimetrics.dev"
	}
	if fromName == "" {
		fromName = "APImetrics"
	}
	return &SendGridSender{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
		client:    client,
	}
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridMail struct {
	Personalizations []struct {
		To []sendGridAddress `json:"to"`
	} `json:"personalizations"`
	From    sendGridAddress `json:"from"`
	Subject string          `json:"subject"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

// Send posts the message to the SendGrid mail send endpoint
func (s *SendGridSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	mail := sendGridMail{
		From:    sendGridAddress{Email: s.fromEmail, Name: s.fromName},
		Subject: subject,
	}
	mail.Personalizations = append(mail.Personalizations, struct {
		To []sendGridAddress `json:"to"`
	}{To: []sendGridAddress{{Email: to}}})
	mail.Content = append(mail.Content, struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}{Type: "text/html", Value: htmlBody})

	body, err := json.Marshal(mail)
	if err != nil {
		return fmt.Errorf("failed to marshal mail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendGridEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build mail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail send returned status %d", resp.StatusCode)
	}

	return nil
}

// LogSender logs messages instead of delivering them. Used when no
// SendGrid key is configured, matching the original behavior of
// skipping sends in unconfigured environments.
type LogSender struct {
	logger *logger.Logger
}

// NewLogSender creates a log-only email sender
func NewLogSender() *LogSender {
	return &LogSender{logger: logger.New("email")}
}

// Send logs the message that would have been delivered
func (s *LogSender) Send(_ context.Context, to, subject, _ string) error {
	s.logger.Info("", "", "Email delivery not configured, skipping send", map[string]interface{}{
		"to":      to,
		"subject": subject,
	})
	return nil
}

// renderEmail produces the subject and HTML body for an alert type
func renderEmail(alert *Alert, m *Measurement) (subject, body string) {
	switch alert.Type {
	case TypeDailyBudget:
		subject = fmt.Sprintf("Budget Alert: $%.2f / $%.2f", m.Actual, alert.Threshold)
		body = emailBody("Budget Exceeded",
			fmt.Sprintf("%s has exceeded its %s budget limit.", alert.Name, m.TimeRange()),
			fmt.Sprintf("Budget threshold: $%.2f<br>Current spending: <strong>$%.2f</strong>", alert.Threshold, m.Actual),
			"Consider reviewing your usage or adjusting your budget limits.")
	case TypeHourlySpike:
		subject = fmt.Sprintf("Cost Spike Alert: $%.2f in the last hour", m.Actual)
		body = emailBody("Cost Spike Detected",
			fmt.Sprintf("We detected a significant spike in %s's API costs.", alert.Name),
			fmt.Sprintf("%s cost: <strong>$%.2f</strong> (threshold $%.2f)", m.TimeRange(), m.Actual, alert.Threshold),
			"This may indicate an issue or unexpected usage pattern.")
	case TypeErrorRate:
		subject = fmt.Sprintf("Error Rate Alert: %.1f%% (threshold: %.0f%%)", m.Actual, alert.Threshold)
		body = emailBody("High Error Rate",
			fmt.Sprintf("%s is experiencing a high error rate.", alert.Name),
			fmt.Sprintf("Threshold: %.0f%%<br>Current error rate: <strong>%.1f%%</strong> (%d/%d calls)",
				alert.Threshold, m.Actual, m.ErrorCalls, m.TotalCalls),
			"Please check your API configuration and error logs.")
	}
	return subject, body
}

// emailBody renders the shared alert email shell
func emailBody(heading, lead, metrics, advice string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h1>%s</h1>
    <p>%s</p>
    <div style="background: #fef2f2; border-left: 4px solid #dc2626; padding: 16px; margin: 20px 0;">
      <p>%s</p>
    </div>
    <p>%s</p>
    <p style="color: #6b7280; font-size: 14px;">You're receiving this because you set up alerts for your APImetrics account.</p>
  </div>
</body>
</html>`, heading, lead, metrics, advice)
}
