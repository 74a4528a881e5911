// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package alerts

import (
	"context"
	"net/http"
	"time"

	"apimetrics/platform/shared/logger"
)

// defaultChannelTimeout bounds each channel delivery so one unreachable
// webhook cannot stall a sweep
const defaultChannelTimeout = 10 * time.Second

// Dispatcher delivers a triggered alert to every configured channel
// with per-channel isolation: one channel's failure never prevents
// delivery attempts to the others and never propagates upward.
type Dispatcher struct {
	email   EmailSender
	client  *http.Client
	timeout time.Duration
	logger  *logger.Logger
}

// NewDispatcher creates a notification dispatcher. A nil email sender
// falls back to log-only delivery; a nil client uses a default with the
// channel timeout.
func NewDispatcher(email EmailSender, client *http.Client) *Dispatcher {
	if email == nil {
		email = NewLogSender()
	}
	if client == nil {
		client = &http.Client{Timeout: defaultChannelTimeout}
	}
	return &Dispatcher{
		email:   email,
		client:  client,
		timeout: defaultChannelTimeout,
		logger:  logger.New("dispatcher"),
	}
}

// Dispatch attempts delivery to every channel. Failures are logged and
// counted, never returned: delivery failure is channel-local, not
// alert-local.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *Alert, m *Measurement) {
	for i := range alert.Channels {
		channel := &alert.Channels[i]

		channelCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := d.deliver(channelCtx, channel, alert, m)
		cancel()

		if err != nil {
			promNotifyFailures.WithLabelValues(string(channel.Type)).Inc()
			d.logger.ErrorWithErr(alert.UserID, "", "Channel delivery failed", err, map[string]interface{}{
				"alert_id": alert.ID,
				"channel":  channel.Type,
			})
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, channel *Channel, alert *Alert, m *Measurement) error {
	switch channel.Type {
	case ChannelEmail:
		subject, body := renderEmail(alert, m)
		return d.email.Send(ctx, channel.Value, subject, body)
	case ChannelSlack:
		return postSlack(ctx, d.client, channel.Webhook, buildSlackMessage(alert, m))
	}
	return ErrInvalidChannelType
}
