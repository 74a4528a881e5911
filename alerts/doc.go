// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

/*
Package alerts evaluates user-configured cost and error-rate alerts
against persisted usage events and delivers triggered alerts to email
and Slack channels.

Three alert types exist, each a trailing-window metric compared with >=
against the configured threshold:

  - daily_budget: sum of cost over the trailing 24 hours
  - hourly_spike: sum of cost over the trailing hour
  - error_rate:   error percentage over the trailing hour

A Sweeper runs the evaluator for every user with at least one enabled
alert, once at startup and then at a fixed interval. Channel delivery
is isolated per channel: one failing webhook neither blocks the other
channels nor the alert's last_triggered_at update.

By default an alert whose condition stays true re-fires on every sweep,
matching the original system's behavior. Wiring a CooldownStore
(Redis-backed or in-memory) suppresses re-fires for one window per
alert.
*/
package alerts
