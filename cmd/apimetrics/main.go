// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the APImetrics platform service.
//
// The platform ingests API usage events from client SDKs, maintains
// per-day usage aggregates, and evaluates cost and error-rate alerts
// on a background schedule.
//
// Usage:
//
//	./apimetrics
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8080)
//	DATABASE_URL - PostgreSQL connection string (required)
//	API_KEYS - comma-separated key:user_id pairs for ingest auth
//	REDIS_URL - Redis URL for alert cooldowns (optional)
//	SENDGRID_API_KEY - SendGrid key for email alerts (optional)
//	SENDGRID_FROM_EMAIL - alert sender address (optional)
//	PRICING_FILE - YAML pricing overrides (optional)
//	SWEEP_INTERVAL - alert sweep cadence, e.g. "2m" (default: 5m)
package main

import (
	"github.com/joho/godotenv"

	"apimetrics/platform/server"
)

func main() {
	// Local development convenience; production sets real env vars
	_ = godotenv.Load()

	server.Run()
}
