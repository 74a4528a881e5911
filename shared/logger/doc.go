// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

/*
Package logger provides structured JSON logging for APImetrics services.

Each log entry is written to stdout as single-line JSON with a
timestamp, level, component name, instance/container identifiers, and
optional user and request correlation IDs:

	log := logger.New("ingest")
	log.Info("user-123", "req-456", "Batch accepted", map[string]interface{}{
	    "accepted": 42,
	})

The INSTANCE_ID environment variable, set during deployment, is attached
to every entry. Logger instances are safe for concurrent use.
*/
package logger
