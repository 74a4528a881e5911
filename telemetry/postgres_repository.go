// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// InsertCalls bulk-inserts raw calls with ON CONFLICT DO NOTHING so a
// re-sent batch after a transport timeout never double-counts. Returns
// the IDs of the rows actually inserted (post-dedup).
func (r *PostgresRepository) InsertCalls(ctx context.Context, calls []APICall) ([]string, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	const cols = 14
	placeholders := make([]string, 0, len(calls))
	args := make([]interface{}, 0, len(calls)*cols)

	for i, call := range calls {
		base := i * cols
		ph := make([]string, cols)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")

		metadata, err := json.Marshal(call.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata for call %s: %w", call.ID, err)
		}

		args = append(args,
			call.ID, call.UserID, call.Timestamp, call.Provider, call.Model,
			call.Endpoint, nullInt(call.InputTokens), nullInt(call.OutputTokens),
			nullInt(call.TotalTokens), call.Cost, call.Latency, call.Status,
			nullString(call.ErrorMessage), metadata,
		)
	}

	query := `
		INSERT INTO api_calls (
			id, user_id, timestamp, provider, model, endpoint,
			input_tokens, output_tokens, total_tokens, cost, latency,
			status, error_message, metadata
		) VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (id) DO NOTHING
		RETURNING id
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert calls: %w", err)
	}
	defer rows.Close()

	var inserted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan inserted ID: %w", err)
		}
		inserted = append(inserted, id)
	}

	return inserted, rows.Err()
}

// UpsertDailyStat atomically merges a partial stat into the persisted
// bucket. Additive columns sum; avg_latency is recomputed as the
// call-count-weighted mean in the same statement, so concurrent
// flushes for the same bucket cannot lose updates.
func (r *PostgresRepository) UpsertDailyStat(ctx context.Context, stat *DailyStat) error {
	query := `
		INSERT INTO daily_stats (
			user_id, date, provider, model, total_calls, successful_calls,
			failed_calls, total_cost, total_input_tokens, total_output_tokens,
			avg_latency, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id, date, provider, model) DO UPDATE SET
			total_calls = daily_stats.total_calls + EXCLUDED.total_calls,
			successful_calls = daily_stats.successful_calls + EXCLUDED.successful_calls,
			failed_calls = daily_stats.failed_calls + EXCLUDED.failed_calls,
			total_cost = daily_stats.total_cost + EXCLUDED.total_cost,
			total_input_tokens = daily_stats.total_input_tokens + EXCLUDED.total_input_tokens,
			total_output_tokens = daily_stats.total_output_tokens + EXCLUDED.total_output_tokens,
			avg_latency = (daily_stats.avg_latency * daily_stats.total_calls + EXCLUDED.avg_latency * EXCLUDED.total_calls)
				/ (daily_stats.total_calls + EXCLUDED.total_calls),
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		stat.UserID, stat.Date, stat.Provider, stat.Model,
		stat.TotalCalls, stat.SuccessfulCalls, stat.FailedCalls,
		stat.TotalCost, stat.TotalInputTokens, stat.TotalOutputTokens,
		stat.AvgLatencyMs, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily stat %s: %w", stat.Key(), err)
	}

	return nil
}

// GetDailyStats returns a user's buckets for an inclusive date range
func (r *PostgresRepository) GetDailyStats(ctx context.Context, userID, fromDate, toDate string) ([]DailyStat, error) {
	query := `
		SELECT user_id, date, provider, model, total_calls, successful_calls,
			   failed_calls, total_cost, total_input_tokens, total_output_tokens,
			   avg_latency, updated_at
		FROM daily_stats
		WHERE user_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date DESC, provider, model
	`

	rows, err := r.db.QueryContext(ctx, query, userID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []DailyStat
	for rows.Next() {
		var s DailyStat
		if err := rows.Scan(
			&s.UserID, &s.Date, &s.Provider, &s.Model,
			&s.TotalCalls, &s.SuccessfulCalls, &s.FailedCalls,
			&s.TotalCost, &s.TotalInputTokens, &s.TotalOutputTokens,
			&s.AvgLatencyMs, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// ListCalls returns a user's raw calls, newest first
func (r *PostgresRepository) ListCalls(ctx context.Context, userID string, opts CallQueryOptions) ([]APICall, error) {
	query := `
		SELECT id, user_id, timestamp, provider, model, endpoint,
			   input_tokens, output_tokens, total_tokens, cost, latency,
			   status, error_message, metadata
		FROM api_calls
		WHERE user_id = $1
	`
	args := []interface{}{userID}

	if opts.Provider != "" {
		args = append(args, opts.Provider)
		query += fmt.Sprintf(" AND provider = $%d", len(args))
	}
	if opts.Model != "" {
		args = append(args, opts.Model)
		query += fmt.Sprintf(" AND model = $%d", len(args))
	}
	if opts.Status != "" {
		args = append(args, opts.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if opts.SinceMs > 0 {
		args = append(args, opts.SinceMs)
		query += fmt.Sprintf(" AND timestamp >= $%d", len(args))
	}
	if opts.UntilMs > 0 {
		args = append(args, opts.UntilMs)
		query += fmt.Sprintf(" AND timestamp < $%d", len(args))
	}

	query += " ORDER BY timestamp DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query calls: %w", err)
	}
	defer rows.Close()

	var calls []APICall
	for rows.Next() {
		var c APICall
		var inTok, outTok, totTok sql.NullInt64
		var errMsg sql.NullString
		var metadata []byte

		if err := rows.Scan(
			&c.ID, &c.UserID, &c.Timestamp, &c.Provider, &c.Model, &c.Endpoint,
			&inTok, &outTok, &totTok, &c.Cost, &c.Latency,
			&c.Status, &errMsg, &metadata,
		); err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}

		c.InputTokens = int(inTok.Int64)
		c.OutputTokens = int(outTok.Int64)
		c.TotalTokens = int(totTok.Int64)
		c.ErrorMessage = errMsg.String

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for call %s: %w", c.ID, err)
			}
		}

		calls = append(calls, c)
	}

	return calls, rows.Err()
}

// Ping verifies store connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// nullString converts an empty string to NULL for database insertion
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullInt converts a zero value to NULL for database insertion
func nullInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
