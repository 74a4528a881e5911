// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package alerts

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

// CreateAlert creates a new alert
func (r *PostgresRepository) CreateAlert(ctx context.Context, alert *Alert) error {
	channels, err := json.Marshal(alert.Channels)
	if err != nil {
		return fmt.Errorf("failed to marshal channels: %w", err)
	}

	query := `
		INSERT INTO alerts (
			id, user_id, name, type, threshold, channels, enabled,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		alert.ID, alert.UserID, alert.Name, alert.Type, alert.Threshold,
		channels, alert.Enabled, alert.CreatedAt, alert.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrAlertExists
		}
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

// GetAlert retrieves an alert by ID
func (r *PostgresRepository) GetAlert(ctx context.Context, id string) (*Alert, error) {
	query := alertSelect + ` WHERE id = $1`

	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	return alert, nil
}

// UpdateAlert updates an existing alert's configuration
func (r *PostgresRepository) UpdateAlert(ctx context.Context, alert *Alert) error {
	channels, err := json.Marshal(alert.Channels)
	if err != nil {
		return fmt.Errorf("failed to marshal channels: %w", err)
	}

	query := `
		UPDATE alerts SET
			name = $2, type = $3, threshold = $4, channels = $5,
			enabled = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		alert.ID, alert.Name, alert.Type, alert.Threshold,
		channels, alert.Enabled, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return ErrAlertNotFound
	}

	return nil
}

// DeleteAlert deletes an alert
func (r *PostgresRepository) DeleteAlert(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return ErrAlertNotFound
	}

	return nil
}

// ListAlerts returns all of a user's alerts
func (r *PostgresRepository) ListAlerts(ctx context.Context, userID string) ([]Alert, error) {
	query := alertSelect + ` WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryAlerts(ctx, query, userID)
}

// ListEnabledAlerts returns a user's enabled alerts for evaluation
func (r *PostgresRepository) ListEnabledAlerts(ctx context.Context, userID string) ([]Alert, error) {
	query := alertSelect + ` WHERE user_id = $1 AND enabled = true`
	return r.queryAlerts(ctx, query, userID)
}

// ListAlertUserIDs returns the distinct users with at least one
// enabled alert
func (r *PostgresRepository) ListAlertUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM alerts WHERE enabled = true`)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert users: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		userIDs = append(userIDs, id)
	}

	return userIDs, rows.Err()
}

// TouchLastTriggered stamps last_triggered_at after a trigger
func (r *PostgresRepository) TouchLastTriggered(ctx context.Context, alertID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET last_triggered_at = $2 WHERE id = $1`, alertID, at)
	if err != nil {
		return fmt.Errorf("failed to update last_triggered_at: %w", err)
	}
	return nil
}

// WindowCostSum sums cost of a user's calls since the given instant
func (r *PostgresRepository) WindowCostSum(ctx context.Context, userID string, since time.Time) (float64, error) {
	var total sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
		SELECT SUM(cost) FROM api_calls
		WHERE user_id = $1 AND timestamp >= $2
	`, userID, since.UnixMilli()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum window cost: %w", err)
	}
	return total.Float64, nil
}

// WindowCallStats counts a user's calls and errors since the given
// instant
func (r *PostgresRepository) WindowCallStats(ctx context.Context, userID string, since time.Time) (int64, int64, error) {
	var total, errCount sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END)
		FROM api_calls
		WHERE user_id = $1 AND timestamp >= $2
	`, userID, since.UnixMilli()).Scan(&total, &errCount)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count window calls: %w", err)
	}
	return total.Int64, errCount.Int64, nil
}

const alertSelect = `
	SELECT id, user_id, name, type, threshold, channels, enabled,
		   last_triggered_at, created_at, updated_at
	FROM alerts`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row rowScanner) (*Alert, error) {
	var alert Alert
	var channels []byte
	var lastTriggered sql.NullTime

	err := row.Scan(
		&alert.ID, &alert.UserID, &alert.Name, &alert.Type, &alert.Threshold,
		&channels, &alert.Enabled, &lastTriggered, &alert.CreatedAt, &alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastTriggered.Valid {
		alert.LastTriggeredAt = &lastTriggered.Time
	}
	if len(channels) > 0 {
		if err := json.Unmarshal(channels, &alert.Channels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal channels: %w", err)
		}
	}

	return &alert, nil
}

func (r *PostgresRepository) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}

	return alerts, rows.Err()
}
