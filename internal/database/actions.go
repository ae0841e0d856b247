// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/eventrec/internal/metrics"
	"github.com/tomtom215/eventrec/internal/models"
)

const tableUserActions = "user_actions"

// AppendUserAction stores a. An action without an id gets a new UUID.
// Re-appending an id that is already stored is a no-op, so redelivered
// messages do not duplicate the log. It reports whether a row was written.
func (db *DB) AppendUserAction(ctx context.Context, a *models.UserAction) (inserted bool, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordStoreQuery("append", tableUserActions, time.Since(start), err) }()

	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO user_actions (id, user_id, event_id, action_type, event_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		a.ID, a.UserID, a.EventID, a.Kind.String(), a.Timestamp.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to append user action: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// UserActionsByUser returns every action of userID, oldest first.
func (db *DB) UserActionsByUser(ctx context.Context, userID int64) (actions []models.UserAction, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordStoreQuery("list_by_user", tableUserActions, time.Since(start), err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, event_id, action_type, event_time
		FROM user_actions
		WHERE user_id = ?
		ORDER BY event_time ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user actions: %w", err)
	}
	return scanUserActions(rows)
}

// UserActionsByEvent returns every action on eventID, oldest first.
func (db *DB) UserActionsByEvent(ctx context.Context, eventID int64) (actions []models.UserAction, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordStoreQuery("list_by_event", tableUserActions, time.Since(start), err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, event_id, action_type, event_time
		FROM user_actions
		WHERE event_id = ?
		ORDER BY event_time ASC, id ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query event actions: %w", err)
	}
	return scanUserActions(rows)
}

// CountUserActions returns the number of stored actions.
func (db *DB) CountUserActions(ctx context.Context) (int64, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var n int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_actions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count user actions: %w", err)
	}
	return n, nil
}

func scanUserActions(rows *sql.Rows) ([]models.UserAction, error) {
	defer closeQuietly(rows)

	var out []models.UserAction
	for rows.Next() {
		var (
			a    models.UserAction
			kind string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.EventID, &kind, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan user action: %w", err)
		}
		a.Kind = models.ParseActionKind(kind)
		a.Timestamp = a.Timestamp.UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user actions: %w", err)
	}
	return out, nil
}
