// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package database

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS user_actions (
		id          VARCHAR PRIMARY KEY,
		user_id     BIGINT NOT NULL,
		event_id    BIGINT NOT NULL,
		action_type VARCHAR NOT NULL,
		event_time  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_actions_user ON user_actions (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_user_actions_event ON user_actions (event_id)`,

	// event_a < event_b always holds; the CHECK rejects non-canonical writes.
	`CREATE TABLE IF NOT EXISTS event_similarities (
		event_a    BIGINT NOT NULL,
		event_b    BIGINT NOT NULL,
		score      DOUBLE NOT NULL,
		event_time TIMESTAMP NOT NULL,
		PRIMARY KEY (event_a, event_b),
		CHECK (event_a < event_b)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_event_similarities_b ON event_similarities (event_b)`,
}

func (db *DB) createTables(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
