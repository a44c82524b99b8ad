package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperengineering/cadence/internal/types"
	"github.com/oklog/ulid/v2"
)

// RecordNotificationAttempt writes one dispatch decision to the audit log.
// Suppressions are recorded too, so the log explains absent notifications.
func (s *SQLiteStore) RecordNotificationAttempt(ctx context.Context, attempt types.NotificationAttempt) error {
	if attempt.ID == "" {
		attempt.ID = ulid.Make().String()
	}
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_attempts (id, user_id, subject, channel, provider, outcome, detail, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, attempt.ID, attempt.UserID, attempt.Subject, attempt.Channel,
		attempt.Provider, string(attempt.Outcome), attempt.Detail,
		fmtTime(attempt.AttemptedAt))
	if err != nil {
		return fmt.Errorf("insert notification attempt: %w", err)
	}
	return nil
}

// ListNotificationAttempts returns a user's most recent dispatch decisions.
func (s *SQLiteStore) ListNotificationAttempts(ctx context.Context, userID string, limit int) ([]types.NotificationAttempt, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, subject, channel, provider, outcome, detail, attempted_at
		FROM notification_attempts
		WHERE user_id = ?
		ORDER BY attempted_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notification attempts: %w", err)
	}
	defer rows.Close()

	var attempts []types.NotificationAttempt
	for rows.Next() {
		var a types.NotificationAttempt
		var outcome, attemptedAt string
		err := rows.Scan(&a.ID, &a.UserID, &a.Subject, &a.Channel, &a.Provider,
			&outcome, &a.Detail, &attemptedAt)
		if err != nil {
			return nil, fmt.Errorf("scan notification attempt: %w", err)
		}
		a.Outcome = types.NotificationOutcome(outcome)
		a.AttemptedAt = parseTime(attemptedAt)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
