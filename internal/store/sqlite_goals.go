package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hyperengineering/cadence/internal/types"
	"github.com/oklog/ulid/v2"
)

// CreateGoal stores a new goal.
func (s *SQLiteStore) CreateGoal(ctx context.Context, goal types.Goal) (*types.Goal, error) {
	now := time.Now().UTC()
	goal.ID = ulid.Make().String()
	goal.CreatedAt = now
	goal.UpdatedAt = now
	if goal.Status == "" {
		goal.Status = types.GoalNotStarted
	}
	if goal.Priority == 0 {
		goal.Priority = types.PriorityMedium
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals (id, user_id, title, description, status, priority, target_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, goal.ID, goal.UserID, goal.Title, goal.Description, string(goal.Status),
		int(goal.Priority), nullTime(goal.TargetDate), fmtTime(now), fmtTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}

	return &goal, nil
}

// GetGoal returns a goal with progress derived from its child tasks:
// completed count over total count, cancelled children excluded.
func (s *SQLiteStore) GetGoal(ctx context.Context, id string) (*types.Goal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, description, status, priority, target_date, created_at, updated_at
		FROM goals WHERE id = ?
	`, id)

	goal, err := scanGoal(row)
	if err != nil {
		return nil, err
	}

	if err := s.fillGoalProgress(ctx, goal); err != nil {
		return nil, err
	}
	return goal, nil
}

// UpdateGoal applies a partial update. Marking a goal completed while it
// still owns incomplete tasks fails with ErrGoalIncomplete.
func (s *SQLiteStore) UpdateGoal(ctx context.Context, id string, patch GoalPatch) (*types.Goal, error) {
	goal, err := s.GetGoal(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil && *patch.Status == types.GoalCompleted && goal.Status != types.GoalCompleted {
		var incomplete int
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM tasks
			WHERE goal_id = ? AND status NOT IN ('completed', 'cancelled')
		`, id).Scan(&incomplete)
		if err != nil {
			return nil, fmt.Errorf("count incomplete tasks: %w", err)
		}
		if incomplete > 0 {
			return nil, ErrGoalIncomplete
		}
	}

	if patch.Title != nil {
		goal.Title = *patch.Title
	}
	if patch.Description != nil {
		goal.Description = *patch.Description
	}
	if patch.Status != nil {
		goal.Status = *patch.Status
	}
	if patch.Priority != nil {
		goal.Priority = *patch.Priority
	}
	if patch.TargetDate != nil {
		goal.TargetDate = patch.TargetDate
	}
	goal.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE goals SET title = ?, description = ?, status = ?, priority = ?,
			target_date = ?, updated_at = ?
		WHERE id = ?
	`, goal.Title, goal.Description, string(goal.Status), int(goal.Priority),
		nullTime(goal.TargetDate), fmtTime(goal.UpdatedAt), id)
	if err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}

	if err := s.fillGoalProgress(ctx, goal); err != nil {
		return nil, err
	}
	return goal, nil
}

// fillGoalProgress derives progress from child task counts.
func (s *SQLiteStore) fillGoalProgress(ctx context.Context, goal *types.Goal) error {
	var total, done int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0)
		FROM tasks WHERE goal_id = ? AND status != 'cancelled'
	`, goal.ID).Scan(&total, &done)
	if err != nil {
		return fmt.Errorf("derive goal progress: %w", err)
	}

	goal.TaskCount = total
	goal.DoneCount = done
	if total > 0 {
		goal.Progress = done * 100 / total
	}
	return nil
}

func scanGoal(scanner interface{ Scan(...any) error }) (*types.Goal, error) {
	var g types.Goal
	var status string
	var priority int
	var targetDate sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(&g.ID, &g.UserID, &g.Title, &g.Description, &status,
		&priority, &targetDate, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan goal: %w", err)
	}

	g.Status = types.GoalStatus(status)
	g.Priority = types.TaskPriority(priority)
	if targetDate.Valid {
		ts := parseTime(targetDate.String)
		g.TargetDate = &ts
	}
	g.CreatedAt = parseTime(createdAt)
	g.UpdatedAt = parseTime(updatedAt)
	return &g, nil
}
