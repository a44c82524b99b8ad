package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperengineering/cadence/internal/types"
	"github.com/oklog/ulid/v2"
)

const taskColumns = `id, user_id, goal_id, title, description, status, priority,
	start_time, end_time, estimated_hours, actual_hours, energy_level,
	focus_minutes, dependencies, completed_at, created_at, updated_at`

// CreateTask stores a new task. ID and timestamps are assigned here; status
// defaults to pending when unset.
func (s *SQLiteStore) CreateTask(ctx context.Context, task types.Task) (*types.Task, error) {
	now := time.Now().UTC()
	task.ID = ulid.Make().String()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = types.TaskPending
	}
	if task.Priority == 0 {
		task.Priority = types.PriorityMedium
	}
	if task.StartTime.IsZero() {
		task.StartTime = now
	}

	deps, err := json.Marshal(task.Dependencies)
	if err != nil {
		return nil, fmt.Errorf("marshal dependencies: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, goal_id, title, description, status, priority,
			start_time, end_time, estimated_hours, actual_hours, energy_level,
			focus_minutes, dependencies, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)
	`, task.ID, task.UserID, nullString(task.GoalID), task.Title, task.Description,
		string(task.Status), int(task.Priority), fmtTime(task.StartTime),
		nullTime(task.EndTime), task.EstimatedHours, task.ActualHours,
		task.EnergyLevel, task.FocusMinutes, string(deps), fmtTime(now), fmtTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	return &task, nil
}

// GetTask returns a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*types.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// UpdateTask applies a partial update. A transition into completed stamps
// completed_at; a transition out of completed clears it.
func (s *SQLiteStore) UpdateTask(ctx context.Context, id string, patch TaskPatch) (*types.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Status != nil && *patch.Status != task.Status {
		if *patch.Status == types.TaskCompleted {
			task.CompletedAt = &now
		} else if task.Status == types.TaskCompleted {
			task.CompletedAt = nil
		}
		task.Status = *patch.Status
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.StartTime != nil {
		task.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		task.EndTime = patch.EndTime
	}
	if patch.EstimatedHours != nil {
		task.EstimatedHours = *patch.EstimatedHours
	}
	if patch.ActualHours != nil {
		task.ActualHours = *patch.ActualHours
	}
	if patch.EnergyLevel != nil {
		task.EnergyLevel = *patch.EnergyLevel
	}
	if patch.FocusMinutes != nil {
		task.FocusMinutes = *patch.FocusMinutes
	}
	if patch.Dependencies != nil {
		task.Dependencies = *patch.Dependencies
	}
	task.UpdatedAt = now

	deps, err := json.Marshal(task.Dependencies)
	if err != nil {
		return nil, fmt.Errorf("marshal dependencies: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?,
			start_time = ?, end_time = ?, estimated_hours = ?, actual_hours = ?,
			energy_level = ?, focus_minutes = ?, dependencies = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ?
	`, task.Title, task.Description, string(task.Status), int(task.Priority),
		fmtTime(task.StartTime), nullTime(task.EndTime), task.EstimatedHours,
		task.ActualHours, task.EnergyLevel, task.FocusMinutes, string(deps),
		nullTime(task.CompletedAt), fmtTime(now), id)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	return task, nil
}

// CancelTask marks a task cancelled, excluding it from all active scans.
func (s *SQLiteStore) CancelTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = 'cancelled', updated_at = ? WHERE id = ?
	`, fmtTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("cancel task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetActiveTasks returns a user's non-completed, non-cancelled tasks in a
// stable order (start time, then ID).
func (s *SQLiteStore) GetActiveTasks(ctx context.Context, userID string) ([]types.Task, error) {
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = ? AND status NOT IN ('completed', 'cancelled')
		ORDER BY start_time, id
	`, userID)
}

// GetTasksForUser returns all or only active tasks for a user.
func (s *SQLiteStore) GetTasksForUser(ctx context.Context, userID string, activeOnly bool) ([]types.Task, error) {
	if activeOnly {
		return s.GetActiveTasks(ctx, userID)
	}
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = ?
		ORDER BY start_time, id
	`, userID)
}

// CompletionsSince counts tasks the user completed at or after the given time.
func (s *SQLiteStore) CompletionsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE user_id = ? AND completed_at IS NOT NULL AND completed_at >= ?
	`, userID, fmtTime(since)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completions: %w", err)
	}
	return count, nil
}

// CompletionDays returns the distinct UTC days (YYYY-MM-DD) on which the
// user completed at least one task. Input for streak recomputation.
func (s *SQLiteStore) CompletionDays(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT substr(completed_at, 1, 10) FROM tasks
		WHERE user_id = ? AND completed_at IS NOT NULL
		ORDER BY 1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query completion days: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// ApplySchedule rewrites task start/end times in a single transaction.
// A failure on any slot rolls back the whole batch, leaving the prior
// schedule intact. Slots referencing inactive or foreign tasks are rejected.
func (s *SQLiteStore) ApplySchedule(ctx context.Context, userID string, slots []types.SlotAssignment) error {
	if len(slots) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := fmtTime(time.Now().UTC())
	for _, slot := range slots {
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET start_time = ?, end_time = ?, updated_at = ?
			WHERE id = ? AND user_id = ? AND status NOT IN ('completed', 'cancelled')
		`, fmtTime(slot.StartTime), fmtTime(slot.EndTime), now, slot.TaskID, userID)
		if err != nil {
			return fmt.Errorf("apply slot for task %s: %w", slot.TaskID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("apply slot for task %s: %w", slot.TaskID, ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schedule: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryTasks(ctx context.Context, query string, args ...any) ([]types.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// scanTask scans a row into a Task, handling nullable columns and the
// dependencies JSON array.
func scanTask(scanner interface{ Scan(...any) error }) (*types.Task, error) {
	var t types.Task
	var goalID sql.NullString
	var status string
	var priority int
	var startTime string
	var endTime, completedAt sql.NullString
	var depsJSON string
	var createdAt, updatedAt string

	err := scanner.Scan(&t.ID, &t.UserID, &goalID, &t.Title, &t.Description,
		&status, &priority, &startTime, &endTime, &t.EstimatedHours,
		&t.ActualHours, &t.EnergyLevel, &t.FocusMinutes, &depsJSON,
		&completedAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.GoalID = goalID.String
	t.Status = types.TaskStatus(status)
	t.Priority = types.TaskPriority(priority)
	t.StartTime = parseTime(startTime)
	if endTime.Valid {
		ts := parseTime(endTime.String)
		t.EndTime = &ts
	}
	if completedAt.Valid {
		ts := parseTime(completedAt.String)
		t.CompletedAt = &ts
	}
	if depsJSON != "" {
		if err := json.Unmarshal([]byte(depsJSON), &t.Dependencies); err != nil {
			return nil, fmt.Errorf("parse dependencies JSON: %w", err)
		}
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}
