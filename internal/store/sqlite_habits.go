package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hyperengineering/cadence/internal/momentum"
	"github.com/hyperengineering/cadence/internal/types"
	"github.com/oklog/ulid/v2"
)

// CreateHabit stores a new habit.
func (s *SQLiteStore) CreateHabit(ctx context.Context, habit types.Habit) (*types.Habit, error) {
	now := time.Now().UTC()
	habit.ID = ulid.Make().String()
	habit.CreatedAt = now
	habit.UpdatedAt = now
	habit.Active = true
	if habit.Frequency == "" {
		habit.Frequency = types.FrequencyDaily
	}
	if habit.TargetCount == 0 {
		habit.TargetCount = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO habits (id, user_id, name, description, frequency, target_count, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
	`, habit.ID, habit.UserID, habit.Name, habit.Description,
		string(habit.Frequency), habit.TargetCount, fmtTime(now), fmtTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert habit: %w", err)
	}

	return &habit, nil
}

// GetHabit returns a habit with streaks and completion rate recomputed from
// its entry history.
func (s *SQLiteStore) GetHabit(ctx context.Context, id string) (*types.Habit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, description, frequency, target_count, active, created_at, updated_at
		FROM habits WHERE id = ?
	`, id)

	habit, err := scanHabit(row)
	if err != nil {
		return nil, err
	}

	if err := s.fillHabitStats(ctx, habit); err != nil {
		return nil, err
	}
	return habit, nil
}

// ListHabits returns a user's habits with derived stats.
func (s *SQLiteStore) ListHabits(ctx context.Context, userID string) ([]types.Habit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, description, frequency, target_count, active, created_at, updated_at
		FROM habits WHERE user_id = ? ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query habits: %w", err)
	}
	defer rows.Close()

	var habits []types.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range habits {
		if err := s.fillHabitStats(ctx, &habits[i]); err != nil {
			return nil, err
		}
	}
	return habits, nil
}

// TrackHabit records a tracking event for a date (YYYY-MM-DD). A second
// event on the same day updates the count rather than adding a row.
func (s *SQLiteStore) TrackHabit(ctx context.Context, habitID, entryDate string, count int) (*types.HabitEntry, error) {
	if _, err := time.Parse("2006-01-02", entryDate); err != nil {
		return nil, fmt.Errorf("invalid entry date %q: %w", entryDate, err)
	}
	if _, err := s.GetHabit(ctx, habitID); err != nil {
		return nil, err
	}
	if count < 1 {
		count = 1
	}

	now := time.Now().UTC()
	entry := types.HabitEntry{
		ID:        ulid.Make().String(),
		HabitID:   habitID,
		EntryDate: entryDate,
		Count:     count,
		CreatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO habit_entries (id, habit_id, entry_date, count, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (habit_id, entry_date) DO UPDATE SET count = excluded.count
	`, entry.ID, entry.HabitID, entry.EntryDate, entry.Count, fmtTime(now))
	if err != nil {
		return nil, fmt.Errorf("track habit: %w", err)
	}

	return &entry, nil
}

// fillHabitStats recomputes streaks and completion rate from entries.
// Completion rate is tracked days over days since the habit was created,
// capped at 100%.
func (s *SQLiteStore) fillHabitStats(ctx context.Context, habit *types.Habit) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_date FROM habit_entries WHERE habit_id = ? ORDER BY entry_date
	`, habit.ID)
	if err != nil {
		return fmt.Errorf("query habit entries: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return err
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	now := time.Now().UTC()
	stats := momentum.StreakFromDays(days, now)
	habit.CurrentStreak = stats.CurrentStreak
	habit.BestStreak = stats.BestStreak

	ageDays := int(now.Sub(habit.CreatedAt).Hours()/24) + 1
	if ageDays < 1 {
		ageDays = 1
	}
	rate := float64(len(days)) / float64(ageDays) * 100
	if rate > 100 {
		rate = 100
	}
	habit.CompletionRate = rate
	return nil
}

func scanHabit(scanner interface{ Scan(...any) error }) (*types.Habit, error) {
	var h types.Habit
	var frequency string
	var active int
	var createdAt, updatedAt string

	err := scanner.Scan(&h.ID, &h.UserID, &h.Name, &h.Description, &frequency,
		&h.TargetCount, &active, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan habit: %w", err)
	}

	h.Frequency = types.HabitFrequency(frequency)
	h.Active = active == 1
	h.CreatedAt = parseTime(createdAt)
	h.UpdatedAt = parseTime(updatedAt)
	return &h, nil
}
