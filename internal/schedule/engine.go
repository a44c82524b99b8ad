// Package schedule recomputes a user's task timeline. Tasks are ordered by
// a dependency-aware topological pass and packed into sequential working
// slots; the resulting schedule replaces the old one atomically.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hyperengineering/cadence/internal/types"
)

const (
	workdayStartHour = 8
	workdayEndHour   = 20
	defaultSlot      = time.Hour
)

// TaskStore defines the store operations the engine needs.
type TaskStore interface {
	GetActiveTasks(ctx context.Context, userID string) ([]types.Task, error)
	ApplySchedule(ctx context.Context, userID string, slots []types.SlotAssignment) error
}

// Recorder receives reschedule observations.
type Recorder interface {
	TasksRescheduled(n int)
}

// Engine recomputes schedules. Safe for concurrent use; calls for the same
// user serialize at the store's transaction boundary.
type Engine struct {
	store   TaskStore
	metrics Recorder
	now     func() time.Time
}

// NewEngine creates a scheduling engine.
func NewEngine(store TaskStore, metrics Recorder) *Engine {
	return &Engine{store: store, metrics: metrics, now: time.Now}
}

// Reschedule recomputes the schedule for one user's active tasks and writes
// it in a single transaction. Idempotent: repeated calls with unchanged
// tasks produce the same schedule. No active task is ever dropped, members
// of dependency cycles included.
func (e *Engine) Reschedule(ctx context.Context, userID string) error {
	tasks, err := e.store.GetActiveTasks(ctx, userID)
	if err != nil {
		return fmt.Errorf("load active tasks for %s: %w", userID, err)
	}
	if len(tasks) == 0 {
		return nil
	}

	ordered := Order(tasks)
	slots := Pack(ordered, e.now().UTC())
	if err := e.store.ApplySchedule(ctx, userID, slots); err != nil {
		return fmt.Errorf("apply schedule for %s: %w", userID, err)
	}

	e.metrics.TasksRescheduled(len(slots))
	slog.Info("schedule recomputed",
		"component", "schedule",
		"user_id", userID,
		"tasks", len(slots),
	)
	return nil
}

// Order sorts tasks so that no task precedes its dependencies. Ties in the
// ready set break on priority (descending), then due time (ascending, unset
// last), then ID. Dependency edges to tasks outside the active set are
// ignored. Tasks caught in a dependency cycle are appended after all
// schedulable tasks, in ID order, so none are lost.
func Order(tasks []types.Task) []types.Task {
	byID := make(map[string]types.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	indegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		indegree[t.ID] = 0
	}
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if _, active := byID[dep]; !active {
				continue
			}
			indegree[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	var ready []types.Task
	for _, t := range tasks {
		if indegree[t.ID] == 0 {
			ready = append(ready, t)
		}
	}

	ordered := make([]types.Task, 0, len(tasks))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return taskLess(ready[i], ready[j]) })
		next := ready[0]
		ready = ready[1:]
		ordered = append(ordered, next)

		for _, id := range dependents[next.ID] {
			indegree[id]--
			if indegree[id] == 0 {
				ready = append(ready, byID[id])
			}
		}
	}

	if len(ordered) < len(tasks) {
		var cyclic []types.Task
		for _, t := range tasks {
			if indegree[t.ID] > 0 {
				cyclic = append(cyclic, t)
			}
		}
		sort.Slice(cyclic, func(i, j int) bool { return cyclic[i].ID < cyclic[j].ID })
		ids := make([]string, len(cyclic))
		for i, t := range cyclic {
			ids[i] = t.ID
		}
		slog.Warn("dependency cycle detected, scheduling members last",
			"component", "schedule",
			"task_ids", ids,
		)
		ordered = append(ordered, cyclic...)
	}
	return ordered
}

func taskLess(a, b types.Task) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	ad, bd := a.Due(), b.Due()
	if ad.IsZero() != bd.IsZero() {
		return bd.IsZero()
	}
	if !ad.Equal(bd) {
		return ad.Before(bd)
	}
	return a.ID < b.ID
}

// Pack assigns sequential working slots starting at the next whole hour
// after now, clamped to the 08:00-20:00 UTC workday. A slot that would run
// past the end of the workday rolls over to the next morning. Slot length
// is the larger of the task's estimated hours and its focus duration, with
// a one hour floor.
func Pack(tasks []types.Task, now time.Time) []types.SlotAssignment {
	cursor := clampToWorkday(now.Truncate(time.Hour).Add(time.Hour))
	slots := make([]types.SlotAssignment, 0, len(tasks))
	for _, t := range tasks {
		d := slotDuration(t)
		if !fitsWorkday(cursor, d) {
			cursor = nextMorning(cursor)
		}
		slots = append(slots, types.SlotAssignment{
			TaskID:    t.ID,
			StartTime: cursor,
			EndTime:   cursor.Add(d),
		})
		cursor = cursor.Add(d)
	}
	return slots
}

func slotDuration(t types.Task) time.Duration {
	d := time.Duration(t.EstimatedHours * float64(time.Hour))
	if focus := time.Duration(t.FocusMinutes) * time.Minute; focus > d {
		d = focus
	}
	if d < defaultSlot {
		d = defaultSlot
	}
	return d
}

func clampToWorkday(ts time.Time) time.Time {
	switch {
	case ts.Hour() < workdayStartHour:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), workdayStartHour, 0, 0, 0, time.UTC)
	case ts.Hour() >= workdayEndHour:
		return nextMorning(ts)
	default:
		return ts
	}
}

func nextMorning(ts time.Time) time.Time {
	next := ts.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), workdayStartHour, 0, 0, 0, time.UTC)
}

// fitsWorkday reports whether a slot starting at cursor ends by the end of
// the workday. Oversized tasks that cannot fit any workday are allowed to
// run past it rather than being dropped.
func fitsWorkday(cursor time.Time, d time.Duration) bool {
	if d > time.Duration(workdayEndHour-workdayStartHour)*time.Hour {
		return cursor.Hour() == workdayStartHour && cursor.Minute() == 0
	}
	dayEnd := time.Date(cursor.Year(), cursor.Month(), cursor.Day(), workdayEndHour, 0, 0, 0, time.UTC)
	return !cursor.Add(d).After(dayEnd)
}
