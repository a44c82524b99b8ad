package schedule

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/cadence/internal/types"
)

type mockTaskStore struct {
	mu      sync.Mutex
	tasks   []types.Task
	taskErr error
	applied [][]types.SlotAssignment
}

func (m *mockTaskStore) GetActiveTasks(_ context.Context, _ string) ([]types.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taskErr != nil {
		return nil, m.taskErr
	}
	return append([]types.Task(nil), m.tasks...), nil
}

func (m *mockTaskStore) ApplySchedule(_ context.Context, _ string, slots []types.SlotAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied = append(m.applied, append([]types.SlotAssignment(nil), slots...))
	return nil
}

type countingRecorder struct {
	mu    sync.Mutex
	total int
}

func (c *countingRecorder) TasksRescheduled(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total += n
}

func ts(h int) time.Time {
	return time.Date(2026, 3, 10, h, 0, 0, 0, time.UTC)
}

func task(id string, priority types.TaskPriority, deps ...string) types.Task {
	return types.Task{
		ID:           id,
		UserID:       "u1",
		Title:        id,
		Status:       types.TaskPending,
		Priority:     priority,
		Dependencies: deps,
	}
}

func orderedIDs(tasks []types.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

func TestOrderRespectsDependencies(t *testing.T) {
	// c depends on b depends on a; c has the highest priority but still
	// cannot jump its chain.
	got := Order([]types.Task{
		task("c", types.PriorityCritical, "b"),
		task("a", types.PriorityLow),
		task("b", types.PriorityMedium, "a"),
	})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(orderedIDs(got), want) {
		t.Fatalf("order = %v, want %v", orderedIDs(got), want)
	}
}

func TestOrderTieBreaks(t *testing.T) {
	early, late := ts(9), ts(15)
	a := task("a", types.PriorityMedium)
	a.StartTime = late
	b := task("b", types.PriorityMedium)
	b.StartTime = early
	c := task("c", types.PriorityHigh)
	c.StartTime = late
	d := task("d", types.PriorityMedium)
	d.StartTime = early

	got := Order([]types.Task{a, b, c, d})
	// Priority first, then due time, then ID.
	want := []string{"c", "b", "d", "a"}
	if !reflect.DeepEqual(orderedIDs(got), want) {
		t.Fatalf("order = %v, want %v", orderedIDs(got), want)
	}
}

func TestOrderUnsetDueSortsLast(t *testing.T) {
	a := task("a", types.PriorityMedium)
	b := task("b", types.PriorityMedium)
	b.StartTime = ts(9)

	got := Order([]types.Task{a, b})
	want := []string{"b", "a"}
	if !reflect.DeepEqual(orderedIDs(got), want) {
		t.Fatalf("order = %v, want %v", orderedIDs(got), want)
	}
}

func TestOrderIgnoresEdgesOutsideActiveSet(t *testing.T) {
	// "done" is not in the active set, so a's edge to it must not block a.
	got := Order([]types.Task{task("a", types.PriorityMedium, "done")})
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("order = %v, want [a]", orderedIDs(got))
	}
}

func TestOrderCycleMembersScheduledLast(t *testing.T) {
	got := Order([]types.Task{
		task("x", types.PriorityCritical, "y"),
		task("y", types.PriorityCritical, "x"),
		task("a", types.PriorityLow),
	})
	want := []string{"a", "x", "y"}
	if !reflect.DeepEqual(orderedIDs(got), want) {
		t.Fatalf("order = %v, want %v", orderedIDs(got), want)
	}
}

func TestPackStartsAtNextWorkingHour(t *testing.T) {
	a := task("a", types.PriorityMedium)
	a.EstimatedHours = 2

	slots := Pack([]types.Task{a}, time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC))
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	if !slots[0].StartTime.Equal(ts(10)) || !slots[0].EndTime.Equal(ts(12)) {
		t.Fatalf("slot = %v..%v, want 10:00..12:00", slots[0].StartTime, slots[0].EndTime)
	}
}

func TestPackRollsOvernight(t *testing.T) {
	a := task("a", types.PriorityMedium)
	a.EstimatedHours = 3
	b := task("b", types.PriorityMedium)
	b.EstimatedHours = 3

	slots := Pack([]types.Task{a, b}, time.Date(2026, 3, 10, 15, 10, 0, 0, time.UTC))
	// a runs 16:00-19:00; b cannot finish by 20:00 and moves to next morning.
	wantStart := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)
	if !slots[1].StartTime.Equal(wantStart) {
		t.Fatalf("second slot starts %v, want %v", slots[1].StartTime, wantStart)
	}
}

func TestPackDuringQuietNightStartsAtMorning(t *testing.T) {
	a := task("a", types.PriorityMedium)

	slots := Pack([]types.Task{a}, time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC))
	wantStart := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	if !slots[0].StartTime.Equal(wantStart) {
		t.Fatalf("slot starts %v, want %v", slots[0].StartTime, wantStart)
	}
}

func TestPackFocusMinutesOverrideShortEstimate(t *testing.T) {
	a := task("a", types.PriorityMedium)
	a.EstimatedHours = 0.5
	a.FocusMinutes = 90

	slots := Pack([]types.Task{a}, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	if got := slots[0].EndTime.Sub(slots[0].StartTime); got != 90*time.Minute {
		t.Fatalf("slot duration = %v, want 90m", got)
	}
}

func TestRescheduleIsIdempotent(t *testing.T) {
	store := &mockTaskStore{tasks: []types.Task{
		task("b", types.PriorityMedium, "a"),
		task("a", types.PriorityHigh),
		task("c", types.PriorityLow),
	}}
	e := NewEngine(store, &countingRecorder{})
	e.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }

	for i := 0; i < 2; i++ {
		if err := e.Reschedule(context.Background(), "u1"); err != nil {
			t.Fatalf("Reschedule #%d: %v", i+1, err)
		}
	}
	if len(store.applied) != 2 {
		t.Fatalf("expected 2 applied schedules, got %d", len(store.applied))
	}
	if !reflect.DeepEqual(store.applied[0], store.applied[1]) {
		t.Fatalf("schedules differ:\n%+v\n%+v", store.applied[0], store.applied[1])
	}
	if len(store.applied[0]) != 3 {
		t.Fatalf("expected all 3 tasks scheduled, got %d", len(store.applied[0]))
	}
}

func TestRescheduleCountsTasks(t *testing.T) {
	store := &mockTaskStore{tasks: []types.Task{
		task("a", types.PriorityHigh),
		task("b", types.PriorityLow),
	}}
	rec := &countingRecorder{}
	e := NewEngine(store, rec)
	e.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }

	if err := e.Reschedule(context.Background(), "u1"); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if rec.total != 2 {
		t.Fatalf("rescheduled count = %d, want 2", rec.total)
	}
}

func TestRescheduleNoTasksIsNoop(t *testing.T) {
	store := &mockTaskStore{}
	e := NewEngine(store, &countingRecorder{})

	if err := e.Reschedule(context.Background(), "u1"); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if len(store.applied) != 0 {
		t.Fatal("no schedule should be written for a user with no active tasks")
	}
}

func TestRescheduleStoreErrorPropagates(t *testing.T) {
	store := &mockTaskStore{taskErr: errors.New("db locked")}
	e := NewEngine(store, &countingRecorder{})

	if err := e.Reschedule(context.Background(), "u1"); err == nil {
		t.Fatal("expected error")
	}
}
