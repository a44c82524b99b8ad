package types

import (
	"time"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
	TaskOnHold     TaskStatus = "on_hold"
)

// Active reports whether a task in this status participates in scans and
// scheduling. Completed and cancelled tasks never do.
func (s TaskStatus) Active() bool {
	return s != TaskCompleted && s != TaskCancelled
}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskCancelled, TaskOnHold:
		return true
	}
	return false
}

// TaskPriority is an ordinal priority, 1 (lowest) through 5 (critical).
type TaskPriority int

const (
	PriorityLowest   TaskPriority = 1
	PriorityLow      TaskPriority = 2
	PriorityMedium   TaskPriority = 3
	PriorityHigh     TaskPriority = 4
	PriorityCritical TaskPriority = 5
)

// GoalStatus represents the lifecycle state of a goal
type GoalStatus string

const (
	GoalNotStarted GoalStatus = "not_started"
	GoalInProgress GoalStatus = "in_progress"
	GoalOnHold     GoalStatus = "on_hold"
	GoalCompleted  GoalStatus = "completed"
	GoalCancelled  GoalStatus = "cancelled"
)

// Valid reports whether s is a known goal status.
func (s GoalStatus) Valid() bool {
	switch s {
	case GoalNotStarted, GoalInProgress, GoalOnHold, GoalCompleted, GoalCancelled:
		return true
	}
	return false
}

// HabitFrequency is the cadence a habit is tracked against.
type HabitFrequency string

const (
	FrequencyDaily  HabitFrequency = "daily"
	FrequencyWeekly HabitFrequency = "weekly"
)

// User represents a registered user. Users are soft-deactivated via the
// Active flag, never deleted.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NotificationPrefs holds a user's delivery channel choices and quiet-hour
// window. Hours are UTC; the window [QuietFromHour, QuietToHour) wraps
// midnight when from > to.
type NotificationPrefs struct {
	UserID        string    `json:"user_id"`
	UseEmail      bool      `json:"use_email"`
	UseSMS        bool      `json:"use_sms"`
	QuietFromHour int       `json:"quiet_from_hour"`
	QuietToHour   int       `json:"quiet_to_hour"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DefaultPrefs returns the preferences applied when a user has none
/// recorded: email only, quiet hours 22:00-07:00 UTC.
func DefaultPrefs(userID string) NotificationPrefs {
	return NotificationPrefs{
		UserID:        userID,
		UseEmail:      true,
		UseSMS:        false,
		QuietFromHour: 22,
		QuietToHour:   7,
	}
}

// Task represents a unit of work owned by a user, optionally attached to a
// goal. EnergyLevel and FocusMinutes are scheduling hints.
type Task struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	GoalID         string       `json:"goal_id,omitempty"`
	Title          string       `json:"title"`
	Description    string       `json:"description,omitempty"`
	Status         TaskStatus   `json:"status"`
	Priority       TaskPriority `json:"priority"`
	StartTime      time.Time    `json:"start_time"`
	EndTime        *time.Time   `json:"end_time,omitempty"`
	EstimatedHours float64      `json:"estimated_hours"`
	ActualHours    float64      `json:"actual_hours"`
	EnergyLevel    int          `json:"energy_level"`
	FocusMinutes   int          `json:"focus_minutes"`
	Dependencies   []string     `json:"dependencies,omitempty"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

/// Due returns the time a task is judged overdue against: the end time when
// set, otherwise the start time.
func (t Task) Due() time.Time {
	if t.EndTime != nil {
		return *t.EndTime
	}
	return t.StartTime
}

// Overdue reports whether the task is active and past its due time.
func (t Task) Overdue(now time.Time) bool {
	return t.Status.Active() && t.Due().Before(now)
}

// Goal represents an objective that owns tasks. Progress is derived from
// child task completion, never stored.
type Goal struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      GoalStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	TargetDate  *time.Time   `json:"target_date,omitempty"`
	// Progress is completed child tasks / total child tasks, 0-100.
	Progress  int       `json:"progress"`
	TaskCount int       `json:"task_count"`
	DoneCount int       `json:"done_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Habit represents a recurring practice. Streaks and completion rate are
// recomputed from entry history on read.
type Habit struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Frequency   HabitFrequency `json:"frequency"`
	TargetCount int            `json:"target_count"`
	Active      bool           `json:"active"`
	// Derived fields, populated by the store on read.
	CurrentStreak  int       `json:"current_streak"`
	BestStreak     int       `json:"best_streak"`
	CompletionRate float64   `json:"completion_rate"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HabitEntry records one day's tracking event for a habit. At most one
// entry exists per habit per day.
type HabitEntry struct {
	ID        string    `json:"id"`
	HabitID   string    `json:"habit_id"`
	EntryDate string    `json:"entry_date"` // YYYY-MM-DD
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationOutcome classifies the result of one dispatch decision.
type NotificationOutcome string

const (
	OutcomeDelivered  NotificationOutcome = "delivered"
	OutcomeFailed     NotificationOutcome = "failed"
	OutcomeSuppressed NotificationOutcome = "suppressed"
)

// NotificationAttempt is the audit record written for every dispatch
// decision, including quiet-hour suppressions that invoke no provider.
type NotificationAttempt struct {
	ID          string              `json:"id"`
	UserID      string              `json:"user_id"`
	Subject     string              `json:"subject"`
	Channel     string              `json:"channel"`
	Provider    string              `json:"provider"`
	Outcome     NotificationOutcome `json:"outcome"`
	Detail      string              `json:"detail,omitempty"`
	AttemptedAt time.Time           `json:"attempted_at"`
}

// SlotAssignment is one task's position in a recomputed schedule.
type SlotAssignment struct {
	TaskID    string    `json:"task_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// StreakStats summarises a user's completion momentum, recomputed from
// completion history.
type StreakStats struct {
	CurrentStreak int `json:"current_streak"`
	BestStreak    int `json:"best_streak"`
}

// StoreStats holds aggregate counts surfaced by the health endpoint.
type StoreStats struct {
	UserCount   int64 `json:"user_count"`
	TaskCount   int64 `json:"task_count"`
	ActiveTasks int64 `json:"active_tasks"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	UserCount   int64  `json:"user_count"`
	TaskCount   int64  `json:"task_count"`
	ActiveTasks int64  `json:"active_tasks"`
}
