package store

import (
	"context"
	"time"

	"github.com/hyperengineering/cadence/internal/types"
)

// Store defines the interface contract for all persistence operations.
type Store interface {
	// Users
	CreateUser(ctx context.Context, email, name, phone string) (*types.User, error)
	GetUser(ctx context.Context, id string) (*types.User, error)
	UpdateUser(ctx context.Context, id string, name *string, active *bool) (*types.User, error)
	GetActiveUsers(ctx context.Context) ([]types.User, error)

	// Preferences
	GetPreferences(ctx context.Context, userID string) (*types.NotificationPrefs, error)
	UpdatePreferences(ctx context.Context, prefs types.NotificationPrefs) error

	// Tasks
	CreateTask(ctx context.Context, task types.Task) (*types.Task, error)
	GetTask(ctx context.Context, id string) (*types.Task, error)
	UpdateTask(ctx context.Context, id string, patch TaskPatch) (*types.Task, error)
	CancelTask(ctx context.Context, id string) error
	GetActiveTasks(ctx context.Context, userID string) ([]types.Task, error)
	GetTasksForUser(ctx context.Context, userID string, activeOnly bool) ([]types.Task, error)
	CompletionsSince(ctx context.Context, userID string, since time.Time) (int, error)
	CompletionDays(ctx context.Context, userID string) ([]string, error)
	ApplySchedule(ctx context.Context, userID string, slots []types.SlotAssignment) error

	// Goals
	CreateGoal(ctx context.Context, goal types.Goal) (*types.Goal, error)
	GetGoal(ctx context.Context, id string) (*types.Goal, error)
	UpdateGoal(ctx context.Context, id string, patch GoalPatch) (*types.Goal, error)

	// Habits
	CreateHabit(ctx context.Context, habit types.Habit) (*types.Habit, error)
	GetHabit(ctx context.Context, id string) (*types.Habit, error)
	ListHabits(ctx context.Context, userID string) ([]types.Habit, error)
	TrackHabit(ctx context.Context, habitID, entryDate string, count int) (*types.HabitEntry, error)

	// Notification audit
	RecordNotificationAttempt(ctx context.Context, attempt types.NotificationAttempt) error
	ListNotificationAttempts(ctx context.Context, userID string, limit int) ([]types.NotificationAttempt, error)

	// Stats
	GetStats(ctx context.Context) (*types.StoreStats, error)

	Close() error
}

// TaskPatch holds the mutable task fields for a partial update. Nil fields
// are left untouched.
type TaskPatch struct {
	Title          *string
	Description    *string
	Status         *types.TaskStatus
	Priority       *types.TaskPriority
	StartTime      *time.Time
	EndTime        *time.Time
	EstimatedHours *float64
	ActualHours    *float64
	EnergyLevel    *int
	FocusMinutes   *int
	Dependencies   *[]string
}

// GoalPatch holds the mutable goal fields for a partial update.
type GoalPatch struct {
	Title       *string
	Description *string
	Status      *types.GoalStatus
	Priority    *types.TaskPriority
	TargetDate  *time.Time
}
