// Package nudge scans users for overdue tasks and sends each a coaching
// notification carrying an AI-generated suggestion.
package nudge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/cadence/internal/types"
)

// DefaultBatchSize bounds suggestion-provider call volume per user per scan.
const DefaultBatchSize = 50

// UserStore defines the store operations the orchestrator needs.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*types.User, error)
	GetActiveUsers(ctx context.Context) ([]types.User, error)
	GetActiveTasks(ctx context.Context, userID string) ([]types.Task, error)
}

// Suggester produces a free-text coaching suggestion for a task prompt.
type Suggester interface {
	Suggest(ctx context.Context, prompt string) (string, error)
}

// Sender delivers one notification, reporting whether any channel got it.
type Sender interface {
	Send(ctx context.Context, user types.User, subject, message string) bool
}

// Orchestrator drives the nudge pipeline: store scan, suggestion,
// dispatch. Failures are isolated per task and per user; a bad suggestion
// or a dead channel never aborts the batch.
type Orchestrator struct {
	store     UserStore
	suggester Suggester
	sender    Sender
	batchSize int
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator. batchSize caps overdue tasks
// nudged per user per scan; values below 1 fall back to DefaultBatchSize.
func NewOrchestrator(store UserStore, suggester Suggester, sender Sender, batchSize int) *Orchestrator {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Orchestrator{
		store:     store,
		suggester: suggester,
		sender:    sender,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// ScanAndSendNudges nudges every active user and returns the total number
// of delivered notifications. A store failure for one user fails that user
// only; the scan continues with the rest.
func (o *Orchestrator) ScanAndSendNudges(ctx context.Context) (int, error) {
	users, err := o.store.GetActiveUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active users: %w", err)
	}

	var delivered int
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		n, err := o.nudgeUser(ctx, user)
		delivered += n
		if err != nil {
			slog.Error("nudge scan failed for user",
				"component", "nudge",
				"user_id", user.ID,
				"error", err,
			)
		}
	}
	return delivered, nil
}

// OrchestrateNudge nudges a single user and returns the number of
// delivered notifications.
func (o *Orchestrator) OrchestrateNudge(ctx context.Context, userID string) (int, error) {
	user, err := o.store.GetUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load user %s: %w", userID, err)
	}
	return o.nudgeUser(ctx, *user)
}

func (o *Orchestrator) nudgeUser(ctx context.Context, user types.User) (int, error) {
	tasks, err := o.store.GetActiveTasks(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("load active tasks for %s: %w", user.ID, err)
	}

	overdue := selectOverdue(tasks, o.now().UTC(), o.batchSize)
	if len(overdue) == 0 {
		return 0, nil
	}
	slog.Debug("nudging overdue tasks",
		"component", "nudge",
		"user_id", user.ID,
		"count", len(overdue),
	)

	var delivered int
	for _, task := range overdue {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if o.nudgeTask(ctx, user, task) {
			delivered++
		}
	}
	return delivered, nil
}

// nudgeTask handles one task end to end. A suggestion failure skips the
// task; the dispatch result decides whether it counts as delivered.
func (o *Orchestrator) nudgeTask(ctx context.Context, user types.User, task types.Task) bool {
	suggestion, err := o.suggester.Suggest(ctx, buildPrompt(task))
	if err != nil {
		slog.Warn("suggestion unavailable, skipping task",
			"component", "nudge",
			"user_id", user.ID,
			"task_id", task.ID,
			"error", err,
		)
		return false
	}
	return o.sender.Send(ctx, user, "Nudge: "+task.Title, suggestion)
}

// selectOverdue picks active tasks whose due time has passed, keeping the
// store's ordering and capping at limit.
func selectOverdue(tasks []types.Task, now time.Time, limit int) []types.Task {
	var overdue []types.Task
	for _, t := range tasks {
		if !t.Overdue(now) {
			continue
		}
		overdue = append(overdue, t)
		if len(overdue) == limit {
			break
		}
	}
	return overdue
}

func buildPrompt(t types.Task) string {
	if t.Description == "" {
		return t.Title
	}
	return t.Title + ": " + t.Description
}
