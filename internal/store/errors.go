package store

import "errors"

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrDuplicateEntry = errors.New("habit already tracked for that date")
	// ErrGoalIncomplete is returned when a goal is marked completed while it
	// still owns an incomplete task.
	ErrGoalIncomplete = errors.New("goal has incomplete tasks")
)
