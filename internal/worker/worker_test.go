package worker

import (
	"context"
	"sync"
	"time"
)

// mockRescheduler records reschedule calls per user.
type mockRescheduler struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func newMockRescheduler() *mockRescheduler {
	return &mockRescheduler{calls: make(map[string]int)}
}

func (m *mockRescheduler) Reschedule(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[userID]++
	return m.err
}

func (m *mockRescheduler) callsFor(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[userID]
}

// mockWorkerRecorder counts worker metric events.
type mockWorkerRecorder struct {
	mu       sync.Mutex
	critical int
	runs     map[string]int
	failures map[string]int
}

func newMockWorkerRecorder() *mockWorkerRecorder {
	return &mockWorkerRecorder{
		runs:     make(map[string]int),
		failures: make(map[string]int),
	}
}

func (m *mockWorkerRecorder) CriticalModeActivated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.critical++
}

func (m *mockWorkerRecorder) JobRun(job string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[job]++
}

func (m *mockWorkerRecorder) JobFailed(job string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[job]++
}

func (m *mockWorkerRecorder) JobDuration(job string, d time.Duration) {}

func (m *mockWorkerRecorder) criticalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.critical
}
