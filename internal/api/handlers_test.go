package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/cadence/internal/store"
	"github.com/hyperengineering/cadence/internal/types"
)

const testAPIKey = "test-api-key"

// mockStore is an in-memory store.Store for handler tests.
type mockStore struct {
	mu       sync.Mutex
	users    map[string]types.User
	prefs    map[string]types.NotificationPrefs
	tasks    map[string]types.Task
	goals    map[string]types.Goal
	habits   map[string]types.Habit
	attempts []types.NotificationAttempt
}

func newMockStore() *mockStore {
	return &mockStore{
		users:  make(map[string]types.User),
		prefs:  make(map[string]types.NotificationPrefs),
		tasks:  make(map[string]types.Task),
		goals:  make(map[string]types.Goal),
		habits: make(map[string]types.Habit),
	}
}

func (m *mockStore) CreateUser(_ context.Context, email, name, phone string) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return nil, store.ErrDuplicateEmail
		}
	}
	u := types.User{ID: ulid.Make().String(), Email: email, Name: name, Phone: phone, Active: true}
	m.users[u.ID] = u
	return &u, nil
}

func (m *mockStore) GetUser(_ context.Context, id string) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (m *mockStore) UpdateUser(_ context.Context, id string, name *string, active *bool) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if name != nil {
		u.Name = *name
	}
	if active != nil {
		u.Active = *active
	}
	m.users[id] = u
	return &u, nil
}

func (m *mockStore) GetActiveUsers(_ context.Context) ([]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.User
	for _, u := range m.users {
		if u.Active {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockStore) GetPreferences(_ context.Context, userID string) (*types.NotificationPrefs, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.prefs[userID]; ok {
		return &p, nil
	}
	p := types.DefaultPrefs(userID)
	return &p, nil
}

func (m *mockStore) UpdatePreferences(_ context.Context, prefs types.NotificationPrefs) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[prefs.UserID] = prefs
	return nil
}

func (m *mockStore) CreateTask(_ context.Context, task types.Task) (*types.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.ID = ulid.Make().String()
	if task.Status == "" {
		task.Status = types.TaskPending
	}
	m.tasks[task.ID] = task
	return &task, nil
}

func (m *mockStore) GetTask(_ context.Context, id string) (*types.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (m *mockStore) UpdateTask(_ context.Context, id string, patch store.TaskPatch) (*types.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	m.tasks[id] = t
	return &t, nil
}

func (m *mockStore) CancelTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return store.ErrNotFound
	}
	t.Status = types.TaskCancelled
	m.tasks[id] = t
	return nil
}

func (m *mockStore) GetActiveTasks(_ context.Context, userID string) ([]types.Task, error) {
	return m.GetTasksForUser(context.Background(), userID, true)
}

func (m *mockStore) GetTasksForUser(_ context.Context, userID string, activeOnly bool) ([]types.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Task
	for _, t := range m.tasks {
		if t.UserID != userID {
			continue
		}
		if activeOnly && !t.Status.Active() {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *mockStore) CompletionsSince(_ context.Context, _ string, _ time.Time) (int, error) {
	return 0, nil
}

func (m *mockStore) CompletionDays(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (m *mockStore) ApplySchedule(_ context.Context, _ string, _ []types.SlotAssignment) error {
	return nil
}

func (m *mockStore) CreateGoal(_ context.Context, goal types.Goal) (*types.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	goal.ID = ulid.Make().String()
	if goal.Status == "" {
		goal.Status = types.GoalNotStarted
	}
	m.goals[goal.ID] = goal
	return &goal, nil
}

func (m *mockStore) GetGoal(_ context.Context, id string) (*types.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.goals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &g, nil
}

func (m *mockStore) UpdateGoal(_ context.Context, id string, patch store.GoalPatch) (*types.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.goals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if patch.Status != nil {
		if *patch.Status == types.GoalCompleted {
			return nil, store.ErrGoalIncomplete
		}
		g.Status = *patch.Status
	}
	m.goals[id] = g
	return &g, nil
}

func (m *mockStore) CreateHabit(_ context.Context, habit types.Habit) (*types.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	habit.ID = ulid.Make().String()
	m.habits[habit.ID] = habit
	return &habit, nil
}

func (m *mockStore) GetHabit(_ context.Context, id string) (*types.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.habits[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &h, nil
}

func (m *mockStore) ListHabits(_ context.Context, userID string) ([]types.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Habit
	for _, h := range m.habits {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *mockStore) TrackHabit(_ context.Context, habitID, entryDate string, count int) (*types.HabitEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.habits[habitID]; !ok {
		return nil, store.ErrNotFound
	}
	return &types.HabitEntry{
		ID:        ulid.Make().String(),
		HabitID:   habitID,
		EntryDate: entryDate,
		Count:     count,
	}, nil
}

func (m *mockStore) RecordNotificationAttempt(_ context.Context, attempt types.NotificationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempt)
	return nil
}

func (m *mockStore) ListNotificationAttempts(_ context.Context, userID string, _ int) ([]types.NotificationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.NotificationAttempt
	for _, a := range m.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockStore) GetStats(_ context.Context) (*types.StoreStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &types.StoreStats{
		UserCount: int64(len(m.users)),
		TaskCount: int64(len(m.tasks)),
	}, nil
}

func (m *mockStore) Close() error { return nil }

var _ store.Store = (*mockStore)(nil)

type stubEngine struct {
	mu    sync.Mutex
	calls []string
}

func (s *stubEngine) Reschedule(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, userID)
	return nil
}

type stubNudger struct {
	delivered int
}

func (s *stubNudger) OrchestrateNudge(_ context.Context, _ string) (int, error) {
	return s.delivered, nil
}

func newTestServer(t *testing.T, ms *mockStore) (*httptest.Server, *stubEngine) {
	t.Helper()
	engine := &stubEngine{}
	h := NewHandler(ms, engine, &stubNudger{delivered: 3}, testAPIKey, "test")
	srv := httptest.NewServer(NewRouter(h, http.NotFoundHandler()))
	t.Cleanup(srv.Close)
	return srv, engine
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func seedUser(t *testing.T, ms *mockStore) types.User {
	t.Helper()
	u, err := ms.CreateUser(context.Background(), fmt.Sprintf("%s@example.com", ulid.Make()), "Dev", "")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return *u
}

func TestHealthIsPublic(t *testing.T) {
	srv, _ := newTestServer(t, newMockStore())

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	health := decodeBody[types.HealthResponse](t, resp)
	if health.Status != "healthy" || health.Version != "test" {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	srv, _ := newTestServer(t, newMockStore())

	resp, err := http.Get(srv.URL + "/api/v1/users/someid")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content type = %q", ct)
	}
	problem := decodeBody[Problem](t, resp)
	if problem.Status != http.StatusUnauthorized {
		t.Fatalf("problem status = %d", problem.Status)
	}
}

func TestCreateUserValidation(t *testing.T) {
	srv, _ := newTestServer(t, newMockStore())

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/users", CreateUserRequest{Email: "not-an-email"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	problem := decodeBody[ProblemWithErrors](t, resp)
	if len(problem.Errors) == 0 {
		t.Fatal("expected field errors")
	}
}

func TestCreateUserDuplicateEmailConflicts(t *testing.T) {
	ms := newMockStore()
	srv, _ := newTestServer(t, ms)

	body := CreateUserRequest{Email: "dev@example.com", Name: "Dev"}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/users", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first create status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/users", body)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestGetUserNotFound(t *testing.T) {
	srv, _ := newTestServer(t, newMockStore())

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/users/"+ulid.Make().String(), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPreferencesRoundTrip(t *testing.T) {
	ms := newMockStore()
	srv, _ := newTestServer(t, ms)
	user := seedUser(t, ms)

	// Defaults before any write.
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/users/"+user.ID+"/preferences", nil)
	prefs := decodeBody[types.NotificationPrefs](t, resp)
	if !prefs.UseEmail || prefs.UseSMS || prefs.QuietFromHour != 22 || prefs.QuietToHour != 7 {
		t.Fatalf("unexpected default prefs: %+v", prefs)
	}

	update := UpdatePreferencesRequest{UseEmail: true, UseSMS: true, QuietFromHour: 23, QuietToHour: 6}
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/users/"+user.ID+"/preferences", update)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/users/"+user.ID+"/preferences", nil)
	prefs = decodeBody[types.NotificationPrefs](t, resp)
	if !prefs.UseSMS || prefs.QuietFromHour != 23 {
		t.Fatalf("update not applied: %+v", prefs)
	}
}

func TestUpdatePreferencesRejectsBadHours(t *testing.T) {
	ms := newMockStore()
	srv, _ := newTestServer(t, ms)
	user := seedUser(t, ms)

	update := UpdatePreferencesRequest{QuietFromHour: 25, QuietToHour: 7}
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/v1/users/"+user.ID+"/preferences", update)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestTaskLifecycle(t *testing.T) {
	ms := newMockStore()
	srv, _ := newTestServer(t, ms)
	user := seedUser(t, ms)

	create := CreateTaskRequest{UserID: user.ID, Title: "write report", Priority: 4}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/tasks", create)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	task := decodeBody[types.Task](t, resp)

	status := "completed"
	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/v1/tasks/"+task.ID, UpdateTaskRequest{Status: &status})
	updated := decodeBody[types.Task](t, resp)
	if updated.Status != types.TaskCompleted {
		t.Fatalf("status = %s, want completed", updated.Status)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/tasks/"+task.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCreateTaskRejectsBadPriority(t *testing.T) {
	ms := newMockStore()
	srv, _ := newTestServer(t, ms)
	user := seedUser(t, ms)

	create := CreateTaskRequest{UserID: user.ID, Title: "x", Priority: 9}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/tasks", create)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestGoalCompletionConflict(t *testing.T) {
	ms := newMockStore()
	srv, _ := newTestServer(t, ms)
	user := seedUser(t, ms)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/goals",
		CreateGoalRequest{UserID: user.ID, Title: "ship v1"})
	goal := decodeBody[types.Goal](t, resp)

	status := "completed"
	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/v1/goals/"+goal.ID, UpdateGoalRequest{Status: &status})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409 while children incomplete", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHabitTrack(t *testing.T) {
	ms := newMockStore()
	srv, _ := newTestServer(t, ms)
	user := seedUser(t, ms)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/habits",
		CreateHabitRequest{UserID: user.ID, Name: "morning run"})
	habit := decodeBody[types.Habit](t, resp)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/habits/"+habit.ID+"/track",
		TrackHabitRequest{EntryDate: "2026-03-10", Count: 1})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("track status = %d", resp.StatusCode)
	}
	entry := decodeBody[types.HabitEntry](t, resp)
	if entry.EntryDate != "2026-03-10" {
		t.Fatalf("entry date = %q", entry.EntryDate)
	}
}

func TestTriggerRescheduleInvokesEngine(t *testing.T) {
	ms := newMockStore()
	srv, engine := newTestServer(t, ms)
	user := seedUser(t, ms)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/users/"+user.ID+"/reschedule", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	engine.mu.Lock()
	defer engine.mu.Unlock()
	if len(engine.calls) != 1 || engine.calls[0] != user.ID {
		t.Fatalf("engine calls = %v", engine.calls)
	}
}

func TestTriggerNudgeReturnsDeliveredCount(t *testing.T) {
	ms := newMockStore()
	srv, _ := newTestServer(t, ms)
	user := seedUser(t, ms)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/users/"+user.ID+"/nudge", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody[map[string]int](t, resp)
	if body["delivered"] != 3 {
		t.Fatalf("delivered = %d, want 3", body["delivered"])
	}
}
