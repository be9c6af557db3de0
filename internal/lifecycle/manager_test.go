package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmikhno/groupscan/internal/cache"
	"github.com/dmikhno/groupscan/internal/logging"
	"github.com/dmikhno/groupscan/internal/models"
	"github.com/dmikhno/groupscan/internal/store"
	"github.com/dmikhno/groupscan/internal/transport"
)

// fakeTransport scripts the backend side of the lifecycle.
type fakeTransport struct {
	mu          sync.Mutex
	submits     int
	cancels     int
	statusCalls int

	submitErr error
	statusFn  func(call int) (*transport.StatusReport, error)
	results   []models.Result
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Submit(ctx context.Context, task *models.Task) (*transport.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &transport.Ack{TaskID: task.ID, Title: "Test Group"}, nil
}

func (f *fakeTransport) Cancel(ctx context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return nil
}

func (f *fakeTransport) Status(ctx context.Context, taskID string) (*transport.StatusReport, error) {
	f.mu.Lock()
	f.statusCalls++
	call := f.statusCalls
	fn := f.statusFn
	f.mu.Unlock()
	if fn == nil {
		return &transport.StatusReport{TaskID: taskID, State: models.TaskStateRunning}, nil
	}
	return fn(call)
}

func (f *fakeTransport) FetchResults(ctx context.Context) ([]models.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results, nil
}

func (f *fakeTransport) CreateItem(ctx context.Context, item models.Item) (*models.Item, error) {
	item.ID = "item-1"
	return &item, nil
}

func (f *fakeTransport) DeleteItem(ctx context.Context, id string) error { return nil }

func (f *fakeTransport) FetchItems(ctx context.Context) ([]models.Item, error) { return nil, nil }

func (f *fakeTransport) counts() (submits, cancels, statusCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits, f.cancels, f.statusCalls
}

func testConfig() *Config {
	return &Config{
		PollInterval:     10 * time.Millisecond,
		ProgressInterval: 5 * time.Millisecond,
		HoldWindow:       30 * time.Millisecond,
		StatusRetries:    3,
	}
}

func newTestManager(t *testing.T, ft *fakeTransport) *Manager {
	t.Helper()
	log := logging.Discard()
	st, err := store.New(t.TempDir(), 0, log)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	m := New(ft, cache.New(), st, nil, models.DefaultSnapshot(), testConfig(), log)
	t.Cleanup(m.Stop)
	return m
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	ft := &fakeTransport{}
	m := newTestManager(t, ft)

	_, err := m.Submit("not a group link", models.DefaultParseOptions())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	if submits, _, _ := ft.counts(); submits != 0 {
		t.Errorf("invalid input must not reach the transport, got %d submits", submits)
	}
	if m.Active() != nil {
		t.Error("invalid input must not occupy the task slot")
	}
}

func TestSubmitSingleFlight(t *testing.T) {
	ft := &fakeTransport{}
	m := newTestManager(t, ft)

	first, err := m.Submit("@testgroup", models.DefaultParseOptions())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := m.Submit("@othergroup", models.DefaultParseOptions()); !errors.Is(err, ErrTaskActive) {
		t.Errorf("expected ErrTaskActive, got %v", err)
	}

	if active := m.Active(); active == nil || active.ID != first.ID {
		t.Error("rejected submit must not replace the active task")
	}
}

func TestTaskRunsToCompletion(t *testing.T) {
	ft := &fakeTransport{
		statusFn: func(call int) (*transport.StatusReport, error) {
			if call < 2 {
				return &transport.StatusReport{State: models.TaskStateRunning, Progress: 50}, nil
			}
			return &transport.StatusReport{
				State: models.TaskStateCompleted,
				Result: &transport.ResultPayload{
					Title:        "Test Group",
					Filename:     "test_group.txt",
					ItemCount:    1250,
					TotalMembers: 5000,
				},
			}, nil
		},
	}
	m := newTestManager(t, ft)

	task, err := m.Submit("@testgroup", models.DefaultParseOptions())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		cur := m.Active()
		return cur != nil && cur.State == models.TaskStateCompleted
	}, "task never completed")

	cur := m.Active()
	if cur.Progress != 100 {
		t.Errorf("completed task must show 100%%, got %v", cur.Progress)
	}
	if cur.Estimated {
		t.Error("completed progress is authoritative, not estimated")
	}
	if cur.CompletedAt == nil {
		t.Error("completed task must carry a completion time")
	}

	results := m.Snapshot().Results
	if len(results) != 1 {
		t.Fatalf("expected one cached result, got %d", len(results))
	}
	r := results[0]
	if r.ID != task.ID {
		t.Errorf("result id must be the task id, got %s", r.ID)
	}
	if r.ItemCount != 1250 || r.TotalMembers != 5000 {
		t.Errorf("unexpected result payload: %+v", r)
	}
	if r.SourceRef != "@testgroup" {
		t.Errorf("expected source ref @testgroup, got %s", r.SourceRef)
	}

	// The slot returns to idle after the hold window.
	waitFor(t, time.Second, func() bool { return m.Active() == nil }, "slot never cleared")

	// A fresh submit is accepted again.
	if _, err := m.Submit("@another", models.DefaultParseOptions()); err != nil {
		t.Errorf("expected submit after clear to succeed, got %v", err)
	}
}

func TestEstimateIsMonotonicAndBounded(t *testing.T) {
	ft := &fakeTransport{
		statusFn: func(call int) (*transport.StatusReport, error) {
			return &transport.StatusReport{State: models.TaskStateRunning}, nil
		},
	}
	m := newTestManager(t, ft)

	if _, err := m.Submit("@testgroup", models.DefaultParseOptions()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		cur := m.Active()
		return cur != nil && cur.State == models.TaskStateRunning && cur.Progress > 0
	}, "estimate never advanced")

	var last float64
	for i := 0; i < 10; i++ {
		cur := m.Active()
		if cur == nil {
			t.Fatal("task disappeared while running")
		}
		if !cur.Estimated {
			t.Fatal("progress must stay estimated without an authoritative report")
		}
		if cur.Progress < last {
			t.Fatalf("estimate regressed from %v to %v", last, cur.Progress)
		}
		if cur.Progress > 95 {
			t.Fatalf("estimate exceeded the cap: %v", cur.Progress)
		}
		last = cur.Progress
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAuthoritativeProgressReplacesEstimate(t *testing.T) {
	ft := &fakeTransport{
		statusFn: func(call int) (*transport.StatusReport, error) {
			return &transport.StatusReport{State: models.TaskStateRunning, Progress: 97}, nil
		},
	}
	m := newTestManager(t, ft)

	if _, err := m.Submit("@testgroup", models.DefaultParseOptions()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		cur := m.Active()
		return cur != nil && !cur.Estimated
	}, "authoritative progress never applied")

	cur := m.Active()
	if cur.Progress != 97 {
		t.Errorf("expected authoritative progress 97, got %v", cur.Progress)
	}

	// Estimation stays off once a real figure arrived.
	time.Sleep(30 * time.Millisecond)
	if cur := m.Active(); cur != nil && cur.Progress != 97 {
		t.Errorf("estimate must not move authoritative progress, got %v", cur.Progress)
	}
}

func TestCompletedWithoutPayloadFails(t *testing.T) {
	ft := &fakeTransport{
		statusFn: func(call int) (*transport.StatusReport, error) {
			return &transport.StatusReport{State: models.TaskStateCompleted}, nil
		},
	}
	m := newTestManager(t, ft)

	if _, err := m.Submit("@testgroup", models.DefaultParseOptions()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		cur := m.Active()
		return cur != nil && cur.State == models.TaskStateFailed
	}, "payload-less completion never failed the task")

	if got := m.Snapshot().Results; len(got) != 0 {
		t.Errorf("a failed task must not produce a result, got %d", len(got))
	}
}

func TestStatusRetryBudget(t *testing.T) {
	ft := &fakeTransport{
		statusFn: func(call int) (*transport.StatusReport, error) {
			return nil, errors.New("connection refused")
		},
	}
	m := newTestManager(t, ft)

	if _, err := m.Submit("@testgroup", models.DefaultParseOptions()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		cur := m.Active()
		return cur != nil && cur.State == models.TaskStateFailed
	}, "status failures never exhausted the retry budget")

	if cur := m.Active(); cur != nil && cur.Error == "" {
		t.Error("failed task must carry the cause")
	}

	_, _, statusCalls := ft.counts()
	if statusCalls < 3 {
		t.Errorf("expected at least 3 status attempts, got %d", statusCalls)
	}
}

func TestSlowBackendBehindInflatedEstimateStillCompletes(t *testing.T) {
	// The estimate runs well ahead of the backend here: progress ticks
	// fire often between polls, while the backend crawls forward in
	// small strictly increasing steps. Reports below the inflated
	// display value are healthy and must not count as regressions.
	ft := &fakeTransport{
		statusFn: func(call int) (*transport.StatusReport, error) {
			if call < 8 {
				return &transport.StatusReport{
					State:    models.TaskStateRunning,
					Progress: float64(call * 2),
				}, nil
			}
			return &transport.StatusReport{
				State:  models.TaskStateCompleted,
				Result: &transport.ResultPayload{ItemCount: 100},
			}, nil
		},
	}
	log := logging.Discard()
	st, err := store.New(t.TempDir(), 0, log)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	cfg := &Config{
		PollInterval:     10 * time.Millisecond,
		ProgressInterval: time.Millisecond,
		HoldWindow:       time.Second,
		StatusRetries:    3,
	}
	m := New(ft, cache.New(), st, nil, models.DefaultSnapshot(), cfg, log)
	t.Cleanup(m.Stop)

	if _, err := m.Submit("@testgroup", models.DefaultParseOptions()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	var last float64
	waitFor(t, 2*time.Second, func() bool {
		cur := m.Active()
		if cur == nil {
			return false
		}
		if cur.State == models.TaskStateFailed {
			t.Fatalf("healthy slow backend failed the task: %s", cur.Error)
		}
		// The displayed value keeps the high-water mark.
		if cur.Progress < last {
			t.Fatalf("displayed progress regressed from %v to %v", last, cur.Progress)
		}
		last = cur.Progress
		return cur.State == models.TaskStateCompleted
	}, "task never completed")
}

func TestProgressRegressionCountsAsFailure(t *testing.T) {
	ft := &fakeTransport{
		statusFn: func(call int) (*transport.StatusReport, error) {
			if call == 1 {
				return &transport.StatusReport{State: models.TaskStateRunning, Progress: 50}, nil
			}
			return &transport.StatusReport{State: models.TaskStateRunning, Progress: 30}, nil
		},
	}
	m := newTestManager(t, ft)

	if _, err := m.Submit("@testgroup", models.DefaultParseOptions()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		cur := m.Active()
		return cur != nil && cur.State == models.TaskStateFailed
	}, "regressing progress never failed the task")
}

func TestCancelRunningTask(t *testing.T) {
	ft := &fakeTransport{
		statusFn: func(call int) (*transport.StatusReport, error) {
			return &transport.StatusReport{State: models.TaskStateRunning}, nil
		},
	}
	m := newTestManager(t, ft)

	task, err := m.Submit("@testgroup", models.DefaultParseOptions())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		cur := m.Active()
		return cur != nil && cur.State == models.TaskStateRunning
	}, "task never started running")

	if err := m.Cancel(task.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// The local transition is immediate and unconditional.
	cur := m.Active()
	if cur == nil || cur.State != models.TaskStateCancelled {
		t.Fatalf("expected cancelled task, got %+v", cur)
	}

	// The backend cancel is best effort but does go out.
	waitFor(t, time.Second, func() bool {
		_, cancels, _ := ft.counts()
		return cancels == 1
	}, "backend cancel never dispatched")

	waitFor(t, time.Second, func() bool { return m.Active() == nil }, "slot never cleared after cancel")
}

func TestCancelUnknownTask(t *testing.T) {
	ft := &fakeTransport{}
	m := newTestManager(t, ft)

	if err := m.Cancel("nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestCancelTerminalTask(t *testing.T) {
	ft := &fakeTransport{
		statusFn: func(call int) (*transport.StatusReport, error) {
			return &transport.StatusReport{
				State:  models.TaskStateCompleted,
				Result: &transport.ResultPayload{ItemCount: 1},
			}, nil
		},
	}
	m := newTestManager(t, ft)

	task, err := m.Submit("@testgroup", models.DefaultParseOptions())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		cur := m.Active()
		return cur != nil && cur.State == models.TaskStateCompleted
	}, "task never completed")

	if err := m.Cancel(task.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for terminal cancel, got %v", err)
	}
}

func TestSubmitFailurePropagates(t *testing.T) {
	ft := &fakeTransport{submitErr: errors.New("backend down")}
	m := newTestManager(t, ft)

	if _, err := m.Submit("@testgroup", models.DefaultParseOptions()); err != nil {
		t.Fatalf("submit itself is async, got %v", err)
	}

	waitFor(t, time.Second, func() bool {
		cur := m.Active()
		return cur != nil && cur.State == models.TaskStateFailed
	}, "submit failure never surfaced")
}

func TestRefreshMergesResults(t *testing.T) {
	ft := &fakeTransport{
		results: []models.Result{
			{ID: "b1", Title: "Backend One", ItemCount: 10, CreatedAt: time.Now()},
			{ID: "b2", Title: "Backend Two", ItemCount: 20, CreatedAt: time.Now()},
		},
	}
	m := newTestManager(t, ft)

	n, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 merged results, got %d", n)
	}

	results := m.Snapshot().Results
	if len(results) != 2 {
		t.Fatalf("expected 2 cached results, got %d", len(results))
	}
	// Backend order is preserved.
	if results[0].ID != "b1" || results[1].ID != "b2" {
		t.Errorf("expected [b1 b2], got [%s %s]", results[0].ID, results[1].ID)
	}

	// A second refresh dedups, not duplicates.
	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := len(m.Snapshot().Results); got != 2 {
		t.Errorf("expected dedup on second refresh, got %d", got)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	ft := &fakeTransport{}
	m := newTestManager(t, ft)

	s := m.Settings()
	s.DarkMode = true
	m.SetSettings(s)

	if !m.Settings().DarkMode {
		t.Error("expected dark mode set")
	}

	m.ResetSettings()
	if m.Settings().DarkMode {
		t.Error("expected reset to defaults")
	}
}
