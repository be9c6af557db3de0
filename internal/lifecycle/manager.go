// Package lifecycle owns the single active parse task: submission,
// progress estimation, status polling, cancellation and the hand-off of
// completed work into the result cache.
package lifecycle

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dmikhno/groupscan/internal/cache"
	"github.com/dmikhno/groupscan/internal/journal"
	"github.com/dmikhno/groupscan/internal/models"
	"github.com/dmikhno/groupscan/internal/store"
	"github.com/dmikhno/groupscan/internal/transport"
)

// Config defines the manager's timing and retry behavior.
type Config struct {
	// PollInterval is the cadence of status checks while a task runs.
	PollInterval time.Duration
	// ProgressInterval is the cadence of the display-side estimate.
	ProgressInterval time.Duration
	// HoldWindow keeps a terminal task visible before the slot clears.
	HoldWindow time.Duration
	// StatusRetries bounds consecutive status failures before the task
	// is failed.
	StatusRetries int
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() *Config {
	return &Config{
		PollInterval:     2 * time.Second,
		ProgressInterval: 500 * time.Millisecond,
		HoldWindow:       3 * time.Second,
		StatusRetries:    3,
	}
}

// estimateCap is where the display-side estimate stops. Only an
// authoritative terminal report may show completion.
const estimateCap = 95.0

// maxEstimateStep bounds the pseudo-random increment per tick.
const maxEstimateStep = 5.0

// Manager enforces the single-flight invariant: at most one task may be
// submitting or running; a second submit is rejected, never queued.
type Manager struct {
	transport transport.Transport
	cache     *cache.Cache
	store     *store.Store
	journal   *journal.Journal
	log       *logrus.Logger
	cfg       *Config

	mu        sync.Mutex
	state     *models.Snapshot
	active    *models.Task
	cancelRun context.CancelFunc
	rng       *rand.Rand
	// lastReported is the highest authoritative progress figure seen
	// for the active task. Regression checks compare against it, never
	// against the display estimate.
	lastReported float64

	wg sync.WaitGroup
}

// New creates a manager. The snapshot is the explicit application-state
// object the manager owns together with the cache; jr may be nil when
// journaling is disabled.
func New(t transport.Transport, c *cache.Cache, s *store.Store, jr *journal.Journal, state *models.Snapshot, cfg *Config, log *logrus.Logger) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Manager{
		transport: t,
		cache:     c,
		store:     s,
		journal:   jr,
		log:       log,
		cfg:       cfg,
		state:     state,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Submit validates the group reference and starts a new task. It fails
// with *ValidationError on bad input (no transport call is made) and
// ErrTaskActive while another task is submitting or running.
func (m *Manager) Submit(input string, opts models.ParseOptions) (*models.Task, error) {
	input = strings.TrimSpace(input)
	if err := ValidateGroupRef(input); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.active != nil && !m.active.State.Terminal() {
		m.mu.Unlock()
		return nil, ErrTaskActive
	}

	task := &models.Task{
		ID:        uuid.New().String(),
		Input:     input,
		Options:   opts,
		State:     models.TaskStateSubmitting,
		Estimated: true,
		StartedAt: time.Now().UTC(),
	}
	runCtx, cancel := context.WithCancel(context.Background())
	m.active = task
	m.cancelRun = cancel
	m.lastReported = 0
	cp := *task
	m.mu.Unlock()

	m.record(task.ID, "task.submit", input)
	m.log.WithFields(logrus.Fields{"task_id": task.ID, "input": input}).Info("task submitted")

	m.wg.Add(1)
	go m.run(runCtx, task.ID)
	return &cp, nil
}

// Cancel stops a submitting or running task. The local transition to
// cancelled is unconditional; the backend cancel command is best effort
// and never blocks it.
func (m *Manager) Cancel(taskID string) error {
	m.mu.Lock()
	if m.active == nil || m.active.ID != taskID {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	if m.active.State != models.TaskStateSubmitting && m.active.State != models.TaskStateRunning {
		m.mu.Unlock()
		return ErrInvalidState
	}

	now := time.Now().UTC()
	m.active.State = models.TaskStateCancelled
	m.active.CompletedAt = &now
	cancel := m.cancelRun
	m.cancelRun = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	go func() {
		ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := m.transport.Cancel(ctx, taskID); err != nil {
			m.log.WithError(err).WithField("task_id", taskID).Warn("backend cancel failed, local task cancelled anyway")
		}
	}()

	m.record(taskID, "task.cancel", "")
	m.log.WithField("task_id", taskID).Info("task cancelled")
	m.scheduleClear(taskID)
	return nil
}

// Active returns a copy of the active task, or nil when the slot is
// free.
func (m *Manager) Active() *models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	cp := *m.active
	return &cp
}

// Stop cancels any in-flight run goroutine and waits for it to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancelRun
	m.cancelRun = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// run drives one task from submission to a terminal state.
func (m *Manager) run(ctx context.Context, taskID string) {
	defer m.wg.Done()

	task := m.taskByID(taskID)
	if task == nil {
		return
	}

	ack, err := m.transport.Submit(ctx, task)
	if err != nil {
		if ctx.Err() == nil {
			m.fail(taskID, fmt.Errorf("submit: %w", err))
		}
		return
	}
	if !m.toRunning(taskID, ack) {
		return
	}

	progressTick := time.NewTicker(m.cfg.ProgressInterval)
	defer progressTick.Stop()
	pollTick := time.NewTicker(m.cfg.PollInterval)
	defer pollTick.Stop()

	retries := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-progressTick.C:
			m.advanceEstimate(taskID)
		case <-pollTick.C:
			report, err := m.transport.Status(ctx, taskID)
			if err == nil {
				var terminal bool
				terminal, err = m.applyReport(taskID, report)
				if err == nil {
					if terminal {
						return
					}
					retries = 0
					continue
				}
			}
			if ctx.Err() != nil {
				return
			}
			retries++
			m.log.WithError(err).WithFields(logrus.Fields{
				"task_id": taskID,
				"attempt": retries,
			}).Warn("status check failed")
			if retries >= m.cfg.StatusRetries {
				m.fail(taskID, fmt.Errorf("status: %w", err))
				return
			}
		}
	}
}

// toRunning moves the task from submitting to running. A task cancelled
// while the ack was in flight stays cancelled.
func (m *Manager) toRunning(taskID string, ack *transport.Ack) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.ID != taskID || m.active.State != models.TaskStateSubmitting {
		return false
	}
	m.active.State = models.TaskStateRunning
	if ack != nil && ack.Title != "" {
		m.active.Title = ack.Title
	}
	m.log.WithField("task_id", taskID).Info("task running")
	return true
}

// advanceEstimate bumps the display-side progress estimate. It is a
// liveness indicator, not a measurement: it only moves while no
// authoritative progress has arrived, never decreases, and stops at the
// estimate cap.
func (m *Manager) advanceEstimate(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.ID != taskID || m.active.State != models.TaskStateRunning {
		return
	}
	if !m.active.Estimated {
		return
	}
	next := m.active.Progress + m.rng.Float64()*maxEstimateStep
	if next > estimateCap {
		next = estimateCap
	}
	m.active.Progress = next
}

// applyReport folds an authoritative status report into the task. The
// returned terminal flag ends the run loop; a stale report (slot reused
// or task already terminal) also ends it. A completed report without a
// payload, or an authoritative figure below the previous authoritative
// figure, is a transport-level defect and counts toward the retry
// budget. The displayed progress is max(estimate, authoritative), so a
// report below an inflated estimate is healthy as long as the backend
// itself moves forward.
func (m *Manager) applyReport(taskID string, report *transport.StatusReport) (bool, error) {
	m.mu.Lock()
	if m.active == nil || m.active.ID != taskID || m.active.State.Terminal() {
		m.mu.Unlock()
		return true, nil
	}

	switch report.State {
	case models.TaskStateCompleted:
		if report.Result == nil {
			m.mu.Unlock()
			return false, fmt.Errorf("completed report for task %s carries no payload", taskID)
		}
		now := time.Now().UTC()
		m.active.State = models.TaskStateCompleted
		m.active.Progress = 100
		m.active.Estimated = false
		m.active.CompletedAt = &now
		result := buildResult(m.active, report.Result, now)
		m.mu.Unlock()

		m.cache.Insert(result)
		m.Persist()
		m.record(taskID, "task.complete", fmt.Sprintf("%d members", result.ItemCount))
		m.log.WithFields(logrus.Fields{"task_id": taskID, "items": result.ItemCount}).Info("task completed")
		m.scheduleClear(taskID)
		return true, nil

	case models.TaskStateFailed:
		m.mu.Unlock()
		msg := report.Error
		if msg == "" {
			msg = "backend reported failure"
		}
		m.fail(taskID, fmt.Errorf("%s", msg))
		return true, nil

	default:
		if report.Progress > 0 {
			if report.Progress < m.lastReported {
				last := m.lastReported
				m.mu.Unlock()
				return false, fmt.Errorf("progress regressed from %.1f to %.1f", last, report.Progress)
			}
			m.lastReported = report.Progress
			p := report.Progress
			if p > 100 {
				p = 100
			}
			if p > m.active.Progress {
				m.active.Progress = p
			}
			m.active.Estimated = false
		}
		m.mu.Unlock()
		return false, nil
	}
}

// fail drives the task to the failed terminal state and releases the
// single-flight slot after the hold window. Stale calls are no-ops.
func (m *Manager) fail(taskID string, cause error) {
	m.mu.Lock()
	if m.active == nil || m.active.ID != taskID || m.active.State.Terminal() {
		m.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	m.active.State = models.TaskStateFailed
	m.active.Error = cause.Error()
	m.active.CompletedAt = &now
	m.mu.Unlock()

	m.record(taskID, "task.fail", cause.Error())
	m.log.WithError(cause).WithField("task_id", taskID).Error("task failed")
	m.scheduleClear(taskID)
}

// scheduleClear returns the slot to idle after the hold window. The
// identity check makes a late timer for a replaced task a no-op.
func (m *Manager) scheduleClear(taskID string) {
	time.AfterFunc(m.cfg.HoldWindow, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.active != nil && m.active.ID == taskID && m.active.State.Terminal() {
			m.active = nil
		}
	})
}

// buildResult derives the durable artifact from the backend payload.
// The result id is the task id, stable across re-renders.
func buildResult(task *models.Task, payload *transport.ResultPayload, now time.Time) models.Result {
	title := payload.Title
	if title == "" {
		title = task.Input
	}
	filename := payload.Filename
	if filename == "" {
		filename = fmt.Sprintf("result_%s.txt", task.ID)
	}
	return models.Result{
		ID:           task.ID,
		Title:        title,
		SourceRef:    task.Input,
		Filename:     filename,
		ItemCount:    payload.ItemCount,
		TotalMembers: payload.TotalMembers,
		Categories:   payload.Categories,
		CreatedAt:    now,
	}
}

// Refresh pulls the backend's completed results and merges them into
// the cache by deduplicating insert, then persists.
func (m *Manager) Refresh(ctx context.Context) (int, error) {
	results, err := m.transport.FetchResults(ctx)
	if err != nil {
		return 0, err
	}
	for i := len(results) - 1; i >= 0; i-- {
		m.cache.Insert(results[i])
	}
	m.Persist()
	return len(results), nil
}

// taskByID returns a copy of the active task when the id matches.
func (m *Manager) taskByID(taskID string) *models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.ID != taskID {
		return nil
	}
	cp := *m.active
	return &cp
}

func (m *Manager) record(taskID, action, detail string) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Record(taskID, action, detail); err != nil {
		m.log.WithError(err).Warn("journal write failed")
	}
}
