// Package webapp implements the message-channel strategy: commands are
// serialized onto the host's outbound data channel and responses arrive
// later as inbound events. Correlation is explicit: every call registers
// a pending entry keyed by action and task id, resolved when a matching
// event arrives or rejected on timeout. Unmatched events are logged and
// dropped.
package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/dmikhno/groupscan/internal/models"
	"github.com/dmikhno/groupscan/internal/transport"
)

// ErrTimeout is returned when no correlated event arrives in time.
var ErrTimeout = errors.New("no response from channel")

// Channel is the host capability the strategy is built on: a one-shot
// outbound data sink plus a feed of inbound events. It is injected, not
// imported, so tests and alternative hosts can supply their own.
type Channel interface {
	SendData(ctx context.Context, payload []byte) error
	Events() <-chan transport.Envelope
}

const sendThrottle = 200 * time.Millisecond

// Transport is the webapp-channel strategy.
type Transport struct {
	ch      Channel
	log     *logrus.Logger
	timeout time.Duration
	limiter *rate.Limiter

	mu      sync.Mutex
	pending map[string]chan transport.Envelope

	done     chan struct{}
	stopOnce sync.Once
}

// New creates the strategy and starts its event dispatcher.
func New(ch Channel, timeout time.Duration, log *logrus.Logger) *Transport {
	t := &Transport{
		ch:      ch,
		log:     log,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Every(sendThrottle), 1),
		pending: make(map[string]chan transport.Envelope),
		done:    make(chan struct{}),
	}
	go t.dispatch()
	return t
}

// Close stops the dispatcher. In-flight calls time out on their own.
func (t *Transport) Close() {
	t.stopOnce.Do(func() { close(t.done) })
}

// Name returns the strategy identifier.
func (t *Transport) Name() string { return "webapp" }

// Submit dispatches a parse task and waits for the correlated ack.
func (t *Transport) Submit(ctx context.Context, task *models.Task) (*transport.Ack, error) {
	req := transport.SubmitRequest{
		Command:   transport.CmdSubmitTask,
		TaskID:    task.ID,
		GroupLink: task.Input,
		Options:   task.Options,
	}
	var ack transport.Ack
	if err := t.call(ctx, transport.CmdSubmitTask, task.ID, req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// Cancel is fire-and-forget: the payload is handed to the channel and
// no response is awaited. Local transitions never block on it.
func (t *Transport) Cancel(ctx context.Context, taskID string) error {
	req := transport.CancelRequest{Command: transport.CmdCancelTask, TaskID: taskID}
	return t.send(ctx, transport.CmdCancelTask, req)
}

// Status checks on a running task.
func (t *Transport) Status(ctx context.Context, taskID string) (*transport.StatusReport, error) {
	req := transport.StatusRequest{Command: transport.CmdTaskStatus, TaskID: taskID}
	var report transport.StatusReport
	if err := t.call(ctx, transport.CmdTaskStatus, taskID, req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// FetchResults retrieves the backend's completed results.
func (t *Transport) FetchResults(ctx context.Context) ([]models.Result, error) {
	req := map[string]string{"command": transport.CmdFetchResults}
	var results []models.Result
	if err := t.call(ctx, transport.CmdFetchResults, "", req, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// CreateItem creates a backend list item.
func (t *Transport) CreateItem(ctx context.Context, item models.Item) (*models.Item, error) {
	req := struct {
		Command string      `json:"command"`
		Item    models.Item `json:"item"`
	}{transport.CmdCreateItem, item}
	var created models.Item
	if err := t.call(ctx, transport.CmdCreateItem, "", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteItem removes a backend list item.
func (t *Transport) DeleteItem(ctx context.Context, id string) error {
	req := struct {
		Command string `json:"command"`
		ItemID  string `json:"item_id"`
	}{transport.CmdDeleteItem, id}
	return t.call(ctx, transport.CmdDeleteItem, "", req, nil)
}

// FetchItems lists backend items.
func (t *Transport) FetchItems(ctx context.Context) ([]models.Item, error) {
	req := map[string]string{"command": transport.CmdFetchItems}
	var items []models.Item
	if err := t.call(ctx, transport.CmdFetchItems, "", req, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// send serializes a payload onto the channel without awaiting a reply.
func (t *Transport) send(ctx context.Context, op string, payload interface{}) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return &transport.Error{Op: op, Err: err}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return &transport.Error{Op: op, Err: err}
	}
	if err := t.ch.SendData(ctx, data); err != nil {
		return &transport.Error{Op: op, Err: err}
	}
	return nil
}

// call sends a payload and blocks until the correlated inbound event
// arrives, the context ends, or the channel timeout fires.
func (t *Transport) call(ctx context.Context, op, taskID string, payload, out interface{}) error {
	key := pendingKey(op, taskID)

	ch := make(chan transport.Envelope, 1)
	t.mu.Lock()
	if _, exists := t.pending[key]; exists {
		t.mu.Unlock()
		return &transport.Error{Op: op, Err: fmt.Errorf("call already pending for %s", key)}
	}
	t.pending[key] = ch
	t.mu.Unlock()
	defer t.drop(key)

	if err := t.send(ctx, op, payload); err != nil {
		return err
	}

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case env := <-ch:
		if !env.Success {
			msg := env.Error
			if msg == "" {
				msg = "request rejected"
			}
			return &transport.Error{Op: op, Err: errors.New(msg)}
		}
		if out != nil && len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, out); err != nil {
				return &transport.Error{Op: op, Err: fmt.Errorf("decode %s event: %w", op, err)}
			}
		}
		return nil
	case <-timer.C:
		return &transport.Error{Op: op, Err: ErrTimeout}
	case <-ctx.Done():
		return &transport.Error{Op: op, Err: ctx.Err()}
	}
}

// dispatch routes inbound events to their waiting callers. An event
// nobody is waiting for is dropped, never fatal.
func (t *Transport) dispatch() {
	for {
		select {
		case <-t.done:
			return
		case env, ok := <-t.ch.Events():
			if !ok {
				return
			}
			key := pendingKey(env.Action, env.TaskID)
			t.mu.Lock()
			waiter, found := t.pending[key]
			if found {
				delete(t.pending, key)
			}
			t.mu.Unlock()

			if !found {
				t.log.WithFields(logrus.Fields{
					"action":  env.Action,
					"task_id": env.TaskID,
				}).Warn("dropping unmatched inbound event")
				continue
			}
			waiter <- env
		}
	}
}

func (t *Transport) drop(key string) {
	t.mu.Lock()
	delete(t.pending, key)
	t.mu.Unlock()
}

func pendingKey(action, taskID string) string {
	return action + "|" + taskID
}
