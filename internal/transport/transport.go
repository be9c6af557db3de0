// Package transport abstracts "send a command, get a response" to the
// parser bot. Two interchangeable strategies exist: a direct HTTP API
// (botapi) and a fire-and-forget data channel with correlated inbound
// events (webapp). Neither strategy mutates local state.
package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmikhno/groupscan/internal/models"
)

// Wire command verbs understood by the bot.
const (
	CmdSubmitTask   = "submit_task"
	CmdCancelTask   = "cancel_task"
	CmdTaskStatus   = "task_status"
	CmdFetchResults = "fetch_results"
	CmdCreateItem   = "create_item"
	CmdDeleteItem   = "delete_item"
	CmdFetchItems   = "fetch_items"
)

// Envelope is the response framing shared by both strategies. Action is
// the correlation tag under the webapp strategy.
type Envelope struct {
	Action  string          `json:"action"`
	TaskID  string          `json:"task_id,omitempty"`
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Ack acknowledges a submitted command.
type Ack struct {
	TaskID string `json:"task_id"`
	Title  string `json:"group_title,omitempty"`
}

// ResultPayload is the backend's description of a finished parse.
type ResultPayload struct {
	Title        string            `json:"group_title"`
	Filename     string            `json:"filename"`
	ItemCount    int               `json:"total_parsed"`
	TotalMembers int               `json:"total_members_count,omitempty"`
	Categories   models.Categories `json:"categories"`
}

// StatusReport is the authoritative view of a task held by the backend.
type StatusReport struct {
	TaskID   string           `json:"task_id"`
	State    models.TaskState `json:"status"`
	Progress float64          `json:"progress"`
	Error    string           `json:"error,omitempty"`
	Result   *ResultPayload   `json:"result,omitempty"`
}

// Transport is the adapter both strategies implement.
type Transport interface {
	// Name identifies the strategy.
	Name() string

	// Submit dispatches a parse task and waits for acknowledgement.
	Submit(ctx context.Context, task *models.Task) (*Ack, error)

	// Cancel asks the backend to stop a task. Best effort: callers do
	// not block local transitions on its outcome.
	Cancel(ctx context.Context, taskID string) error

	// Status checks on a running task.
	Status(ctx context.Context, taskID string) (*StatusReport, error)

	// FetchResults retrieves the backend's completed results.
	FetchResults(ctx context.Context) ([]models.Result, error)

	// CreateItem, DeleteItem and FetchItems manage backend list items.
	CreateItem(ctx context.Context, item models.Item) (*models.Item, error)
	DeleteItem(ctx context.Context, id string) error
	FetchItems(ctx context.Context) ([]models.Item, error)
}

// Error is a transport-level failure. StatusCode is retained when the
// failure maps to an HTTP status, 0 otherwise.
type Error struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// SubmitRequest is the outbound payload for CmdSubmitTask.
type SubmitRequest struct {
	Command   string              `json:"command"`
	TaskID    string              `json:"task_id"`
	GroupLink string              `json:"group_link"`
	Options   models.ParseOptions `json:"options"`
}

// CancelRequest is the outbound payload for CmdCancelTask.
type CancelRequest struct {
	Command string `json:"command"`
	TaskID  string `json:"task_id"`
}

// StatusRequest is the outbound payload for CmdTaskStatus.
type StatusRequest struct {
	Command string `json:"command"`
	TaskID  string `json:"task_id"`
}
