// Package botapi implements the request/response HTTP strategy against
// the parser bot's API.
package botapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/dmikhno/groupscan/internal/models"
	"github.com/dmikhno/groupscan/internal/transport"
)

// commandThrottle spaces outbound commands so a busy UI cannot hammer
// the bot.
const commandThrottle = 200 * time.Millisecond

// Client talks to the bot over plain HTTP with a per-request timeout.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     *logrus.Logger
}

// New creates a botapi client.
func New(baseURL string, timeout time.Duration, log *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(commandThrottle), 1),
		log:     log,
	}
}

// Name returns the strategy identifier.
func (c *Client) Name() string { return "botapi" }

// Submit dispatches a parse task.
func (c *Client) Submit(ctx context.Context, task *models.Task) (*transport.Ack, error) {
	req := transport.SubmitRequest{
		Command:   transport.CmdSubmitTask,
		TaskID:    task.ID,
		GroupLink: task.Input,
		Options:   task.Options,
	}
	var ack transport.Ack
	if err := c.do(ctx, transport.CmdSubmitTask, http.MethodPost, "/api/tasks", req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// Cancel asks the backend to stop a task.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	req := transport.CancelRequest{Command: transport.CmdCancelTask, TaskID: taskID}
	return c.do(ctx, transport.CmdCancelTask, http.MethodPost, "/api/tasks/"+taskID+"/cancel", req, nil)
}

// Status checks on a running task.
func (c *Client) Status(ctx context.Context, taskID string) (*transport.StatusReport, error) {
	var report transport.StatusReport
	if err := c.do(ctx, transport.CmdTaskStatus, http.MethodGet, "/api/tasks/"+taskID, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// FetchResults retrieves the backend's completed results.
func (c *Client) FetchResults(ctx context.Context) ([]models.Result, error) {
	var results []models.Result
	if err := c.do(ctx, transport.CmdFetchResults, http.MethodGet, "/api/results", nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// CreateItem creates a backend list item.
func (c *Client) CreateItem(ctx context.Context, item models.Item) (*models.Item, error) {
	var created models.Item
	if err := c.do(ctx, transport.CmdCreateItem, http.MethodPost, "/api/items", item, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteItem removes a backend list item.
func (c *Client) DeleteItem(ctx context.Context, id string) error {
	return c.do(ctx, transport.CmdDeleteItem, http.MethodDelete, "/api/items/"+id, nil, nil)
}

// FetchItems lists backend items.
func (c *Client) FetchItems(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	if err := c.do(ctx, transport.CmdFetchItems, http.MethodGet, "/api/items", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// do performs one throttled round trip. A timeout, a non-2xx status or
// a success=false envelope all map to *transport.Error; the HTTP status
// code is retained when one applies.
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &transport.Error{Op: op, Err: err}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &transport.Error{Op: op, Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &transport.Error{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &transport.Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transport.Error{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &transport.Error{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("bot API: %s", strings.TrimSpace(string(raw))),
		}
	}

	var env transport.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &transport.Error{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "request rejected"
		}
		return &transport.Error{Op: op, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &transport.Error{Op: op, Err: fmt.Errorf("decode %s response: %w", op, err)}
		}
	}

	c.log.WithFields(logrus.Fields{"op": op, "path": path}).Debug("bot API call ok")
	return nil
}
