package botapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmikhno/groupscan/internal/logging"
	"github.com/dmikhno/groupscan/internal/models"
	"github.com/dmikhno/groupscan/internal/transport"
)

func newTestClient(url string) *Client {
	return New(url, 2*time.Second, logging.Discard())
}

func envelope(t *testing.T, success bool, errMsg string, data interface{}) []byte {
	t.Helper()
	env := transport.Envelope{Success: success, Error: errMsg}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal envelope data: %v", err)
		}
		env.Data = raw
	}
	out, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return out
}

func TestSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/tasks" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req transport.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode submit request: %v", err)
		}
		if req.Command != transport.CmdSubmitTask || req.GroupLink != "@testgroup" {
			t.Errorf("unexpected submit request: %+v", req)
		}
		w.Write(envelope(t, true, "", transport.Ack{TaskID: req.TaskID, Title: "Test Group"}))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ack, err := c.Submit(context.Background(), &models.Task{ID: "t1", Input: "@testgroup"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ack.TaskID != "t1" || ack.Title != "Test Group" {
		t.Errorf("unexpected ack: %+v", ack)
	}
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/tasks/t1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Write(envelope(t, true, "", transport.StatusReport{
			TaskID:   "t1",
			State:    models.TaskStateRunning,
			Progress: 42,
		}))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	report, err := c.Status(context.Background(), "t1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if report.State != models.TaskStateRunning || report.Progress != 42 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestNon2xxMapsToTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "task not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Status(context.Background(), "nope")
	if err == nil {
		t.Fatal("expected an error")
	}

	var terr *transport.Error
	if !errors.As(err, &terr) {
		t.Fatalf("expected *transport.Error, got %T", err)
	}
	if terr.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", terr.StatusCode)
	}
	if terr.Op != transport.CmdTaskStatus {
		t.Errorf("expected op %s, got %s", transport.CmdTaskStatus, terr.Op)
	}
}

func TestRejectedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope(t, false, "group is private", nil))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Submit(context.Background(), &models.Task{ID: "t1", Input: "@private"})
	if err == nil {
		t.Fatal("expected an error")
	}

	var terr *transport.Error
	if !errors.As(err, &terr) {
		t.Fatalf("expected *transport.Error, got %T", err)
	}
	if terr.Err.Error() != "group is private" {
		t.Errorf("expected backend message to surface, got %v", terr.Err)
	}
}

func TestFetchResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/results" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write(envelope(t, true, "", []models.Result{
			{ID: "r1", Title: "One"},
			{ID: "r2", Title: "Two"},
		}))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	results, err := c.FetchResults(context.Background())
	if err != nil {
		t.Fatalf("fetch results: %v", err)
	}
	if len(results) != 2 || results[0].ID != "r1" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestCancel(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write(envelope(t, true, "", nil))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if err := c.Cancel(context.Background(), "t1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if gotPath != "/api/tasks/t1/cancel" {
		t.Errorf("unexpected cancel path %s", gotPath)
	}
}
