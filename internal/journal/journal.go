// Package journal keeps an append-only SQLite record of task lifecycle
// transitions and dispatched commands. It is diagnostics only: the
// application snapshot lives in the local store, never here.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entry is one journaled lifecycle event.
type Entry struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id,omitempty"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal provides access to the journal database.
type Journal struct {
	db *sql.DB
}

// Open creates the journal database and runs migrations.
func Open(dbPath string) (*Journal, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// migrate runs idempotent schema migrations.
func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		task_id TEXT,
		action TEXT NOT NULL,
		detail TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_task_id ON entries(task_id);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record appends one event.
func (j *Journal) Record(taskID, action, detail string) error {
	_, err := j.db.Exec(
		`INSERT INTO entries (id, task_id, action, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), taskID, action, detail, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	rows, err := j.db.Query(
		`SELECT id, task_id, action, detail, created_at FROM entries ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ForTask returns every entry recorded for one task, oldest first.
func (j *Journal) ForTask(taskID string) ([]Entry, error) {
	rows, err := j.db.Query(
		`SELECT id, task_id, action, detail, created_at FROM entries WHERE task_id = ? ORDER BY created_at ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query journal for task: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var taskID, detail sql.NullString
		if err := rows.Scan(&e.ID, &taskID, &e.Action, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if taskID.Valid {
			e.TaskID = taskID.String
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
