// Package models defines the core domain types for groupscan.
package models

import "time"

// TaskState represents the current state of a parse task.
type TaskState string

const (
	TaskStateIdle       TaskState = "idle"
	TaskStateSubmitting TaskState = "submitting"
	TaskStateRunning    TaskState = "running"
	TaskStateCompleted  TaskState = "completed"
	TaskStateCancelled  TaskState = "cancelled"
	TaskStateFailed     TaskState = "failed"
)

// Terminal reports whether the state admits no further transitions
// except back to idle.
func (s TaskState) Terminal() bool {
	return s == TaskStateCompleted || s == TaskStateCancelled || s == TaskStateFailed
}

// Task represents one in-flight request for backend-performed work.
// Options are a snapshot taken at submission time and do not change
// once the task starts.
type Task struct {
	ID          string       `json:"id"`
	Input       string       `json:"input"`
	Title       string       `json:"title,omitempty"`
	Options     ParseOptions `json:"options"`
	State       TaskState    `json:"state"`
	Progress    float64      `json:"progress"`
	Estimated   bool         `json:"estimated"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// Categories breaks down parsed members by kind. The label set is fixed.
type Categories struct {
	Owner      int `json:"owner"`
	Admins     int `json:"admins"`
	Bots       int `json:"bots"`
	Premium    int `json:"premium"`
	Regular    int `json:"regular"`
	NoUsername int `json:"no_username"`
}

// Result is the durable artifact of a completed task.
type Result struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	SourceRef    string     `json:"source_ref"`
	Filename     string     `json:"filename"`
	ItemCount    int        `json:"item_count"`
	TotalMembers int        `json:"total_members,omitempty"`
	Categories   Categories `json:"categories"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Coverage returns the percentage of the group the result covers,
// or 0 when the total population is unknown.
func (r Result) Coverage() float64 {
	if r.TotalMembers <= 0 {
		return 0
	}
	return float64(r.ItemCount) / float64(r.TotalMembers) * 100
}

// Stats are derived from the result cache, never accumulated.
type Stats struct {
	Count       int `json:"count"`
	TotalItems  int `json:"total_items"`
	AvgCoverage int `json:"avg_coverage"`
}

// Settings are user preferences, persisted as part of the snapshot.
type Settings struct {
	AutoSave         bool `json:"auto_save"`
	Notifications    bool `json:"notifications"`
	DarkMode         bool `json:"dark_mode"`
	SessionTimeout   int  `json:"session_timeout"`
	SecureConnection bool `json:"secure_connection"`
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		AutoSave:         true,
		Notifications:    true,
		DarkMode:         false,
		SessionTimeout:   30,
		SecureConnection: true,
	}
}

// ParseOptions select which member categories the backend should collect
// and the per-request throttle delay in seconds.
type ParseOptions struct {
	ParseAdmins     bool    `json:"parse_admins"`
	ParseBots       bool    `json:"parse_bots"`
	ParsePremium    bool    `json:"parse_premium"`
	ParseRegular    bool    `json:"parse_regular"`
	ParseNoUsername bool    `json:"parse_no_username"`
	Delay           float64 `json:"delay"`
}

// DefaultParseOptions returns the documented defaults.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		ParseAdmins:     true,
		ParseBots:       true,
		ParsePremium:    true,
		ParseRegular:    true,
		ParseNoUsername: true,
		Delay:           1.0,
	}
}

// Item is a backend-managed list entry (the create/delete/fetch item
// command vocabulary). The client never stores items locally.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Priority  string    `json:"priority,omitempty"`
	Category  string    `json:"category,omitempty"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotVersion is the current durable snapshot schema version.
const SnapshotVersion = 1

// Snapshot is the single durable JSON document the local store persists.
// It must round-trip: save(load()) is a no-op modulo key ordering.
type Snapshot struct {
	Version      int          `json:"version"`
	UserID       int64        `json:"user_id,omitempty"`
	Settings     Settings     `json:"settings"`
	ParseOptions ParseOptions `json:"parse_options"`
	Results      []Result     `json:"results"`
	Stats        Stats        `json:"stats"`
}

// DefaultSnapshot returns the state used when no prior snapshot exists.
func DefaultSnapshot() *Snapshot {
	return &Snapshot{
		Version:      SnapshotVersion,
		Settings:     DefaultSettings(),
		ParseOptions: DefaultParseOptions(),
		Results:      []Result{},
	}
}
