// Package store persists the application snapshot as a single JSON
// document. Persistence is best effort: a failed save is logged and
// never surfaced, a missing or corrupt snapshot loads as the default
// state. The store is the sole writer of durable application bytes.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dmikhno/groupscan/internal/models"
)

// Store reads and writes the whole-state snapshot.
type Store struct {
	dir    string
	userID int64
	log    *logrus.Logger
}

// New creates a store rooted at dir. When userID is non-zero the
// snapshot is scoped to that identity.
func New(dir string, userID int64, log *logrus.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{dir: dir, userID: userID, log: log}, nil
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	name := "state.json"
	if s.userID != 0 {
		name = fmt.Sprintf("state_%d.json", s.userID)
	}
	return filepath.Join(s.dir, name)
}

// Load reads the snapshot. It never fails: no prior state, unreadable
// bytes or an unparsable document all yield the documented defaults,
// with the cause logged. Saved fields overlay the defaults so snapshots
// written by older schema versions pick up new fields on load.
func (s *Store) Load() *models.Snapshot {
	snap := models.DefaultSnapshot()
	snap.UserID = s.userID

	raw, err := os.ReadFile(s.Path())
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.WithError(err).Warn("snapshot unreadable, starting from defaults")
		}
		return snap
	}

	if err := json.Unmarshal(raw, snap); err != nil {
		s.log.WithError(err).Warn("snapshot corrupt, starting from defaults")
		snap = models.DefaultSnapshot()
		snap.UserID = s.userID
		return snap
	}

	if snap.Version < models.SnapshotVersion {
		s.log.WithFields(logrus.Fields{
			"from": snap.Version,
			"to":   models.SnapshotVersion,
		}).Info("migrated snapshot version")
		snap.Version = models.SnapshotVersion
	}
	if snap.Results == nil {
		snap.Results = []models.Result{}
	}
	return snap
}

// Save writes the whole snapshot. Failures are logged only; the
// in-memory state the caller asked to persist is never rolled back.
func (s *Store) Save(snap *models.Snapshot) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		s.log.WithError(err).Error("marshal snapshot")
		return
	}

	tmp := s.Path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		s.log.WithError(err).Error("write snapshot")
		return
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		s.log.WithError(err).Error("replace snapshot")
	}
}

// ExportState writes a timestamp-named copy of the full snapshot and
// returns its path.
func (s *Store) ExportState(snap *models.Snapshot) (string, error) {
	name := fmt.Sprintf("groupscan-backup-%s.json", time.Now().Format("2006-01-02"))
	return s.export(name, snap)
}

// ExportResults writes a timestamp-named results-only document and
// returns its path.
func (s *Store) ExportResults(results []models.Result) (string, error) {
	doc := struct {
		ExportedAt time.Time       `json:"exported_at"`
		Results    []models.Result `json:"results"`
	}{time.Now().UTC(), results}

	name := fmt.Sprintf("groupscan-results-%s.json", time.Now().Format("2006-01-02"))
	return s.export(name, doc)
}

func (s *Store) export(name string, doc interface{}) (string, error) {
	exportDir := filepath.Join(s.dir, "exports")
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}

	path := filepath.Join(exportDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
