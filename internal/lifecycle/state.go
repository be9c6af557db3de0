package lifecycle

import (
	"github.com/dmikhno/groupscan/internal/cache"
	"github.com/dmikhno/groupscan/internal/models"
)

// The manager owns the explicit application-state object (settings and
// parse options); results and stats are composed from the cache at
// persist time. Persistence is a whole-state snapshot on every mutating
// change, best effort by the store contract.

// Persist writes the current whole-state snapshot.
func (m *Manager) Persist() {
	m.mu.Lock()
	snap := *m.state
	m.mu.Unlock()

	snap.Results = m.cache.List()
	snap.Stats = m.cache.Stats()

	m.mu.Lock()
	m.state.Results = snap.Results
	m.state.Stats = snap.Stats
	m.mu.Unlock()

	m.store.Save(&snap)
}

// Settings returns the current user preferences.
func (m *Manager) Settings() models.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Settings
}

// SetSettings replaces the user preferences and persists.
func (m *Manager) SetSettings(s models.Settings) {
	m.mu.Lock()
	m.state.Settings = s
	m.mu.Unlock()
	m.Persist()
}

// ResetSettings restores the documented defaults and persists.
func (m *Manager) ResetSettings() {
	m.SetSettings(models.DefaultSettings())
}

// ParseOptions returns the current parse options.
func (m *Manager) ParseOptions() models.ParseOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ParseOptions
}

// SetParseOptions replaces the parse options and persists.
func (m *Manager) SetParseOptions(o models.ParseOptions) {
	m.mu.Lock()
	m.state.ParseOptions = o
	m.mu.Unlock()
	m.Persist()
}

// ResetParseOptions restores the documented defaults and persists.
func (m *Manager) ResetParseOptions() {
	m.SetParseOptions(models.DefaultParseOptions())
}

// Snapshot returns a copy of the current whole-state document with
// results and stats composed from the cache.
func (m *Manager) Snapshot() *models.Snapshot {
	m.mu.Lock()
	snap := *m.state
	m.mu.Unlock()

	snap.Results = m.cache.List()
	snap.Stats = m.cache.Stats()
	return &snap
}

// SearchResults returns cached results whose title, filename or source
// reference contains the query, case-insensitively.
func (m *Manager) SearchResults(query string) []models.Result {
	return m.cache.Search(query)
}

// FilterResults returns cached results created within the given period.
func (m *Manager) FilterResults(period cache.Period) []models.Result {
	return m.cache.Filter(period)
}

// RemoveResult deletes one cached result and persists. An unknown id
// is a no-op by the cache contract.
func (m *Manager) RemoveResult(id string) {
	m.cache.Remove(id)
	m.Persist()
}

// ClearResults drops every cached result and persists.
func (m *Manager) ClearResults() {
	m.cache.Clear()
	m.Persist()
}
