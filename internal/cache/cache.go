// Package cache holds the ordered collection of completed parse results.
// All operations are synchronous and local; the cache is the only owner
// of the result collection.
package cache

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dmikhno/groupscan/internal/models"
)

// Period selects a time window for filtering, computed against each
// result's creation time.
type Period string

const (
	PeriodAll   Period = "all"
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"  // rolling 7 days
	PeriodMonth Period = "month" // rolling 30 days
)

// ValidPeriod reports whether p is a known filter period.
func ValidPeriod(p Period) bool {
	switch p {
	case PeriodAll, PeriodToday, PeriodWeek, PeriodMonth:
		return true
	}
	return false
}

// Cache is an insertion-ordered, newest-first result collection with
// dedup-by-id semantics.
type Cache struct {
	mu      sync.RWMutex
	results []models.Result
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{results: []models.Result{}}
}

// NewFrom seeds a cache from a persisted snapshot, preserving order and
// collapsing any duplicate ids onto the later entry.
func NewFrom(results []models.Result) *Cache {
	c := New()
	for i := len(results) - 1; i >= 0; i-- {
		c.Insert(results[i])
	}
	return c
}

// Insert adds a result. An existing entry with the same id is replaced
// in place; otherwise the result becomes the newest entry. The cache
// never holds two results with one id.
func (c *Cache) Insert(r models.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.results {
		if c.results[i].ID == r.ID {
			c.results[i] = r
			return
		}
	}
	c.results = append([]models.Result{r}, c.results...)
}

// List returns all results, newest first.
func (c *Cache) List() []models.Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Result, len(c.results))
	copy(out, c.results)
	return out
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}

// Search returns results whose title, filename or source reference
// contains the query, case-insensitively. An empty query matches all.
func (c *Cache) Search(query string) []models.Result {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return c.List()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.Result
	for _, r := range c.results {
		if strings.Contains(strings.ToLower(r.Title), query) ||
			strings.Contains(strings.ToLower(r.Filename), query) ||
			strings.Contains(strings.ToLower(r.SourceRef), query) {
			out = append(out, r)
		}
	}
	return out
}

// Filter returns results created within the period, newest first.
func (c *Cache) Filter(period Period) []models.Result {
	return c.FilterAt(period, time.Now())
}

// FilterAt is Filter with an explicit reference time.
func (c *Cache) FilterAt(period Period, now time.Time) []models.Result {
	if period == PeriodAll || period == "" {
		return c.List()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.Result
	for _, r := range c.results {
		if inPeriod(r.CreatedAt, period, now) {
			out = append(out, r)
		}
	}
	return out
}

func inPeriod(t time.Time, period Period, now time.Time) bool {
	switch period {
	case PeriodToday:
		y1, m1, d1 := t.Local().Date()
		y2, m2, d2 := now.Local().Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	case PeriodWeek:
		return !t.Before(now.Add(-7 * 24 * time.Hour))
	case PeriodMonth:
		return !t.Before(now.Add(-30 * 24 * time.Hour))
	}
	return false
}

// Remove deletes a result by id. An unknown id is a no-op.
func (c *Cache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.results {
		if c.results[i].ID == id {
			c.results = append(c.results[:i], c.results[i+1:]...)
			return
		}
	}
}

// Clear drops every result.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = c.results[:0]
}

// Stats derives cache statistics. AvgCoverage is the rounded mean of
// per-result coverage; results with an unknown population contribute 0.
func (c *Cache) Stats() models.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := models.Stats{Count: len(c.results)}
	if stats.Count == 0 {
		return stats
	}

	var coverageSum float64
	for _, r := range c.results {
		stats.TotalItems += r.ItemCount
		coverageSum += r.Coverage()
	}
	stats.AvgCoverage = int(math.Round(coverageSum / float64(stats.Count)))
	return stats
}
