package store

import (
	"fmt"
	"sync"

	"printdesk/internal/model"
	logx "printdesk/pkg/logx"
)

// defaultHistoryLimit caps the history when the configured limit is
// missing or nonsense. Matches the appliance's shipped default.
const defaultHistoryLimit = 500

// History is the bounded, most-recent-first log of everything rendered.
type History struct {
	mu    sync.Mutex
	path  string
	log   logx.Logger
	limit int
	items []model.HistoryEntry
}

func NewHistory(path string, limit int, log logx.Logger) *History {
	if log.IsZero() {
		log = logx.Nop()
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &History{path: path, log: log, limit: limit}
}

func (s *History) Load() error {
	var items []model.HistoryEntry
	if _, err := loadSnapshot(s.path, &items); err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	s.mu.Lock()
	s.items = truncate(items, s.limit)
	s.mu.Unlock()
	return nil
}

func (s *History) saveLocked() error {
	return saveSnapshot(s.path, s.items)
}

// Insert prepends an entry, truncates to the limit and persists.
func (s *History) Insert(e model.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]model.HistoryEntry{e}, s.items...)
	s.items = truncate(s.items, s.limit)
	return s.saveLocked()
}

// SetLimit changes the cap. Lowering it truncates existing entries
// immediately and persists the shorter snapshot.
func (s *History) SetLimit(n int) error {
	if n <= 0 {
		n = defaultHistoryLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = n
	if len(s.items) <= n {
		return nil
	}
	s.items = truncate(s.items, n)
	return s.saveLocked()
}

func (s *History) Limit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit
}

// Recent returns up to n entries, most recent first.
func (s *History) Recent(n int) []model.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.items) {
		n = len(s.items)
	}
	out := make([]model.HistoryEntry, n)
	copy(out, s.items[:n])
	return out
}

// All returns a copy of the full history.
func (s *History) All() []model.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.HistoryEntry, len(s.items))
	copy(out, s.items)
	return out
}

func (s *History) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Clear drops all entries and persists the empty snapshot.
func (s *History) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	return s.saveLocked()
}

func truncate(items []model.HistoryEntry, limit int) []model.HistoryEntry {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
