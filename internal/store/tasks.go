package store

import (
	"errors"
	"fmt"
	"sync"

	"printdesk/internal/model"
	logx "printdesk/pkg/logx"
)

var ErrNotFound = errors.New("store: not found")

// Tasks is the collection of scheduled reminders, keyed by ID.
type Tasks struct {
	mu    sync.Mutex
	path  string
	log   logx.Logger
	items []model.Task
}

// taskRecord mirrors model.Task with a nullable enabled flag so records
// written by older versions (which had no flag) load as enabled.
type taskRecord struct {
	model.Task
	Enabled *bool `json:"enabled"`
}

func NewTasks(path string, log logx.Logger) *Tasks {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Tasks{path: path, log: log}
}

// Load reads the snapshot and repairs what it can: a missing enabled flag
// defaults to true, a missing recurrence defaults to none, and a custom
// task with no weekday set is dropped (it could never be advanced).
func (s *Tasks) Load() error {
	var recs []taskRecord
	if _, err := loadSnapshot(s.path, &recs); err != nil {
		// Do not start empty over an unreadable file: the next save would
		// wipe whatever the user had.
		return fmt.Errorf("load tasks: %w", err)
	}

	items := make([]model.Task, 0, len(recs))
	for _, r := range recs {
		t := r.Task
		if r.Enabled == nil {
			t.Enabled = true
			s.log.Warn("task missing enabled flag; defaulting to true", logx.String("id", t.ID))
		} else {
			t.Enabled = *r.Enabled
		}
		if t.Recur == "" {
			t.Recur = model.RecurNone
			s.log.Warn("task missing recurrence; defaulting to none", logx.String("id", t.ID))
		}
		if !t.Recur.Valid() {
			t.Recur = model.RecurNone
			s.log.Warn("task has unknown recurrence; defaulting to none", logx.String("id", t.ID))
		}
		if t.Recur == model.RecurCustom && len(t.Days) == 0 {
			s.log.Warn("dropping custom task with empty weekday set", logx.String("id", t.ID), logx.String("title", t.Title))
			continue
		}
		items = append(items, t)
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return nil
}

func (s *Tasks) saveLocked() error {
	return saveSnapshot(s.path, s.items)
}

// All returns a copy of every task.
func (s *Tasks) All() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns the task with the given ID.
func (s *Tasks) Get(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.items {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// Add appends a new task and persists.
func (s *Tasks) Add(t model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, t)
	return s.saveLocked()
}

// Update replaces the task with the same ID and persists.
func (s *Tasks) Update(t model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == t.ID {
			s.items[i] = t
			return s.saveLocked()
		}
	}
	return ErrNotFound
}

// Delete removes the task with the given ID and persists.
// Removing an unknown ID is not an error.
func (s *Tasks) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.items {
		if t.ID == id {
			continue
		}
		s.items[n] = t
		n++
	}
	if n == len(s.items) {
		return nil
	}
	s.items = s.items[:n]
	return s.saveLocked()
}

// Sweep runs fn over a copy of the task list while holding the store lock,
// replaces the list with fn's result and persists once. The scheduler uses
// this for its batched fire-and-advance pass so a concurrent web edit can
// never interleave with a tick.
func (s *Tasks) Sweep(fn func(items []model.Task) []model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]model.Task, len(s.items))
	copy(cp, s.items)
	s.items = fn(cp)
	return s.saveLocked()
}
