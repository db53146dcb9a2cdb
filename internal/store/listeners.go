package store

import (
	"fmt"
	"sync"
	"time"

	"printdesk/internal/model"
	logx "printdesk/pkg/logx"
)

// Listeners holds the per-source polling configuration.
type Listeners struct {
	mu    sync.Mutex
	path  string
	log   logx.Logger
	items []model.Listener
}

func NewListeners(path string, log logx.Logger) *Listeners {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Listeners{path: path, log: log}
}

// Load reads the snapshot. A malformed last_check is cleared with a warning
// rather than kept: an unparseable checkpoint would otherwise wedge the
// listener between "never checked" and "checked" forever.
func (s *Listeners) Load() error {
	var items []model.Listener
	if _, err := loadSnapshot(s.path, &items); err != nil {
		return fmt.Errorf("load listeners: %w", err)
	}
	for i := range items {
		if items[i].LastCheck == "" {
			continue
		}
		if _, ok := items[i].LastCheckTime(); !ok {
			s.log.Warn("listener has malformed last_check; clearing",
				logx.String("id", items[i].ID), logx.String("last_check", items[i].LastCheck))
			items[i].LastCheck = ""
		}
	}
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return nil
}

func (s *Listeners) saveLocked() error {
	return saveSnapshot(s.path, s.items)
}

// All returns a copy of every listener.
func (s *Listeners) All() []model.Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Listener, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Listeners) Get(id string) (model.Listener, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.items {
		if l.ID == id {
			return l, true
		}
	}
	return model.Listener{}, false
}

func (s *Listeners) Add(l model.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, l)
	return s.saveLocked()
}

func (s *Listeners) Update(l model.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == l.ID {
			s.items[i] = l
			return s.saveLocked()
		}
	}
	return ErrNotFound
}

func (s *Listeners) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.items {
		if l.ID == id {
			continue
		}
		s.items[n] = l
		n++
	}
	if n == len(s.items) {
		return nil
	}
	s.items = s.items[:n]
	return s.saveLocked()
}

// AdvanceCheckpoint sets the listener's last_check to t (strict UTC) and
// persists. Called only after a fully successful poll; a failed poll leaves
// the checkpoint untouched so the same window is retried.
func (s *Listeners) AdvanceCheckpoint(id string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].SetLastCheck(t)
			return s.saveLocked()
		}
	}
	return ErrNotFound
}
