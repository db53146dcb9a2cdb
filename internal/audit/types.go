package audit

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("audit disabled")

// Config configures the audit log.
//
// Driver values:
//   - "file": dependency-free JSON Lines append log
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", auditing is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RenderRecord is one render attempt. Keep it compact and schema-stable.
type RenderRecord struct {
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"` // "task" or "issue"
	RefID  string    `json:"ref_id"`
	Title  string    `json:"title"`
	OK     bool      `json:"ok"`
	Error  string    `json:"error,omitempty"`
	TookMS int64     `json:"took_ms"`
}
