package model

import (
	"time"
)

// TimeLayoutUTC is the strict wire format for listener checkpoints.
// The external issue API rejects anything but whole-second Zulu timestamps.
const TimeLayoutUTC = "2006-01-02T15:04:05Z"

// RecurrenceKind is the repeat policy of a Task.
type RecurrenceKind string

const (
	RecurNone          RecurrenceKind = "none"
	RecurDaily         RecurrenceKind = "daily"
	RecurWeekly        RecurrenceKind = "weekly"
	RecurMonthly       RecurrenceKind = "monthly"
	RecurEveryWeekday  RecurrenceKind = "every_weekday"
	RecurFirstDayMonth RecurrenceKind = "first_day_month"
	RecurCustom        RecurrenceKind = "custom"
)

// Valid reports whether k is a known recurrence kind.
func (k RecurrenceKind) Valid() bool {
	switch k {
	case RecurNone, RecurDaily, RecurWeekly, RecurMonthly,
		RecurEveryWeekday, RecurFirstDayMonth, RecurCustom:
		return true
	}
	return false
}

// Recurring reports whether a task with this kind survives a fire.
// RecurNone tasks are removed after they fire exactly once.
func (k RecurrenceKind) Recurring() bool { return k != RecurNone && k.Valid() }

// Task is a scheduled reminder.
//
// NextTime is always UTC inside the scheduler; user wall-clock input is
// converted in the web layer using the configured timezone.
// Days is only meaningful for RecurCustom and uses Go weekday numbering
// (Sunday=0).
type Task struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Note     string         `json:"note,omitempty"`
	URL      string         `json:"url,omitempty"`
	NextTime time.Time      `json:"next_time"`
	Recur    RecurrenceKind `json:"recurring"`
	Days     []time.Weekday `json:"days,omitempty"`
	Enabled  bool           `json:"enabled"`
}

// Listener is the poll configuration for one external issue source.
//
// LastCheck is the strict-UTC checkpoint of the last successful fetch
// (empty means never checked). It is only advanced after a fetch succeeds,
// so a failed poll retries the same window on the next eligible tick.
type Listener struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Enabled         bool   `json:"enabled"`
	RequestTypes    string `json:"request_types"`
	IntervalMinutes int    `json:"interval_minutes"`
	LastCheck       string `json:"last_check,omitempty"`
}

// LastCheckTime parses the checkpoint. ok is false when the listener has
// never successfully checked (or the stored value is malformed).
func (l Listener) LastCheckTime() (t time.Time, ok bool) {
	if l.LastCheck == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(TimeLayoutUTC, l.LastCheck)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetLastCheck stores t as the strict-UTC checkpoint.
func (l *Listener) SetLastCheck(t time.Time) {
	l.LastCheck = t.UTC().Format(TimeLayoutUTC)
}

// Interval returns the poll interval as a duration (minimum one minute).
func (l Listener) Interval() time.Duration {
	m := l.IntervalMinutes
	if m < 1 {
		m = 1
	}
	return time.Duration(m) * time.Minute
}

// Issue is one record from the external issue source.
type Issue struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Type        string    `json:"request_type"`
	Description string    `json:"description"`
	Address     string    `json:"address"`
	Status      string    `json:"status"`
	URL         string    `json:"url"`
}

// HistoryKind tags a history entry.
type HistoryKind string

const (
	HistoryTaskFire HistoryKind = "task"
	HistoryIssue    HistoryKind = "issue"
)

// HistoryEntry is one rendered item: a snapshot of the source record plus
// the render timestamp. Exactly one of Task/Issue is set, per Kind.
type HistoryEntry struct {
	Kind      HistoryKind `json:"kind"`
	PrintedAt time.Time   `json:"printed_at"`
	Task      *Task       `json:"task,omitempty"`
	Issue     *Issue      `json:"issue,omitempty"`
}

// Title returns a short human label for list views.
func (e HistoryEntry) Title() string {
	switch {
	case e.Task != nil:
		return e.Task.Title
	case e.Issue != nil:
		return e.Issue.Type
	}
	return ""
}
