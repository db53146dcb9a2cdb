package scheduler

import (
	"time"

	"printdesk/internal/model"
	"printdesk/internal/recurrence"
	logx "printdesk/pkg/logx"
)

// reconcile absorbs occurrences a recurring task missed while the
// process was down. It never renders: the schedule is advanced so that
// at most the most recent past-due occurrence remains pending, and the
// first tick fires that one normally. One-shot tasks are left alone and
// fire (once) on the first tick instead.
func (s *Service) reconcile(now time.Time) error {
	moved := 0
	err := s.deps.Tasks.Sweep(func(items []model.Task) []model.Task {
		for i := range items {
			t := &items[i]
			if !t.Enabled || !t.Recur.Recurring() || t.NextTime.After(now) {
				continue
			}
			next, skipped, err := catchUp(t.NextTime, t.Recur, t.Days, now)
			if err != nil {
				s.log.Warn("cannot reconcile task, disabling",
					logx.String("task", t.ID), logx.Err(err))
				t.Enabled = false
				continue
			}
			if skipped == 0 {
				continue
			}
			s.log.Info("absorbed missed occurrences",
				logx.String("task", t.ID),
				logx.Int("skipped", skipped),
				logx.Time("next", next))
			t.NextTime = next
			moved++
		}
		return items
	})
	if err != nil {
		return err
	}
	if moved > 0 {
		s.log.Info("reconciled schedule", logx.Int("tasks", moved))
	}
	return nil
}

// catchUp advances from until only the latest occurrence at or before
// now is left, and reports how many earlier ones were skipped.
func catchUp(from time.Time, kind model.RecurrenceKind, days []time.Weekday, now time.Time) (time.Time, int, error) {
	next := from
	skipped := 0
	for {
		after, err := recurrence.Next(next, kind, days)
		if err != nil {
			return time.Time{}, 0, err
		}
		if after.After(now) {
			return next, skipped, nil
		}
		next = after
		skipped++
	}
}
