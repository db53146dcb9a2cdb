package scheduler

import (
	"context"
	"errors"
	"time"

	"printdesk/internal/audit"
	"printdesk/internal/model"
	"printdesk/internal/printer"
	"printdesk/internal/recurrence"
	logx "printdesk/pkg/logx"
)

// taskOutcome is the state transition decided for one fired task.
type taskOutcome struct {
	next    time.Time // zero means remove (one-shot)
	disable bool
}

// sweepTasks fires every enabled task whose next occurrence is due and
// applies all state transitions in a single persisted batch. Rendering
// happens outside the store lock so a slow printer never blocks the web
// handlers.
func (s *Service) sweepTasks(ctx context.Context, now time.Time) {
	due := make([]model.Task, 0, 4)
	for _, t := range s.deps.Tasks.All() {
		if t.Enabled && !t.NextTime.After(now) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return
	}

	outcomes := make(map[string]taskOutcome, len(due))
	for _, t := range due {
		s.renderTask(ctx, t, now)

		if !t.Recur.Recurring() {
			outcomes[t.ID] = taskOutcome{}
			continue
		}
		next, err := recurrence.Next(t.NextTime, t.Recur, t.Days)
		if err != nil {
			// A task that cannot be advanced would refire every tick.
			s.log.Warn("cannot advance task, disabling",
				logx.String("task", t.ID), logx.Err(err))
			outcomes[t.ID] = taskOutcome{disable: true}
			continue
		}
		outcomes[t.ID] = taskOutcome{next: next}
	}

	err := s.deps.Tasks.Sweep(func(items []model.Task) []model.Task {
		out := items[:0]
		for _, t := range items {
			o, fired := outcomes[t.ID]
			switch {
			case !fired:
				out = append(out, t)
			case o.disable:
				t.Enabled = false
				out = append(out, t)
			case o.next.IsZero():
				s.log.Info("one-shot complete, removed", logx.String("task", t.ID))
			default:
				t.NextTime = o.next
				out = append(out, t)
			}
		}
		return out
	})
	if err != nil {
		s.log.Error("persist tasks after sweep", logx.Err(err))
	}
}

// renderTask prints one reminder and records the attempt. A render
// failure is logged but does not block the task's state transition: a
// disconnected printer must not make a one-shot refire forever.
func (s *Service) renderTask(ctx context.Context, t model.Task, now time.Time) {
	doc := printer.TaskDocument(t, s.baseURL(), now)
	started := time.Now()
	err := s.deps.Printer.Render(ctx, doc)
	s.recordRender(ctx, audit.RenderRecord{
		At:     now,
		Kind:   string(model.HistoryTaskFire),
		RefID:  t.ID,
		Title:  t.Title,
		OK:     err == nil,
		TookMS: time.Since(started).Milliseconds(),
	}, err)

	switch {
	case err == nil:
		task := t
		s.appendHistory(model.HistoryEntry{Kind: model.HistoryTaskFire, PrintedAt: now, Task: &task})
		s.log.Info("task printed", logx.String("task", t.ID), logx.String("title", t.Title))
	case errors.Is(err, printer.ErrUnavailable):
		s.log.Warn("printer unavailable, task not printed", logx.String("task", t.ID))
	default:
		s.log.Error("task render failed", logx.String("task", t.ID), logx.Err(err))
	}
}

func (s *Service) recordRender(ctx context.Context, rec audit.RenderRecord, renderErr error) {
	if s.deps.Audit == nil {
		return
	}
	if renderErr != nil {
		rec.Error = renderErr.Error()
	}
	if err := s.deps.Audit.AppendRender(ctx, rec); err != nil {
		s.log.Warn("audit append failed", logx.Err(err))
	}
}

func (s *Service) appendHistory(e model.HistoryEntry) {
	if err := s.deps.History.Insert(e); err != nil {
		s.log.Warn("history insert failed", logx.Err(err))
	}
}

func (s *Service) baseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.BaseURL
}
