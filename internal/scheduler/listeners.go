package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"

	"printdesk/internal/audit"
	"printdesk/internal/civic"
	"printdesk/internal/model"
	"printdesk/internal/printer"
	logx "printdesk/pkg/logx"
)

// pollListeners checks every enabled listener whose interval has
// elapsed. A listener that has never checked is due immediately, with
// the fetch window bounded by the default lookback.
func (s *Service) pollListeners(ctx context.Context, now time.Time) {
	for _, l := range s.deps.Listeners.All() {
		if !l.Enabled {
			continue
		}
		if strings.TrimSpace(l.RequestTypes) == "" {
			s.log.Debug("listener has no request types, skipping", logx.String("listener", l.ID))
			continue
		}
		after, ok := l.LastCheckTime()
		if !ok {
			after = now.Add(-s.lookback())
		} else if now.Sub(after) < l.Interval() {
			continue
		}
		s.pollOne(ctx, l, after, now)
	}
}

// pollOne fetches new issues for a single listener and prints each one.
// The checkpoint advances only after the fetch succeeds, so a failed
// check is retried over the same window on a later tick. Items may
// therefore print twice after a partial failure, never be skipped.
func (s *Service) pollOne(ctx context.Context, l model.Listener, after, now time.Time) {
	log := s.log.With(logx.String("listener", l.ID), logx.String("name", l.Name))

	issues, err := s.deps.Issues.FetchSince(ctx, civic.Query{
		RequestTypes: l.RequestTypes,
		After:        after,
	})
	if err != nil {
		log.Warn("listener check failed", logx.Err(err))
		return
	}

	for _, is := range issues {
		s.renderIssue(ctx, is, now)
	}

	if err := s.deps.Listeners.AdvanceCheckpoint(l.ID, now); err != nil {
		log.Error("advance checkpoint", logx.Err(err))
		return
	}
	if len(issues) > 0 {
		log.Info("listener check complete", logx.Int("issues", len(issues)))
	} else {
		log.Debug("listener check complete, nothing new")
	}
}

func (s *Service) renderIssue(ctx context.Context, is model.Issue, now time.Time) {
	doc := printer.IssueDocument(is, now)
	started := time.Now()
	err := s.deps.Printer.Render(ctx, doc)
	s.recordRender(ctx, audit.RenderRecord{
		At:     now,
		Kind:   string(model.HistoryIssue),
		RefID:  is.ID,
		Title:  is.Type,
		OK:     err == nil,
		TookMS: time.Since(started).Milliseconds(),
	}, err)

	switch {
	case err == nil:
		issue := is
		s.appendHistory(model.HistoryEntry{Kind: model.HistoryIssue, PrintedAt: now, Issue: &issue})
		log := s.log.With(logx.String("issue", is.ID))
		log.Info("issue printed", logx.String("type", is.Type))
	case errors.Is(err, printer.ErrUnavailable):
		s.log.Warn("printer unavailable, issue not printed", logx.String("issue", is.ID))
	default:
		s.log.Error("issue render failed", logx.String("issue", is.ID), logx.Err(err))
	}
}

func (s *Service) lookback() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.lookback()
}
