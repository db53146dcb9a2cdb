package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	logx "printdesk/pkg/logx"
)

// New builds the loop service. It does not start anything.
func New(cfg Config, deps Deps) *Service {
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		cfg:  cfg,
		deps: deps,
		log:  log.With(logx.String("component", "scheduler")),
		now:  now,
	}
}

// Start reconciles persisted task state against the current clock and
// then begins ticking. It returns once the first tick is scheduled; the
// loop itself runs on the cron goroutine until Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	if err := s.reconcile(s.now().UTC()); err != nil {
		return fmt.Errorf("reconcile tasks: %w", err)
	}

	s.ctx = ctx
	c := cron.New(cron.WithLocation(time.UTC))
	id, err := c.AddFunc(everySpec(s.cfg.tickInterval()), func() { s.runTick(s.ctx) })
	if err != nil {
		return fmt.Errorf("register tick: %w", err)
	}
	s.c = c
	s.entry = id
	c.Start()
	s.log.Info("loop started", logx.Duration("interval", s.cfg.tickInterval()))
	return nil
}

// Stop halts the tick schedule and waits for an in-flight tick to drain,
// bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		s.log.Info("loop stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Apply swaps the runtime configuration. A changed tick interval
// re-registers the cron entry; an in-flight tick is not interrupted.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cfg
	s.cfg = cfg
	if s.c == nil || prev.tickInterval() == cfg.tickInterval() {
		return nil
	}
	s.c.Remove(s.entry)
	id, err := s.c.AddFunc(everySpec(cfg.tickInterval()), func() { s.runTick(s.ctx) })
	if err != nil {
		return fmt.Errorf("register tick: %w", err)
	}
	s.entry = id
	s.log.Info("tick interval changed",
		logx.Duration("from", prev.tickInterval()),
		logx.Duration("to", cfg.tickInterval()))
	return nil
}

// Snapshot reports loop progress for the dashboard.
func (s *Service) Snapshot() Snapshot {
	snap := Snapshot{Ticks: s.ticks.Load()}
	if ns := s.lastTick.Load(); ns != 0 {
		snap.LastTick = time.Unix(0, ns).UTC()
	}
	return snap
}

func (s *Service) runTick(ctx context.Context) {
	if !s.ticking.CompareAndSwap(false, true) {
		s.log.Warn("previous tick still running, skipping")
		return
	}
	defer s.ticking.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("tick panicked", logx.Any("panic", r))
		}
	}()

	now := s.now().UTC()
	s.sweepTasks(ctx, now)
	s.pollListeners(ctx, now)

	s.ticks.Add(1)
	s.lastTick.Store(now.UnixNano())
}

func everySpec(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}
