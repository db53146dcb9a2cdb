package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"printdesk/internal/civic"
	"printdesk/internal/model"
	"printdesk/internal/printer"
	"printdesk/internal/store"
	logx "printdesk/pkg/logx"
)

type fakeGateway struct {
	mu   sync.Mutex
	docs []printer.Document
	err  error
}

func (g *fakeGateway) Available() bool { return g.err == nil }

func (g *fakeGateway) Render(_ context.Context, doc printer.Document) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.docs = append(g.docs, doc)
	return nil
}

func (g *fakeGateway) rendered() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.docs)
}

type fakeFetcher struct {
	mu      sync.Mutex
	queries []civic.Query
	issues  []model.Issue
	err     error
}

func (f *fakeFetcher) FetchSince(_ context.Context, q civic.Query) ([]model.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.issues, nil
}

type harness struct {
	svc       *Service
	tasks     *store.Tasks
	listeners *store.Listeners
	history   *store.History
	gateway   *fakeGateway
	fetcher   *fakeFetcher
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		tasks:     store.NewTasks(filepath.Join(dir, "tasks.json"), logx.Nop()),
		listeners: store.NewListeners(filepath.Join(dir, "listeners.json"), logx.Nop()),
		history:   store.NewHistory(filepath.Join(dir, "history.json"), 100, logx.Nop()),
		gateway:   &fakeGateway{},
		fetcher:   &fakeFetcher{},
	}
	for _, load := range []func() error{h.tasks.Load, h.listeners.Load, h.history.Load} {
		if err := load(); err != nil {
			t.Fatal(err)
		}
	}
	h.svc = New(Config{BaseURL: "http://desk.local"}, Deps{
		Tasks:     h.tasks,
		Listeners: h.listeners,
		History:   h.history,
		Printer:   h.gateway,
		Issues:    h.fetcher,
		Log:       logx.Nop(),
		Now:       func() time.Time { return now },
	})
	return h
}

func utc(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
}

func TestReconcileAbsorbsMissedOccurrences(t *testing.T) {
	now := utc(2024, 1, 3, 9, 0, 1)
	h := newHarness(t, now)
	if err := h.tasks.Add(model.Task{
		ID:       "daily",
		Title:    "stretch",
		NextTime: utc(2024, 1, 1, 9, 0, 0),
		Recur:    model.RecurDaily,
		Enabled:  true,
	}); err != nil {
		t.Fatal(err)
	}

	if err := h.svc.reconcile(now); err != nil {
		t.Fatal(err)
	}

	got, ok := h.tasks.Get("daily")
	if !ok {
		t.Fatal("task disappeared during reconcile")
	}
	if want := utc(2024, 1, 3, 9, 0, 0); !got.NextTime.Equal(want) {
		t.Fatalf("next = %v, want %v", got.NextTime, want)
	}
	if h.gateway.rendered() != 0 {
		t.Fatal("reconcile must never print")
	}
}

func TestReconcileLeavesOneShotsForFirstTick(t *testing.T) {
	now := utc(2024, 1, 3, 9, 0, 0)
	h := newHarness(t, now)
	if err := h.tasks.Add(model.Task{
		ID:       "once",
		Title:    "pick up parcel",
		NextTime: utc(2024, 1, 1, 12, 0, 0),
		Recur:    model.RecurNone,
		Enabled:  true,
	}); err != nil {
		t.Fatal(err)
	}

	if err := h.svc.reconcile(now); err != nil {
		t.Fatal(err)
	}

	got, ok := h.tasks.Get("once")
	if !ok {
		t.Fatal("one-shot removed during reconcile")
	}
	if !got.NextTime.Equal(utc(2024, 1, 1, 12, 0, 0)) {
		t.Fatalf("one-shot schedule moved: %v", got.NextTime)
	}
	if h.gateway.rendered() != 0 {
		t.Fatal("reconcile must never print")
	}
}

func TestTickFiresDueTaskAndAdvances(t *testing.T) {
	now := utc(2024, 6, 1, 9, 0, 30)
	h := newHarness(t, now)
	if err := h.tasks.Add(model.Task{
		ID:       "bins",
		Title:    "take out bins",
		NextTime: utc(2024, 6, 1, 9, 0, 0),
		Recur:    model.RecurDaily,
		Enabled:  true,
	}); err != nil {
		t.Fatal(err)
	}
	if err := h.tasks.Add(model.Task{
		ID:       "later",
		Title:    "not yet",
		NextTime: utc(2024, 6, 1, 10, 0, 0),
		Recur:    model.RecurDaily,
		Enabled:  true,
	}); err != nil {
		t.Fatal(err)
	}

	h.svc.sweepTasks(context.Background(), now)

	if h.gateway.rendered() != 1 {
		t.Fatalf("rendered %d documents, want 1", h.gateway.rendered())
	}
	got, _ := h.tasks.Get("bins")
	if want := utc(2024, 6, 2, 9, 0, 0); !got.NextTime.Equal(want) {
		t.Fatalf("next = %v, want %v", got.NextTime, want)
	}
	if later, _ := h.tasks.Get("later"); !later.NextTime.Equal(utc(2024, 6, 1, 10, 0, 0)) {
		t.Fatal("undue task was touched")
	}
	entries := h.history.All()
	if len(entries) != 1 || entries[0].Kind != model.HistoryTaskFire || entries[0].Task.ID != "bins" {
		t.Fatalf("history = %+v", entries)
	}
}

func TestOneShotFiresOnceAndIsRemoved(t *testing.T) {
	now := utc(2024, 6, 1, 9, 0, 0)
	h := newHarness(t, now)
	if err := h.tasks.Add(model.Task{
		ID:       "once",
		Title:    "call dentist",
		NextTime: utc(2024, 6, 1, 8, 59, 0),
		Recur:    model.RecurNone,
		Enabled:  true,
	}); err != nil {
		t.Fatal(err)
	}

	h.svc.sweepTasks(context.Background(), now)
	h.svc.sweepTasks(context.Background(), now.Add(time.Minute))

	if h.gateway.rendered() != 1 {
		t.Fatalf("one-shot rendered %d times", h.gateway.rendered())
	}
	if _, ok := h.tasks.Get("once"); ok {
		t.Fatal("one-shot still present after firing")
	}
}

func TestUnavailablePrinterStillTransitionsState(t *testing.T) {
	now := utc(2024, 6, 1, 9, 0, 0)
	h := newHarness(t, now)
	h.gateway.err = printer.ErrUnavailable
	if err := h.tasks.Add(model.Task{
		ID:       "once",
		Title:    "water plants",
		NextTime: now.Add(-time.Minute),
		Recur:    model.RecurNone,
		Enabled:  true,
	}); err != nil {
		t.Fatal(err)
	}

	h.svc.sweepTasks(context.Background(), now)

	if _, ok := h.tasks.Get("once"); ok {
		t.Fatal("one-shot must be removed even when the printer is offline")
	}
	if h.history.Len() != 0 {
		t.Fatal("failed render must not reach history")
	}
}

func TestDisabledTaskNeverFires(t *testing.T) {
	now := utc(2024, 6, 1, 9, 0, 0)
	h := newHarness(t, now)
	if err := h.tasks.Add(model.Task{
		ID:       "paused",
		Title:    "paused",
		NextTime: now.Add(-time.Hour),
		Recur:    model.RecurDaily,
		Enabled:  false,
	}); err != nil {
		t.Fatal(err)
	}

	h.svc.sweepTasks(context.Background(), now)

	if h.gateway.rendered() != 0 {
		t.Fatal("disabled task fired")
	}
}

func TestListenerAppendsIssuesAndAdvancesCheckpoint(t *testing.T) {
	now := utc(2024, 6, 1, 12, 0, 0)
	h := newHarness(t, now)
	h.fetcher.issues = []model.Issue{
		{ID: "a", Type: "Pothole", CreatedAt: utc(2024, 6, 1, 11, 10, 0)},
		{ID: "b", Type: "Pothole", CreatedAt: utc(2024, 6, 1, 11, 20, 0)},
		{ID: "c", Type: "Pothole", CreatedAt: utc(2024, 6, 1, 11, 30, 0)},
	}
	if err := h.listeners.Add(model.Listener{
		ID:              "potholes",
		Name:            "Potholes nearby",
		Enabled:         true,
		RequestTypes:    "Pothole",
		IntervalMinutes: 30,
	}); err != nil {
		t.Fatal(err)
	}

	h.svc.pollListeners(context.Background(), now)

	if h.gateway.rendered() != 3 {
		t.Fatalf("rendered %d issues, want 3", h.gateway.rendered())
	}
	// Insert prepends, so history reads newest first.
	entries := h.history.All()
	if len(entries) != 3 || entries[0].Issue.ID != "c" || entries[2].Issue.ID != "a" {
		t.Fatalf("history order wrong: %+v", entries)
	}

	l, _ := h.listeners.Get("potholes")
	if want := now.Format(model.TimeLayoutUTC); l.LastCheck != want {
		t.Fatalf("last_check = %q, want %q", l.LastCheck, want)
	}

	// Never-checked listener fetches over the bounded default window.
	if len(h.fetcher.queries) != 1 {
		t.Fatalf("fetch called %d times", len(h.fetcher.queries))
	}
	if want := now.Add(-time.Hour); !h.fetcher.queries[0].After.Equal(want) {
		t.Fatalf("after = %v, want %v", h.fetcher.queries[0].After, want)
	}
}

func TestFailedFetchRetainsCheckpoint(t *testing.T) {
	now := utc(2024, 6, 1, 12, 0, 0)
	h := newHarness(t, now)
	h.fetcher.err = errors.New("503 from upstream")
	l := model.Listener{
		ID:              "graffiti",
		Enabled:         true,
		RequestTypes:    "Graffiti",
		IntervalMinutes: 15,
	}
	l.SetLastCheck(utc(2024, 6, 1, 11, 0, 0))
	if err := h.listeners.Add(l); err != nil {
		t.Fatal(err)
	}

	h.svc.pollListeners(context.Background(), now)

	got, _ := h.listeners.Get("graffiti")
	if want := "2024-06-01T11:00:00Z"; got.LastCheck != want {
		t.Fatalf("last_check moved after failed fetch: %q", got.LastCheck)
	}
}

func TestListenerSkippedInsideInterval(t *testing.T) {
	now := utc(2024, 6, 1, 12, 0, 0)
	h := newHarness(t, now)
	l := model.Listener{
		ID:              "recent",
		Enabled:         true,
		RequestTypes:    "Pothole",
		IntervalMinutes: 30,
	}
	l.SetLastCheck(now.Add(-5 * time.Minute))
	if err := h.listeners.Add(l); err != nil {
		t.Fatal(err)
	}

	h.svc.pollListeners(context.Background(), now)

	if len(h.fetcher.queries) != 0 {
		t.Fatal("listener polled before its interval elapsed")
	}
}

func TestListenerWithoutRequestTypesSkipped(t *testing.T) {
	now := utc(2024, 6, 1, 12, 0, 0)
	h := newHarness(t, now)
	if err := h.listeners.Add(model.Listener{
		ID:              "empty",
		Enabled:         true,
		RequestTypes:    "  ",
		IntervalMinutes: 5,
	}); err != nil {
		t.Fatal(err)
	}

	h.svc.pollListeners(context.Background(), now)

	if len(h.fetcher.queries) != 0 {
		t.Fatal("listener with empty filter must not fetch")
	}
}

func TestCatchUpStopsAtLatestPastDue(t *testing.T) {
	now := utc(2024, 3, 10, 8, 0, 0)
	next, skipped, err := catchUp(utc(2024, 3, 1, 9, 0, 0), model.RecurDaily, nil, now)
	if err != nil {
		t.Fatal(err)
	}
	if want := utc(2024, 3, 9, 9, 0, 0); !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
	if skipped != 8 {
		t.Fatalf("skipped = %d, want 8", skipped)
	}
}
