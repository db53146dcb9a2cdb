package web

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"printdesk/internal/model"
	"printdesk/internal/printer"
	logx "printdesk/pkg/logx"
)

type indexData struct {
	Tasks            []model.Task
	Listeners        []model.Listener
	History          []model.HistoryEntry
	PrinterAvailable bool
	Loop             loopStatus
	Location         *time.Location
	Now              time.Time
}

type loopStatus struct {
	Ticks    uint64
	LastTick time.Time
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	tasks := s.deps.Tasks.All()
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].NextTime.Before(tasks[j].NextTime) })

	data := indexData{
		Tasks:            tasks,
		Listeners:        s.deps.Listeners.All(),
		History:          s.deps.History.Recent(50),
		PrinterAvailable: s.deps.Printer.Available(),
		Location:         s.location(),
		Now:              time.Now().UTC(),
	}
	if s.deps.Sched != nil {
		snap := s.deps.Sched.Snapshot()
		data.Loop = loopStatus{Ticks: snap.Ticks, LastTick: snap.LastTick}
	}
	s.render(w, "index.html", data)
}

// taskFromForm builds a task from the submitted form, reusing id when
// editing. Wall-clock input is interpreted in the configured timezone.
func (s *Server) taskFromForm(r *http.Request, id string) (model.Task, string) {
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		return model.Task{}, "title is required"
	}
	next, err := s.parseLocalTime(r.FormValue("next_time"))
	if err != nil {
		return model.Task{}, err.Error()
	}

	recur := model.RecurrenceKind(r.FormValue("recurring"))
	if recur == "" {
		recur = model.RecurNone
	}
	if !recur.Valid() {
		return model.Task{}, "unknown recurrence " + string(recur)
	}

	var days []time.Weekday
	if recur == model.RecurCustom {
		for _, raw := range r.Form["days"] {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 || n > 6 {
				return model.Task{}, "invalid weekday " + raw
			}
			days = append(days, time.Weekday(n))
		}
		if len(days) == 0 {
			return model.Task{}, "custom recurrence needs at least one weekday"
		}
	}

	return model.Task{
		ID:       id,
		Title:    title,
		Note:     strings.TrimSpace(r.FormValue("note")),
		URL:      strings.TrimSpace(r.FormValue("url")),
		NextTime: next,
		Recur:    recur,
		Days:     days,
		Enabled:  true,
	}, ""
}

func (s *Server) handleTaskAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	t, msg := s.taskFromForm(r, uuid.New().String())
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	if err := s.deps.Tasks.Add(t); err != nil {
		s.log.Error("add task", logx.Err(err))
		http.Error(w, "failed to save task", http.StatusInternalServerError)
		return
	}
	s.log.Info("task added", logx.String("task", t.ID), logx.String("title", t.Title))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleTaskEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.FormValue("id")
	prev, ok := s.deps.Tasks.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	t, msg := s.taskFromForm(r, id)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	t.Enabled = prev.Enabled
	if err := s.deps.Tasks.Update(t); err != nil {
		s.log.Error("edit task", logx.String("task", id), logx.Err(err))
		http.Error(w, "failed to save task", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleTaskToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.FormValue("id")
	t, ok := s.deps.Tasks.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	t.Enabled = !t.Enabled
	if err := s.deps.Tasks.Update(t); err != nil {
		http.Error(w, "failed to save task", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.deps.Tasks.Delete(r.FormValue("id")); err != nil {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleListeners(w http.ResponseWriter, r *http.Request) {
	s.render(w, "listeners.html", map[string]any{
		"Listeners": s.deps.Listeners.All(),
		"Location":  s.location(),
	})
}

func (s *Server) handleListenerAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	types := strings.TrimSpace(r.FormValue("request_types"))
	if name == "" || types == "" {
		http.Error(w, "name and request types are required", http.StatusBadRequest)
		return
	}
	interval, err := strconv.Atoi(r.FormValue("interval"))
	if err != nil || interval < 1 {
		http.Error(w, "interval must be a positive number of minutes", http.StatusBadRequest)
		return
	}
	l := model.Listener{
		ID:              uuid.New().String(),
		Name:            name,
		Enabled:         true,
		RequestTypes:    types,
		IntervalMinutes: interval,
	}
	if err := s.deps.Listeners.Add(l); err != nil {
		s.log.Error("add listener", logx.Err(err))
		http.Error(w, "failed to save listener", http.StatusInternalServerError)
		return
	}
	s.log.Info("listener added", logx.String("listener", l.ID), logx.String("name", name))
	http.Redirect(w, r, "/listeners", http.StatusSeeOther)
}

func (s *Server) handleListenerToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	l, ok := s.deps.Listeners.Get(r.FormValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	l.Enabled = !l.Enabled
	if err := s.deps.Listeners.Update(l); err != nil {
		http.Error(w, "failed to save listener", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/listeners", http.StatusSeeOther)
}

func (s *Server) handleListenerDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.deps.Listeners.Delete(r.FormValue("id")); err != nil {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/listeners", http.StatusSeeOther)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.render(w, "settings.html", map[string]any{
			"HistoryLimit": s.deps.History.Limit(),
			"HistoryLen":   s.deps.History.Len(),
			"Timezone":     s.location().String(),
		})
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, err := strconv.Atoi(r.FormValue("max_history"))
	if err != nil || limit < 1 {
		http.Error(w, "history limit must be a positive number", http.StatusBadRequest)
		return
	}
	// Lowering the limit discards the oldest entries right away.
	if err := s.deps.History.SetLimit(limit); err != nil {
		s.log.Error("set history limit", logx.Err(err))
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.deps.History.Clear(); err != nil {
		http.Error(w, "failed to clear history", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func (s *Server) handleTestPrint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	doc := printer.Document{
		Title:    "Test Print",
		Body:     "If you can read this, the printer works.",
		Footer:   []string{"Printed at: " + time.Now().In(s.location()).Format("03:04 PM, 01/02/2006")},
		Subtitle: "printdesk",
	}
	if err := s.deps.Printer.Render(r.Context(), doc); err != nil {
		s.log.Warn("test print failed", logx.Err(err))
		http.Error(w, "print failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}
