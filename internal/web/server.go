// Package web is the local control panel: task and listener CRUD,
// history, settings, and a test print. It is meant for a trusted home
// network and carries no authentication.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync/atomic"
	"time"

	"printdesk/internal/printer"
	"printdesk/internal/scheduler"
	"printdesk/internal/store"
	logx "printdesk/pkg/logx"
)

//go:embed templates/*
var templateFS embed.FS

// formTimeLayout matches <input type="datetime-local">.
const formTimeLayout = "2006-01-02T15:04"

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type Deps struct {
	Tasks     *store.Tasks
	Listeners *store.Listeners
	History   *store.History
	Sched     *scheduler.Service
	Printer   printer.Gateway
	Log       logx.Logger
}

type Server struct {
	cfg  Config
	deps Deps
	log  logx.Logger

	// loc is the timezone user-entered wall-clock times are interpreted
	// in. Swapped atomically on config reload.
	loc atomic.Pointer[time.Location]

	tmpl   *template.Template
	router *http.ServeMux
	srv    *http.Server
}

func NewServer(cfg Config, deps Deps, loc *time.Location) (*Server, error) {
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"localtime": func(t time.Time, loc *time.Location) string {
			return t.In(loc).Format("Mon, 02 Jan 2006 15:04")
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		log:    log.With(logx.String("component", "web")),
		tmpl:   tmpl,
		router: http.NewServeMux(),
	}
	if loc == nil {
		loc = time.UTC
	}
	s.loc.Store(loc)
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.HandleFunc("/", s.handleIndex)

	s.router.HandleFunc("/tasks", s.handleTaskAdd)
	s.router.HandleFunc("/tasks/edit", s.handleTaskEdit)
	s.router.HandleFunc("/tasks/toggle", s.handleTaskToggle)
	s.router.HandleFunc("/tasks/delete", s.handleTaskDelete)

	s.router.HandleFunc("/listeners", s.handleListeners)
	s.router.HandleFunc("/listeners/add", s.handleListenerAdd)
	s.router.HandleFunc("/listeners/toggle", s.handleListenerToggle)
	s.router.HandleFunc("/listeners/delete", s.handleListenerDelete)

	s.router.HandleFunc("/settings", s.handleSettings)
	s.router.HandleFunc("/settings/clear-history", s.handleClearHistory)
	s.router.HandleFunc("/test-print", s.handleTestPrint)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetLocation swaps the display/input timezone on config reload.
func (s *Server) SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	s.loc.Store(loc)
}

func (s *Server) location() *time.Location { return s.loc.Load() }

// Start begins serving in the background. Errors other than a clean
// shutdown are logged, not returned; a broken control panel must not
// take the print loop down with it.
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	go func() {
		s.log.Info("control panel listening", logx.String("addr", s.cfg.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("control panel stopped", logx.Err(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error("render template", logx.String("template", name), logx.Err(err))
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// parseLocalTime interprets a datetime-local form value in the
// configured timezone and returns it in UTC.
func (s *Server) parseLocalTime(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(formTimeLayout, raw, s.location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time %q", raw)
	}
	return t.UTC(), nil
}
