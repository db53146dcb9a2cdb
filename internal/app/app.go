// Package app wires the daemon together: config, logging, stores,
// printer, civic client, scheduler loop, and the web control panel.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"printdesk/internal/audit"
	"printdesk/internal/civic"
	"printdesk/internal/config"
	"printdesk/internal/model"
	"printdesk/internal/printer"
	"printdesk/internal/scheduler"
	"printdesk/internal/store"
	"printdesk/internal/web"
	logx "printdesk/pkg/logx"
)

type App struct {
	cfgMgr *config.ConfigManager
	logSvc *logx.Service
	log    logx.Logger

	tasks     *store.Tasks
	listeners *store.Listeners
	history   *store.History
	auditLog  audit.Store

	gateway *gatewayProxy
	fetcher *fetcherProxy

	sched *scheduler.Service
	web   *web.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewConfigManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	mgr.SetLogger(log.With(logx.String("component", "config")))

	a := &App{
		cfgMgr:  mgr,
		logSvc:  logSvc,
		log:     log,
		gateway: &gatewayProxy{},
		fetcher: &fetcherProxy{},
	}
	if err := a.build(cfg); err != nil {
		logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	dataDir := cfg.Data.EffectiveDir()
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	a.tasks = store.NewTasks(filepath.Join(dataDir, "tasks.json"), a.log)
	a.listeners = store.NewListeners(filepath.Join(dataDir, "listeners.json"), a.log)
	a.history = store.NewHistory(filepath.Join(dataDir, "history.json"), cfg.History.EffectiveLimit(), a.log)
	for _, load := range []func() error{a.tasks.Load, a.listeners.Load, a.history.Load} {
		if err := load(); err != nil {
			return fmt.Errorf("load snapshots: %w", err)
		}
	}

	if cfg.Audit != nil {
		busyTimeout, _ := config.ParseDurationField("audit.busy_timeout", cfg.Audit.BusyTimeout)
		st, err := audit.Open(audit.Config{
			Driver:      cfg.Audit.Driver,
			Path:        cfg.Audit.Path,
			BusyTimeout: busyTimeout,
		}, a.log)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		a.auditLog = st
	}

	a.gateway.set(buildGateway(cfg.Printer, a.log))
	a.fetcher.set(buildFetcher(cfg.Civic, a.log))

	interval, _ := cfg.Scheduler.Interval()
	lookback, _ := cfg.Scheduler.LookbackWindow()
	a.sched = scheduler.New(scheduler.Config{
		TickInterval:    interval,
		BaseURL:         cfg.Web.EffectiveExternalURL(),
		DefaultLookback: lookback,
	}, scheduler.Deps{
		Tasks:     a.tasks,
		Listeners: a.listeners,
		History:   a.history,
		Printer:   a.gateway,
		Issues:    a.fetcher,
		Audit:     a.auditLog,
		Log:       a.log,
	})

	if cfg.Web.Enabled {
		loc, _ := cfg.Scheduler.Location()
		srv, err := web.NewServer(webConfig(cfg.Web), web.Deps{
			Tasks:     a.tasks,
			Listeners: a.listeners,
			History:   a.history,
			Sched:     a.sched,
			Printer:   a.gateway,
			Log:       a.log,
		}, loc)
		if err != nil {
			return err
		}
		a.web = srv
	}
	return nil
}

// Start brings the daemon up: config watcher, scheduler (which
// reconciles missed occurrences before the first tick), then the web
// panel. Readiness is signalled to systemd only after reconciliation.
func (a *App) Start(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgMgr.Watch(watchCtx)
	}()

	updates := a.cfgMgr.Subscribe(1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		prev := a.cfgMgr.Get()
		for {
			select {
			case <-watchCtx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.applyConfig(prev, cfg)
				prev = cfg
			}
		}
	}()

	if err := a.sched.Start(ctx); err != nil {
		cancel()
		return err
	}
	if a.web != nil {
		a.web.Start()
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.startWatchdog(watchCtx)
	a.log.Info("printdesk up",
		logx.Int("tasks", len(a.tasks.All())),
		logx.Int("listeners", len(a.listeners.All())),
		logx.Bool("printer", a.gateway.Available()))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if a.web != nil {
		if err := a.web.Stop(ctx); err != nil {
			a.log.Warn("web shutdown", logx.Err(err))
		}
	}
	if err := a.sched.Stop(ctx); err != nil {
		a.log.Warn("scheduler shutdown", logx.Err(err))
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if a.auditLog != nil {
		_ = a.auditLog.Close()
	}
	a.log.Info("printdesk stopped")
	a.logSvc.Close()
	return nil
}

// applyConfig pushes a validated reload into the running services.
// Data dir and audit driver changes need a restart; everything else is
// applied hot.
func (a *App) applyConfig(prev, cfg *config.Config) {
	changed, attrs := config.SummarizeConfigChange(prev, cfg)
	if len(changed) == 0 {
		return
	}
	a.log.Info("config reloaded", append([]logx.Field{logx.Any("sections", changed)}, attrs...)...)

	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	a.gateway.set(buildGateway(cfg.Printer, a.log))
	a.fetcher.set(buildFetcher(cfg.Civic, a.log))

	interval, _ := cfg.Scheduler.Interval()
	lookback, _ := cfg.Scheduler.LookbackWindow()
	if err := a.sched.Apply(scheduler.Config{
		TickInterval:    interval,
		BaseURL:         cfg.Web.EffectiveExternalURL(),
		DefaultLookback: lookback,
	}); err != nil {
		a.log.Warn("apply scheduler config", logx.Err(err))
	}

	if err := a.history.SetLimit(cfg.History.EffectiveLimit()); err != nil {
		a.log.Warn("apply history limit", logx.Err(err))
	}

	if a.web != nil {
		if loc, err := cfg.Scheduler.Location(); err == nil {
			a.web.SetLocation(loc)
		}
	}

	if prev != nil && prev.Data != cfg.Data {
		a.log.Warn("data.dir changed; restart required to take effect")
	}
}

// startWatchdog pings systemd at half the configured WatchdogSec. A
// no-op when the watchdog is not armed.
func (a *App) startWatchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()
}

func buildGateway(cfg config.PrinterConfig, log logx.Logger) printer.Gateway {
	if !cfg.Enabled {
		return printer.Disabled()
	}
	return printer.NewEpson(cfg.Device, log)
}

func buildFetcher(cfg config.CivicConfig, log logx.Logger) scheduler.IssueFetcher {
	timeout, _ := cfg.RequestTimeout()
	return civic.NewClient(civic.Config{
		BaseURL:    cfg.BaseURL,
		PageLimit:  cfg.PageLimit,
		Timeout:    timeout,
		RatePerSec: cfg.RatePerSec,
	}, log)
}

func webConfig(w config.WebConfig) web.Config {
	read, _ := config.ParseDurationField("web.read_timeout", w.ReadTimeout)
	write, _ := config.ParseDurationField("web.write_timeout", w.WriteTimeout)
	idle, _ := config.ParseDurationOrDefault("web.idle_timeout", w.IdleTimeout, time.Minute)
	return web.Config{
		Addr:         w.EffectiveAddr(),
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}
}

// gatewayProxy lets a config reload swap the physical device without
// rebuilding the scheduler or web server that hold the reference.
type gatewayProxy struct {
	mu sync.RWMutex
	gw printer.Gateway
}

func (p *gatewayProxy) set(gw printer.Gateway) {
	p.mu.Lock()
	p.gw = gw
	p.mu.Unlock()
}

func (p *gatewayProxy) current() printer.Gateway {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.gw == nil {
		return printer.Disabled()
	}
	return p.gw
}

func (p *gatewayProxy) Available() bool { return p.current().Available() }

func (p *gatewayProxy) Render(ctx context.Context, doc printer.Document) error {
	return p.current().Render(ctx, doc)
}

// fetcherProxy does the same for the civic client.
type fetcherProxy struct {
	mu sync.RWMutex
	f  scheduler.IssueFetcher
}

func (p *fetcherProxy) set(f scheduler.IssueFetcher) {
	p.mu.Lock()
	p.f = f
	p.mu.Unlock()
}

func (p *fetcherProxy) FetchSince(ctx context.Context, q civic.Query) ([]model.Issue, error) {
	p.mu.RLock()
	f := p.f
	p.mu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("civic client not configured")
	}
	return f.FetchSince(ctx, q)
}
