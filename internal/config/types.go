package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Data      DataConfig      `json:"data"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Printer   PrinterConfig   `json:"printer"`
	Civic     CivicConfig     `json:"civic,omitempty"`
	Web       WebConfig       `json:"web"`
	History   HistoryConfig   `json:"history,omitempty"`

	// Audit is the optional render audit log. Nil means disabled.
	//
	// Example:
	//
	//	"audit": { "driver": "file", "path": "./renders.jsonl" }
	Audit *AuditConfig `json:"audit,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// DataConfig locates the snapshot files (tasks, listeners, history).
type DataConfig struct {
	Dir string `json:"dir"`
}

func (d DataConfig) EffectiveDir() string {
	if s := strings.TrimSpace(d.Dir); s != "" {
		return s
	}
	return "./data"
}

// SchedulerConfig controls the background loop.
//
// All durations are Go duration strings (e.g. "30s", "1m").
type SchedulerConfig struct {
	// TickInterval is the sweep period. Default "1m".
	TickInterval string `json:"tick_interval,omitempty"`

	// Timezone is the IANA zone user-entered wall-clock times are
	// interpreted in. Storage and matching always use UTC. Default "UTC".
	Timezone string `json:"timezone,omitempty"`

	// Lookback bounds the first fetch of a listener that has never
	// checked. Default "1h".
	Lookback string `json:"lookback,omitempty"`
}

func (s SchedulerConfig) Interval() (time.Duration, error) {
	return ParseDurationOrDefault("scheduler.tick_interval", s.TickInterval, time.Minute)
}

func (s SchedulerConfig) LookbackWindow() (time.Duration, error) {
	return ParseDurationOrDefault("scheduler.lookback", s.Lookback, time.Hour)
}

func (s SchedulerConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(s.Timezone)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}

type PrinterConfig struct {
	Enabled bool `json:"enabled"`
	// Device is the character device the receipt printer is attached to,
	// e.g. "/dev/usb/lp0".
	Device string `json:"device"`
}

// CivicConfig points at the external issue-reporting API.
type CivicConfig struct {
	BaseURL    string `json:"base_url,omitempty"`
	PageLimit  int    `json:"page_limit,omitempty"`
	Timeout    string `json:"timeout,omitempty"`      // per-request, default "15s"
	RatePerSec int    `json:"rate_per_sec,omitempty"` // default 2
}

func (c CivicConfig) RequestTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("civic.timeout", c.Timeout, 15*time.Second)
}

type WebConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default ":8080"

	// ExternalURL is how the appliance is reached from a phone scanning a
	// receipt QR code, e.g. "http://desk.local:8080". Defaults to a
	// loopback URL derived from Addr.
	ExternalURL string `json:"external_url,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

func (w WebConfig) EffectiveAddr() string {
	if s := strings.TrimSpace(w.Addr); s != "" {
		return s
	}
	return ":8080"
}

func (w WebConfig) EffectiveExternalURL() string {
	if s := strings.TrimSpace(w.ExternalURL); s != "" {
		return strings.TrimRight(s, "/")
	}
	addr := w.EffectiveAddr()
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

type HistoryConfig struct {
	// Limit bounds the number of retained entries. Default 500.
	// Lowering it truncates immediately.
	Limit int `json:"limit,omitempty"`
}

func (h HistoryConfig) EffectiveLimit() int {
	if h.Limit > 0 {
		return h.Limit
	}
	return 500
}

type AuditConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// Validate rejects configs that cannot possibly run. It is also the
// gate for hot reloads: a config that fails here is never published.
func (c *Config) Validate() error {
	if _, err := c.Scheduler.Interval(); err != nil {
		return err
	}
	if _, err := c.Scheduler.LookbackWindow(); err != nil {
		return err
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return err
	}
	if c.Printer.Enabled && strings.TrimSpace(c.Printer.Device) == "" {
		return fmt.Errorf("printer.device: required when printer is enabled")
	}
	if _, err := c.Civic.RequestTimeout(); err != nil {
		return err
	}
	if c.Civic.RatePerSec < 0 {
		return fmt.Errorf("civic.rate_per_sec: must be >= 0")
	}
	if c.Civic.PageLimit < 0 {
		return fmt.Errorf("civic.page_limit: must be >= 0")
	}
	for _, f := range []struct{ path, raw string }{
		{"web.read_timeout", c.Web.ReadTimeout},
		{"web.write_timeout", c.Web.WriteTimeout},
		{"web.idle_timeout", c.Web.IdleTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if c.History.Limit < 0 {
		return fmt.Errorf("history.limit: must be >= 0")
	}
	if c.Audit != nil {
		switch strings.TrimSpace(c.Audit.Driver) {
		case "", "none", "file", "sqlite":
		default:
			return fmt.Errorf("audit.driver: unknown driver %q", c.Audit.Driver)
		}
		if d := strings.TrimSpace(c.Audit.Driver); (d == "file" || d == "sqlite") && strings.TrimSpace(c.Audit.Path) == "" {
			return fmt.Errorf("audit.path: required for driver %q", d)
		}
		if _, err := ParseDurationField("audit.busy_timeout", c.Audit.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
