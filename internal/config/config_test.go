package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
data:
  dir: /var/lib/printdesk
scheduler:
  tick_interval: 30s
  timezone: America/New_York
printer:
  enabled: true
  device: /dev/usb/lp0
civic:
  base_url: https://seeclickfix.example/api/v2
  page_limit: 25
  rate_per_sec: 2
web:
  enabled: true
  addr: ":8080"
history:
  limit: 200
`)
	cfg, err := NewConfigManager(path).Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "debug" || cfg.Data.Dir != "/var/lib/printdesk" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	iv, err := cfg.Scheduler.Interval()
	if err != nil || iv != 30*time.Second {
		t.Fatalf("interval = %v, %v", iv, err)
	}
	loc, err := cfg.Scheduler.Location()
	if err != nil || loc.String() != "America/New_York" {
		t.Fatalf("location = %v, %v", loc, err)
	}
	if cfg.History.EffectiveLimit() != 200 {
		t.Fatalf("history limit = %d", cfg.History.EffectiveLimit())
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
logging:
  level: info
  consle: true
`)
	if _, err := NewConfigManager(path).Load(); err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"bad tick interval": `
scheduler:
  tick_interval: soon
`,
		"bad timezone": `
scheduler:
  timezone: Mars/Olympus_Mons
`,
		"printer enabled without device": `
printer:
  enabled: true
`,
		"unknown audit driver": `
audit:
  driver: papyrus
  path: /tmp/a
`,
	}
	for name, body := range cases {
		path := writeConfig(t, "config.yaml", body)
		if _, err := NewConfigManager(path).Load(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestDefaults(t *testing.T) {
	var cfg Config
	if got := cfg.Data.EffectiveDir(); got != "./data" {
		t.Fatalf("data dir = %q", got)
	}
	if iv, err := cfg.Scheduler.Interval(); err != nil || iv != time.Minute {
		t.Fatalf("interval = %v, %v", iv, err)
	}
	if lb, err := cfg.Scheduler.LookbackWindow(); err != nil || lb != time.Hour {
		t.Fatalf("lookback = %v, %v", lb, err)
	}
	if got := cfg.Web.EffectiveAddr(); got != ":8080" {
		t.Fatalf("addr = %q", got)
	}
	if got := cfg.Web.EffectiveExternalURL(); got != "http://127.0.0.1:8080" {
		t.Fatalf("external url = %q", got)
	}
	if got := cfg.History.EffectiveLimit(); got != 500 {
		t.Fatalf("history limit = %d", got)
	}
}

func TestExternalURLTrimsTrailingSlash(t *testing.T) {
	w := WebConfig{ExternalURL: "http://desk.local:8080/"}
	if got := w.EffectiveExternalURL(); got != "http://desk.local:8080" {
		t.Fatalf("external url = %q", got)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	oldCfg := &Config{}
	newCfg := &Config{
		Printer: PrinterConfig{Enabled: true, Device: "/dev/usb/lp0"},
		History: HistoryConfig{Limit: 100},
	}
	changed, _ := SummarizeConfigChange(oldCfg, newCfg)
	got := strings.Join(changed, ",")
	if got != "history,printer" {
		t.Fatalf("changed = %q", got)
	}
}
