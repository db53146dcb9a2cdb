package config

import (
	"sort"
	"strings"

	logx "printdesk/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections plus
// structured attrs describing the new values, for the reload log line.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Data != newCfg.Data {
		changed = append(changed, "data")
		attrs = append(attrs, logx.String("data.dir", newCfg.Data.EffectiveDir()))
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.tick_interval", strings.TrimSpace(newCfg.Scheduler.TickInterval)),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
		)
	}

	if oldCfg.Printer != newCfg.Printer {
		changed = append(changed, "printer")
		attrs = append(attrs,
			logx.Bool("printer.enabled", newCfg.Printer.Enabled),
			logx.String("printer.device", strings.TrimSpace(newCfg.Printer.Device)),
		)
	}

	if oldCfg.Civic != newCfg.Civic {
		changed = append(changed, "civic")
		attrs = append(attrs,
			logx.Bool("civic.base_url_set", strings.TrimSpace(newCfg.Civic.BaseURL) != ""),
			logx.Int("civic.page_limit", newCfg.Civic.PageLimit),
			logx.Int("civic.rate_per_sec", newCfg.Civic.RatePerSec),
		)
	}

	if oldCfg.Web != newCfg.Web {
		changed = append(changed, "web")
		attrs = append(attrs,
			logx.Bool("web.enabled", newCfg.Web.Enabled),
			logx.String("web.addr", newCfg.Web.EffectiveAddr()),
		)
	}

	if oldCfg.History != newCfg.History {
		changed = append(changed, "history")
		attrs = append(attrs, logx.Int("history.limit", newCfg.History.EffectiveLimit()))
	}

	// Nil audit means disabled.
	oldA, newA := derefAudit(oldCfg.Audit), derefAudit(newCfg.Audit)
	if (oldCfg.Audit != nil) != (newCfg.Audit != nil) || oldA != newA {
		changed = append(changed, "audit")
		attrs = append(attrs,
			logx.String("audit.driver", strings.TrimSpace(newA.Driver)),
			logx.Bool("audit.path_set", strings.TrimSpace(newA.Path) != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefAudit(a *AuditConfig) AuditConfig {
	if a == nil {
		return AuditConfig{}
	}
	return *a
}
