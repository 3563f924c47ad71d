package config

import (
	"maps"
	"sort"
	"strings"

	logx "homeworkbot/pkg/logx"
)

// SummarizeChange returns the changed top-level sections and safe
// structured attrs for logging them.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Practicum != newCfg.Practicum {
		changed = append(changed, "practicum")
		attrs = append(attrs,
			logx.String("practicum.endpoint", strings.TrimSpace(newCfg.Practicum.Endpoint)),
			logx.String("practicum.request_timeout", strings.TrimSpace(newCfg.Practicum.RequestTimeout)),
		)
	}

	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.request_timeout", strings.TrimSpace(newCfg.Telegram.RequestTimeout)),
			logx.Int("telegram.thread_id", newCfg.Telegram.ThreadID),
			logx.Bool("telegram.api_url_set", strings.TrimSpace(newCfg.Telegram.APIURL) != ""),
		)
	}

	if oldCfg.Poll != newCfg.Poll {
		changed = append(changed, "poll")
		attrs = append(attrs, logx.String("poll.interval", strings.TrimSpace(newCfg.Poll.Interval)))
	}

	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.String("notifier.send_timeout", strings.TrimSpace(newCfg.Notifier.SendTimeout)),
			logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
			logx.Int("notifier.history_size", newCfg.Notifier.HistorySize),
		)
	}

	if !maps.Equal(oldCfg.Statuses, newCfg.Statuses) {
		changed = append(changed, "statuses")
		attrs = append(attrs, logx.Int("statuses.count", len(newCfg.Statuses)))
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Debug != newCfg.Debug {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", newCfg.Debug.Enabled),
			logx.String("debug.addr", strings.TrimSpace(newCfg.Debug.Addr)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// HotSections are the sections applied without restarting the process.
var HotSections = map[string]bool{"logging": true, "debug": true}

// NeedsRestart reports the changed sections that only take effect after a restart.
func NeedsRestart(changed []string) []string {
	var out []string
	for _, s := range changed {
		if !HotSections[s] {
			out = append(out, s)
		}
	}
	return out
}
