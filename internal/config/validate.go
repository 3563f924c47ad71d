package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	logx "homeworkbot/pkg/logx"
)

// ParseDuration parses an optional Go duration string. Blank means def.
func ParseDuration(raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", raw)
	}
	return d, nil
}

// Validate checks the parts of the file that need no domain knowledge.
// Endpoint, interval and status table are checked when the runtime is built.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	check := func(field, raw string) {
		if _, err := ParseDuration(raw, time.Second); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}
	check("practicum.request_timeout", cfg.Practicum.RequestTimeout)
	check("telegram.request_timeout", cfg.Telegram.RequestTimeout)
	check("notifier.send_timeout", cfg.Notifier.SendTimeout)

	if cfg.Notifier.RatePerSec < 0 {
		errs = append(errs, fmt.Errorf("notifier.rate_per_sec: must not be negative"))
	}
	if cfg.Notifier.HistorySize < 0 {
		errs = append(errs, fmt.Errorf("notifier.history_size: must not be negative"))
	}
	if lvl := strings.TrimSpace(cfg.Logging.Level); lvl != "" && !logx.ValidLevel(lvl) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", lvl))
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		errs = append(errs, fmt.Errorf("logging.file.path: required when file logging is enabled"))
	}
	if cfg.Debug.Enabled && strings.TrimSpace(cfg.Debug.Addr) != "" {
		if _, _, err := net.SplitHostPort(cfg.Debug.Addr); err != nil {
			errs = append(errs, fmt.Errorf("debug.addr: %w", err))
		}
	}
	return errors.Join(errs...)
}
