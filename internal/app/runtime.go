package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"homeworkbot/internal/config"
	"homeworkbot/internal/homework"
	"homeworkbot/internal/notifier"
	"homeworkbot/internal/observability/debugsrv"
	"homeworkbot/internal/poller"
	"homeworkbot/internal/practicum"
	kit "homeworkbot/internal/transport"
	telegram "homeworkbot/internal/transport/telegram/adapter"
	logx "homeworkbot/pkg/logx"
)

// Runtime is the immutable, fully parsed configuration handed to the
// components at startup.
type Runtime struct {
	Practicum practicum.Config
	Telegram  telegram.Config
	Notifier  notifier.Config
	Poll      poller.Config
	Verdicts  map[string]string
	Logging   logx.Config
	Debug     debugsrv.Config
}

func buildRuntime(cfg *config.Config, s config.Secrets) (Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	var errs []error

	reqTimeout, err := config.ParseDuration(cfg.Practicum.RequestTimeout, 30*time.Second)
	if err != nil {
		errs = append(errs, fmt.Errorf("practicum.request_timeout: %w", err))
	}
	if ep := strings.TrimSpace(cfg.Practicum.Endpoint); ep != "" {
		if _, err := practicum.ValidateEndpoint(ep); err != nil {
			errs = append(errs, fmt.Errorf("practicum.endpoint: %w", err))
		}
	}
	tgTimeout, err := config.ParseDuration(cfg.Telegram.RequestTimeout, 15*time.Second)
	if err != nil {
		errs = append(errs, fmt.Errorf("telegram.request_timeout: %w", err))
	}
	sendTimeout, err := config.ParseDuration(cfg.Notifier.SendTimeout, 15*time.Second)
	if err != nil {
		errs = append(errs, fmt.Errorf("notifier.send_timeout: %w", err))
	}
	interval, err := poller.ParseInterval(cfg.Poll.Interval)
	if err != nil {
		errs = append(errs, err)
	}
	if _, err := homework.NewInterpreter(cfg.Statuses); err != nil {
		errs = append(errs, fmt.Errorf("statuses: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return Runtime{}, err
	}

	return Runtime{
		Practicum: practicum.Config{
			Endpoint: strings.TrimSpace(cfg.Practicum.Endpoint),
			Token:    s.PracticumToken,
			Timeout:  reqTimeout,
		},
		Telegram: telegram.Config{
			Token:   s.TelegramToken,
			Timeout: tgTimeout,
			URL:     strings.TrimSpace(cfg.Telegram.APIURL),
		},
		Notifier: notifier.Config{
			Target:      kit.ChatTarget{ChatID: s.ChatID, ThreadID: cfg.Telegram.ThreadID},
			SendTimeout: sendTimeout,
			RatePerSec:  cfg.Notifier.RatePerSec,
			HistorySize: cfg.Notifier.HistorySize,
		},
		Poll:     poller.Config{Interval: interval},
		Verdicts: cfg.Statuses,
		Logging:  mapLogging(cfg.Logging),
		Debug:    mapDebug(cfg.Debug),
	}, nil
}

// validateFile is the hot-reload gate: a reloaded file must still build a
// runtime (credentials are not part of the file).
func validateFile(cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	_, err := buildRuntime(cfg, config.Secrets{})
	return err
}

func mapLogging(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled:    c.File.Enabled,
			Path:       c.File.Path,
			MaxSizeMB:  c.File.MaxSizeMB,
			MaxBackups: c.File.MaxBackups,
			MaxAgeDays: c.File.MaxAgeDays,
			Compress:   c.File.Compress,
		},
	}
}

func mapDebug(c config.DebugConfig) debugsrv.Config {
	return debugsrv.Config{Enabled: c.Enabled, Addr: strings.TrimSpace(c.Addr)}
}
