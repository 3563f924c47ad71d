package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"homeworkbot/internal/config"
	"homeworkbot/internal/eventbus"
	"homeworkbot/internal/homework"
	"homeworkbot/internal/notifier"
	"homeworkbot/internal/observability/debugsrv"
	"homeworkbot/internal/observability/metrics"
	"homeworkbot/internal/poller"
	"homeworkbot/internal/practicum"
	rtsup "homeworkbot/internal/runtime/supervisor"
	telegram "homeworkbot/internal/transport/telegram/adapter"
	logx "homeworkbot/pkg/logx"
	"homeworkbot/pkg/systemd"
)

// Options are process-level inputs. The zero value reads the real
// environment and talks to the real services.
type Options struct {
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
	// DotEnv is loaded into the process environment before anything else.
	// Empty skips it.
	DotEnv string
	// BootLog receives startup faults before the logging config is known.
	BootLog logx.Logger
	// HTTPClient overrides the status API client.
	HTTPClient *http.Client
	// TelegramOffline skips the best-effort getMe handshake.
	TelegramOffline bool
}

type App struct {
	rt   Runtime
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	loop    *poller.Loop
	notif   *notifier.Notifier
	metrics *metrics.Collectors
	debug   *debugsrv.Server
	sd      *systemd.Notifier

	lastBeat atomic.Int64 // unix nanos of the last finished cycle
}

// Helpers other than the poller restart on panic or error.
const (
	helperMinBackoff = 250 * time.Millisecond
	helperMaxBackoff = 10 * time.Second
)

// NewApp reads credentials and tunables and builds every component.
// Missing credentials come back as homework.ConfigurationMissing after a
// critical log line per variable; nothing is polled in that case.
func NewApp(opts Options) (*App, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	boot := opts.BootLog
	if boot.IsZero() {
		boot = logx.NewConsole("INFO")
	}

	if opts.DotEnv != "" {
		if err := config.LoadDotEnv(opts.DotEnv); err != nil {
			boot.Warn("dotenv not loaded", logx.String("path", opts.DotEnv), logx.Err(err))
		}
	}

	secrets, err := config.SecretsFromEnv(lookup)
	if err != nil {
		for _, name := range config.MissingNames(err) {
			boot.Critical("required environment variable is missing or invalid", logx.String("name", name))
		}
		return nil, err
	}

	path, explicit := config.Path(lookup)
	cfgm := config.NewManager(path, !explicit)
	cfgm.SetValidator(validateFile)
	cfg, err := cfgm.Load()
	if err != nil {
		boot.Critical("config load failed", logx.String("path", path), logx.Err(err))
		return nil, err
	}
	rt, err := buildRuntime(cfg, secrets)
	if err != nil {
		boot.Critical("config invalid", logx.String("path", path), logx.Err(err))
		return nil, err
	}

	logSvc, log := logx.New(rt.Logging)
	bus := eventbus.New()

	tg := rt.Telegram
	tg.Offline = opts.TelegramOffline
	ad, err := telegram.New(tg, log.With(logx.String("comp", "telegram")))
	if err != nil {
		log.Critical("telegram bot init failed", logx.Err(err))
		_ = logSvc.Close()
		return nil, fmt.Errorf("telegram: %w", err)
	}

	client, err := practicum.New(rt.Practicum, opts.HTTPClient)
	if err != nil {
		log.Critical("status client init failed", logx.Err(err))
		_ = logSvc.Close()
		return nil, err
	}
	interp, err := homework.NewInterpreter(rt.Verdicts)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	notif := notifier.New(rt.Notifier, ad, log.With(logx.String("comp", "notifier")), bus)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	col, err := metrics.New(reg)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	a := &App{
		rt:      rt,
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     bus,
		notif:   notif,
		metrics: col,
		sd:      &systemd.Notifier{},
	}
	a.loop, err = poller.New(rt.Poll, poller.Deps{
		Client:      client,
		Interpreter: interp,
		Notifier:    notif,
		Log:         log.With(logx.String("comp", "poller")),
		Bus:         bus,
		Heartbeat:   a.heartbeat,
	})
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	a.debug = debugsrv.New(rt.Debug, col.Handler(), a.health, log)
	a.debug.Handle("/debug/notifications", jsonHandler(func() any { return notif.History() }))
	a.debug.Handle("/debug/supervisor", jsonHandler(func() any { return a.counters() }))

	a.log.Info("configured",
		logx.String("endpoint", client.Endpoint()),
		logx.Duration("interval", rt.Poll.Interval),
		logx.Int64("chat_id", rt.Notifier.Target.ChatID),
		logx.String("config", path),
		logx.Any("statuses", interp.Statuses()),
		logx.String("bot", ad.Username()),
	)
	return a, nil
}

// Loop exposes the poll loop (cursor and streak state).
func (a *App) Loop() *poller.Loop { return a.loop }

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	a.sup.GoRestart("metrics", func(c context.Context) error {
		a.metrics.Consume(c, a.bus)
		return nil
	}, helperMinBackoff, helperMaxBackoff)
	a.sup.GoRestart("eventbus.log", a.logEvents, helperMinBackoff, helperMaxBackoff)
	a.sup.GoRestart("config.reload", a.reloadConfig, helperMinBackoff, helperMaxBackoff)
	a.sup.GoRestart("config.watch", a.cfgm.Watch, helperMinBackoff, helperMaxBackoff)
	a.debug.Reconfigure(a.sup.Context(), a.rt.Debug)

	a.lastBeat.Store(time.Now().UnixNano())
	// Only a poller failure ends the process.
	a.sup.Go("poller", a.loop.Run)
	if wd := systemd.WatchdogInterval(); wd > 0 {
		a.sup.GoRestart("systemd.watchdog", func(c context.Context) error {
			a.watchdog(c, wd)
			return nil
		}, helperMinBackoff, helperMaxBackoff)
	}

	if _, err := a.sd.Ready(); err != nil {
		a.log.Warn("systemd ready notification failed", logx.Err(err))
	}
	a.log.Info("started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if _, err := a.sd.Stopping(); err != nil {
		a.log.Debug("systemd stopping notification failed", logx.Err(err))
	}
	a.debug.Stop(ctx)

	var err error
	if a.sup != nil {
		err = a.sup.Stop(ctx)
	}
	a.log.Info("stopped", logx.Int64("cursor", a.loop.Cursor()))
	_ = a.logs.Close()
	return err
}

// counters is empty before Start.
func (a *App) counters() rtsup.Counters {
	if a.sup == nil {
		return rtsup.Counters{}
	}
	return a.sup.Counters()
}

func jsonHandler(get func() any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(get()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// heartbeat runs after every poll cycle.
func (a *App) heartbeat() {
	a.lastBeat.Store(time.Now().UnixNano())
	if _, err := a.sd.Status("cursor %d", a.loop.Cursor()); err != nil {
		a.log.Debug("systemd status update failed", logx.Err(err))
	}
}

// stallAfter is how long without a finished cycle before the loop counts
// as stuck. One cycle is bounded by the request and send timeouts.
func (a *App) stallAfter() time.Duration {
	return 2*a.rt.Poll.Interval + a.rt.Practicum.Timeout + 2*a.rt.Notifier.SendTimeout + time.Minute
}

func (a *App) health() error {
	since := time.Since(time.Unix(0, a.lastBeat.Load()))
	if since > a.stallAfter() {
		return fmt.Errorf("no poll cycle finished for %s", since.Truncate(time.Second))
	}
	return nil
}

// watchdog pings systemd at half the configured interval while the loop is alive.
func (a *App) watchdog(ctx context.Context, wd time.Duration) {
	t := time.NewTicker(wd / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := a.health(); err != nil {
				a.log.Warn("watchdog ping withheld", logx.Err(err))
				continue
			}
			if _, err := a.sd.Watchdog(); err != nil {
				a.log.Debug("watchdog ping failed", logx.Err(err))
			}
		}
	}
}

func (a *App) logEvents(c context.Context) error {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	log := a.log.With(logx.String("comp", "events"))
	for {
		select {
		case <-c.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if !log.Enabled(logx.LevelDebug) {
				continue
			}
			fields := []logx.Field{logx.String("type", e.Type), logx.Time("time", e.Time)}
			switch d := e.Data.(type) {
			case eventbus.PollData:
				fields = append(fields, logx.Int64("cursor", d.Cursor), logx.Int("items", d.Items), logx.Duration("took", d.Took))
				if d.Kind != "" {
					fields = append(fields, logx.String("kind", d.Kind), logx.Bool("notified", d.Notified))
				}
			case eventbus.NotifyData:
				if d.Error != "" {
					fields = append(fields, logx.String("error", d.Error))
				}
			}
			log.Debug("event", fields...)
		}
	}
}

func (a *App) reloadConfig(c context.Context) error {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-c.Done():
			return nil
		case newCfg, ok := <-sub:
			if !ok {
				return nil
			}
			a.applyConfig(c, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	a.log.Info("config change summary", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLogging(newCfg.Logging))
		case "debug":
			a.debug.Reconfigure(ctx, mapDebug(newCfg.Debug))
		}
	}
	if pending := config.NeedsRestart(sections); len(pending) > 0 {
		a.log.Warn("config change requires restart", logx.String("sections", strings.Join(pending, ",")))
	}
}
