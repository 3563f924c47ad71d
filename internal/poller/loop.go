package poller

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"homeworkbot/internal/eventbus"
	"homeworkbot/internal/homework"
	logx "homeworkbot/pkg/logx"
)

type Fetcher interface {
	Fetch(ctx context.Context, since int64) (homework.Record, error)
}

type Interpreter interface {
	Interpret(item any) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type Config struct {
	// Interval is the pause after every cycle. 0 means DefaultInterval.
	Interval time.Duration
}

type Deps struct {
	Client      Fetcher
	Interpreter Interpreter
	Notifier    Notifier
	Log         logx.Logger
	Bus         eventbus.Bus

	// Now and Sleep default to the wall clock; tests replace them.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
	// Heartbeat, if set, runs after every cycle regardless of outcome.
	Heartbeat func()
}

// Loop is the poll-classify-notify cycle. It is driven by a single goroutine;
// the cursor and streak flag are never touched from anywhere else.
type Loop struct {
	cfg  Config
	deps Deps
	log  logx.Logger

	cursor atomic.Int64
	// announce is true while the previous cycle did not fail, i.e. the next
	// failure should be reported to the chat.
	announce bool
}

func New(cfg Config, deps Deps) (*Loop, error) {
	if deps.Client == nil || deps.Interpreter == nil || deps.Notifier == nil {
		return nil, errors.New("poller: client, interpreter and notifier are required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepContext
	}
	if deps.Bus == nil {
		deps.Bus = eventbus.Nop()
	}
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	l := &Loop{cfg: cfg, deps: deps, log: log, announce: true}
	l.cursor.Store(deps.Now().Unix())
	return l, nil
}

// Cursor returns the lower bound of the next query window (unix seconds).
func (l *Loop) Cursor() int64 { return l.cursor.Load() }

// Announcing reports whether the next failure will be sent to the chat.
func (l *Loop) Announcing() bool { return l.announce }

// Run repeats cycles until ctx is canceled. Recoverable failures never end it.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("polling started",
		logx.Duration("interval", l.cfg.Interval),
		logx.Int64("cursor", l.Cursor()),
	)
	for {
		_ = l.RunOnce(ctx)
		if l.deps.Heartbeat != nil {
			l.deps.Heartbeat()
		}
		if err := l.deps.Sleep(ctx, l.cfg.Interval); err != nil {
			l.log.Info("polling stopped", logx.Int64("cursor", l.Cursor()))
			return nil
		}
	}
}

// RunOnce executes one cycle and applies the failure policy.
// It returns the cycle's failure (already handled) or nil.
func (l *Loop) RunOnce(ctx context.Context) error {
	start := l.deps.Now()
	items, err := l.cycle(ctx)
	took := l.deps.Now().Sub(start)

	if err != nil {
		notified := l.handleFailure(ctx, err)
		l.deps.Bus.Publish(eventbus.Event{Type: eventbus.PollFailure, Data: eventbus.PollData{
			Cursor:   l.Cursor(),
			Kind:     homework.KindOf(err).String(),
			Notified: notified,
			Took:     took,
		}})
		return err
	}

	l.announce = true
	l.advance(l.deps.Now().Unix())
	l.deps.Bus.Publish(eventbus.Event{Type: eventbus.PollSuccess, Data: eventbus.PollData{
		Cursor: l.Cursor(),
		Items:  items,
		Took:   took,
	}})
	return nil
}

func (l *Loop) cycle(ctx context.Context) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("poll cycle panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	rec, err := l.deps.Client.Fetch(ctx, l.Cursor())
	if err != nil {
		return 0, err
	}
	items, err := homework.ExtractItems(rec)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		l.log.Debug("no new statuses", logx.Int64("cursor", l.Cursor()))
		return 0, nil
	}

	// The API lists the most recent change first; only that one is reported.
	msg, err := l.deps.Interpreter.Interpret(items[0])
	if err != nil {
		return len(items), err
	}
	if err := l.deps.Notifier.Notify(ctx, msg); err != nil {
		l.log.Error("status message not delivered", logx.Err(err))
	} else {
		l.log.Info("status message sent", logx.String("message", msg))
	}
	return len(items), nil
}

func (l *Loop) handleFailure(ctx context.Context, err error) bool {
	kind := homework.KindOf(err)
	l.log.Error("poll cycle failed",
		logx.String("kind", kind.String()),
		logx.Int64("cursor", l.Cursor()),
		logx.Err(err),
	)

	if !l.announce {
		l.log.Debug("failure already announced; notification suppressed", logx.String("kind", kind.String()))
		return false
	}
	l.announce = false

	if nerr := l.deps.Notifier.Notify(ctx, homework.Render(err)); nerr != nil {
		l.log.Error("failure notification not delivered", logx.Err(nerr))
		return false
	}
	return true
}

// advance moves the cursor forward; a clock stepping backwards never moves it back.
func (l *Loop) advance(now int64) {
	if now > l.cursor.Load() {
		l.cursor.Store(now)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
