package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"homeworkbot/internal/eventbus"
	"homeworkbot/internal/homework"
	kit "homeworkbot/internal/transport"
	logx "homeworkbot/pkg/logx"
)

type Notifier struct {
	sender  kit.Sender
	log     logx.Logger
	bus     eventbus.Bus
	cfg     Config
	limiter *rate.Limiter

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender kit.Sender, log logx.Logger, bus eventbus.Bus) *Notifier {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	return &Notifier{
		sender:  sender,
		log:     log,
		bus:     bus,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

// Notify sends text to the configured chat. Any failure comes back as
// homework.DeliveryFailed after being logged here.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sctx, cancel := context.WithTimeout(ctx, n.cfg.SendTimeout)
	defer cancel()

	err := n.send(sctx, text)
	n.appendHistory(text, err)

	to := n.cfg.Target
	if err != nil {
		err = homework.Delivery(err, "chat %d", to.ChatID)
		n.log.Error("message delivery failed", logx.Int64("chat_id", to.ChatID), logx.Err(err))
		n.bus.Publish(eventbus.Event{Type: eventbus.NotifyFailed, Data: eventbus.NotifyData{ChatID: to.ChatID, Error: err.Error()}})
		return err
	}
	n.log.Debug("message delivered", logx.Int64("chat_id", to.ChatID))
	n.bus.Publish(eventbus.Event{Type: eventbus.NotifySent, Data: eventbus.NotifyData{ChatID: to.ChatID}})
	return nil
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if n.sender == nil {
		return errors.New("no sender configured")
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := n.sender.SendText(ctx, n.cfg.Target, text, &kit.SendOptions{DisablePreview: true})
	return err
}

func (n *Notifier) appendHistory(text string, err error) {
	it := HistoryItem{At: time.Now(), Text: text}
	if err != nil {
		it.Err = err.Error()
	}
	n.hmu.Lock()
	defer n.hmu.Unlock()
	n.history = append(n.history, it)
	if len(n.history) > n.cfg.HistorySize {
		n.history = n.history[len(n.history)-n.cfg.HistorySize:]
	}
}

// History returns a copy of recent delivery attempts, oldest first.
func (n *Notifier) History() []HistoryItem {
	n.hmu.Lock()
	defer n.hmu.Unlock()
	return append([]HistoryItem(nil), n.history...)
}
