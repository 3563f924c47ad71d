package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the poll loop and the notifier.
const (
	PollSuccess  = "poll.success"
	PollFailure  = "poll.failure"
	NotifySent   = "notify.sent"
	NotifyFailed = "notify.failed"
)

// Event is a lightweight, in-memory signal used to decouple the poll loop
// from observers (debug logging, metrics).
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Slow subscribers drop events.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// PollData accompanies PollSuccess and PollFailure.
type PollData struct {
	Cursor   int64
	Items    int
	Kind     string // failure kind, empty on success
	Notified bool   // failure was announced to the chat
	Took     time.Duration
}

// NotifyData accompanies NotifySent and NotifyFailed.
type NotifyData struct {
	ChatID int64
	Error  string
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns a simple in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

// Nop is a bus that drops everything.
func Nop() Bus { return nopBus{} }

type nopBus struct{}

func (nopBus) Publish(Event) {}
func (nopBus) Subscribe(int) (<-chan Event, func()) {
	ch := make(chan Event)
	close(ch)
	return ch, func() {}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Sends happen under the read lock; unsubscribe takes the write lock
	// before closing, so a send never races a close.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, unsub
}
