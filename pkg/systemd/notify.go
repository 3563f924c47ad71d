// Package systemd reports service state to systemd through the notify
// socket. Every call is a no-op when NOTIFY_SOCKET is unset.
package systemd

import (
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages. The zero value is ready to use.
type Notifier struct {
	// send defaults to daemon.SdNotify; tests replace it.
	send func(unsetEnv bool, state string) (bool, error)

	mu       sync.Mutex
	lastBeat time.Time
}

func (n *Notifier) notify(state string) (bool, error) {
	send := n.send
	if send == nil {
		send = daemon.SdNotify
	}
	ok, err := send(false, state)
	if err != nil {
		return false, fmt.Errorf("sd_notify %q: %w", state, err)
	}
	return ok, nil
}

// Ready reports that startup finished.
func (n *Notifier) Ready() (bool, error) { return n.notify(daemon.SdNotifyReady) }

// Stopping reports that shutdown began.
func (n *Notifier) Stopping() (bool, error) { return n.notify(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(format string, args ...any) (bool, error) {
	return n.notify("STATUS=" + fmt.Sprintf(format, args...))
}

// Watchdog pings the service watchdog.
func (n *Notifier) Watchdog() (bool, error) {
	n.mu.Lock()
	n.lastBeat = time.Now()
	n.mu.Unlock()
	return n.notify(daemon.SdNotifyWatchdog)
}

// LastWatchdog returns when Watchdog was last called.
func (n *Notifier) LastWatchdog() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastBeat
}

// WatchdogInterval returns the interval systemd expects pings at, or 0 when
// the watchdog is disabled for this process.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return 0
	}
	return d
}
