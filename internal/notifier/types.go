package notifier

import (
	"time"

	kit "homeworkbot/internal/transport"
)

type Config struct {
	Target kit.ChatTarget
	// SendTimeout bounds one delivery including the rate-limit wait. 0 means 15s.
	SendTimeout time.Duration
	// RatePerSec caps outgoing messages. 0 means 1.
	RatePerSec int
	// HistorySize is the number of attempts remembered. 0 means 100.
	HistorySize int
}

type HistoryItem struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
	Err  string    `json:"error,omitempty"`
}
