package poller

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultInterval matches the Practicum API's recommended polling cadence.
const DefaultInterval = 600 * time.Second

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// ParseInterval parses a fixed polling interval.
//
// Supported forms:
//   - Go duration: "10m", "90s"
//   - HH:MM: "00:10" (10 minutes)
//   - cron descriptor: "@every 10m"
//
// Calendar schedules ("@hourly", "*/5 * * * *") are rejected: the loop sleeps
// a fixed interval between cycles and has no notion of wall-clock slots.
// Empty input yields DefaultInterval.
func ParseInterval(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return DefaultInterval, nil
	}

	if strings.HasPrefix(s, "@") {
		sched, err := cron.ParseStandard(s)
		if err != nil {
			return 0, fmt.Errorf("poll.interval: %w", err)
		}
		every, ok := sched.(cron.ConstantDelaySchedule)
		if !ok {
			return 0, fmt.Errorf("poll.interval: %q is a calendar schedule, want a fixed interval like '@every 10m'", raw)
		}
		return every.Delay, nil
	}

	if m := reHHMM.FindStringSubmatch(s); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return 0, fmt.Errorf("poll.interval: invalid minutes in %q", raw)
		}
		d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		if d <= 0 {
			return 0, fmt.Errorf("poll.interval: must be > 0")
		}
		return d, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("poll.interval: invalid %q (use '10m', '00:10' or '@every 10m')", raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("poll.interval: must be > 0")
	}
	return d, nil
}
