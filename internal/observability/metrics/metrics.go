package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"homeworkbot/internal/eventbus"
)

const namespace = "homeworkbot"

// Collectors holds the poller's Prometheus collectors. Values are fed from
// the event bus by Consume, so the poll loop never touches them directly.
type Collectors struct {
	cycles        *prometheus.CounterVec
	failures      *prometheus.CounterVec
	notifications *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	cursor        prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. An
// AlreadyRegisteredError is tolerated so repeated wiring keeps the
// existing collector.
func New(reg *prometheus.Registry) (*Collectors, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collectors{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "cycles_total",
			Help:      "Completed poll cycles by outcome (success or failure).",
		}, []string{"outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "failures_total",
			Help:      "Failed poll cycles by failure kind.",
		}, []string{"kind"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Chat delivery attempts by result (sent or failed).",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one poll cycle including delivery.",
			Buckets:   prometheus.DefBuckets,
		}),
		cursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cursor_seconds",
			Help:      "Lower bound (unix seconds) of the next status query window.",
		}),
		gatherer: reg,
	}
	for _, col := range []prometheus.Collector{c.cycles, c.failures, c.notifications, c.cycleDuration, c.cursor} {
		if err := reg.Register(col); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, err
		}
	}
	return c, nil
}

// Handler serves the registry in the Prometheus text format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Observe records one event.
func (c *Collectors) Observe(e eventbus.Event) {
	switch e.Type {
	case eventbus.PollSuccess, eventbus.PollFailure:
		d, _ := e.Data.(eventbus.PollData)
		if e.Type == eventbus.PollSuccess {
			c.cycles.WithLabelValues("success").Inc()
		} else {
			c.cycles.WithLabelValues("failure").Inc()
			c.failures.WithLabelValues(d.Kind).Inc()
		}
		c.cycleDuration.Observe(d.Took.Seconds())
		c.cursor.Set(float64(d.Cursor))
	case eventbus.NotifySent:
		c.notifications.WithLabelValues("sent").Inc()
	case eventbus.NotifyFailed:
		c.notifications.WithLabelValues("failed").Inc()
	}
}

// Consume feeds events from bus into the collectors until ctx ends.
func (c *Collectors) Consume(ctx context.Context, bus eventbus.Bus) {
	ch, unsub := bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			c.Observe(e)
		}
	}
}
