// Package metrics exposes Prometheus collectors for the session coordinator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quizbuzzer"

type Collector struct {
	Commands       *prometheus.CounterVec
	BuzzConflicts  prometheus.Counter
	CodeExhausted  prometheus.Counter
	Evictions      prometheus.Counter
	ArchiveDropped prometheus.Counter
}

// New registers the coordinator's collectors on reg. rooms and conns are
// sampled on every scrape.
func New(reg prometheus.Registerer, rooms, conns func() float64) *Collector {
	c := &Collector{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Client commands handled, by command and result code.",
		}, []string{"command", "result"}),
		BuzzConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buzz_conflicts_total",
			Help:      "Buzzes rejected because the buzzer was already locked.",
		}),
		CodeExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_code_exhausted_total",
			Help:      "Room creations that could not find a free join code.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_consumer_evictions_total",
			Help:      "Connections closed because their outbound queue was full.",
		}),
		ArchiveDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_events_dropped_total",
			Help:      "Archive events dropped because the write buffer was full.",
		}),
	}

	reg.MustRegister(
		c.Commands,
		c.BuzzConflicts,
		c.CodeExhausted,
		c.Evictions,
		c.ArchiveDropped,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Live rooms.",
		}, rooms),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Open websocket connections.",
		}, conns),
	)
	return c
}

// ObserveCommand counts one handled command. result is "ok" or an error code.
func (c *Collector) ObserveCommand(command, result string) {
	if c == nil {
		return
	}
	c.Commands.WithLabelValues(command, result).Inc()
}

func (c *Collector) IncBuzzConflict() {
	if c != nil {
		c.BuzzConflicts.Inc()
	}
}

func (c *Collector) IncCodeExhausted() {
	if c != nil {
		c.CodeExhausted.Inc()
	}
}

func (c *Collector) IncEviction() {
	if c != nil {
		c.Evictions.Inc()
	}
}

func (c *Collector) IncArchiveDropped() {
	if c != nil {
		c.ArchiveDropped.Inc()
	}
}
