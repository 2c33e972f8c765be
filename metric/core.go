// Package metric defines the Prometheus instrumentation of the
// notification stream engine: publish-path counters, replay/live delivery
// counters, and gauges for the registered streams and active iterators.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the engine metrics
type Metrics struct {
	// Publish path
	EventsPublished *prometheus.CounterVec
	RecordsAppended *prometheus.CounterVec
	AppendErrors    *prometheus.CounterVec
	BroadcastErrors *prometheus.CounterVec
	EventsSkipped   prometheus.Counter

	// Delivery path
	ReplayRecords   *prometheus.CounterVec
	LiveSignals     *prometheus.CounterVec
	SignalsRejected *prometheus.CounterVec

	// State
	ActiveIterators   prometheus.Gauge
	StreamsRegistered prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all engine metrics
func NewMetrics() *Metrics {
	return &Metrics{
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "libnetconf",
				Subsystem: "ntf",
				Name:      "events_published_total",
				Help:      "Total number of events handed to the publisher",
			},
			[]string{"event"},
		),

		RecordsAppended: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "libnetconf",
				Subsystem: "ntf",
				Name:      "records_appended_total",
				Help:      "Total number of records appended to stream files",
			},
			[]string{"stream"},
		),

		AppendErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "libnetconf",
				Subsystem: "ntf",
				Name:      "append_errors_total",
				Help:      "Total number of failed stream file appends",
			},
			[]string{"stream"},
		),

		BroadcastErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "libnetconf",
				Subsystem: "ntf",
				Name:      "broadcast_errors_total",
				Help:      "Total number of failed bus broadcasts",
			},
			[]string{"stream"},
		),

		EventsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "libnetconf",
				Subsystem: "ntf",
				Name:      "events_skipped_total",
				Help:      "Total number of events allowed on no stream",
			},
		),

		ReplayRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "libnetconf",
				Subsystem: "ntf",
				Name:      "replay_records_total",
				Help:      "Total number of records delivered from stream files",
			},
			[]string{"stream"},
		),

		LiveSignals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "libnetconf",
				Subsystem: "ntf",
				Name:      "live_signals_total",
				Help:      "Total number of live signals delivered to iterators",
			},
			[]string{"stream"},
		),

		SignalsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "libnetconf",
				Subsystem: "ntf",
				Name:      "signals_rejected_total",
				Help:      "Total number of live signals outside the subscription window",
			},
			[]string{"stream"},
		),

		ActiveIterators: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "libnetconf",
				Subsystem: "ntf",
				Name:      "active_iterators",
				Help:      "Number of live subscription iterators",
			},
		),

		StreamsRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "libnetconf",
				Subsystem: "ntf",
				Name:      "streams_registered",
				Help:      "Number of streams in the registry",
			},
		),
	}
}

// collectors returns every metric for registration
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.EventsPublished,
		m.RecordsAppended,
		m.AppendErrors,
		m.BroadcastErrors,
		m.EventsSkipped,
		m.ReplayRecords,
		m.LiveSignals,
		m.SignalsRejected,
		m.ActiveIterators,
		m.StreamsRegistered,
	}
}
