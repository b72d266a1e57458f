package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the auction collectors on a private registry so tests can
// build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	Commands            *prometheus.CounterVec
	BidsAccepted        prometheus.Counter
	BidsRejected        *prometheus.CounterVec
	ItemsResolved       *prometheus.CounterVec
	Observers           prometheus.Gauge
	ObserversDropped    prometheus.Counter
	PersistFailures     prometheus.Counter
	PersistDuration     prometheus.Histogram
	NotifyFailures      prometheus.Counter
	RateLimitedMessages prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "commands_total",
			Help:      "Commands applied by the auction loop, by command and outcome.",
		}, []string{"command", "outcome"}),
		BidsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "bids_accepted_total",
			Help:      "Bids that became the new high bid.",
		}),
		BidsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "bids_rejected_total",
			Help:      "Bids ignored by the auction rules, by reason.",
		}, []string{"reason"}),
		ItemsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "items_resolved_total",
			Help:      "Items closed, by outcome (sold, unsold, forced).",
		}, []string{"outcome"}),
		Observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "auction",
			Name:      "observers",
			Help:      "Connected observers.",
		}),
		ObserversDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "observers_dropped_total",
			Help:      "Observers dropped for not keeping up with broadcasts.",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "persist_failures_total",
			Help:      "Snapshot saves that failed.",
		}),
		PersistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "auction",
			Name:      "persist_duration_seconds",
			Help:      "Time spent saving one snapshot.",
			Buckets:   prometheus.DefBuckets,
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "notify_failures_total",
			Help:      "Sale results that could not be published.",
		}),
		RateLimitedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "ws_rate_limited_total",
			Help:      "Inbound websocket frames discarded by the per-connection limiter.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Commands,
		m.BidsAccepted,
		m.BidsRejected,
		m.ItemsResolved,
		m.Observers,
		m.ObserversDropped,
		m.PersistFailures,
		m.PersistDuration,
		m.NotifyFailures,
		m.RateLimitedMessages,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
