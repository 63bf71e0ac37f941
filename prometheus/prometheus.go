// Package prometheus records conversation stream metrics with the Prometheus
// client library. Metrics is a ragchat.Observer; register its Observe method
// on a Reducer with ragchat.WithObserver.
package prometheus

import (
	"net/http"
	"sync"
	"time"

	"github.com/fwojciec/ragchat"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "ragchat"

// Metrics counts streams by outcome and observes their latency.
type Metrics struct {
	started    prometheus.Counter
	completed  prometheus.Counter
	failed     prometheus.Counter
	superseded prometheus.Counter
	firstDelta prometheus.Histogram
	duration   prometheus.Histogram
	citations  prometheus.Histogram

	namespace string
	now       func() time.Time

	mu       sync.Mutex
	inflight *streamTimes
}

type streamTimes struct {
	token   uint64
	start   time.Time
	gotText bool
}

// Option configures Metrics.
type Option func(*Metrics)

// WithNamespace sets the metric name prefix. Defaults to "ragchat".
func WithNamespace(ns string) Option {
	return func(m *Metrics) { m.namespace = ns }
}

// WithClock sets the time source used for latency measurements.
func WithClock(now func() time.Time) Option {
	return func(m *Metrics) { m.now = now }
}

// New creates Metrics and registers its collectors with reg.
func New(reg prometheus.Registerer, opts ...Option) (*Metrics, error) {
	m := &Metrics{namespace: defaultNamespace, now: time.Now}
	for _, o := range opts {
		o(m)
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: "streams", Name: name, Help: help,
		})
	}
	m.started = counter("started_total", "Answer streams opened.")
	m.completed = counter("completed_total", "Answer streams that ended with a sealed answer.")
	m.failed = counter("failed_total", "Answer streams that ended with a failed answer.")
	m.superseded = counter("superseded_total", "Answer streams abandoned by a reset or restore.")
	m.firstDelta = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "stream", Name: "first_delta_seconds",
		Help:    "Time from opening a stream to its first answer text.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})
	m.duration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "stream", Name: "duration_seconds",
		Help:    "Time from opening a stream to its terminal frame.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})
	m.citations = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "answer", Name: "citations",
		Help:    "Citations attached to sealed answers.",
		Buckets: prometheus.LinearBuckets(0, 1, 11),
	})

	for _, c := range []prometheus.Collector{
		m.started, m.completed, m.failed, m.superseded, m.firstDelta, m.duration, m.citations,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe implements ragchat.Observer.
func (m *Metrics) Observe(c ragchat.Change) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch c.Kind {
	case ragchat.ChangeAppended:
		if c.Message.Role == ragchat.RoleAssistant && c.Message.Streaming {
			m.started.Inc()
			m.inflight = &streamTimes{token: c.Token, start: m.now()}
		}
	case ragchat.ChangeUpdated:
		if s := m.current(c.Token); s != nil && !s.gotText {
			s.gotText = true
			m.firstDelta.Observe(m.now().Sub(s.start).Seconds())
		}
	case ragchat.ChangeSealed, ragchat.ChangeFailed:
		s := m.current(c.Token)
		if s == nil {
			return
		}
		m.duration.Observe(m.now().Sub(s.start).Seconds())
		if c.Kind == ragchat.ChangeSealed {
			m.completed.Inc()
			m.citations.Observe(float64(len(c.Message.Citations)))
		} else {
			m.failed.Inc()
		}
		m.inflight = nil
	case ragchat.ChangeReset, ragchat.ChangeRestored:
		if m.inflight != nil {
			m.superseded.Inc()
			m.inflight = nil
		}
	}
}

func (m *Metrics) current(token uint64) *streamTimes {
	if m.inflight == nil || m.inflight.token != token {
		return nil
	}
	return m.inflight
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
