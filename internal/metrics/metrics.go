// Package metrics exports interface health to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tonhe/nocwatch/internal/engine"
)

const namespace = "noc"

// Sink holds the collector's gauges in a private registry. It implements
// engine.MetricsSink.
type Sink struct {
	registry *prometheus.Registry

	up          *prometheus.GaugeVec
	rxBps       *prometheus.GaugeVec
	txBps       *prometheus.GaugeVec
	errRate     *prometheus.GaugeVec
	pollSeconds *prometheus.GaugeVec
	pollFails   *prometheus.CounterVec
	transitions *prometheus.CounterVec
	tickSeconds prometheus.Histogram
}

// NewSink creates a Sink with every metric registered, plus the Go runtime
// and process collectors.
func NewSink() *Sink {
	s := &Sink{
		registry: prometheus.NewRegistry(),
		up: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "interface_up",
			Help:      "1 if interface is up (UP), 0 otherwise",
		}, []string{"device", "iface", "state"}),
		rxBps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "interface_rx_bps",
			Help:      "Interface rx bits/sec",
		}, []string{"device", "iface"}),
		txBps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "interface_tx_bps",
			Help:      "Interface tx bits/sec",
		}, []string{"device", "iface"}),
		errRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "interface_err_per_sec",
			Help:      "Interface errors per second",
		}, []string{"device", "iface"}),
		pollSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_poll_duration_seconds",
			Help:      "Duration of the last poll of a device",
		}, []string{"device"}),
		pollFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_poll_failures_total",
			Help:      "Device polls that failed or timed out",
		}, []string{"device"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interface_transitions_total",
			Help:      "State transitions emitted, by new state",
		}, []string{"device", "iface", "state"}),
		tickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collector_tick_duration_seconds",
			Help:      "Duration of a full collection cycle",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	s.registry.MustRegister(
		s.up, s.rxBps, s.txBps, s.errRate,
		s.pollSeconds, s.pollFails, s.transitions, s.tickSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return s
}

// Registry returns the registry the sink's metrics live in.
func (s *Sink) Registry() *prometheus.Registry {
	return s.registry
}

// ObserveInterface sets the latest figures for an interface. Only the
// current state keeps an up series; rates are left untouched until a
// second sample makes them meaningful.
func (s *Sink) ObserveInterface(device, iface string, state engine.State, rates engine.Rates) {
	for _, st := range engine.States {
		if st != state {
			s.up.DeleteLabelValues(device, iface, string(st))
		}
	}
	up := 0.0
	if state == engine.StateUp {
		up = 1
	}
	s.up.WithLabelValues(device, iface, string(state)).Set(up)

	if !rates.Valid {
		return
	}
	s.rxBps.WithLabelValues(device, iface).Set(max(0, rates.RxBps))
	s.txBps.WithLabelValues(device, iface).Set(max(0, rates.TxBps))
	s.errRate.WithLabelValues(device, iface).Set(max(0, rates.ErrPerSec))
}

func (s *Sink) ObservePoll(device string, took time.Duration, err error) {
	s.pollSeconds.WithLabelValues(device).Set(took.Seconds())
	if err != nil {
		s.pollFails.WithLabelValues(device).Inc()
	}
}

func (s *Sink) ObserveTransition(t engine.Transition) {
	s.transitions.WithLabelValues(t.Device, t.Iface, string(t.To)).Inc()
}

func (s *Sink) ObserveTick(took time.Duration) {
	s.tickSeconds.Observe(took.Seconds())
}
