package watchdog

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "pairwatch"

// Metrics are the supervisor's counters.
type Metrics struct {
	heartbeats      prometheus.Counter
	respawns        prometheus.Counter
	respawnFailures prometheus.Counter
	shutdowns       prometheus.Counter
	dropped         prometheus.Counter
	misses          prometheus.Gauge
}

// NewMetrics creates the supervisor metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "heartbeats_sent_total",
			Help:      "Liveness signals sent to the counterpart",
		}),
		respawns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "respawns_total",
			Help:      "Counterparts respawned after missed heartbeats",
		}),
		respawnFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "respawn_failures_total",
			Help:      "Respawn attempts that failed to spawn or rendezvous",
		}),
		shutdowns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "shutdowns_total",
			Help:      "Shutdowns requested by the counterpart",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "signals_dropped_total",
			Help:      "Signals ignored because they came from an unexpected sender",
		}),
		misses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "missed_heartbeats",
			Help:      "Heartbeats sent since the counterpart last answered",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.heartbeats, m.respawns, m.respawnFailures, m.shutdowns, m.dropped, m.misses)
	}
	return m
}
