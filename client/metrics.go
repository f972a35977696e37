package client

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts dispatcher activity. A nil *Metrics records nothing.
type Metrics struct {
	renewals      *prometheus.CounterVec
	queued        prometheus.Counter
	forcedLogouts prometheus.Counter
}

// NewMetrics creates the dispatcher counters and registers them with reg
// when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		renewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "monexa",
			Subsystem: "client",
			Name:      "token_renewals_total",
			Help:      "Access token renewals by result (success, failure, skipped).",
		}, []string{"result"}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "monexa",
			Subsystem: "client",
			Name:      "queued_requests_total",
			Help:      "Requests held back while a renewal was in flight.",
		}),
		forcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "monexa",
			Subsystem: "client",
			Name:      "forced_logouts_total",
			Help:      "Sessions ended because the access token could not be renewed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.renewals, m.queued, m.forcedLogouts)
	}
	return m
}

func (m *Metrics) renewal(result string) {
	if m != nil {
		m.renewals.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) queuedRequest() {
	if m != nil {
		m.queued.Inc()
	}
}

func (m *Metrics) forcedLogout() {
	if m != nil {
		m.forcedLogouts.Inc()
	}
}
