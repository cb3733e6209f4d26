package jtag

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts Engine activity. A nil *Metrics records nothing.
type Metrics struct {
	pathHits   prometheus.Counter
	pathMisses prometheus.Counter
	tmsBits    prometheus.Counter
	dataBits   *prometheus.CounterVec
	resets     prometheus.Counter
}

// NewMetrics creates the engine counters and registers them with reg when it
// is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pathHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tapengine_path_cache_hits_total",
			Help: "State changes served from the engine path cache.",
		}),
		pathMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tapengine_path_cache_misses_total",
			Help: "State changes that required path synthesis.",
		}),
		tmsBits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tapengine_tms_bits_total",
			Help: "Mode-select bits sent to the controller.",
		}),
		dataBits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tapengine_data_bits_total",
			Help: "Data bits shifted through the controller.",
		}, []string{"direction"}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tapengine_resets_total",
			Help: "TAP resets issued by the engine.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.pathHits, m.pathMisses, m.tmsBits, m.dataBits, m.resets)
	}
	return m
}

func (m *Metrics) pathLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.pathHits.Inc()
	} else {
		m.pathMisses.Inc()
	}
}

func (m *Metrics) tms(n int) {
	if m == nil {
		return
	}
	m.tmsBits.Add(float64(n))
}

func (m *Metrics) data(direction string, n int) {
	if m == nil {
		return
	}
	m.dataBits.WithLabelValues(direction).Add(float64(n))
}

func (m *Metrics) reset() {
	if m == nil {
		return
	}
	m.resets.Inc()
}
