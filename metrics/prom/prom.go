package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/ringcache/cache"
	"github.com/IvanBrykalov/ringcache/cluster"
)

// Adapter implements cache.Metrics and cluster.Metrics and exports them as
// Prometheus counters/gauges. Safe for concurrent use; all Prometheus metric
// types are goroutine-safe.
type Adapter struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	evicts   *prometheus.CounterVec
	size     prometheus.Gauge
	forwards *prometheus.CounterVec
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}
	}
	a := &Adapter{
		hits:   prometheus.NewCounter(prometheus.CounterOpts(opts("hits_total", "Local cache hits"))),
		misses: prometheus.NewCounter(prometheus.CounterOpts(opts("misses_total", "Local cache misses"))),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("evictions_total", "Local cache evictions by reason")),
			[]string{"reason"},
		),
		size: prometheus.NewGauge(prometheus.GaugeOpts(opts("size_entries", "Number of resident entries"))),
		forwards: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("forwards_total", "Peer calls made by the router")),
			[]string{"op", "result"},
		),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.size, a.forwards)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

// Size updates the resident entries gauge.
func (a *Adapter) Size(entries int) { a.size.Set(float64(entries)) }

// Forward counts one routed peer call.
func (a *Adapter) Forward(op, result string) {
	a.forwards.WithLabelValues(op, result).Inc()
}

var (
	_ cache.Metrics   = (*Adapter)(nil)
	_ cluster.Metrics = (*Adapter)(nil)
)
