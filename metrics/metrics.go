// Package metrics exposes Prometheus counters for a urg.Session's
// frame traffic: the domain-stack metrics surface named in spec.md §6
// for cmd/urg-monitor, grounded on
// runZeroInc-sockstats/pkg/exporter's use of prometheus/client_golang
// (that package's TCPInfoCollector pulls kernel socket counters on
// Collect; ours is simpler, counting driver-level events as they
// happen, so it uses promauto counters directly instead of a custom
// Collector).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hokuyo/urgscip/urg"
)

// Collector counts frame outcomes for one or more Sessions. Attach it
// to a Session with Session.SetObserver (for decoded frames) and call
// ObserveError from the caller's own error-handling path (Session
// itself does not know about metrics).
type Collector struct {
	framesTotal *prometheus.CounterVec
	stepsTotal  *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
}

// NewCollector builds and registers a Collector's metrics against reg.
// Pass prometheus.DefaultRegisterer for the global registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		framesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "urgscip",
			Name:      "frames_total",
			Help:      "Measurement frames successfully decoded, by kind.",
		}, []string{"kind"}),
		stepsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "urgscip",
			Name:      "steps_total",
			Help:      "Per-step samples decoded across all frames, by kind.",
		}, []string{"kind"}),
		errorsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "urgscip",
			Name:      "errors_total",
			Help:      "Session errors observed, by error code.",
		}, []string{"code"}),
	}
	return c
}

// Observe implements urg.FrameObserver.
func (c *Collector) Observe(f urg.Frame) {
	kind := kindLabel(f.Kind)
	c.framesTotal.WithLabelValues(kind).Inc()
	steps := len(f.Length)
	if f.Kind.IsMultiecho() {
		steps /= urg.MaxEcho
	}
	c.stepsTotal.WithLabelValues(kind).Add(float64(steps))
}

// ObserveError records a failing Session call's error code.
func (c *Collector) ObserveError(code urg.ErrCode) {
	c.errorsTotal.WithLabelValues(code.String()).Inc()
}

func kindLabel(k urg.Kind) string {
	switch k {
	case urg.KindDistance:
		return "distance"
	case urg.KindDistanceIntensity:
		return "distance_intensity"
	case urg.KindMultiecho:
		return "multiecho"
	case urg.KindMultiechoIntensity:
		return "multiecho_intensity"
	case urg.KindStop:
		return "stop"
	default:
		return "unknown"
	}
}
