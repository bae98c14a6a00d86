package txdownload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the coordinator's observability surface. A nil *Metrics
// (produced by passing a nil registry to New) makes every method a no-op,
// mirroring go-ethereum's optional-metrics convention.
type Metrics struct {
	orphanStoreSize      prometheus.Gauge
	uniqueOrphanWeight    prometheus.Gauge
	requestTrackerSize   prometheus.Gauge
	resolutionTrackerSize prometheus.Gauge
	inFlightRequests     prometheus.Gauge

	orphanEvictions      prometheus.Counter
	rejectsByReason      *prometheus.CounterVec
}

func newMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &Metrics{
		orphanStoreSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "txdownload", Subsystem: "orphanage", Name: "announcements",
			Help: "Number of announcement rows currently held by the orphan store.",
		}),
		uniqueOrphanWeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "txdownload", Subsystem: "orphanage", Name: "unique_orphan_weight",
			Help: "Sum of weight across unique orphan transactions.",
		}),
		requestTrackerSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "txdownload", Subsystem: "request_tracker", Name: "size",
			Help: "Number of invitations tracked by the request tracker.",
		}),
		resolutionTrackerSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "txdownload", Subsystem: "orphan_resolution", Name: "size",
			Help: "Number of invitations tracked by the orphan resolution tracker.",
		}),
		inFlightRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "txdownload", Subsystem: "request_tracker", Name: "in_flight",
			Help: "Number of requests currently in flight across all peers.",
		}),
		orphanEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "txdownload", Subsystem: "orphanage", Name: "evictions_total",
			Help: "Total number of orphan announcements evicted by limit_orphans.",
		}),
		rejectsByReason: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txdownload", Subsystem: "coordinator", Name: "rejects_total",
			Help: "Total rejected transactions by validation-result reason.",
		}, []string{"reason"}),
	}
}

func (m *Metrics) setOrphanStoreSize(n int) {
	if m == nil {
		return
	}
	m.orphanStoreSize.Set(float64(n))
}

func (m *Metrics) setUniqueOrphanWeight(n int64) {
	if m == nil {
		return
	}
	m.uniqueOrphanWeight.Set(float64(n))
}

func (m *Metrics) setRequestTrackerSize(n int) {
	if m == nil {
		return
	}
	m.requestTrackerSize.Set(float64(n))
}

func (m *Metrics) setResolutionTrackerSize(n int) {
	if m == nil {
		return
	}
	m.resolutionTrackerSize.Set(float64(n))
}

func (m *Metrics) setInFlightRequests(n int) {
	if m == nil {
		return
	}
	m.inFlightRequests.Set(float64(n))
}

func (m *Metrics) incOrphanEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.orphanEvictions.Add(float64(n))
}

func (m *Metrics) incReject(reason string) {
	if m == nil {
		return
	}
	m.rejectsByReason.WithLabelValues(reason).Inc()
}
