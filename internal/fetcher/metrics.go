package fetcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 统计上游抓取。nil 值安全。
type Metrics struct {
	attempts *prometheus.CounterVec
	duration prometheus.Histogram
	stale    prometheus.Counter
}

// NewMetrics 在 reg 上注册抓取指标。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pagecache_fetch_attempts_total",
			Help: "Upstream page fetch attempts by result.",
		}, []string{"result"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pagecache_fetch_duration_seconds",
			Help:    "Latency of upstream page fetch attempts.",
			Buckets: prometheus.DefBuckets,
		}),
		stale: factory.NewCounter(prometheus.CounterOpts{
			Name: "pagecache_fetch_stale_fallback_total",
			Help: "Fetches answered from a cached snapshot after an upstream failure.",
		}),
	}
}

func (m *Metrics) observeAttempt(ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.attempts.WithLabelValues(result).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeStale() {
	if m == nil {
		return
	}
	m.stale.Inc()
}
