package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 记录各缓存层的操作结果。nil 值安全，未注入时不采集。
type Metrics struct {
	ops *prometheus.CounterVec
}

// NewMetrics 在 reg 上注册缓存指标。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ops: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pagecache_cache_ops_total",
			Help: "Cache tier operations by tier, operation and result.",
		}, []string{"tier", "op", "result"}),
	}
}

func (m *Metrics) observe(tier, op, result string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(tier, op, result).Inc()
}
