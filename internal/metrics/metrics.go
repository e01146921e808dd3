package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 在独立的 registry 上持有服务的 Prometheus 指标。
// nil *Metrics 可以直接使用，不记录任何数据。
type Metrics struct {
	registry *prometheus.Registry

	RollUps        *prometheus.CounterVec
	RollUpLatency  *prometheus.HistogramVec
	BatchRuns      *prometheus.CounterVec
	BatchFailures  *prometheus.CounterVec
	Clicks         prometheus.Counter
	YouTubeLookups *prometheus.CounterVec
	CacheLookups   *prometheus.CounterVec
}

// New 在 namespace 下创建并注册全部指标。
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RollUps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stats_rollups_total",
				Help:      "Channel statistics roll-ups by period and outcome",
			},
			[]string{"period", "outcome"},
		),
		RollUpLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stats_rollup_duration_seconds",
				Help:      "Latency of a single channel roll-up",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"period"},
		),
		BatchRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stats_batch_runs_total",
				Help:      "Batch roll-ups over all channels",
			},
			[]string{"period"},
		),
		BatchFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stats_batch_channel_failures_total",
				Help:      "Channels whose roll-up failed or was skipped inside a batch",
			},
			[]string{"period", "reason"},
		),
		Clicks: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "channel_clicks_total",
				Help:      "Recorded channel support clicks",
			},
		),
		YouTubeLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "youtube_lookups_total",
				Help:      "YouTube Data API lookups by outcome",
			},
			[]string{"outcome"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "metadata_cache_lookups_total",
				Help:      "Channel metadata cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveRollUp 记录一次单频道统计。
func (m *Metrics) ObserveRollUp(period, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.RollUps.WithLabelValues(period, outcome).Inc()
	m.RollUpLatency.WithLabelValues(period).Observe(took.Seconds())
}

// ObserveBatch 记录一次已完成的全量统计。
func (m *Metrics) ObserveBatch(period string, failed, skipped int) {
	if m == nil {
		return
	}
	m.BatchRuns.WithLabelValues(period).Inc()
	if failed > 0 {
		m.BatchFailures.WithLabelValues(period, "error").Add(float64(failed))
	}
	if skipped > 0 {
		m.BatchFailures.WithLabelValues(period, "not_found").Add(float64(skipped))
	}
}

// IncClick 累计一次点击。
func (m *Metrics) IncClick() {
	if m == nil {
		return
	}
	m.Clicks.Inc()
}

// ObserveYouTube 记录 YouTube 查询结果。
func (m *Metrics) ObserveYouTube(outcome string) {
	if m == nil {
		return
	}
	m.YouTubeLookups.WithLabelValues(outcome).Inc()
}

// ObserveCache 记录元数据缓存命中或未命中。
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// Handler 返回指标端点的 HTTP 处理器。
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
