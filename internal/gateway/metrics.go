package gateway

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider呼び出しの結果ラベル。
const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// metrics はゲートウェイのPrometheusメトリクス。
// Serverごとにレジストリを持つため、テストで複数のServerを作っても衝突しない。
type metrics struct {
	registry         *prometheus.Registry
	upstreamCalls    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	sessionChecks    *prometheus.CounterVec
	loginThrottled   prometheus.Counter
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &metrics{
		registry: reg,
		upstreamCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sessiongate_upstream_requests_total",
			Help: "Identity Providerへのリクエスト数（操作と結果別）",
		}, []string{"operation", "outcome"}),
		upstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sessiongate_upstream_request_duration_seconds",
			Help:    "Identity Providerへのリクエストの所要時間",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		sessionChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sessiongate_session_checks_total",
			Help: "セッション検証の回数（結果別）",
		}, []string{"result"}),
		loginThrottled: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessiongate_login_throttled_total",
			Help: "試行回数制限で拒否したログインの数",
		}),
	}
}

// observeUpstream はProvider呼び出し1回分の結果と所要時間を記録する。
func (m *metrics) observeUpstream(operation, outcome string, started time.Time) {
	m.upstreamCalls.WithLabelValues(operation, outcome).Inc()
	m.upstreamDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *metrics) observeSession(result string) {
	m.sessionChecks.WithLabelValues(result).Inc()
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
