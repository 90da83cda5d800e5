// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// APIクライアントやハンドラー層から利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordUpstreamRequest(endpoint string, statusCode int)
	RecordUpstreamLatency(endpoint string, duration time.Duration)
	RecordUpstreamUnreachable(endpoint string)
	RecordLoginFailure()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus          *prometheus.CounterVec
	upstreamRequests    *prometheus.CounterVec
	upstreamLatency     *prometheus.HistogramVec
	upstreamUnreachable *prometheus.CounterVec
	loginFailures       prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockman_upstream_requests_total",
			Help: "バックエンドAPIへのリクエスト数（エンドポイント・ステータス別）",
		}, []string{"endpoint", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockman_upstream_latency_seconds",
			Help:    "バックエンドAPIのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		upstreamUnreachable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockman_upstream_unreachable_total",
			Help: "バックエンドAPIへの接続失敗数",
		}, []string{"endpoint"}),
		loginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockman_login_failures_total",
			Help: "ログイン失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.upstreamRequests,
		c.upstreamLatency,
		c.upstreamUnreachable,
		c.loginFailures,
	)

	return c
}

// RecordHTTPStatus は自サーバーのHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamRequest はバックエンドAPIへのリクエスト結果を記録する。
func (c *Collector) RecordUpstreamRequest(endpoint string, statusCode int) {
	c.upstreamRequests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamLatency はバックエンドAPIのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(endpoint string, duration time.Duration) {
	c.upstreamLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordUpstreamUnreachable はバックエンドAPIへの接続失敗を記録する。
func (c *Collector) RecordUpstreamUnreachable(endpoint string) {
	c.upstreamUnreachable.WithLabelValues(endpoint).Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFailures.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
