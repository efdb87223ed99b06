// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordPostsIngested(count int)
	RecordAlertFired(triggerKind string)
	RecordDispatchFailure(channel string)
	RecordEmbeddingGenerated()
	RecordProviderFailure(provider string)
	RecordDigestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	postsIngested    prometheus.Counter
	alertsFired      *prometheus.CounterVec
	dispatchFailed   *prometheus.CounterVec
	embeddings       prometheus.Counter
	providerFailures *prometheus.CounterVec
	digestLatency    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		postsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pinglet_posts_ingested_total",
			Help: "取り込まれたポストの合計数",
		}),
		alertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pinglet_alerts_fired_total",
			Help: "発火種別ごとのアラート発火数",
		}, []string{"trigger_kind"}),
		dispatchFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pinglet_dispatch_failed_total",
			Help: "チャネル別の通知送信失敗数",
		}, []string{"channel"}),
		embeddings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pinglet_embeddings_generated_total",
			Help: "生成された埋め込みベクトルの合計数",
		}),
		providerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pinglet_provider_failures_total",
			Help: "外部プロバイダ別の呼び出し失敗数",
		}, []string{"provider"}),
		digestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pinglet_digest_latency_seconds",
			Help:    "ダイジェスト生成のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.postsIngested,
		c.alertsFired,
		c.dispatchFailed,
		c.embeddings,
		c.providerFailures,
		c.digestLatency,
	)

	return c
}

// RecordPostsIngested は取り込まれたポスト数を記録する。
func (c *Collector) RecordPostsIngested(count int) {
	c.postsIngested.Add(float64(count))
}

// RecordAlertFired はアラート発火を記録する。
func (c *Collector) RecordAlertFired(triggerKind string) {
	c.alertsFired.WithLabelValues(triggerKind).Inc()
}

// RecordDispatchFailure は通知送信失敗を記録する。
func (c *Collector) RecordDispatchFailure(channel string) {
	c.dispatchFailed.WithLabelValues(channel).Inc()
}

// RecordEmbeddingGenerated は埋め込みベクトル生成を記録する。
func (c *Collector) RecordEmbeddingGenerated() {
	c.embeddings.Inc()
}

// RecordProviderFailure は外部プロバイダの呼び出し失敗を記録する。
func (c *Collector) RecordProviderFailure(provider string) {
	c.providerFailures.WithLabelValues(provider).Inc()
}

// RecordDigestLatency はダイジェスト生成のレイテンシを記録する。
func (c *Collector) RecordDigestLatency(duration time.Duration) {
	c.digestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
