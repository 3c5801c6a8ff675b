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
// スケジューラ、ワーカー、通知処理から利用する。
type MetricsCollector interface {
	RecordSchedulerCycle(scheduled int)
	RecordIngestSuccess()
	RecordIngestFailure()
	RecordTerminalFailure()
	RecordNotification()
	RecordIngestLatency(duration time.Duration)
	RecordEntries(downloaded, ignored int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	schedulerCycles  prometheus.Counter
	feedsScheduled   prometheus.Counter
	ingestSuccess    prometheus.Counter
	ingestFailure    prometheus.Counter
	terminalFailures prometheus.Counter
	notifications    prometheus.Counter
	ingestLatency    prometheus.Histogram
	entriesNew       prometheus.Counter
	entriesIgnored   prometheus.Counter
	httpRequests     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		schedulerCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedcloud_scheduler_cycles_total",
			Help: "スケジューラサイクルの合計実行数",
		}),
		feedsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedcloud_feeds_scheduled_total",
			Help: "更新タスクとして投入されたフィードの合計数",
		}),
		ingestSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedcloud_ingest_success_total",
			Help: "フィード取り込み成功の合計数",
		}),
		ingestFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedcloud_ingest_failure_total",
			Help: "フィード取り込み失敗の合計数",
		}),
		terminalFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedcloud_terminal_failures_total",
			Help: "恒久的失敗に遷移したフィードの合計数",
		}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedcloud_failure_notifications_total",
			Help: "送信された失敗通知の合計数",
		}),
		ingestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feedcloud_ingest_latency_seconds",
			Help:    "フィード取り込みのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		entriesNew: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedcloud_entries_downloaded_total",
			Help: "新規保存された記事の合計数",
		}),
		entriesIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedcloud_entries_ignored_total",
			Help: "重複により無視された記事の合計数",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedcloud_http_requests_total",
			Help: "処理されたHTTPリクエストの合計数",
		}, []string{"method", "code"}),
	}

	reg.MustRegister(
		c.schedulerCycles,
		c.feedsScheduled,
		c.ingestSuccess,
		c.ingestFailure,
		c.terminalFailures,
		c.notifications,
		c.ingestLatency,
		c.entriesNew,
		c.entriesIgnored,
		c.httpRequests,
	)

	return c
}

// RecordSchedulerCycle はスケジューラサイクル1回の実行と投入フィード数を記録する。
func (c *Collector) RecordSchedulerCycle(scheduled int) {
	c.schedulerCycles.Inc()
	c.feedsScheduled.Add(float64(scheduled))
}

// RecordIngestSuccess は取り込み成功を記録する。
func (c *Collector) RecordIngestSuccess() {
	c.ingestSuccess.Inc()
}

// RecordIngestFailure は取り込み失敗を記録する。
func (c *Collector) RecordIngestFailure() {
	c.ingestFailure.Inc()
}

// RecordTerminalFailure は恒久的失敗への遷移を記録する。
func (c *Collector) RecordTerminalFailure() {
	c.terminalFailures.Inc()
}

// RecordNotification は失敗通知の送信を記録する。
func (c *Collector) RecordNotification() {
	c.notifications.Inc()
}

// RecordIngestLatency は取り込みのレイテンシを記録する。
func (c *Collector) RecordIngestLatency(duration time.Duration) {
	c.ingestLatency.Observe(duration.Seconds())
}

// RecordHTTPRequest はAPIリクエスト1件の処理結果を記録する。
// ラベルのカーディナリティを抑えるためパスは含めない。
func (c *Collector) RecordHTTPRequest(method string, statusCode int) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}

// RecordEntries は保存・無視された記事数を記録する。
func (c *Collector) RecordEntries(downloaded, ignored int) {
	c.entriesNew.Add(float64(downloaded))
	c.entriesIgnored.Add(float64(ignored))
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
