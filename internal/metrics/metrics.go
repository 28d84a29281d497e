// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordPricePointsDerived(count int)
	RecordDeriveSkipped(reason string)
	RecordDeriveFailure()
	RecordGeocodeResult(found bool)
	RecordOAuthCallback(outcome string)
	RecordHTTPStatus(statusCode int)
}

// 価格観測データ導出のスキップ理由。
const (
	SkipReasonNoItems    = "no_items"
	SkipReasonNoStore    = "no_store"
	SkipReasonNoLocation = "no_location"
	SkipReasonNoValid    = "no_valid_items"
)

// OAuthコールバックの結果。
const (
	OAuthOutcomeSuccess     = "success"
	OAuthOutcomeMissingCode = "missing_code"
	OAuthOutcomeFailed      = "failed"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	pricePointsDerived prometheus.Counter
	deriveSkipped      *prometheus.CounterVec
	deriveFail         prometheus.Counter
	geocodeResult      *prometheus.CounterVec
	oauthCallback      *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pricePointsDerived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finmemory_price_points_derived_total",
			Help: "導出された価格観測データの合計数",
		}),
		deriveSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finmemory_derive_skipped_total",
			Help: "理由別の価格観測データ導出スキップ数",
		}, []string{"reason"}),
		deriveFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finmemory_derive_fail_total",
			Help: "価格観測データ書き込み失敗の合計数",
		}),
		geocodeResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finmemory_geocode_result_total",
			Help: "結果有無別のジオコーディング呼び出し数",
		}, []string{"found"}),
		oauthCallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finmemory_oauth_callback_total",
			Help: "結果別のOAuthコールバック処理数",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finmemory_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.pricePointsDerived,
		c.deriveSkipped,
		c.deriveFail,
		c.geocodeResult,
		c.oauthCallback,
		c.httpStatus,
	)

	return c
}

// RecordPricePointsDerived は導出された価格観測データ数を記録する。
func (c *Collector) RecordPricePointsDerived(count int) {
	c.pricePointsDerived.Add(float64(count))
}

// RecordDeriveSkipped は導出スキップを理由付きで記録する。
func (c *Collector) RecordDeriveSkipped(reason string) {
	c.deriveSkipped.WithLabelValues(reason).Inc()
}

// RecordDeriveFailure は価格観測データの書き込み失敗を記録する。
func (c *Collector) RecordDeriveFailure() {
	c.deriveFail.Inc()
}

// RecordGeocodeResult はジオコーディングの結果有無を記録する。
func (c *Collector) RecordGeocodeResult(found bool) {
	c.geocodeResult.WithLabelValues(strconv.FormatBool(found)).Inc()
}

// RecordOAuthCallback はOAuthコールバックの結果を記録する。
func (c *Collector) RecordOAuthCallback(outcome string) {
	c.oauthCallback.WithLabelValues(outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
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

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
