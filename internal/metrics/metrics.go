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
// 認証サービス、HTTPミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordOTPIssued(flow string)
	RecordOTPVerify(result string)
	RecordOAuthLogin(outcome string)
	RecordDeliveryFailure()
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordOTPCleanup(deleted int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	otpIssued       *prometheus.CounterVec
	otpVerify       *prometheus.CounterVec
	oauthLogin      *prometheus.CounterVec
	deliveryFail    prometheus.Counter
	httpStatus      *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
	otpCleanupTotal prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		otpIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notekeeper_otp_issued_total",
			Help: "発行に成功したOTPの数（signup/login別）",
		}, []string{"flow"}),
		otpVerify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notekeeper_otp_verify_total",
			Help: "OTP検証の結果別の数",
		}, []string{"result"}),
		oauthLogin: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notekeeper_oauth_login_total",
			Help: "Googleログインの結果別の数（existing/linked/created/failed）",
		}, []string{"outcome"}),
		deliveryFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notekeeper_otp_delivery_fail_total",
			Help: "OTPメール配送失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notekeeper_http_requests_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notekeeper_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		otpCleanupTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notekeeper_otp_cleanup_deleted_total",
			Help: "クリーンアップジョブで削除した期限切れOTPの合計数",
		}),
	}

	reg.MustRegister(
		c.otpIssued,
		c.otpVerify,
		c.oauthLogin,
		c.deliveryFail,
		c.httpStatus,
		c.httpLatency,
		c.otpCleanupTotal,
	)

	return c
}

// RecordOTPIssued はOTP発行を記録する。
func (c *Collector) RecordOTPIssued(flow string) {
	c.otpIssued.WithLabelValues(flow).Inc()
}

// RecordOTPVerify はOTP検証結果を記録する。
func (c *Collector) RecordOTPVerify(result string) {
	c.otpVerify.WithLabelValues(result).Inc()
}

// RecordOAuthLogin はGoogleログインの結果を記録する。
func (c *Collector) RecordOAuthLogin(outcome string) {
	c.oauthLogin.WithLabelValues(outcome).Inc()
}

// RecordDeliveryFailure はOTPメール配送失敗を記録する。
func (c *Collector) RecordDeliveryFailure() {
	c.deliveryFail.Inc()
}

// RecordHTTPRequest はHTTPレスポンスのステータスと処理時間を記録する。
// routeにはchiのルートパターンを渡し、IDを含む生のパスは渡さない。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpStatus.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordOTPCleanup はクリーンアップで削除したOTP数を記録する。
func (c *Collector) RecordOTPCleanup(deleted int64) {
	c.otpCleanupTotal.Add(float64(deleted))
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordOTPIssued(string) {}
func (Nop) RecordOTPVerify(string) {}
func (Nop) RecordOAuthLogin(string) {}
func (Nop) RecordDeliveryFailure() {}
func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
func (Nop) RecordOTPCleanup(int64) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface checks
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
