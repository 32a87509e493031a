package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics は座席在庫エンジンのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約試行の総数（status: confirmed, sold_out, seat_conflict, expired, error）
	BookingsTotal *prometheus.CounterVec

	// 仮押さえの総数（status: held, released, expired）
	HoldsTotal *prometheus.CounterVec

	// 仮押さえから確定/解放までの時間
	HoldDuration prometheus.Histogram

	// 現在有効な仮押さえ数
	ActiveHolds prometheus.Gauge

	// 返金の総数（tier: early, standard, late, final, override）
	RefundsTotal *prometheus.CounterVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		BookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookings_total",
				Help: "Total number of booking attempts",
			},
			[]string{"status"},
		),
		HoldsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seat_holds_total",
				Help: "Total number of seat hold operations",
			},
			[]string{"status"},
		),
		HoldDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "seat_hold_duration_seconds",
				Help:    "Time between hold and commit/release",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
			},
		),
		ActiveHolds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_seat_holds",
				Help: "Current number of active seat holds",
			},
		),
		RefundsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refunds_total",
				Help: "Total number of cancellation refunds by tier",
			},
			[]string{"tier"},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BookingsTotal,
		m.HoldsTotal,
		m.HoldDuration,
		m.ActiveHolds,
		m.RefundsTotal,
	)

	return m
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
