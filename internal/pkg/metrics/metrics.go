package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
// nil レシーバーのメソッド呼び出しは何もしない
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約操作の総数（operation, status）
	BookingsTotal *prometheus.CounterVec

	// 座席ロックの待機時間（status: acquired, timeout, interrupted）
	SeatLockWait *prometheus.HistogramVec

	// 存在する座席ロックエントリ数
	SeatLockEntries prometheus.Gauge

	// 有効な一時保持の数（kind: reservation, lock）
	ActiveHolds *prometheus.GaugeVec

	// 重複リクエストとして結果を共有した回数
	DedupSharedTotal prometheus.Counter

	// 予約確定後の座席・空席数更新に失敗した回数（step）
	InconsistenciesTotal *prometheus.CounterVec

	// ワーカープールが投入を拒否した回数
	PoolRejectedTotal prometheus.Counter

	// ワーカープールの容量（kind: workers, queue）
	PoolCapacity *prometheus.GaugeVec
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
				Help: "Total number of seat booking operations",
			},
			[]string{"operation", "status"},
		),
		SeatLockWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seat_lock_wait_seconds",
				Help:    "Time spent waiting for a per-seat lock",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
			},
			[]string{"status"},
		),
		SeatLockEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "seat_lock_entries",
				Help: "Current number of live per-seat lock entries",
			},
		),
		ActiveHolds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "active_holds",
				Help: "Current number of armed seat holds",
			},
			[]string{"kind"},
		),
		DedupSharedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dedup_shared_total",
				Help: "Total number of booking requests served by an in-flight identical request",
			},
		),
		InconsistenciesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_inconsistencies_total",
				Help: "Total number of best-effort seat or counter updates that failed after a booking change was committed",
			},
			[]string{"step"},
		),
		PoolRejectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "worker_pool_rejected_total",
				Help: "Total number of operations rejected because the worker pool was saturated",
			},
		),
		PoolCapacity: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "worker_pool_capacity",
				Help: "Configured number of booking workers and queue slots",
			},
			[]string{"kind"},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BookingsTotal,
		m.SeatLockWait,
		m.SeatLockEntries,
		m.ActiveHolds,
		m.DedupSharedTotal,
		m.InconsistenciesTotal,
		m.PoolRejectedTotal,
		m.PoolCapacity,
	)

	return m
}

// ObserveBooking は予約操作の結果を記録する
func (m *Metrics) ObserveBooking(operation, status string) {
	if m == nil {
		return
	}
	m.BookingsTotal.WithLabelValues(operation, status).Inc()
}

// ObserveLockWait は座席ロックの待機時間を記録する
func (m *Metrics) ObserveLockWait(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.SeatLockWait.WithLabelValues(status).Observe(d.Seconds())
}

// SetLockEntries は座席ロックエントリ数を記録する
func (m *Metrics) SetLockEntries(n int) {
	if m == nil {
		return
	}
	m.SeatLockEntries.Set(float64(n))
}

// SetActiveHolds は一時保持の数を種類別に記録する
func (m *Metrics) SetActiveHolds(counts map[string]int) {
	if m == nil {
		return
	}
	for kind, n := range counts {
		m.ActiveHolds.WithLabelValues(kind).Set(float64(n))
	}
}

// IncDedupShared は共有された重複リクエストを数える
func (m *Metrics) IncDedupShared() {
	if m == nil {
		return
	}
	m.DedupSharedTotal.Inc()
}

// IncInconsistency は補償できなかった更新を数える
func (m *Metrics) IncInconsistency(step string) {
	if m == nil {
		return
	}
	m.InconsistenciesTotal.WithLabelValues(step).Inc()
}

// IncPoolRejected はワーカープールの拒否を数える
func (m *Metrics) IncPoolRejected() {
	if m == nil {
		return
	}
	m.PoolRejectedTotal.Inc()
}

// SetPoolCapacity はワーカー数とキュー容量を記録する
func (m *Metrics) SetPoolCapacity(workers, queueSize int) {
	if m == nil {
		return
	}
	m.PoolCapacity.WithLabelValues("workers").Set(float64(workers))
	m.PoolCapacity.WithLabelValues("queue").Set(float64(queueSize))
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
