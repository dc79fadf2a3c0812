package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	attendanceMarkedTotal *prometheus.CounterVec
	sessionsExpiredTotal  *prometheus.CounterVec
	absenteesBackfilled   prometheus.Counter
	liveClients           prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attendance_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		attendanceMarkedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_marked_total",
			Help: "Attendance records written, by status and source.",
		}, []string{"status", "source"})

		sessionsExpiredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sessions_expired_total",
			Help: "Sessions closed, by trigger.",
		}, []string{"trigger"})

		absenteesBackfilled = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendance_absentees_backfilled_total",
			Help: "Absent records inserted by session close-out.",
		})

		liveClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "attendance_live_clients",
			Help: "Websocket clients subscribed to live check-in feeds.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			attendanceMarkedTotal,
			sessionsExpiredTotal,
			absenteesBackfilled,
			liveClients,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// AttendanceMarked counts attendance rows by status (present/absent) and source (qr/manual/closeout).
func AttendanceMarked() *prometheus.CounterVec {
	RegisterMetrics()
	return attendanceMarkedTotal
}

// SessionsExpired counts session closures by trigger (explicit/lazy).
func SessionsExpired() *prometheus.CounterVec {
	RegisterMetrics()
	return sessionsExpiredTotal
}

// AbsenteesBackfilled counts absent rows inserted during close-out.
func AbsenteesBackfilled() prometheus.Counter {
	RegisterMetrics()
	return absenteesBackfilled
}

// LiveClients tracks open live feed connections.
func LiveClients() prometheus.Gauge {
	RegisterMetrics()
	return liveClients
}
