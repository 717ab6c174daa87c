package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Record kinds used as label values.
const (
	KindFull   = "full"
	KindUpdate = "update"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalogsync",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "catalogsync",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	recordsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalogsync",
			Subsystem: "transmit",
			Name:      "records_total",
			Help:      "Records produced by the transmitter.",
		},
		[]string{"side", "kind"},
	)
	entriesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalogsync",
			Subsystem: "transmit",
			Name:      "entries_total",
			Help:      "Entries carried by produced records, by change type.",
		},
		[]string{"side", "change"},
	)
	recordsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalogsync",
			Subsystem: "receive",
			Name:      "records_total",
			Help:      "Records applied by the receiver.",
		},
		[]string{"side", "kind"},
	)
	syncErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalogsync",
			Subsystem: "receive",
			Name:      "sync_errors_total",
			Help:      "Records rejected in a way that requires a full resync.",
		},
		[]string{"side", "reason"},
	)
	recordBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "catalogsync",
			Subsystem: "wire",
			Name:      "record_bytes",
			Help:      "Encoded record size in bytes.",
			Buckets:   prometheus.ExponentialBuckets(8, 2, 12),
		},
		[]string{"kind"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, recordsSent, entriesSent, recordsApplied, syncErrors, recordBytes)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordTransmit(side, kind string, added, changed int) {
	RegisterMetrics()
	recordsSent.WithLabelValues(side, kind).Inc()
	entriesSent.WithLabelValues(side, "added").Add(float64(added))
	entriesSent.WithLabelValues(side, "changed").Add(float64(changed))
}

func RecordApply(side, kind string) {
	RegisterMetrics()
	recordsApplied.WithLabelValues(side, kind).Inc()
}

func RecordSyncError(side, reason string) {
	RegisterMetrics()
	syncErrors.WithLabelValues(side, reason).Inc()
}

func RecordBytes(kind string, n int) {
	RegisterMetrics()
	recordBytes.WithLabelValues(kind).Observe(float64(n))
}
