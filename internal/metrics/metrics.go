package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/atikulmunna/logsift/internal/model"
)

// Analysis service metrics
var (
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsift_analyses_total",
			Help: "Total number of analyses run",
		},
		[]string{"profile", "status"}, // status: ok/error
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logsift_analysis_duration_seconds",
			Help:    "Analysis duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"profile"},
	)

	RecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logsift_records_total",
			Help: "Total number of well-formed log records parsed",
		},
	)

	MalformedLinesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logsift_malformed_lines_total",
			Help: "Total number of log lines rejected as malformed",
		},
	)

	AnomaliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsift_anomalies_total",
			Help: "Total number of anomalies detected",
		},
		[]string{"kind", "severity"},
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logsift_upload_bytes",
			Help:    "Size of analyzed documents in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8), // 1KiB to 16MiB
		},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logsift_websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)
)

// ObserveAnalysis records one finished analysis.
func ObserveAnalysis(an model.Analysis, size int, took time.Duration) {
	status := "ok"
	if an.Failed() {
		status = "error"
	}
	AnalysesTotal.WithLabelValues(an.Profile, status).Inc()
	AnalysisDuration.WithLabelValues(an.Profile).Observe(took.Seconds())
	UploadBytes.Observe(float64(size))
	if an.Failed() {
		return
	}

	RecordsTotal.Add(float64(an.Report.TotalRecords))
	MalformedLinesTotal.Add(float64(an.Report.MalformedCount))
	for _, a := range an.Report.Anomalies {
		AnomaliesTotal.WithLabelValues(a.Kind, string(a.Severity)).Inc()
	}
}
