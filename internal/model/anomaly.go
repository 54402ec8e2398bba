package model

// Severity buckets anomalies for summaries and dashboards.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// Anomaly kinds emitted by the built-in detectors.
const (
	KindLargeDownload    = "Large Download"
	KindBlockedRequest   = "Blocked Request"
	KindHighRiskCategory = "High-Risk Category"
	KindHighTrafficUser  = "High Traffic User"
	KindThreatDetected   = "Threat Detected"
)

// Anomaly is a single detection result. Everything a reader needs is copied
// into it at creation; LogEntry is a copy, not a reference into the parse.
type Anomaly struct {
	Kind        string     `json:"kind"`
	Description string     `json:"description"`
	Confidence  float64    `json:"confidence"`
	Severity    Severity   `json:"severity,omitempty"`
	Line        int        `json:"line,omitempty"`
	LogEntry    *LogRecord `json:"logEntry,omitempty"`
}
