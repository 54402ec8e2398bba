package aggregator

import (
	"sort"
	"time"

	"github.com/atikulmunna/logsift/internal/model"
)

// SeverityCounts is the number of anomalies per severity.
type SeverityCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// TimeBucket is the anomaly count for one minute.
type TimeBucket struct {
	Time  time.Time `json:"time"`
	Count int       `json:"count"`
}

// Summary bundles the dashboard views of a single report.
type Summary struct {
	Severity SeverityCounts `json:"severity"`
	Kinds    map[string]int `json:"kinds"`
	Timeline []TimeBucket   `json:"timeline"`
}

// Summarize counts anomalies by severity. Unknown or missing severities are ignored.
func Summarize(report model.Report) SeverityCounts {
	var c SeverityCounts
	for _, a := range report.Anomalies {
		switch a.Severity {
		case model.SeverityHigh:
			c.High++
		case model.SeverityMedium:
			c.Medium++
		case model.SeverityLow:
			c.Low++
		}
	}
	return c
}

// Timeline groups anomalies by the minute of their log entry timestamp.
// Anomalies without an entry or timestamp are skipped. Buckets are sorted.
func Timeline(anomalies []model.Anomaly) []TimeBucket {
	counts := make(map[time.Time]int)
	for _, a := range anomalies {
		if a.LogEntry == nil || a.LogEntry.Time.IsZero() {
			continue
		}
		counts[a.LogEntry.Time.UTC().Truncate(time.Minute)]++
	}

	buckets := make([]TimeBucket, 0, len(counts))
	for t, n := range counts {
		buckets = append(buckets, TimeBucket{Time: t, Count: n})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Time.Before(buckets[j].Time) })
	return buckets
}

// SummaryOf builds the full Summary for a report.
func SummaryOf(report model.Report) Summary {
	kinds := make(map[string]int)
	for _, a := range report.Anomalies {
		kinds[a.Kind]++
	}
	return Summary{
		Severity: Summarize(report),
		Kinds:    kinds,
		Timeline: Timeline(report.Anomalies),
	}
}
