package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/atikulmunna/logsift/internal/model"
)

const rateWindow = 5 * time.Second

// Stats holds a point-in-time snapshot of service-wide analysis metrics.
type Stats struct {
	Uptime         string           `json:"uptime"`
	Analyses       int64            `json:"analyses"`
	Failed         int64            `json:"failed"`
	Records        int64            `json:"records"`
	MalformedLines int64            `json:"malformed_lines"`
	APS            float64          `json:"analyses_per_second"`
	KindCounts     map[string]int64 `json:"kind_counts"`
	Severity       SeverityCounts   `json:"severity"`
	Dropped        int64            `json:"dropped"`
	Stored         int              `json:"stored"`
}

// Aggregator subscribes to the Hub and folds every finished analysis into Stats.
type Aggregator struct {
	mu         sync.RWMutex
	startTime  time.Time
	analyses   int64
	failed     int64
	records    int64
	malformed  int64
	kindCounts map[string]int64
	severity   SeverityCounts
	window     []time.Time // completion times for the APS calculation
	dropped    func() int64
	stored     func() int
	analysesCh <-chan model.Analysis
}

// New creates an Aggregator reading from a Hub subscriber channel.
// droppedFn and storedFn provide live values from the Hub and the Store.
func New(analyses <-chan model.Analysis, droppedFn func() int64, storedFn func() int) *Aggregator {
	return &Aggregator{
		startTime:  time.Now(),
		kindCounts: make(map[string]int64),
		dropped:    droppedFn,
		stored:     storedFn,
		analysesCh: analyses,
	}
}

// Snapshot returns the current metrics.
func (a *Aggregator) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	counts := make(map[string]int64, len(a.kindCounts))
	for k, v := range a.kindCounts {
		counts[k] = v
	}

	cutoff := time.Now().Add(-rateWindow)
	var recent int
	for _, t := range a.window {
		if t.After(cutoff) {
			recent++
		}
	}

	return Stats{
		Uptime:         time.Since(a.startTime).Truncate(time.Second).String(),
		Analyses:       a.analyses,
		Failed:         a.failed,
		Records:        a.records,
		MalformedLines: a.malformed,
		APS:            float64(recent) / rateWindow.Seconds(),
		KindCounts:     counts,
		Severity:       a.severity,
		Dropped:        a.dropped(),
		Stored:         a.stored(),
	}
}

// Start consumes analyses until the context is cancelled or the channel closes.
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case an, ok := <-a.analysesCh:
			if !ok {
				return
			}
			a.record(an)
		case <-ticker.C:
			a.prune()
		}
	}
}

func (a *Aggregator) record(an model.Analysis) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.analyses++
	a.window = append(a.window, time.Now())
	if an.Failed() {
		a.failed++
		return
	}

	a.records += int64(an.Report.TotalRecords)
	a.malformed += int64(an.Report.MalformedCount)
	for _, anomaly := range an.Report.Anomalies {
		a.kindCounts[anomaly.Kind]++
	}
	s := Summarize(an.Report)
	a.severity.High += s.High
	a.severity.Medium += s.Medium
	a.severity.Low += s.Low
}

// prune drops completion times older than the rate window.
func (a *Aggregator) prune() {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().Add(-rateWindow)
	i := 0
	for _, t := range a.window {
		if t.After(cutoff) {
			a.window[i] = t
			i++
		}
	}
	a.window = a.window[:i]
}
