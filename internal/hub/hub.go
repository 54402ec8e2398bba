package hub

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atikulmunna/logsift/internal/analyzer"
	"github.com/atikulmunna/logsift/internal/metrics"
	"github.com/atikulmunna/logsift/internal/model"
)

const subscriberBuffer = 256

// Hub receives uploads, analyzes them, and broadcasts each Analysis to all subscribers.
type Hub struct {
	analyzer    *analyzer.Analyzer
	input       <-chan model.Upload
	log         *zap.Logger
	mu          sync.RWMutex
	subscribers []chan model.Analysis
	dropped     int64
}

// New creates a Hub that reads from input and analyzes with a.
func New(input <-chan model.Upload, a *analyzer.Analyzer, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		analyzer: a,
		input:    input,
		log:      log,
	}
}

// Subscribe returns a buffered channel that will receive finished analyses.
// Each subscriber gets a copy of every analysis.
func (h *Hub) Subscribe() <-chan model.Analysis {
	ch := make(chan model.Analysis, subscriberBuffer)
	h.mu.Lock()
	h.subscribers = append(h.subscribers, ch)
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (h *Hub) Unsubscribe(sub <-chan model.Analysis) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, ch := range h.subscribers {
		if ch == sub {
			close(ch)
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			return
		}
	}
}

// Dropped returns the total number of analyses dropped due to slow consumers.
func (h *Hub) Dropped() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Start reads uploads, analyzes them and broadcasts the results.
// Blocks until the context is cancelled or the input channel is closed.
func (h *Hub) Start(ctx context.Context) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-h.input:
			if !ok {
				return
			}
			h.Publish(h.Run(up))
		}
	}
}

// Run analyzes a single upload with the hub's analyzer.
// Analysis errors are carried on the result.
func (h *Hub) Run(up model.Upload) model.Analysis {
	return h.RunWith(h.analyzer, up)
}

// RunWith analyzes up with a instead of the hub's own analyzer.
func (h *Hub) RunWith(a *analyzer.Analyzer, up model.Upload) model.Analysis {
	start := time.Now()
	an := model.Analysis{
		ID:        up.ID,
		Source:    up.Source,
		Profile:   a.Profile(),
		CreatedAt: start.UTC(),
	}
	defer func() { metrics.ObserveAnalysis(an, len(up.Content), time.Since(start)) }()

	report, err := a.Analyze(up.Content)
	if err != nil {
		an.Error = err.Error()
		h.log.Warn("analysis failed", zap.String("id", up.ID), zap.String("source", up.Source), zap.Error(err))
		return an
	}
	an.Report = report
	h.log.Debug("analysis finished",
		zap.String("id", up.ID),
		zap.String("source", up.Source),
		zap.Int("records", report.TotalRecords),
		zap.Int("malformed", report.MalformedCount),
		zap.Int("anomalies", len(report.Anomalies)),
	)
	return an
}

// Publish sends an analysis to every subscriber.
// If a subscriber's channel is full, the analysis is dropped for that subscriber.
func (h *Hub) Publish(an model.Analysis) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- an:
		default:
			h.dropped++
			h.log.Warn("dropped analysis for slow consumer", zap.String("id", an.ID), zap.Int64("total_dropped", h.dropped))
		}
	}
}

// closeAll closes all subscriber channels.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = nil
}
