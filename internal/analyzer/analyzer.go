// Package analyzer runs one analysis pass: parse, then rule and statistical
// detection over the same records, merged into a single report.
package analyzer

import (
	"errors"
	"fmt"

	"github.com/atikulmunna/logsift/internal/detector"
	"github.com/atikulmunna/logsift/internal/model"
	"github.com/atikulmunna/logsift/internal/parser"
)

var (
	// ErrEmptyInput is returned when there is no log content at all.
	ErrEmptyInput = errors.New("log content is empty")
	// ErrDetector wraps a failure raised inside a detector.
	ErrDetector = errors.New("detector failed")
)

// Analyzer is immutable once built and safe for concurrent use.
type Analyzer struct {
	name       string
	parser     parser.Parser
	rules      detector.Ruleset
	statistics bool
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithProfile sets both layout and rules from p.
func WithProfile(p Profile) Option {
	return func(a *Analyzer) {
		a.name = p.Name
		a.parser = parser.New(p.Layout)
		a.rules = p.Rules
	}
}

// WithLayout overrides the field layout.
func WithLayout(l parser.Layout) Option {
	return func(a *Analyzer) { a.parser = parser.New(l) }
}

// WithRules overrides the rule table.
func WithRules(rs detector.Ruleset) Option {
	return func(a *Analyzer) { a.rules = rs }
}

// WithoutStatistics disables the high-traffic-user test.
func WithoutStatistics() Option {
	return func(a *Analyzer) { a.statistics = false }
}

// New returns an Analyzer using GenericProfile unless options say otherwise.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{statistics: true}
	WithProfile(GenericProfile)(a)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Profile returns the name of the profile the analyzer was built from.
func (a *Analyzer) Profile() string { return a.name }

// Analyze parses raw and runs every detector over the result. Rule anomalies
// come first, per record in rule order, followed by statistical anomalies.
func (a *Analyzer) Analyze(raw string) (report model.Report, err error) {
	if len(raw) == 0 {
		return model.Report{}, ErrEmptyInput
	}

	defer func() {
		if r := recover(); r != nil {
			report = model.Report{}
			err = fmt.Errorf("%w: %v", ErrDetector, r)
		}
	}()

	parsed := a.parser.Parse(raw)

	anomalies := a.rules.Run(parsed.Records)
	if a.statistics {
		anomalies = append(anomalies, detector.DetectHighTrafficUsers(parsed.Records)...)
	}

	return model.Report{
		TotalRecords:   len(parsed.Records),
		MalformedCount: parsed.Malformed,
		HeaderLines:    parsed.HeaderLines,
		MalformedLines: parsed.MalformedLines,
		Anomalies:      anomalies,
	}, nil
}

var defaultAnalyzer = New()

// Analyze runs the default (generic) analyzer.
func Analyze(raw string) (model.Report, error) {
	return defaultAnalyzer.Analyze(raw)
}
