// Package detector holds the fixed anomaly policies applied to parsed records:
// per-record rules and the per-user traffic outlier test.
package detector

import (
	"fmt"
	"math"
	"strconv"

	"github.com/atikulmunna/logsift/internal/model"
)

const (
	// LargeDownloadThreshold is the byte count a single response must exceed.
	LargeDownloadThreshold = 10_000_000

	blockedConfidence    = 0.9
	highRiskConfidence   = 0.7
	threatConfidence     = 0.95
	blockedActionGeneric = "BLOCK"
)

// HighRiskCategories is the base category denylist.
var HighRiskCategories = []string{
	"Spyware/Adware",
	"Phishing",
	"Malicious Sites",
	"Botnets",
	"Suspicious Destinations",
}

// Rule is one declaratively described per-record detector.
type Rule struct {
	Kind     string
	Severity model.Severity
	Detect   func(model.LogRecord) (model.Anomaly, bool)
}

// Apply runs the rule and stamps severity, line and a copy of the record on a hit.
func (r Rule) Apply(rec model.LogRecord) (model.Anomaly, bool) {
	a, ok := r.Detect(rec)
	if !ok {
		return model.Anomaly{}, false
	}
	a.Kind = r.Kind
	a.Severity = r.Severity
	a.Line = rec.Line
	entry := rec
	a.LogEntry = &entry
	return a, true
}

// Ruleset is an ordered list of rules. Order is the order anomalies are
// emitted for a record.
type Ruleset []Rule

// Run applies every rule to every record and collects the hits.
func (rs Ruleset) Run(records []model.LogRecord) []model.Anomaly {
	anomalies := []model.Anomaly{}
	for _, rec := range records {
		for _, r := range rs {
			if a, ok := r.Apply(rec); ok {
				anomalies = append(anomalies, a)
			}
		}
	}
	return anomalies
}

// Kinds lists the rule kinds in declaration order.
func (rs Ruleset) Kinds() []string {
	kinds := make([]string, len(rs))
	for i, r := range rs {
		kinds[i] = r.Kind
	}
	return kinds
}

// ---------------------------------------------------------------------------
// Rule tables
// ---------------------------------------------------------------------------

// LargeDownload flags responses above LargeDownloadThreshold.
var LargeDownload = Rule{
	Kind:     model.KindLargeDownload,
	Severity: model.SeverityMedium,
	Detect:   DetectLargeDownload,
}

// BlockedRequest builds a rule matching action exactly (case-sensitive).
func BlockedRequest(action string) Rule {
	return Rule{
		Kind:     model.KindBlockedRequest,
		Severity: model.SeverityMedium,
		Detect: func(rec model.LogRecord) (model.Anomaly, bool) {
			return detectBlocked(rec, action)
		},
	}
}

// HighRiskCategory builds a rule matching any of categories exactly.
func HighRiskCategory(categories ...string) Rule {
	set := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}
	return Rule{
		Kind:     model.KindHighRiskCategory,
		Severity: model.SeverityHigh,
		Detect: func(rec model.LogRecord) (model.Anomaly, bool) {
			return detectCategory(rec, set)
		},
	}
}

// ThreatDetected flags records whose feed already names a threat.
var ThreatDetected = Rule{
	Kind:     model.KindThreatDetected,
	Severity: model.SeverityHigh,
	Detect:   DetectThreat,
}

// DefaultRules is the canonical rule table for the five-field layout.
var DefaultRules = Ruleset{
	LargeDownload,
	BlockedRequest(blockedActionGeneric),
	HighRiskCategory(HighRiskCategories...),
}

// ZscalerRules is the rule table for NSS feeds. NSS spells the block action
// "Blocked"; the match is still exact.
var ZscalerRules = Ruleset{
	LargeDownload,
	BlockedRequest("Blocked"),
	HighRiskCategory(append(append([]string(nil), HighRiskCategories...),
		"Anonymizers", "Cryptomining", "Newly Registered Domains")...),
	ThreatDetected,
}

// RunRuleDetectors applies DefaultRules to records.
func RunRuleDetectors(records []model.LogRecord) []model.Anomaly {
	return DefaultRules.Run(records)
}

// ---------------------------------------------------------------------------
// Detectors
// ---------------------------------------------------------------------------

// DetectLargeDownload reports downloads over 10 MB. Confidence grows 0.2 per
// threshold multiple above the threshold, capped at 1.0.
func DetectLargeDownload(rec model.LogRecord) (model.Anomaly, bool) {
	if rec.DestBytes <= LargeDownloadThreshold {
		return model.Anomaly{}, false
	}
	over := rec.DestBytes/LargeDownloadThreshold - 1
	return model.Anomaly{
		Kind:        model.KindLargeDownload,
		Description: fmt.Sprintf("User %s downloaded %s bytes from %s", rec.UserID, formatBytes(rec.DestBytes), rec.URL),
		Confidence:  math.Min(1.0, over*0.2),
	}, true
}

// DetectBlockedRequest reports records whose action is exactly "BLOCK".
func DetectBlockedRequest(rec model.LogRecord) (model.Anomaly, bool) {
	return detectBlocked(rec, blockedActionGeneric)
}

// DetectHighRiskCategory reports records in one of HighRiskCategories.
func DetectHighRiskCategory(rec model.LogRecord) (model.Anomaly, bool) {
	for _, c := range HighRiskCategories {
		if rec.Category == c {
			return categoryAnomaly(rec), true
		}
	}
	return model.Anomaly{}, false
}

// DetectThreat reports records carrying a threat name other than "None".
func DetectThreat(rec model.LogRecord) (model.Anomaly, bool) {
	if rec.ThreatName == "" || rec.ThreatName == "None" {
		return model.Anomaly{}, false
	}
	return model.Anomaly{
		Kind:        model.KindThreatDetected,
		Description: fmt.Sprintf("User %s hit threat %s at %s", rec.UserID, rec.ThreatName, rec.URL),
		Confidence:  threatConfidence,
	}, true
}

func detectBlocked(rec model.LogRecord, action string) (model.Anomaly, bool) {
	if rec.Action != action {
		return model.Anomaly{}, false
	}
	desc := fmt.Sprintf("User %s attempted to access %s", rec.UserID, rec.URL)
	if rec.Category != "" {
		desc += fmt.Sprintf(" (Category: %s)", rec.Category)
	}
	return model.Anomaly{
		Kind:        model.KindBlockedRequest,
		Description: desc,
		Confidence:  blockedConfidence,
	}, true
}

func detectCategory(rec model.LogRecord, set map[string]struct{}) (model.Anomaly, bool) {
	if _, ok := set[rec.Category]; !ok {
		return model.Anomaly{}, false
	}
	return categoryAnomaly(rec), true
}

func categoryAnomaly(rec model.LogRecord) model.Anomaly {
	return model.Anomaly{
		Kind:        model.KindHighRiskCategory,
		Description: fmt.Sprintf("User %s accessed %s (Category: %s)", rec.UserID, rec.URL, rec.Category),
		Confidence:  highRiskConfidence,
	}
}

// formatBytes prints whole numbers without a fraction or exponent.
func formatBytes(b float64) string {
	return strconv.FormatFloat(b, 'f', -1, 64)
}
