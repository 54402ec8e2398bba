package detector

import (
	"fmt"

	"github.com/atikulmunna/logsift/internal/model"
)

const highTrafficConfidence = 0.8

// DetectHighTrafficUsers flags users whose request count is at least twice the
// mean count per user. Fewer than two distinct users gives no baseline.
// Users are reported in order of first appearance.
func DetectHighTrafficUsers(records []model.LogRecord) []model.Anomaly {
	counts := make(map[string]int)
	var order []string
	for _, rec := range records {
		if _, seen := counts[rec.UserID]; !seen {
			order = append(order, rec.UserID)
		}
		counts[rec.UserID]++
	}

	anomalies := []model.Anomaly{}
	if len(order) < 2 {
		return anomalies
	}

	mean := float64(len(records)) / float64(len(order))
	if mean == 0 {
		return anomalies
	}

	threshold := 2 * mean
	for _, user := range order {
		n := counts[user]
		if float64(n) < threshold {
			continue
		}
		anomalies = append(anomalies, model.Anomaly{
			Kind:        model.KindHighTrafficUser,
			Description: fmt.Sprintf("User %s made %d requests (mean: %.2f)", user, n, mean),
			Confidence:  highTrafficConfidence,
			Severity:    model.SeverityLow,
		})
	}
	return anomalies
}
