package model

import "time"

// LogRecord is one well-formed line of a proxy/firewall access log.
// Layouts that do not carry a field leave it at its zero value.
type LogRecord struct {
	Line       int       `json:"line"`
	UserID     string    `json:"userId"`
	DestBytes  float64   `json:"destBytes"`
	Action     string    `json:"action"`
	Category   string    `json:"category"`
	URL        string    `json:"url"`
	Time       time.Time `json:"datetime,omitzero"`
	ThreatName string    `json:"threatName,omitempty"`
}
