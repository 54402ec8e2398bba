package model

import "time"

// Report is the result of one analysis pass over a document.
type Report struct {
	TotalRecords   int       `json:"totalRecords"`
	MalformedCount int       `json:"malformedCount"`
	HeaderLines    int       `json:"headerLines,omitempty"`
	MalformedLines []string  `json:"malformedLines,omitempty"`
	Anomalies      []Anomaly `json:"anomalies"`
}

// Upload is a raw document waiting to be analyzed.
type Upload struct {
	ID      string
	Source  string // file path or uploaded file name
	Content string
}

// Analysis is a finished (or failed) analysis of one Upload.
type Analysis struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Profile   string    `json:"profile"`
	CreatedAt time.Time `json:"createdAt"`
	Report    Report    `json:"report"`
	Error     string    `json:"error,omitempty"`
}

// Failed reports whether the analysis ended in an error.
func (a Analysis) Failed() bool { return a.Error != "" }
