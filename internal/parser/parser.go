package parser

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/atikulmunna/logsift/internal/model"
)

var (
	// ErrFieldCount is returned when a line does not split into the layout's width.
	ErrFieldCount = errors.New("unexpected field count")
	// ErrInvalidBytes is returned when the byte-count field is not a finite, non-negative number.
	ErrInvalidBytes = errors.New("invalid byte count")
	// ErrMissingField is returned when a JSON line lacks a required key.
	ErrMissingField = errors.New("missing field")
)

// Result is the outcome of parsing one document.
type Result struct {
	Records        []model.LogRecord
	Malformed      int
	MalformedLines []string // "L<n>: <line>"
	HeaderLines    int
}

// Parser converts raw log text into structured records.
type Parser interface {
	Parse(raw string) Result
}

// New returns the parser for layout's format.
func New(layout Layout) Parser {
	if layout.Format == FormatJSON {
		return NewJSONParser(layout)
	}
	return NewTSVParser(layout)
}

// ---------------------------------------------------------------------------
// TSV Parser
// ---------------------------------------------------------------------------

// TSVParser splits tab-separated lines according to a Layout.
// It holds no mutable state and is safe for concurrent use.
type TSVParser struct {
	layout Layout
}

// NewTSVParser returns a parser for the tab-separated layout.
func NewTSVParser(layout Layout) *TSVParser {
	return &TSVParser{layout: layout}
}

// Layout returns the field layout the parser was built with.
func (p *TSVParser) Layout() Layout { return p.layout }

// Parse walks every line of raw. Blank lines are dropped, header lines are
// counted separately, and lines that fail ParseLine are tallied as malformed.
func (p *TSVParser) Parse(raw string) Result {
	return parseLines(raw, p.layout.SkipComments, p.ParseLine)
}

// ParseLine builds a record from a single line. lineNo is stored on the record.
func (p *TSVParser) ParseLine(line string, lineNo int) (model.LogRecord, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != len(p.layout.Columns) {
		return model.LogRecord{}, fmt.Errorf("line %d: %w: got %d, want %d",
			lineNo, ErrFieldCount, len(fields), len(p.layout.Columns))
	}

	bytesRaw := fields[p.layout.index.bytes]
	destBytes, err := parseBytes(bytesRaw)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("line %d: %w: %q", lineNo, ErrInvalidBytes, bytesRaw)
	}

	rec := model.LogRecord{
		Line:      lineNo,
		UserID:    fields[p.layout.index.user],
		DestBytes: destBytes,
		Action:    fields[p.layout.index.action],
		Category:  fields[p.layout.index.category],
		URL:       fields[p.layout.index.url],
	}
	if i := p.layout.index.threat; i >= 0 {
		rec.ThreatName = fields[i]
	}
	if i := p.layout.index.time; i >= 0 {
		rec.Time = parseTime(fields[i])
	}

	return rec, nil
}

// Parse reads raw with the canonical five-field layout.
func Parse(raw string) ([]model.LogRecord, int) {
	res := NewTSVParser(Generic).Parse(raw)
	return res.Records, res.Malformed
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// parseLines splits raw on '\n' and feeds each non-blank line to parseLine
// with its 1-based line number.
func parseLines(raw string, skipComments bool, parseLine func(string, int) (model.LogRecord, error)) Result {
	res := Result{}
	if raw == "" {
		return res
	}

	for i, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lineNo := i + 1

		if skipComments && strings.HasPrefix(line, "#") {
			res.HeaderLines++
			continue
		}

		rec, err := parseLine(line, lineNo)
		if err != nil {
			res.Malformed++
			res.MalformedLines = append(res.MalformedLines, fmt.Sprintf("L%d: %s", lineNo, line))
			continue
		}
		res.Records = append(res.Records, rec)
	}

	return res
}

// parseBytes accepts plain decimal notation only: digits, an optional sign,
// fraction and exponent. Go literal forms such as 1_000 or 0x1p24 are rejected.
func parseBytes(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !isDecimal(s) {
		return 0, ErrInvalidBytes
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return checkBytes(v)
}

// checkBytes rejects non-finite and negative counts.
func checkBytes(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, ErrInvalidBytes
	}
	return v, nil
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9', c == '.', c == '+', c == '-', c == 'e', c == 'E':
		default:
			return false
		}
	}
	return true
}
