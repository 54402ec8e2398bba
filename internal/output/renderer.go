package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/atikulmunna/logsift/internal/aggregator"
	"github.com/atikulmunna/logsift/internal/model"
)

// Renderer writes finished analyses to an output stream.
type Renderer interface {
	Render(an model.Analysis) error
}

// Filter keeps anomalies whose severity is in the set. An empty set keeps all.
type Filter map[model.Severity]bool

// ParseFilter builds a Filter from a comma-separated list such as "high,medium".
func ParseFilter(s string) (Filter, error) {
	f := Filter{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch strings.ToLower(part) {
		case "high":
			f[model.SeverityHigh] = true
		case "medium":
			f[model.SeverityMedium] = true
		case "low":
			f[model.SeverityLow] = true
		default:
			return nil, fmt.Errorf("unknown severity %q (want high, medium or low)", part)
		}
	}
	return f, nil
}

// Apply returns a copy of an with filtered anomalies.
func (f Filter) Apply(an model.Analysis) model.Analysis {
	if len(f) == 0 {
		return an
	}
	kept := make([]model.Anomaly, 0, len(an.Report.Anomalies))
	for _, a := range an.Report.Anomalies {
		if f[a.Severity] {
			kept = append(kept, a)
		}
	}
	an.Report.Anomalies = kept
	return an
}

// ---------------------------------------------------------------------------
// Text Renderer (colorized terminal output)
// ---------------------------------------------------------------------------

var (
	styleHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true) // red bold
	styleMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))            // yellow
	styleLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))            // gray
	styleError  = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("196")).
			Bold(true) // white on red
	styleSource = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true) // cyan
	styleMuted  = lipgloss.NewStyle().Faint(true)
)

// TextRenderer prints a summary header and one line per anomaly.
type TextRenderer struct {
	w      io.Writer
	filter Filter
}

// NewTextRenderer returns a Renderer that writes colorized text to w.
func NewTextRenderer(w io.Writer, f Filter) *TextRenderer {
	return &TextRenderer{w: w, filter: f}
}

func (r *TextRenderer) Render(an model.Analysis) error {
	if an.Failed() {
		_, err := fmt.Fprintf(r.w, "%s %s %s\n", styleError.Render("FAILED"), styleSource.Render(an.Source), an.Error)
		return err
	}

	an = r.filter.Apply(an)
	rep := an.Report
	sev := aggregator.Summarize(rep)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", styleSource.Render(an.Source), styleMuted.Render("["+an.Profile+"]"))
	fmt.Fprintf(&b, "  records: %d  malformed: %d  anomalies: %d (%s %s %s)\n",
		rep.TotalRecords, rep.MalformedCount, len(rep.Anomalies),
		styleHigh.Render(fmt.Sprintf("high %d", sev.High)),
		styleMedium.Render(fmt.Sprintf("medium %d", sev.Medium)),
		styleLow.Render(fmt.Sprintf("low %d", sev.Low)),
	)
	for _, a := range rep.Anomalies {
		loc := "     "
		if a.Line > 0 {
			loc = fmt.Sprintf("L%-4d", a.Line)
		}
		fmt.Fprintf(&b, "  %s %s %s %s %s\n",
			styleSeverityTag(a.Severity),
			styleMuted.Render(loc),
			fmt.Sprintf("%-18s", a.Kind),
			fmt.Sprintf("%.2f", a.Confidence),
			a.Description,
		)
	}

	_, err := io.WriteString(r.w, b.String())
	return err
}

func styleSeverityTag(s model.Severity) string {
	padded := fmt.Sprintf("%-6s", strings.ToUpper(string(s)))
	switch s {
	case model.SeverityHigh:
		return styleHigh.Render(padded)
	case model.SeverityMedium:
		return styleMedium.Render(padded)
	default:
		return styleLow.Render(padded)
	}
}

// ---------------------------------------------------------------------------
// JSON Renderer (structured output for piping)
// ---------------------------------------------------------------------------

// JSONRenderer prints each analysis as a single JSON object per line.
type JSONRenderer struct {
	enc    *json.Encoder
	filter Filter
}

// NewJSONRenderer returns a Renderer that writes JSON lines to w.
func NewJSONRenderer(w io.Writer, f Filter) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w), filter: f}
}

func (r *JSONRenderer) Render(an model.Analysis) error {
	return r.enc.Encode(r.filter.Apply(an))
}
