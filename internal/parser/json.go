package parser

import (
	"fmt"

	"github.com/valyala/fastjson"

	"github.com/atikulmunna/logsift/internal/model"
)

// ---------------------------------------------------------------------------
// JSON Parser
// ---------------------------------------------------------------------------

// JSONParser handles one JSON object per line, reading fields by the key
// paths of a FormatJSON layout. Byte counts may be numbers or numeric strings.
type JSONParser struct {
	layout Layout
	pool   fastjson.ParserPool
}

// NewJSONParser returns a parser for a FormatJSON layout.
func NewJSONParser(layout Layout) *JSONParser {
	return &JSONParser{layout: layout}
}

// Layout returns the field layout the parser was built with.
func (p *JSONParser) Layout() Layout { return p.layout }

// Parse walks every line of raw the same way TSVParser.Parse does.
func (p *JSONParser) Parse(raw string) Result {
	return parseLines(raw, p.layout.SkipComments, p.ParseLine)
}

// ParseLine decodes one JSON line. User, action, category and url must be
// present as strings; time and threat are optional.
func (p *JSONParser) ParseLine(line string, lineNo int) (model.LogRecord, error) {
	jp := p.pool.Get()
	defer p.pool.Put(jp)

	v, err := jp.Parse(line)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("line %d: %w", lineNo, err)
	}
	if v.Type() != fastjson.TypeObject {
		return model.LogRecord{}, fmt.Errorf("line %d: expected object, got %s", lineNo, v.Type())
	}

	rec := model.LogRecord{Line: lineNo}
	required := []struct {
		role Role
		dst  *string
	}{
		{RoleUser, &rec.UserID},
		{RoleAction, &rec.Action},
		{RoleCategory, &rec.Category},
		{RoleURL, &rec.URL},
	}
	for _, r := range required {
		s, ok := p.str(v, r.role)
		if !ok {
			return model.LogRecord{}, fmt.Errorf("line %d: %w: %s", lineNo, ErrMissingField, r.role)
		}
		*r.dst = s
	}

	if rec.DestBytes, err = p.bytes(v); err != nil {
		return model.LogRecord{}, fmt.Errorf("line %d: %w", lineNo, err)
	}
	if s, ok := p.str(v, RoleThreat); ok {
		rec.ThreatName = s
	}
	if s, ok := p.str(v, RoleTime); ok {
		rec.Time = parseTime(s)
	}

	return rec, nil
}

func (p *JSONParser) str(v *fastjson.Value, r Role) (string, bool) {
	path, ok := p.layout.paths[r]
	if !ok {
		return "", false
	}
	f := v.Get(path...)
	if f == nil || f.Type() != fastjson.TypeString {
		return "", false
	}
	return string(f.GetStringBytes()), true
}

func (p *JSONParser) bytes(v *fastjson.Value) (float64, error) {
	f := v.Get(p.layout.paths[RoleBytes]...)
	if f == nil {
		return 0, fmt.Errorf("%w: missing", ErrInvalidBytes)
	}
	switch f.Type() {
	case fastjson.TypeNumber:
		return checkBytes(f.GetFloat64())
	case fastjson.TypeString:
		n, err := parseBytes(string(f.GetStringBytes()))
		if err != nil {
			return 0, ErrInvalidBytes
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidBytes, f.Type())
	}
}
