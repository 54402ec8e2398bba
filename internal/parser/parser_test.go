package parser

import (
	"errors"
	"strings"
	"testing"
)

func TestParseValidLines(t *testing.T) {
	raw := "user1\t12345\tALLOW\tCategoryA\thttp://example.com\nuser2\t54321\tBLOCK\tPhishing\thttp://malicious.com"

	records, malformed := Parse(raw)

	if malformed != 0 {
		t.Errorf("expected 0 malformed, got %d", malformed)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	r := records[0]
	if r.UserID != "user1" || r.DestBytes != 12345 || r.Action != "ALLOW" || r.Category != "CategoryA" || r.URL != "http://example.com" {
		t.Errorf("unexpected first record: %+v", r)
	}
	if r.Line != 1 {
		t.Errorf("expected line 1, got %d", r.Line)
	}
	if records[1].Action != "BLOCK" || records[1].Line != 2 {
		t.Errorf("unexpected second record: %+v", records[1])
	}
}

func TestParseCountsMalformed(t *testing.T) {
	raw := "user1\t12345\tALLOW\tCategoryA\thttp://example.com\nmalformed line\nuser2\tNaN\tBLOCK\tPhishing\thttp://malicious.com"

	records, malformed := Parse(raw)

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].UserID != "user1" {
		t.Errorf("expected user1, got %q", records[0].UserID)
	}
	if malformed != 2 {
		t.Errorf("expected 2 malformed, got %d", malformed)
	}
}

func TestParseEmptyInput(t *testing.T) {
	records, malformed := Parse("")
	if len(records) != 0 || malformed != 0 {
		t.Errorf("expected nothing, got %d records and %d malformed", len(records), malformed)
	}
}

func TestParseCRLFAndBlankLines(t *testing.T) {
	raw := "\r\na\t1\tALLOW\tGeneral\thttp://a\r\n   \r\nb\t2\tALLOW\tGeneral\thttp://b\r\n"

	records, malformed := Parse(raw)

	if malformed != 0 {
		t.Errorf("expected 0 malformed, got %d", malformed)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].URL != "http://a" {
		t.Errorf("trailing CR should be stripped, got %q", records[0].URL)
	}
	// Line numbers keep their position in the input, blank lines included.
	if records[0].Line != 2 || records[1].Line != 4 {
		t.Errorf("expected lines 2 and 4, got %d and %d", records[0].Line, records[1].Line)
	}
}

func TestParseBytesField(t *testing.T) {
	tests := []struct {
		name  string
		bytes string
		ok    bool
	}{
		{"integer", "100", true},
		{"float", "1.5e3", true},
		{"zero", "0", true},
		{"padded", " 42 ", true},
		{"empty", "", false},
		{"text", "abc", false},
		{"nan", "NaN", false},
		{"inf", "Inf", false},
		{"negative", "-5", false},
		{"overflow", "1e400", false},
		{"underscore", "1_000", false},
		{"hex float", "0x1p24", false},
		{"hex", "0X10", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTSVParser(Generic).ParseLine("u\t"+tt.bytes+"\tALLOW\tc\thttp://x", 1)
			if tt.ok && err != nil {
				t.Errorf("expected %q to parse, got %v", tt.bytes, err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidBytes) {
				t.Errorf("expected ErrInvalidBytes for %q, got %v", tt.bytes, err)
			}
		})
	}
}

func TestParseNonDecimalBytesIsMalformed(t *testing.T) {
	records, malformed := Parse("u\t1_000\tALLOW\tc\thttp://x\nu\t0x1p24\tALLOW\tc\thttp://y\nu\t1000\tALLOW\tc\thttp://z")
	if len(records) != 1 || malformed != 2 {
		t.Fatalf("expected 1 record and 2 malformed, got %d and %d", len(records), malformed)
	}
	if records[0].DestBytes != 1000 || records[0].Line != 3 {
		t.Errorf("unexpected record %+v", records[0])
	}
}

func TestParseLineFieldCount(t *testing.T) {
	p := NewTSVParser(Generic)
	for _, line := range []string{
		"u\t1\tALLOW\tc",
		"u\t1\tALLOW\tc\thttp://x\textra",
		"no tabs at all",
	} {
		if _, err := p.ParseLine(line, 7); !errors.Is(err, ErrFieldCount) {
			t.Errorf("expected ErrFieldCount for %q, got %v", line, err)
		}
	}
}

func TestParseLineAccounting(t *testing.T) {
	raw := strings.Join([]string{
		"a\t1\tALLOW\tc\thttp://a",
		"",
		"bad",
		"b\tx\tALLOW\tc\thttp://b",
		"c\t3\tBLOCK\tc\thttp://c",
		"   ",
	}, "\n")

	res := NewTSVParser(Generic).Parse(raw)

	nonEmpty := 0
	for _, l := range strings.Split(raw, "\n") {
		if strings.TrimSpace(l) != "" {
			nonEmpty++
		}
	}
	if got := len(res.Records) + res.Malformed; got != nonEmpty {
		t.Errorf("records+malformed = %d, want %d", got, nonEmpty)
	}
	if len(res.MalformedLines) != 2 || res.MalformedLines[0] != "L3: bad" {
		t.Errorf("unexpected malformed lines: %v", res.MalformedLines)
	}
}

func TestZscalerLayout(t *testing.T) {
	fields := make([]string, len(ZscalerColumns))
	for i, c := range ZscalerColumns {
		fields[i] = c + "-v"
	}
	fields[0] = "2023-10-27T10:00:15Z"
	fields[1] = "alice@corp"
	fields[3] = "http://evil.example"
	fields[4] = "Phishing"
	fields[11] = "2048"
	fields[12] = "Blocked"
	fields[13] = "Trojan.Gen"

	raw := "#datetime\tuser\t...\n" + strings.Join(fields, "\t") + "\nshort\tline\n"
	res := NewTSVParser(Zscaler).Parse(raw)

	if res.HeaderLines != 1 {
		t.Errorf("expected 1 header line, got %d", res.HeaderLines)
	}
	if res.Malformed != 1 {
		t.Errorf("expected 1 malformed, got %d", res.Malformed)
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}

	r := res.Records[0]
	if r.UserID != "alice@corp" || r.DestBytes != 2048 || r.Action != "Blocked" || r.Category != "Phishing" {
		t.Errorf("unexpected record: %+v", r)
	}
	if r.ThreatName != "Trojan.Gen" {
		t.Errorf("expected threat name, got %q", r.ThreatName)
	}
	if r.Time.IsZero() || r.Time.Minute() != 0 || r.Time.Second() != 15 {
		t.Errorf("unexpected time: %v", r.Time)
	}
}

func TestGenericLayoutKeepsHashLines(t *testing.T) {
	records, malformed := Parse("#comment\na\t1\tALLOW\tc\thttp://a")
	if len(records) != 1 || malformed != 1 {
		t.Errorf("generic layout has no headers: got %d records, %d malformed", len(records), malformed)
	}
}

func TestNewLayoutErrors(t *testing.T) {
	cols := []string{"u", "b", "a", "c", "url"}
	full := map[Role]string{RoleUser: "u", RoleBytes: "b", RoleAction: "a", RoleCategory: "c", RoleURL: "url"}

	if _, err := NewLayout("ok", cols, full, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	missing := map[Role]string{RoleUser: "u", RoleBytes: "b", RoleAction: "a", RoleCategory: "c"}
	if _, err := NewLayout("missing", cols, missing, false); err == nil {
		t.Error("expected error for missing url role")
	}

	unknown := map[Role]string{RoleUser: "u", RoleBytes: "nope", RoleAction: "a", RoleCategory: "c", RoleURL: "url"}
	if _, err := NewLayout("unknown", cols, unknown, false); err == nil {
		t.Error("expected error for unknown column")
	}

	if _, err := NewLayout("dup", []string{"u", "u"}, full, false); err == nil {
		t.Error("expected error for duplicate column")
	}
}
