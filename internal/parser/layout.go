package parser

import (
	"fmt"
	"strings"
	"time"
)

// Role names a record field a Layout column can be bound to.
type Role string

const (
	RoleUser     Role = "user"
	RoleBytes    Role = "bytes"
	RoleAction   Role = "action"
	RoleCategory Role = "category"
	RoleURL      Role = "url"
	RoleTime     Role = "time"
	RoleThreat   Role = "threat"
)

// Format is the line encoding a Layout describes.
type Format int

const (
	FormatTSV Format = iota
	FormatJSON
)

// Layout describes the column order of a tab-separated log format and which
// columns feed which record fields. Build one with NewLayout or NewJSONLayout.
type Layout struct {
	Name         string
	Format       Format
	Columns      []string
	SkipComments bool // lines starting with '#' are headers, not records

	index columnIndex
	paths map[Role][]string // JSON key paths, FormatJSON only
}

type columnIndex struct {
	user, bytes, action, category, url int
	time, threat                       int // -1 when absent
}

// NewLayout binds roles to column names. User, bytes, action, category and
// url are required; time and threat are optional.
func NewLayout(name string, columns []string, roles map[Role]string, skipComments bool) (Layout, error) {
	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := pos[c]; dup {
			return Layout{}, fmt.Errorf("layout %s: duplicate column %q", name, c)
		}
		pos[c] = i
	}

	lookup := func(r Role, required bool) (int, error) {
		col, ok := roles[r]
		if !ok {
			if required {
				return -1, fmt.Errorf("layout %s: missing %s column", name, r)
			}
			return -1, nil
		}
		i, ok := pos[col]
		if !ok {
			return -1, fmt.Errorf("layout %s: %s bound to unknown column %q", name, r, col)
		}
		return i, nil
	}

	var idx columnIndex
	var err error
	required := []struct {
		role Role
		dst  *int
	}{
		{RoleUser, &idx.user},
		{RoleBytes, &idx.bytes},
		{RoleAction, &idx.action},
		{RoleCategory, &idx.category},
		{RoleURL, &idx.url},
	}
	for _, r := range required {
		if *r.dst, err = lookup(r.role, true); err != nil {
			return Layout{}, err
		}
	}
	if idx.time, err = lookup(RoleTime, false); err != nil {
		return Layout{}, err
	}
	if idx.threat, err = lookup(RoleThreat, false); err != nil {
		return Layout{}, err
	}

	return Layout{
		Name:         name,
		Columns:      append([]string(nil), columns...),
		SkipComments: skipComments,
		index:        idx,
	}, nil
}

// NewJSONLayout binds roles to keys of one JSON object per line. Keys may be
// dotted paths into nested objects, e.g. "event.user".
func NewJSONLayout(name string, roles map[Role]string) (Layout, error) {
	columns := make([]string, 0, len(roles))
	for _, r := range []Role{RoleUser, RoleBytes, RoleAction, RoleCategory, RoleURL, RoleTime, RoleThreat} {
		if key, ok := roles[r]; ok {
			columns = append(columns, key)
		}
	}
	if len(columns) != len(roles) {
		return Layout{}, fmt.Errorf("layout %s: unknown role in %v", name, roles)
	}

	l, err := NewLayout(name, columns, roles, false)
	if err != nil {
		return Layout{}, err
	}
	l.Format = FormatJSON
	l.paths = make(map[Role][]string, len(roles))
	for r, key := range roles {
		l.paths[r] = strings.Split(key, ".")
	}
	return l, nil
}

func must(l Layout, err error) Layout {
	if err != nil {
		panic(err)
	}
	return l
}

func mustLayout(name string, columns []string, roles map[Role]string, skipComments bool) Layout {
	return must(NewLayout(name, columns, roles, skipComments))
}

// Generic is the canonical five-field layout: user, bytes, action, category, url.
var Generic = mustLayout("generic",
	[]string{"userId", "destBytes", "action", "category", "url"},
	map[Role]string{
		RoleUser:     "userId",
		RoleBytes:    "destBytes",
		RoleAction:   "action",
		RoleCategory: "category",
		RoleURL:      "url",
	},
	false,
)

// ZscalerColumns is the NSS web feed field order.
var ZscalerColumns = []string{
	"datetime", "user", "department", "url", "urlcategory", "urlsupercategory",
	"urlclass", "requestmethod", "useragent", "refererurl", "requestsize",
	"responsesize", "action", "threatname", "threatcat", "malwareclass",
	"malwarecat", "filetype", "fileclass", "riskscore", "location",
	"clientip", "serverip", "protocol",
}

// Zscaler is the 24-field NSS layout. Response size is what the user downloaded.
var Zscaler = mustLayout("zscaler",
	ZscalerColumns,
	map[Role]string{
		RoleUser:     "user",
		RoleBytes:    "responsesize",
		RoleAction:   "action",
		RoleCategory: "urlcategory",
		RoleURL:      "url",
		RoleTime:     "datetime",
		RoleThreat:   "threatname",
	},
	true,
)

// ZscalerJSON is the NSS web feed in its JSON output format, one
// {"sourcetype": ..., "event": {...}} object per line.
var ZscalerJSON = must(NewJSONLayout("zscaler-json", map[Role]string{
	RoleUser:     "event.login",
	RoleBytes:    "event.responsesize",
	RoleAction:   "event.action",
	RoleCategory: "event.urlcategory",
	RoleURL:      "event.url",
	RoleTime:     "event.datetime",
	RoleThreat:   "event.threatname",
}))

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	time.ANSIC,
}

// parseTime returns the zero time when s matches none of the known layouts.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
