package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/atikulmunna/logsift/internal/detector"
	"github.com/atikulmunna/logsift/internal/parser"
)

// Profile pairs a field layout with the rule table written for it.
type Profile struct {
	Name   string
	Layout parser.Layout
	Rules  detector.Ruleset
}

var (
	// GenericProfile is the canonical five-field layout with the default rules.
	GenericProfile = Profile{Name: "generic", Layout: parser.Generic, Rules: detector.DefaultRules}
	// ZscalerProfile reads 24-field NSS feeds.
	ZscalerProfile = Profile{Name: "zscaler", Layout: parser.Zscaler, Rules: detector.ZscalerRules}
	// ZscalerJSONProfile reads NSS feeds configured for JSON output.
	ZscalerJSONProfile = Profile{Name: "zscaler-json", Layout: parser.ZscalerJSON, Rules: detector.ZscalerRules}
)

var profiles = map[string]Profile{
	GenericProfile.Name:     GenericProfile,
	ZscalerProfile.Name:     ZscalerProfile,
	ZscalerJSONProfile.Name: ZscalerJSONProfile,
}

// ProfileByName looks up a built-in profile. Matching ignores case.
func ProfileByName(name string) (Profile, error) {
	p, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(ProfileNames(), ", "))
	}
	return p, nil
}

// ProfileNames lists the built-in profiles, sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
