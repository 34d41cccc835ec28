// -------------------------------------------------------------------------------
// Incoming URL Parser - Ordered Pattern Matching
//
// Author: Alex Freidah
//
// Recognizes CDN edge request URLs using an ordered list of configured regular
// expressions. Each pattern must capture a "hash" group and may capture an
// optional "object_name" group. Order is configuration order and first match
// wins; pattern keys exist only for uniqueness. Patterns are compiled once at
// load and anchored to the full URL to avoid partial-prefix ambiguity.
// -------------------------------------------------------------------------------

package origin

import (
	"fmt"
	"regexp"
	"strings"
)

// PatternConfig is one incoming URL pattern as configured: a unique key and
// the regular expression source.
type PatternConfig struct {
	Key   string `yaml:"key"`
	Regex string `yaml:"regex"`
}

// pattern pairs a configured key with its compiled matcher and the submatch
// indexes resolved at compile time.
type pattern struct {
	key     string
	re      *regexp.Regexp
	hashIdx int
	nameIdx int // -1 when the pattern has no object_name group
}

// PatternSet is an ordered sequence of compiled incoming URL patterns.
// Immutable after construction; safe for concurrent use.
type PatternSet struct {
	patterns []pattern
}

// ParseResult carries the fields extracted from a recognized incoming URL.
// An empty ObjectName denotes a container-listing request.
type ParseResult struct {
	PatternKey string
	Hash       string
	ObjectName string
}

// Listing reports whether the URL addressed the container rather than an
// object within it.
func (r ParseResult) Listing() bool { return r.ObjectName == "" }

// CompilePatterns compiles the configured patterns in declaration order.
// Every pattern must have a unique key and a "hash" capture group; each
// expression is anchored to the full string if the source is not already.
func CompilePatterns(configs []PatternConfig) (*PatternSet, error) {
	if len(configs) == 0 {
		return nil, configErrorf("incoming_url_patterns", "at least one pattern is required")
	}
	seen := make(map[string]struct{}, len(configs))
	ps := &PatternSet{patterns: make([]pattern, 0, len(configs))}
	for _, pc := range configs {
		if pc.Key == "" {
			return nil, configErrorf("incoming_url_patterns", "pattern key is required")
		}
		if _, dup := seen[pc.Key]; dup {
			return nil, configErrorf("incoming_url_patterns", "duplicate pattern key %q", pc.Key)
		}
		seen[pc.Key] = struct{}{}

		src := pc.Regex
		if src == "" {
			return nil, configErrorf("incoming_url_patterns", "pattern %q: regex is required", pc.Key)
		}
		if !strings.HasPrefix(src, "^") {
			src = "^" + src
		}
		if !strings.HasSuffix(src, "$") {
			src += "$"
		}
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, configErrorf("incoming_url_patterns", "pattern %q: %v", pc.Key, err)
		}
		hashIdx := re.SubexpIndex("hash")
		if hashIdx < 0 {
			return nil, configErrorf("incoming_url_patterns",
				"pattern %q: missing required (?P<hash>...) group", pc.Key)
		}
		ps.patterns = append(ps.patterns, pattern{
			key:     pc.Key,
			re:      re,
			hashIdx: hashIdx,
			nameIdx: re.SubexpIndex("object_name"),
		})
	}
	return ps, nil
}

// Parse attempts each pattern in order against the full request URL and
// returns the extracted fields from the first match. Returns
// ErrUnrecognizedURL when no pattern matches, or when a match yields an
// empty hash.
func (ps *PatternSet) Parse(rawURL string) (ParseResult, error) {
	for _, p := range ps.patterns {
		m := p.re.FindStringSubmatch(rawURL)
		if m == nil {
			continue
		}
		res := ParseResult{PatternKey: p.key, Hash: m[p.hashIdx]}
		if p.nameIdx >= 0 {
			res.ObjectName = m[p.nameIdx]
		}
		if res.Hash == "" {
			return ParseResult{}, fmt.Errorf("%w: pattern %q matched without a hash", ErrUnrecognizedURL, p.key)
		}
		return res, nil
	}
	return ParseResult{}, fmt.Errorf("%w: %s", ErrUnrecognizedURL, rawURL)
}

// Len returns the number of compiled patterns.
func (ps *PatternSet) Len() int { return len(ps.patterns) }
