// -------------------------------------------------------------------------------
// URL Format Synthesizer - Outgoing URL Construction
//
// Author: Alex Freidah
//
// Builds the outgoing URLs that edge nodes use to fetch and refresh objects.
// Templates are grouped into named format sets (catch-all, head, get, get_xml,
// get_json); a method/format-specific set overrides the catch-all only for the
// keys it defines, every other catch-all key falls through. Templates accept
// exactly two placeholders, %(hash)s and %(hash_mod)d; anything else is a
// configuration error caught at load time. External CDN infrastructure depends
// on these strings byte-for-byte.
// -------------------------------------------------------------------------------

package origin

import (
	"regexp"
	"strconv"
	"strings"
)

// Format tags selecting a response-format-specific template set.
const (
	FormatNone = ""
	FormatXML  = "xml"
	FormatJSON = "json"
)

// FormatConfig is the configured outgoing URL template groups. Each group
// maps an output key (e.g. "X-CDN-URI") to a template string.
type FormatConfig struct {
	CatchAll map[string]string `yaml:"catch_all"`
	Head     map[string]string `yaml:"head"`
	Get      map[string]string `yaml:"get"`
	GetXML   map[string]string `yaml:"get_xml"`
	GetJSON  map[string]string `yaml:"get_json"`
}

// -------------------------------------------------------------------------
// TEMPLATE COMPILATION
// -------------------------------------------------------------------------

// placeholderRe matches %(name)verb placeholders in a template.
var placeholderRe = regexp.MustCompile(`%\(([A-Za-z_][A-Za-z0-9_]*)\)([A-Za-z])`)

// segment kinds for a compiled template.
const (
	segLiteral = iota
	segHash
	segHashMod
)

type segment struct {
	kind int
	lit  string
}

// urlTemplate is a compiled outgoing URL template.
type urlTemplate struct {
	source   string
	segments []segment
}

// compileTemplate validates a template's placeholders and splits it into
// renderable segments.
func compileTemplate(field, key, src string) (*urlTemplate, error) {
	t := &urlTemplate{source: src}
	rest := src
	for {
		loc := placeholderRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		name := rest[loc[2]:loc[3]]
		verb := rest[loc[4]:loc[5]]
		var kind int
		switch {
		case name == "hash" && verb == "s":
			kind = segHash
		case name == "hash_mod" && verb == "d":
			kind = segHashMod
		default:
			return nil, configErrorf(field, "key %q: unknown placeholder %%(%s)%s in %q",
				key, name, verb, src)
		}
		if loc[0] > 0 {
			t.segments = append(t.segments, segment{kind: segLiteral, lit: rest[:loc[0]]})
		}
		t.segments = append(t.segments, segment{kind: kind})
		rest = rest[loc[1]:]
	}
	if strings.Contains(rest, "%(") {
		return nil, configErrorf(field, "key %q: malformed placeholder in %q", key, src)
	}
	if rest != "" {
		t.segments = append(t.segments, segment{kind: segLiteral, lit: rest})
	}
	return t, nil
}

// render substitutes the hash and shard value. The hash is already lowercase
// hex; hash_mod renders as a plain decimal integer.
func (t *urlTemplate) render(hash string, hashMod int) string {
	var b strings.Builder
	b.Grow(len(t.source) + len(hash))
	for _, s := range t.segments {
		switch s.kind {
		case segHash:
			b.WriteString(hash)
		case segHashMod:
			b.WriteString(strconv.Itoa(hashMod))
		default:
			b.WriteString(s.lit)
		}
	}
	return b.String()
}

// -------------------------------------------------------------------------
// SYNTHESIZER
// -------------------------------------------------------------------------

// Synthesizer resolves format sets and renders outgoing URLs. Immutable after
// construction; safe for concurrent use.
type Synthesizer struct {
	catchAll map[string]*urlTemplate
	byMethod map[string]map[string]*urlTemplate // "head", "get"
	byTag    map[string]map[string]*urlTemplate // "get_xml", "get_json"
	signer   *Signer
}

// NewSynthesizer compiles the configured format sets. The catch-all set is
// required; without it no request could resolve a complete URL set. The
// signer may be disabled (no secret), in which case URLs pass through as
// rendered.
func NewSynthesizer(cfg FormatConfig, signer *Signer) (*Synthesizer, error) {
	if len(cfg.CatchAll) == 0 {
		return nil, configErrorf("outgoing_url_formats.catch_all", "at least one template is required")
	}
	s := &Synthesizer{
		byMethod: make(map[string]map[string]*urlTemplate),
		byTag:    make(map[string]map[string]*urlTemplate),
		signer:   signer,
	}
	var err error
	if s.catchAll, err = compileSet("outgoing_url_formats.catch_all", cfg.CatchAll); err != nil {
		return nil, err
	}
	sets := []struct {
		field string
		tmpls map[string]string
		dst   map[string]map[string]*urlTemplate
		key   string
	}{
		{"outgoing_url_formats.head", cfg.Head, s.byMethod, "head"},
		{"outgoing_url_formats.get", cfg.Get, s.byMethod, "get"},
		{"outgoing_url_formats.get_xml", cfg.GetXML, s.byTag, "get_xml"},
		{"outgoing_url_formats.get_json", cfg.GetJSON, s.byTag, "get_json"},
	}
	for _, set := range sets {
		if len(set.tmpls) == 0 {
			continue
		}
		compiled, err := compileSet(set.field, set.tmpls)
		if err != nil {
			return nil, err
		}
		set.dst[set.key] = compiled
	}
	return s, nil
}

func compileSet(field string, tmpls map[string]string) (map[string]*urlTemplate, error) {
	out := make(map[string]*urlTemplate, len(tmpls))
	for key, src := range tmpls {
		t, err := compileTemplate(field, key, src)
		if err != nil {
			return nil, err
		}
		out[key] = t
	}
	return out, nil
}

// Synthesize renders the full outgoing URL set for a hash under the given
// request method and format tag. Resolution is layered: catch-all templates
// first, then the method set's keys, then the method+format set's keys. With
// signing enabled every URL's hostname gains a "token-" prefix. The hash must
// already be validated.
func (s *Synthesizer) Synthesize(hash, method, formatTag string) (map[string]string, error) {
	hashMod, err := HashMod(hash)
	if err != nil {
		return nil, err
	}

	method = strings.ToLower(method)
	resolved := make(map[string]*urlTemplate, len(s.catchAll))
	for key, t := range s.catchAll {
		resolved[key] = t
	}
	if set, ok := s.byMethod[method]; ok {
		for key, t := range set {
			resolved[key] = t
		}
	}
	if formatTag != FormatNone {
		if set, ok := s.byTag[method+"_"+formatTag]; ok {
			for key, t := range set {
				resolved[key] = t
			}
		}
	}

	urls := make(map[string]string, len(resolved))
	for key, t := range resolved {
		u := strings.TrimRight(t.render(hash, hashMod), "/")
		if s.signer.Enabled() {
			if u, err = s.signer.SignURL(u); err != nil {
				return nil, err
			}
		}
		urls[key] = u
	}
	return urls, nil
}
