// Package overlay validates text fragments before they are burned into a
// rendered video as subtitles or calls to action. Generated scripts leak
// stage directions and serialization metadata with some regularity; the
// validator strips both and falls back to a platform default when nothing
// speakable survives.
package overlay

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// Context describes where a validated fragment will be rendered.
type Context string

const (
	ContextSubtitle Context = "subtitle"
	ContextOverlay  Context = "overlay"
	ContextCTA      Context = "cta"
)

// Result reports what Validate did to a fragment. Cleaned is always safe to
// render; when Valid is false it carries the platform default instead of the
// original text.
type Result struct {
	Original            string   `json:"original"`
	Cleaned             string   `json:"cleaned"`
	Valid               bool     `json:"valid"`
	Issues              []string `json:"issues,omitempty"`
	IsRTL               bool     `json:"is_rtl"`
	Language            string   `json:"language"`
	MetadataRemoved     bool     `json:"metadata_removed"`
	InstructionsRemoved bool     `json:"instructions_removed"`
}

// rtlRatio marks a fragment as right-to-left once this share of its
// non-whitespace runes comes from the Hebrew or Arabic blocks.
const rtlRatio = 0.3

// maxColons is the most colons a non-RTL fragment may carry before it is
// treated as a key/value cascade. RTL text is exempt because Hebrew and
// Arabic punctuation conventions use colons freely.
const maxColons = 3

var (
	visualTagRE   = regexp.MustCompile(`(?i)\[\s*visual\s*:[^\]]*\]`)
	bracketSpanRE = regexp.MustCompile(`\[[^\]]*\]`)
	starSpanRE    = regexp.MustCompile(`\*[^*]+\*`)
	parenSpanRE   = regexp.MustCompile(`\([^()]*\)`)
	sceneMarkRE   = regexp.MustCompile(`(?i)^\s*(?:scene|visual|cut to)\s*:\s*`)
	braceSpanRE   = regexp.MustCompile(`\{[^{}]*\}`)
	dbFieldRE     = regexp.MustCompile(`(?i)"?\b(?:_id|created_at)"?\s*[:=]\s*[^\s,;}]*[,;]?`)
	kvPairRE      = regexp.MustCompile(`\b[\w.-]+\s*:\s*[\w./+-]+[,;]?`)
	spaceRunRE    = regexp.MustCompile(`\s+`)
	orphanPunctRE = regexp.MustCompile(`\s+([.,!?;:])`)
	punctRunRE    = regexp.MustCompile(`([.,;:])[.,;:]+`)
)

// defaultCTAs carries the per-platform fallback line used when a fragment
// cannot be salvaged.
var defaultCTAs = map[string]string{
	"youtube":   "Subscribe for more!",
	"tiktok":    "Follow for more!",
	"instagram": "Follow for more!",
}

// Validator cleans overlay text for one target platform.
type Validator struct {
	platform string
	cta      string
}

// Option adjusts a Validator.
type Option func(*Validator)

// WithDefaultCTA overrides the platform fallback line.
func WithDefaultCTA(text string) Option {
	return func(v *Validator) { v.cta = text }
}

// NewValidator returns a Validator for the given platform. Unknown platforms
// get the generic follow CTA.
func NewValidator(platform string, opts ...Option) *Validator {
	v := &Validator{platform: strings.ToLower(platform)}
	if cta, ok := defaultCTAs[v.platform]; ok {
		v.cta = cta
	} else {
		v.cta = "Follow for more!"
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate cleans text for rendering. Instructions are stripped first,
// metadata second, whitespace and punctuation last. The returned Cleaned
// value is stable under re-validation.
func (v *Validator) Validate(text string, vctx Context, expectedLanguage string) Result {
	res := Result{Original: text, Valid: true}

	res.IsRTL, res.Language = detectScript(text, expectedLanguage)

	cleaned, instr := stripInstructions(text)
	if instr {
		res.InstructionsRemoved = true
		res.Issues = append(res.Issues, "removed stage directions")
	}

	cleaned, meta := stripMetadata(cleaned, res.IsRTL)
	if meta {
		res.MetadataRemoved = true
		res.Issues = append(res.Issues, "removed metadata fragments")
	}

	cleaned = normalize(cleaned)

	if dirty := dirtyReason(cleaned, res.IsRTL); dirty != "" {
		res.Issues = append(res.Issues, dirty)
		res.Cleaned = v.cta
		res.Valid = false
		return res
	}

	res.Cleaned = cleaned
	return res
}

// DefaultCTA exposes the fallback line substituted for invalid fragments.
func (v *Validator) DefaultCTA() string { return v.cta }

// stripInstructions removes visual tags, starred and parenthesized stage
// directions, and leading scene markers.
func stripInstructions(s string) (string, bool) {
	orig := s
	s = visualTagRE.ReplaceAllString(s, " ")
	s = bracketSpanRE.ReplaceAllString(s, " ")
	s = starSpanRE.ReplaceAllString(s, " ")
	for {
		next := parenSpanRE.ReplaceAllString(s, " ")
		if next == s {
			break
		}
		s = next
	}
	for {
		next := sceneMarkRE.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}
	return s, s != orig
}

// stripMetadata removes brace-wrapped fragments, database field leftovers,
// and key/value cascades in non-RTL text.
func stripMetadata(s string, rtl bool) (string, bool) {
	orig := s
	for {
		next := braceSpanRE.ReplaceAllString(s, " ")
		if next == s {
			break
		}
		s = next
	}
	s = dbFieldRE.ReplaceAllString(s, " ")
	if !rtl && strings.Count(s, ":") > maxColons {
		s = kvPairRE.ReplaceAllString(s, " ")
	}
	return s, s != orig
}

// normalize collapses whitespace, drops stray markup glyphs, and repairs
// punctuation left dangling by the removal passes.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "*", "")
	s = spaceRunRE.ReplaceAllString(s, " ")
	s = orphanPunctRE.ReplaceAllString(s, "$1")
	s = punctRunRE.ReplaceAllString(s, "$1")
	s = strings.Trim(s, " \t\n")
	s = strings.TrimLeft(s, ".,;: ")
	return strings.TrimSpace(s)
}

// dirtyReason reports why a cleaned fragment is still unusable, or "".
func dirtyReason(s string, rtl bool) string {
	if s == "" {
		return "empty after cleaning"
	}
	if strings.ContainsAny(s, "{}") {
		return "unbalanced braces after cleaning"
	}
	if !rtl && strings.Count(s, ":") > maxColons {
		return "colon cascade after cleaning"
	}
	return ""
}

// detectScript classifies the fragment as RTL when more than rtlRatio of its
// non-whitespace runes come from the Hebrew or Arabic blocks, and picks the
// reported language from the dominant block or the caller's expectation.
func detectScript(s, expected string) (bool, string) {
	var total, hebrew, arabic int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		switch {
		case unicode.Is(unicode.Hebrew, r):
			hebrew++
		case unicode.Is(unicode.Arabic, r):
			arabic++
		}
	}
	if total > 0 && float64(hebrew+arabic) > rtlRatio*float64(total) {
		if arabic > hebrew {
			return true, "ar"
		}
		return true, "he"
	}
	return false, baseLanguage(expected)
}

// baseLanguage reduces a BCP 47 tag to its base subtag, defaulting to "en".
func baseLanguage(tag string) string {
	if tag == "" {
		return "en"
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return "en"
	}
	base, _ := parsed.Base()
	return base.String()
}
