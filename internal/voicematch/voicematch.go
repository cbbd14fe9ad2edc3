// Package voicematch selects narration voices from a provider's catalog using
// Double Metaphone phonetic encoding combined with Jaro-Winkler string
// similarity.
//
// Script style notes arrive as free text ("warm female narrator", "deep
// documentary voice") and voice catalogs use marketing names ("Nova",
// "Onyx"), so exact matching is hopeless. The matcher proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each token of the style note and for each voice's name and style tags.
//     Any code overlap makes the voice a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the voice with the
//     highest Jaro-Winkler similarity (case-insensitive, on the original
//     strings) wins, provided it clears the phonetic threshold (default
//     0.70). When no phonetic candidate exists, a second pass ranks all
//     voices by pure Jaro-Winkler against a stricter fuzzy threshold
//     (default 0.85).
//
// Catalogs are filtered by language first: a request for "en-US" considers
// "en-GB" voices (same base language) but not "de-DE" ones. When nothing in
// the catalog speaks the requested language the filter is dropped rather
// than failing, since any voice beats silence.
package voicematch

import (
	"strings"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/language"

	"github.com/MrWong99/reelforge/pkg/provider/speech"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched voice to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher ranks catalog voices against free-text style notes. All methods
// are safe for concurrent use; the Matcher is read-only after construction.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a new [Matcher] configured with the supplied options.
// Default thresholds are 0.70 for phonetic matches and 0.85 for fuzzy
// fallback matches.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Suggest picks the catalog voice best matching the style note for the given
// BCP-47 language. The catalog is narrowed to voices sharing the language's
// base subtag when any exist. A blank style note, or one matching nothing,
// yields the first language-appropriate voice with confidence 0: a default
// pick, not a scored match. ok is false only when the catalog is empty.
func (m *Matcher) Suggest(style, lang string, voices []speech.Voice) (v speech.Voice, confidence float64, ok bool) {
	if len(voices) == 0 {
		return speech.Voice{}, 0, false
	}

	pool := filterByLanguage(voices, lang)
	if len(pool) == 0 {
		pool = voices
	}

	style = strings.TrimSpace(style)
	if style == "" {
		return pool[0], 0, true
	}

	styleLower := strings.ToLower(style)
	styleTokens := strings.Fields(styleLower)
	inputCodes := codesForTokens(styleTokens)

	type candidate struct {
		voice    speech.Voice
		score    float64
		phonetic bool
	}
	var best candidate

	for _, voice := range pool {
		text := describeVoice(voice)
		textTokens := strings.Fields(text)
		phoneticMatch := codesOverlap(inputCodes, codesForTokens(textTokens))
		jwScore := bestJWScore(styleTokens, textTokens, styleLower, text)

		if phoneticMatch {
			if jwScore >= m.phoneticThreshold {
				if !best.phonetic || jwScore > best.score {
					best = candidate{voice: voice, score: jwScore, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if jwScore >= m.fuzzyThreshold && jwScore > best.score {
				best = candidate{voice: voice, score: jwScore, phonetic: false}
			}
		}
	}

	if best.score > 0 {
		return best.voice, best.score, true
	}
	return pool[0], 0, true
}

// Match attempts to find the candidate string most phonetically similar to
// term. term may be a single word or a space-separated phrase; multi-word
// candidates are compared token-wise as well as whole.
//
// When matched is false, corrected equals term unchanged and confidence is 0.
func (m *Matcher) Match(term string, candidates []string) (corrected string, confidence float64, matched bool) {
	if len(candidates) == 0 || strings.TrimSpace(term) == "" {
		return term, 0, false
	}

	termLower := strings.ToLower(strings.TrimSpace(term))
	termTokens := strings.Fields(termLower)
	inputCodes := codesForTokens(termTokens)

	type candidate struct {
		text     string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, c := range candidates {
		cLower := strings.ToLower(strings.TrimSpace(c))
		if cLower == "" {
			continue
		}
		cTokens := strings.Fields(cLower)
		phoneticMatch := codesOverlap(inputCodes, codesForTokens(cTokens))
		jwScore := bestJWScore(termTokens, cTokens, termLower, cLower)

		if phoneticMatch {
			if jwScore >= m.phoneticThreshold {
				if !best.phonetic || jwScore > best.score {
					best = candidate{text: c, score: jwScore, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if jwScore >= m.fuzzyThreshold && jwScore > best.score {
				best = candidate{text: c, score: jwScore, phonetic: false}
			}
		}
	}

	if best.text != "" {
		return best.text, best.score, true
	}
	return term, 0, false
}

// describeVoice flattens a voice into lowercase matchable text: its name,
// style tags, and gender.
func describeVoice(v speech.Voice) string {
	parts := make([]string, 0, len(v.Styles)+2)
	if v.Name != "" {
		parts = append(parts, v.Name)
	}
	parts = append(parts, v.Styles...)
	if v.Gender != "" {
		parts = append(parts, v.Gender)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// filterByLanguage keeps voices whose language shares the base subtag with
// lang ("en-US" matches "en-GB"). Unparseable tags fall back to literal
// case-insensitive comparison.
func filterByLanguage(voices []speech.Voice, lang string) []speech.Voice {
	if strings.TrimSpace(lang) == "" {
		return voices
	}
	want, err := language.Parse(lang)
	if err != nil {
		var out []speech.Voice
		for _, v := range voices {
			if strings.EqualFold(v.Language, lang) {
				out = append(out, v)
			}
		}
		return out
	}
	wantBase, _ := want.Base()

	var out []speech.Voice
	for _, v := range voices {
		got, err := language.Parse(v.Language)
		if err != nil {
			continue
		}
		gotBase, _ := got.Base()
		if gotBase == wantBase {
			out = append(out, v)
		}
	}
	return out
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (produced when the word is too short or contains
// no consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	// Iterate over the smaller set for efficiency.
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the input
// and the candidate using three strategies:
//
//  1. Full-string comparison ("warm narrator" vs "narrator warm").
//  2. Space-stripped comparison ("onyxdeep" vs "onyx deep").
//  3. Best pairwise token comparison, for when one note token corresponds to
//     one catalog token.
//
// longTolerance is passed as false to use standard Jaro-Winkler scoring.
func bestJWScore(inputTokens, candidateTokens []string, inputFull, candidateFull string) float64 {
	// Strategy 1: full strings.
	score := matchr.JaroWinkler(inputFull, candidateFull, false)

	// Strategy 2: concatenated (no spaces).
	if len(inputTokens) > 1 || len(candidateTokens) > 1 {
		concat1 := strings.Join(inputTokens, "")
		concat2 := strings.Join(candidateTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	// Strategy 3: best pairwise token score.
	for _, it := range inputTokens {
		for _, ct := range candidateTokens {
			if s := matchr.JaroWinkler(it, ct, false); s > score {
				score = s
			}
		}
	}

	return score
}
