package script

import (
	"strings"
	"unicode"
)

// isTerminator reports whether r ends a sentence.
func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', ';', ':':
		return true
	}
	return false
}

// SplitSentences splits text into sentences on .!?;: terminators. The
// terminator stays with its sentence; runs of terminators ("?!", "...")
// stay together; a '.' or ':' between digits (4.2, 3:30) never splits.
func SplitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if !isTerminator(r) {
			continue
		}
		if (r == '.' || r == ':') && i > 0 && i+1 < len(runes) &&
			unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
			continue
		}
		for i+1 < len(runes) && isTerminator(runes[i+1]) {
			i++
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

// conjunctions are acceptable split words for overlong sentences.
var conjunctions = map[string]struct{}{
	"and": {}, "but": {}, "or": {}, "so": {}, "because": {}, "while": {}, "which": {}, "then": {},
}

// splitLongSentences enforces the per-language sentence cap. Sentences over
// the cap are split at the comma nearest the middle, then at a conjunction,
// and as a last resort at the midpoint.
func splitLongSentences(sentences []string, maxWords int) []string {
	if maxWords <= 0 {
		return sentences
	}
	var out []string
	for _, s := range sentences {
		out = append(out, splitLongSentence(s, maxWords)...)
	}
	return out
}

func splitLongSentence(s string, maxWords int) []string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return []string{s}
	}

	idx := commaSplitIndex(words)
	if idx < 0 {
		idx = conjunctionSplitIndex(words)
	}
	if idx < 0 {
		idx = len(words) / 2
	}

	first := strings.Join(words[:idx], " ")
	first = strings.TrimRight(first, ",") + "."
	second := strings.Join(words[idx:], " ")

	var out []string
	out = append(out, splitLongSentence(first, maxWords)...)
	out = append(out, splitLongSentence(second, maxWords)...)
	return out
}

// commaSplitIndex returns the index of the word following the comma nearest
// the middle of the sentence, or -1.
func commaSplitIndex(words []string) int {
	mid := len(words) / 2
	best := -1
	bestDist := len(words)
	for i, w := range words[:len(words)-1] {
		if !strings.HasSuffix(w, ",") {
			continue
		}
		if dist := abs(i + 1 - mid); dist < bestDist {
			best = i + 1
			bestDist = dist
		}
	}
	return best
}

// conjunctionSplitIndex returns the index of the conjunction nearest the
// middle so the second half starts with it, or -1. Splits at the sentence
// edges are skipped.
func conjunctionSplitIndex(words []string) int {
	mid := len(words) / 2
	best := -1
	bestDist := len(words)
	for i := 1; i < len(words)-1; i++ {
		w := strings.ToLower(strings.Trim(words[i], ",.!?;:"))
		if _, ok := conjunctions[w]; !ok {
			continue
		}
		if dist := abs(i - mid); dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best
}

// stripWrapGlyphs removes parentheses and brackets. RTL TTS engines read
// them aloud, so fitted RTL text must not carry them.
func stripWrapGlyphs(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '(', ')', '[', ']', '{', '}':
			return -1
		}
		return r
	}, s)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
