package script

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// contractions maps each recognized contraction to its spoken expansion.
// Ambiguous forms ("he's" as "he has") resolve to the more common reading;
// TTS output tolerates that better than a literal apostrophe.
var contractions = map[string]string{
	"aren't":    "are not",
	"can't":     "cannot",
	"couldn't":  "could not",
	"didn't":    "did not",
	"doesn't":   "does not",
	"don't":     "do not",
	"hadn't":    "had not",
	"hasn't":    "has not",
	"haven't":   "have not",
	"he'd":      "he would",
	"he'll":     "he will",
	"he's":      "he is",
	"here's":    "here is",
	"how's":     "how is",
	"i'd":       "I would",
	"i'll":      "I will",
	"i'm":       "I am",
	"i've":      "I have",
	"isn't":     "is not",
	"it'll":     "it will",
	"it's":      "it is",
	"let's":     "let us",
	"mustn't":   "must not",
	"needn't":   "need not",
	"she'd":     "she would",
	"she'll":    "she will",
	"she's":     "she is",
	"shouldn't": "should not",
	"that's":    "that is",
	"there's":   "there is",
	"they'd":    "they would",
	"they'll":   "they will",
	"they're":   "they are",
	"they've":   "they have",
	"wasn't":    "was not",
	"we'd":      "we would",
	"we'll":     "we will",
	"we're":     "we are",
	"we've":     "we have",
	"weren't":   "were not",
	"what's":    "what is",
	"when's":    "when is",
	"where's":   "where is",
	"who's":     "who is",
	"won't":     "will not",
	"wouldn't":  "would not",
	"you'd":     "you would",
	"you'll":    "you will",
	"you're":    "you are",
	"you've":    "you have",
}

var contractionRE = buildContractionRE()

func buildContractionRE() *regexp.Regexp {
	keys := make([]string, 0, len(contractions))
	for k := range contractions {
		keys = append(keys, regexp.QuoteMeta(k))
	}
	// Longest first so "she'll" is never shadowed by a shorter alternative.
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	return regexp.MustCompile(`(?i)\b(` + strings.Join(keys, "|") + `)\b`)
}

// ExpandContractions replaces every recognized contraction with its spoken
// form. Curly apostrophes are normalized first. The result carries no
// apostrophized forms from the table, so a second pass is a no-op.
func ExpandContractions(s string) string {
	s = strings.ReplaceAll(s, "’", "'")
	return contractionRE.ReplaceAllStringFunc(s, expandMatch)
}

// expandMatch mirrors the case of the matched contraction onto its
// expansion: leading capital stays a leading capital, all-caps stays
// all-caps.
func expandMatch(m string) string {
	exp, ok := contractions[strings.ToLower(m)]
	if !ok {
		return m
	}
	if m == strings.ToUpper(m) && len(m) > 2 {
		return strings.ToUpper(exp)
	}
	first := []rune(m)[0]
	if unicode.IsUpper(first) {
		er := []rune(exp)
		er[0] = unicode.ToUpper(er[0])
		return string(er)
	}
	return exp
}
