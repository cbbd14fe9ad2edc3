// Package script turns raw speakable text into a TTS-ready script: one
// sentence per segment, contractions expanded, word count fitted to the
// target duration at the assumed speaking rate.
package script

import "golang.org/x/text/language"

// DurationMatch grades how the estimated duration relates to the target.
type DurationMatch string

const (
	// MatchPerfect means the estimate landed within two seconds of target.
	MatchPerfect DurationMatch = "perfect"
	// MatchClose means within five seconds.
	MatchClose DurationMatch = "close"
	// MatchAdjusted means the text was reprocessed to fit the budget.
	MatchAdjusted DurationMatch = "adjusted"
	// MatchFallback means the model path was unavailable or the input was
	// empty and the verbatim split was used.
	MatchFallback DurationMatch = "fallback"
)

// WordsPerSecond is the assumed speaking rate used to convert word counts
// into seconds. TTS engines land close enough to this for planning purposes.
const WordsPerSecond = 2.5

// Segment is one synthesis unit: exactly one sentence.
type Segment struct {
	Text            string  `json:"text"`
	Duration        float64 `json:"duration"`
	WordCount       int     `json:"word_count"`
	VoiceSuggestion string  `json:"voice_suggestion,omitempty"`
}

// ProcessedScript is the result of fitting a script to a target duration.
type ProcessedScript struct {
	OptimizedScript        string        `json:"optimized_script"`
	Segments               []Segment     `json:"segments"`
	TotalEstimatedDuration float64       `json:"total_estimated_duration"`
	TotalWordCount         int           `json:"total_word_count"`
	DurationMatch          DurationMatch `json:"duration_match"`
	TargetDuration         float64       `json:"target_duration"`
	Language               string        `json:"language"`
}

// languageRule carries the per-language processing knobs.
type languageRule struct {
	// maxSentenceWords caps sentence length before a comma or conjunction
	// split is attempted.
	maxSentenceWords int
	// wordsPerSecond is the speaking rate for this language.
	wordsPerSecond float64
	// stripWrapGlyphs removes parentheses and brackets, which RTL TTS
	// engines tend to read aloud.
	stripWrapGlyphs bool
}

var languageRules = map[string]languageRule{
	"en": {maxSentenceWords: 15, wordsPerSecond: WordsPerSecond},
	"de": {maxSentenceWords: 18, wordsPerSecond: WordsPerSecond},
	"he": {maxSentenceWords: 12, wordsPerSecond: WordsPerSecond, stripWrapGlyphs: true},
	"ar": {maxSentenceWords: 12, wordsPerSecond: WordsPerSecond, stripWrapGlyphs: true},
}

var defaultRule = languageRule{maxSentenceWords: 15, wordsPerSecond: WordsPerSecond}

// ruleFor returns the processing rule for a BCP 47 tag, reduced to its base
// subtag. Unknown languages get the default rule.
func ruleFor(tag string) (string, languageRule) {
	base := "en"
	if tag != "" {
		if parsed, err := language.Parse(tag); err == nil {
			b, _ := parsed.Base()
			base = b.String()
		}
	}
	if rule, ok := languageRules[base]; ok {
		return base, rule
	}
	return base, defaultRule
}
