// Package mission turns a free-form mission statement into a structured
// production brief separating speakable script from visual instructions and
// tone metadata. A text model does the parsing when one is configured; a
// rule-based extractor covers model failures and low-confidence output.
package mission

import (
	"strings"
	"unicode"
)

// ParsedMission is the structured brief produced from one mission statement.
// ScriptContent holds only speakable text; camera language and stage
// directions live in VisualInstructions.
type ParsedMission struct {
	Original              string            `json:"original"`
	ScriptContent         string            `json:"script_content"`
	VisualInstructions    []string          `json:"visual_instructions"`
	CharacterDescriptions map[string]string `json:"character_descriptions,omitempty"`
	SceneDescriptions     []string          `json:"scene_descriptions,omitempty"`
	StyleNotes            string            `json:"style_notes,omitempty"`
	SpecialEffects        []string          `json:"special_effects,omitempty"`
	IsSatirical           bool              `json:"is_satirical"`
	MissionType           string            `json:"mission_type"`
	ParsingConfidence     float64           `json:"parsing_confidence"`
}

// Mission type labels assigned by classification.
const (
	TypeNews        = "news"
	TypeEducational = "educational"
	TypeStory       = "story"
	TypeComedy      = "comedy"
	TypeGeneral     = "general"
)

// visualCues are sentence prefixes that mark production directions rather
// than spoken lines.
var visualCues = []string{
	"show ",
	"cut to",
	"scene:",
	"visual:",
	"pan ",
	"zoom in",
	"zoom out",
	"fade ",
	"camera ",
}

// isVisualCue reports whether a sentence is a production direction.
func isVisualCue(s string) bool {
	l := strings.ToLower(strings.TrimSpace(s))
	if l == "" {
		return false
	}
	switch l[0] {
	case '(', '*', '[':
		return true
	}
	for _, cue := range visualCues {
		if strings.HasPrefix(l, cue) {
			return true
		}
	}
	return false
}

// enforceScriptInvariant moves any production direction that leaked into
// ScriptContent over to VisualInstructions. Model output violates the
// separation often enough that both parse paths run through here.
func enforceScriptInvariant(pm *ParsedMission) {
	if strings.TrimSpace(pm.ScriptContent) == "" {
		pm.ScriptContent = ""
		return
	}
	var spoken []string
	for _, sentence := range splitSentences(pm.ScriptContent) {
		if isVisualCue(sentence) {
			pm.VisualInstructions = append(pm.VisualInstructions, trimDirection(sentence))
			continue
		}
		spoken = append(spoken, strings.TrimSpace(sentence))
	}
	pm.ScriptContent = strings.Join(spoken, " ")
}

// trimDirection normalizes a direction for storage: wrapper glyphs and
// terminal punctuation dropped.
func trimDirection(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*()[]")
	s = strings.TrimRight(s, ".!? ")
	return strings.TrimSpace(s)
}

// splitSentences splits on .!? terminators, keeping the terminator with its
// sentence and never splitting inside a decimal number.
func splitSentences(s string) []string {
	var out []string
	runes := []rune(s)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if r == '.' && i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
			continue
		}
		// Consume a run of terminators ("?!", "...").
		for i+1 < len(runes) {
			next := runes[i+1]
			if next != '.' && next != '!' && next != '?' {
				break
			}
			i++
		}
		if sentence := strings.TrimSpace(string(runes[start : i+1])); sentence != "" {
			out = append(out, sentence)
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

// classifyType buckets a mission by its dominant intent keywords.
func classifyType(s string) string {
	l := strings.ToLower(s)
	switch {
	case containsAny(l, "breaking", "news", "anchor", "headline"):
		return TypeNews
	case containsAny(l, "explain", "teach", "how to", "why ", "what is"):
		return TypeEducational
	case containsAny(l, "story", "tale", "once upon"):
		return TypeStory
	case containsAny(l, "joke", "funny", "comedy", "sketch"):
		return TypeComedy
	default:
		return TypeGeneral
	}
}

// satireLexicon marks a mission as satirical when present.
var satireLexicon = []string{"satire", "satirical", "parody", "spoof", "mock news", "mockumentary"}

func isSatirical(s string) bool {
	return containsAny(strings.ToLower(s), satireLexicon...)
}

// styleMarkers are recognized visual-style phrases, longest first so broad
// markers do not shadow specific ones.
var styleMarkers = []string{
	"family guy style",
	"documentary style",
	"anime style",
	"cartoon style",
	"claymation",
	"cinematic",
	"realistic",
	"cartoon",
	"anime",
	"pixar",
	"noir",
}

// extractStyleNotes collects style phrases from the mission text.
func extractStyleNotes(s string) string {
	l := strings.ToLower(s)
	var found []string
	for _, marker := range styleMarkers {
		if !strings.Contains(l, marker) {
			continue
		}
		covered := false
		for _, f := range found {
			if strings.Contains(f, marker) {
				covered = true
				break
			}
		}
		if !covered {
			found = append(found, marker)
		}
	}
	return strings.Join(found, ", ")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
