package mission

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/MrWong99/reelforge/pkg/fault"
	"github.com/MrWong99/reelforge/pkg/provider/text"
)

// Confidence bands for model output. At or above reliable the result is used
// as-is; below floor it is discarded for the heuristic; in between it is kept
// with a warning.
const (
	confidenceReliable = 0.8
	confidenceFloor    = 0.6
)

// heuristicBaseConfidence is what the rule-based path starts from; finding
// dialogue and directions raises it.
const heuristicBaseConfidence = 0.5

const parsePromptTemplate = `You are a short-video production planner. Split the mission below into spoken script content and production directions.

Mission:
%s

Respond with a JSON object shaped like this:
{
  "script_content": "every word that should be spoken aloud, nothing else",
  "visual_instructions": ["camera or scene directions"],
  "character_descriptions": {"name": "description"},
  "scene_descriptions": ["settings in order of appearance"],
  "style_notes": "overall visual style",
  "special_effects": ["effects to apply"],
  "is_satirical": false,
  "mission_type": "news|educational|story|comedy|general",
  "parsing_confidence": 0.0
}

script_content must contain only speakable text: no stage directions, no camera language, no markup. parsing_confidence is your own 0..1 estimate of how cleanly the mission separated.`

var missionSchema = []byte(`{
	"type": "object",
	"required": ["script_content", "parsing_confidence"],
	"properties": {
		"script_content": {"type": "string"},
		"visual_instructions": {"type": "array", "items": {"type": "string"}},
		"character_descriptions": {"type": "object", "additionalProperties": {"type": "string"}},
		"scene_descriptions": {"type": "array", "items": {"type": "string"}},
		"style_notes": {"type": "string"},
		"special_effects": {"type": "array", "items": {"type": "string"}},
		"is_satirical": {"type": "boolean"},
		"mission_type": {"type": "string"},
		"parsing_confidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`)

// Parser produces a ParsedMission from a mission statement.
type Parser struct {
	text text.Provider
	log  *slog.Logger
}

// Option adjusts a Parser.
type Option func(*Parser)

// WithTextProvider enables the model-backed parse path. Without it every
// mission goes through the rule-based extractor.
func WithTextProvider(p text.Provider) Option {
	return func(pr *Parser) { pr.text = p }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(pr *Parser) { pr.log = l }
}

// NewParser returns a Parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{log: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse analyzes one mission statement. The model path is tried first when a
// text provider is configured; its output is discarded for the rule-based
// extractor when the model fails, reports low confidence, or returns no
// speakable content. Parse fails only on empty input or context
// cancellation.
func (p *Parser) Parse(ctx context.Context, missionText string) (*ParsedMission, error) {
	trimmed := strings.TrimSpace(missionText)
	if trimmed == "" {
		return nil, fmt.Errorf("parse mission: %w: empty mission", fault.ErrInvalidRequest)
	}

	if p.text == nil {
		pm := parseHeuristic(trimmed)
		enforceScriptInvariant(pm)
		return pm, nil
	}

	var pm ParsedMission
	err := text.GenerateStructured(ctx, p.text, fmt.Sprintf(parsePromptTemplate, trimmed), missionSchema, &pm)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("parse mission: %w", err)
		}
		p.log.WarnContext(ctx, "model mission parse failed, using heuristic", "error", err)
		pm := parseHeuristic(trimmed)
		enforceScriptInvariant(pm)
		return pm, nil
	}

	switch {
	case pm.ParsingConfidence < confidenceFloor || strings.TrimSpace(pm.ScriptContent) == "":
		p.log.WarnContext(ctx, "model mission parse discarded",
			"confidence", pm.ParsingConfidence)
		h := parseHeuristic(trimmed)
		enforceScriptInvariant(h)
		return h, nil
	case pm.ParsingConfidence < confidenceReliable:
		p.log.WarnContext(ctx, "model mission parse kept below reliable confidence",
			"confidence", pm.ParsingConfidence)
	}

	pm.Original = trimmed
	if pm.MissionType == "" {
		pm.MissionType = classifyType(trimmed)
	}
	enforceScriptInvariant(&pm)
	return &pm, nil
}

var (
	starSpanRE    = regexp.MustCompile(`\*([^*]+)\*`)
	parenSpanRE   = regexp.MustCompile(`\(([^()]+)\)`)
	bracketSpanRE = regexp.MustCompile(`\[([^\[\]]+)\]`)
	dialogueRE    = regexp.MustCompile(`([A-Z][\w '-]{0,40}?)(?:\s+says)?\s*:\s*["“]([^"”]+)["”]`)
	visualPrefix  = regexp.MustCompile(`(?i)^\s*visual\s*:\s*`)
)

// parseHeuristic extracts dialogue and production directions with fixed
// rules: wrapped spans and cue sentences become directions, quoted lines
// after a speaker label become the script, everything else that reads as
// prose stays spoken.
func parseHeuristic(missionText string) *ParsedMission {
	pm := &ParsedMission{
		Original:    missionText,
		MissionType: classifyType(missionText),
		IsSatirical: isSatirical(missionText),
		StyleNotes:  extractStyleNotes(missionText),
	}

	work := missionText

	for _, re := range []*regexp.Regexp{starSpanRE, parenSpanRE, bracketSpanRE} {
		for _, m := range re.FindAllStringSubmatch(work, -1) {
			instr := visualPrefix.ReplaceAllString(m[1], "")
			if instr = trimDirection(instr); instr != "" {
				pm.VisualInstructions = append(pm.VisualInstructions, instr)
			}
		}
		work = re.ReplaceAllString(work, " ")
	}

	var dialogue []string
	for _, m := range dialogueRE.FindAllStringSubmatch(work, -1) {
		if line := strings.TrimSpace(m[2]); line != "" {
			dialogue = append(dialogue, line)
		}
	}
	work = dialogueRE.ReplaceAllString(work, " ")

	var narration []string
	for _, sentence := range splitSentences(work) {
		if isVisualCue(sentence) {
			if instr := trimDirection(sentence); instr != "" {
				pm.VisualInstructions = append(pm.VisualInstructions, instr)
			}
			continue
		}
		narration = append(narration, strings.TrimSpace(sentence))
	}

	pm.ScriptContent = strings.Join(append(dialogue, narration...), " ")

	confidence := heuristicBaseConfidence
	if len(dialogue) > 0 {
		confidence += 0.2
	}
	if len(pm.VisualInstructions) > 0 {
		confidence += 0.1
	}
	pm.ParsingConfidence = confidence
	return pm
}
