package script

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/MrWong99/reelforge/internal/voicematch"
	"github.com/MrWong99/reelforge/pkg/fault"
	"github.com/MrWong99/reelforge/pkg/provider/speech"
	"github.com/MrWong99/reelforge/pkg/provider/text"
)

// Acceptance windows for the model path, in seconds off target.
const (
	perfectWindow = 2.0
	closeWindow   = 5.0
)

// Budget fitting thresholds. Trimming engages above trimEnter times the
// word budget and stops at trimExit; padding engages below padEnter.
const (
	trimEnter = 1.2
	trimExit  = 1.1
	padEnter  = 0.6
)

const optimizePromptTemplate = `Rewrite the script below so it can be spoken in about %.0f seconds at a natural pace: roughly %d words. Keep the meaning and tone. Use short plain sentences. No stage directions, no markup, no lists.

Script:
%s

Respond with a JSON object: {"optimized_script": "the rewritten script"}`

var scriptSchema = []byte(`{
	"type": "object",
	"required": ["optimized_script"],
	"properties": {
		"optimized_script": {"type": "string"}
	}
}`)

// Request carries one script through processing.
type Request struct {
	// Script is the speakable text from mission parsing.
	Script string
	// Language is a BCP 47 tag; its base subtag picks the processing rule.
	Language string
	// TargetDuration is the wanted narration length in seconds.
	TargetDuration float64
	// StyleNotes drive the voice suggestion when a catalog is configured.
	StyleNotes string
	// BudgetScale multiplies the word budget. The pipeline narrows or widens
	// it between regeneration attempts based on measured audio. Zero means 1.
	BudgetScale float64
}

// Processor fits scripts to a duration budget. A text provider enables the
// model rewrite path; without one every script takes the verbatim split.
type Processor struct {
	text    text.Provider
	matcher *voicematch.Matcher
	voices  []speech.Voice
	log     *slog.Logger
}

// Option adjusts a Processor.
type Option func(*Processor)

// WithTextProvider enables the model rewrite path.
func WithTextProvider(p text.Provider) Option {
	return func(pr *Processor) { pr.text = p }
}

// WithVoiceCatalog supplies the speech voices used for per-segment voice
// suggestions.
func WithVoiceCatalog(voices []speech.Voice) Option {
	return func(pr *Processor) { pr.voices = voices }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(pr *Processor) { pr.log = l }
}

// NewProcessor returns a Processor.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		matcher: voicematch.New(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process fits req.Script to req.TargetDuration. The model rewrite is tried
// first when configured and accepted as-is within five seconds of target;
// otherwise the text is trimmed or padded against the word budget. Model
// failures fall back to a verbatim sentence split. Empty input yields an
// empty fallback script, not an error.
func (p *Processor) Process(ctx context.Context, req Request) (*ProcessedScript, error) {
	if req.TargetDuration <= 0 {
		return nil, fmt.Errorf("process script: %w: target duration must be positive", fault.ErrInvalidRequest)
	}
	base, rule := ruleFor(req.Language)

	scale := req.BudgetScale
	if scale <= 0 {
		scale = 1
	}
	budget := int(math.Round(req.TargetDuration * rule.wordsPerSecond * scale))
	if budget < 1 {
		budget = 1
	}

	trimmed := strings.TrimSpace(req.Script)
	if trimmed == "" {
		return &ProcessedScript{
			DurationMatch:  MatchFallback,
			TargetDuration: req.TargetDuration,
			Language:       base,
		}, nil
	}

	original := prepareSentences(trimmed, rule)

	sentences := original
	match := MatchFallback

	if p.text != nil {
		aiText, err := p.generateOptimized(ctx, trimmed, req.TargetDuration, budget)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("process script: %w", err)
			}
			p.log.WarnContext(ctx, "model script rewrite failed, using verbatim split", "error", err)
		} else if candidate := prepareSentences(aiText, rule); len(candidate) == 0 {
			p.log.WarnContext(ctx, "model script rewrite returned no usable text, using verbatim split")
		} else {
			diff := math.Abs(estimateSeconds(candidate, rule) - req.TargetDuration)
			switch {
			case diff <= perfectWindow:
				sentences, match = candidate, MatchPerfect
			case diff <= closeWindow:
				sentences, match = candidate, MatchClose
			default:
				sentences, match = fitToBudget(candidate, original, budget), MatchAdjusted
			}
		}
	}

	return p.assemble(sentences, base, rule, req, match), nil
}

// generateOptimized asks the text provider for a rewrite sized to the word
// budget.
func (p *Processor) generateOptimized(ctx context.Context, script string, target float64, budget int) (string, error) {
	var out struct {
		OptimizedScript string `json:"optimized_script"`
	}
	prompt := fmt.Sprintf(optimizePromptTemplate, target, budget, script)
	if err := text.GenerateStructured(ctx, p.text, prompt, scriptSchema, &out); err != nil {
		return "", err
	}
	return out.OptimizedScript, nil
}

// prepareSentences expands contractions, applies language glyph rules, and
// splits into capped single sentences.
func prepareSentences(s string, rule languageRule) []string {
	s = ExpandContractions(s)
	if rule.stripWrapGlyphs {
		s = stripWrapGlyphs(s)
	}
	return splitLongSentences(SplitSentences(s), rule.maxSentenceWords)
}

// fitToBudget trims whole sentences from the end while the word count sits
// above trimEnter times the budget (stopping at trimExit), or pads with
// sentences cycled from the original script while below padEnter.
func fitToBudget(sentences, padSource []string, budget int) []string {
	wc := totalWords(sentences)

	if float64(wc) > trimEnter*float64(budget) {
		for len(sentences) > 1 && float64(totalWords(sentences)) > trimExit*float64(budget) {
			sentences = sentences[:len(sentences)-1]
		}
		return sentences
	}

	if float64(wc) < padEnter*float64(budget) && len(padSource) > 0 {
		out := make([]string, len(sentences), len(sentences)+len(padSource))
		copy(out, sentences)
		for i := 0; totalWords(out) < budget; i++ {
			out = append(out, padSource[i%len(padSource)])
		}
		return out
	}

	return sentences
}

// assemble builds the final ProcessedScript from fitted sentences.
func (p *Processor) assemble(sentences []string, base string, rule languageRule, req Request, match DurationMatch) *ProcessedScript {
	voice := ""
	if len(p.voices) > 0 && req.StyleNotes != "" {
		if v, _, ok := p.matcher.Suggest(req.StyleNotes, base, p.voices); ok {
			voice = v.ID
		}
	}

	segments := make([]Segment, 0, len(sentences))
	words := 0
	total := 0.0
	for _, s := range sentences {
		wc := len(strings.Fields(s))
		d := float64(wc) / rule.wordsPerSecond
		segments = append(segments, Segment{
			Text:            s,
			Duration:        d,
			WordCount:       wc,
			VoiceSuggestion: voice,
		})
		words += wc
		total += d
	}

	return &ProcessedScript{
		OptimizedScript:        strings.Join(sentences, " "),
		Segments:               segments,
		TotalEstimatedDuration: total,
		TotalWordCount:         words,
		DurationMatch:          match,
		TargetDuration:         req.TargetDuration,
		Language:               base,
	}
}

func totalWords(sentences []string) int {
	n := 0
	for _, s := range sentences {
		n += len(strings.Fields(s))
	}
	return n
}

func estimateSeconds(sentences []string, rule languageRule) float64 {
	return float64(totalWords(sentences)) / rule.wordsPerSecond
}
