// Package sanitize strips prompt echoes from generated text so only the
// user-facing answer remains.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// Fallback messages, one per mode. Sanitized output is never empty.
const (
	FallbackAnswer     = "I could not find a relevant answer in the document."
	FallbackSummary    = "I could not generate a summary from the document."
	FallbackComparison = "I could not generate a comparison of the documents."
)

var (
	horizontalRuns = regexp.MustCompile(`[ \t]{2,}`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
	spacedLetters  = regexp.MustCompile(`\b(?:[A-Za-z] ){2,}[A-Za-z]\b`)
	sentenceEnd    = regexp.MustCompile(`[.!?]+[ \t]+`)
)

type modeRules struct {
	marker   *regexp.Regexp // label at line start, anywhere in the text
	leading  *regexp.Regexp // label at the very start of the text
	fallback string
}

func newModeRules(label, fallback string) modeRules {
	shape := label + `[ \t]*(?:\([^)\n]*\))?[ \t]*[:\-]`
	return modeRules{
		marker:   regexp.MustCompile(`(?im)^[ \t]*` + shape),
		leading:  regexp.MustCompile(`(?i)^[ \t]*` + shape + `[ \t]*`),
		fallback: fallback,
	}
}

var modes = map[entities.Mode]modeRules{
	entities.ModeAnswer:     newModeRules("Answer", FallbackAnswer),
	entities.ModeSummary:    newModeRules("Summary", FallbackSummary),
	entities.ModeComparison: newModeRules("Comparison", FallbackComparison),
}

func rulesFor(mode entities.Mode) modeRules {
	if m, ok := modes[mode]; ok {
		return m
	}
	return modes[entities.ModeAnswer]
}

// Fallback returns the fixed message for mode.
func Fallback(mode entities.Mode) string {
	return rulesFor(mode).fallback
}

// maxPasses bounds the cleaning loop. Each pass only removes text, so it
// settles after one or two.
const maxPasses = 4

// Sanitizer applies a compiled rule table.
type Sanitizer struct {
	line *regexp.Regexp

	// nil when no rule has the matching scope
	sentence      *regexp.Regexp // anywhere in a sentence
	sentenceStart *regexp.Regexp // at the start of a sentence
	startInLine   *regexp.Regexp // any sentence start within a line
}

// New compiles rules into a Sanitizer.
func New(rules []Rule) (*Sanitizer, error) {
	var linePats, sentencePats, startPats []string
	for _, r := range rules {
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.Name, err)
		}
		group := "(?:" + r.Pattern + ")"
		linePats = append(linePats, group)
		switch r.Scope {
		case ScopeLineAndSentence:
			sentencePats = append(sentencePats, group)
		case ScopeLineAndSentenceStart:
			startPats = append(startPats, group)
		}
	}

	s := &Sanitizer{}
	if len(linePats) > 0 {
		s.line = regexp.MustCompile(`(?i)^[ \t]*(?:` + strings.Join(linePats, "|") + `)`)
	}
	if len(sentencePats) > 0 {
		s.sentence = regexp.MustCompile(`(?i)` + strings.Join(sentencePats, "|"))
	}
	if len(startPats) > 0 {
		alt := strings.Join(startPats, "|")
		s.sentenceStart = regexp.MustCompile(`(?i)^[ \t]*(?:` + alt + `)`)
		s.startInLine = regexp.MustCompile(`(?i)(?:^|[.!?][ \t]+)[ \t]*(?:` + alt + `)`)
	}
	return s, nil
}

var defaultSanitizer = mustDefault()

func mustDefault() *Sanitizer {
	s, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return s
}

// Default returns the Sanitizer built from DefaultRules.
func Default() *Sanitizer {
	return defaultSanitizer
}

// Sanitize cleans raw with the default rules.
func Sanitize(raw string, mode entities.Mode) string {
	return defaultSanitizer.Sanitize(raw, mode)
}

// Sanitize runs the cleaning pipeline on raw generated text until it stops
// changing. It never returns an empty string.
func (s *Sanitizer) Sanitize(raw string, mode entities.Mode) string {
	m := rulesFor(mode)
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	for i := 0; i < maxPasses; i++ {
		next := s.pass(text, m)
		if next == text {
			break
		}
		text = next
	}
	if text == "" {
		return m.fallback
	}
	return text
}

func (s *Sanitizer) pass(text string, m modeRules) string {
	// repair spacing first so a spaced-out marker is seen below
	text = NormalizeSpacedText(horizontalRuns.ReplaceAllString(text, " "))

	// keep only what follows the last marker
	if locs := m.marker.FindAllStringIndex(text, -1); len(locs) > 0 {
		text = text[locs[len(locs)-1][1]:]
	}

	text = s.filterLines(text)
	text = s.filterSentences(text)

	text = horizontalRuns.ReplaceAllString(text, " ")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	text = NormalizeSpacedText(text)

	for {
		loc := m.leading.FindStringIndex(text)
		if loc == nil {
			break
		}
		text = strings.TrimSpace(text[loc[1]:])
	}
	return text
}

func (s *Sanitizer) filterLines(text string) string {
	if s.line == nil {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, ln := range lines {
		if s.line.MatchString(ln) {
			continue
		}
		kept = append(kept, ln)
	}
	return strings.Join(kept, "\n")
}

func (s *Sanitizer) filterSentences(text string) string {
	if s.sentence == nil && s.sentenceStart == nil {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, ln := range lines {
		if !s.echoInLine(ln) {
			kept = append(kept, ln)
			continue
		}
		var parts []string
		for _, sent := range splitSentences(ln) {
			if s.isEchoSentence(sent) {
				continue
			}
			parts = append(parts, sent)
		}
		if len(parts) > 0 {
			kept = append(kept, strings.Join(parts, " "))
		}
	}
	return strings.Join(kept, "\n")
}

func (s *Sanitizer) echoInLine(ln string) bool {
	return (s.sentence != nil && s.sentence.MatchString(ln)) ||
		(s.startInLine != nil && s.startInLine.MatchString(ln))
}

func (s *Sanitizer) isEchoSentence(sent string) bool {
	return (s.sentence != nil && s.sentence.MatchString(sent)) ||
		(s.sentenceStart != nil && s.sentenceStart.MatchString(sent))
}

// splitSentences splits a line after terminal punctuation, trimming each
// sentence and keeping its punctuation.
func splitSentences(line string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(line, -1) {
		end := loc[0] + len(strings.TrimRight(line[loc[0]:loc[1]], " \t"))
		if sent := strings.TrimSpace(line[start:end]); sent != "" {
			out = append(out, sent)
		}
		start = loc[1]
	}
	if sent := strings.TrimSpace(line[start:]); sent != "" {
		out = append(out, sent)
	}
	return out
}

// NormalizeSpacedText rejoins runs of three or more single letters separated
// by single spaces, as some PDF extractors emit ("N P T E L" -> "NPTEL").
// Ordinary words are untouched.
func NormalizeSpacedText(text string) string {
	return spacedLetters.ReplaceAllStringFunc(text, func(run string) string {
		return strings.ReplaceAll(run, " ", "")
	})
}
