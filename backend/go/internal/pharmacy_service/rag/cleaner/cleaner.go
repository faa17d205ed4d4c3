// Package cleaner strips reasoning traces from model output.
package cleaner

import (
	"regexp"
	"strings"
)

// Markers are the literal strings the cleaner looks for.
type Markers struct {
	Final    string
	Thinking string
	Answer   []string
}

// DefaultMarkers returns the markers used when none are configured.
func DefaultMarkers() Markers {
	return Markers{
		Final:    "Final Answer:",
		Thinking: "Thinking Process:",
		Answer:   []string{"Answer:", "Jawab:"},
	}
}

// Cleaner is safe for concurrent use.
type Cleaner struct {
	final    string
	thinking string
	trace    *regexp.Regexp
}

// New compiles a cleaner for the given markers. Empty fields fall back to the defaults.
func New(m Markers) *Cleaner {
	def := DefaultMarkers()
	if m.Final == "" {
		m.Final = def.Final
	}
	if m.Thinking == "" {
		m.Thinking = def.Thinking
	}
	if len(m.Answer) == 0 {
		m.Answer = def.Answer
	}

	alts := make([]string, len(m.Answer))
	for i, a := range m.Answer {
		alts[i] = regexp.QuoteMeta(a)
	}
	return &Cleaner{
		final:    m.Final,
		thinking: m.Thinking,
		trace:    regexp.MustCompile(regexp.QuoteMeta(m.Thinking) + `[\s\S]*?(?:` + strings.Join(alts, "|") + `)`),
	}
}

// Clean returns the user-facing part of raw:
//   - with a final-answer marker, the text after its last occurrence, trimmed;
//   - else with a thinking marker, raw minus every span from the thinking marker
//     through the nearest following answer marker, trimmed;
//   - else raw unchanged.
func (c *Cleaner) Clean(raw string) string {
	if raw == "" {
		return ""
	}
	if i := strings.LastIndex(raw, c.final); i >= 0 {
		return strings.TrimSpace(raw[i+len(c.final):])
	}
	if strings.Contains(raw, c.thinking) {
		return strings.TrimSpace(c.trace.ReplaceAllLiteralString(raw, ""))
	}
	return raw
}
