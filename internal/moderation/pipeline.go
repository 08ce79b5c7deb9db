// Package moderation classifies chat messages and cleans display names.
package moderation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Severity separates abuse, which counts toward ejection, from noise, which does not.
type Severity int

const (
	// Hard rejects are dropped with a notice and have no further consequence.
	Hard Severity = iota
	// Soft rejects are notified and recorded as a violation against the sender.
	Soft
)

func (s Severity) String() string {
	if s == Soft {
		return "soft"
	}
	return "hard"
}

// Rejection reasons. They are shown to the sender verbatim.
const (
	ReasonInvalid       = "invalid message"
	ReasonInappropriate = "inappropriate content"
	ReasonSpam          = "spam detected"
)

// Verdict is the result of classifying one message.
type Verdict struct {
	Accepted bool
	Reason   string
	Severity Severity
}

var accept = Verdict{Accepted: true}

const (
	repeatRunLimit = 11  // identical characters in a row
	capsMinLetters = 10  // caps rule applies above this many letters
	capsRatioLimit = 0.7 // uppercase share that counts as shouting
)

// Config drives a Pipeline.
type Config struct {
	MaxLength int
	BlockList []string
	// UsernameScripts names unicode.Scripts entries allowed in display names
	// in addition to ASCII letters and digits.
	UsernameScripts []string
}

// Pipeline is immutable after construction and safe for concurrent use.
type Pipeline struct {
	maxLength int
	words     []string
	patterns  []*regexp.Regexp
	scripts   []*unicode.RangeTable
}

// NewPipeline compiles the block list once.
func NewPipeline(cfg Config) *Pipeline {
	p := &Pipeline{maxLength: cfg.MaxLength}

	for _, w := range cfg.BlockList {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		p.words = append(p.words, w)
		p.patterns = append(p.patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)+`\b`))
	}

	for _, name := range cfg.UsernameScripts {
		if table, ok := unicode.Scripts[name]; ok {
			p.scripts = append(p.scripts, table)
		}
	}

	return p
}

// Classify runs the checks in order and stops at the first match:
// structure, profanity, spam.
func (p *Pipeline) Classify(text string) Verdict {
	if !p.IsValidMessage(text) {
		return Verdict{Reason: ReasonInvalid, Severity: Hard}
	}
	if p.ContainsProfanity(text) {
		return Verdict{Reason: ReasonInappropriate, Severity: Soft}
	}
	if IsSpam(text) {
		return Verdict{Reason: ReasonSpam, Severity: Hard}
	}
	return accept
}

// IsValidMessage checks the trimmed text is non-empty and within the length limit in code points.
func (p *Pipeline) IsValidMessage(text string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	return n > 0 && n <= p.maxLength
}

// ContainsProfanity matches on word boundaries and by plain containment.
// Containment covers scripts where \b never fires.
func (p *Pipeline) ContainsProfanity(text string) bool {
	lower := strings.ToLower(text)
	for i, w := range p.words {
		if p.patterns[i].MatchString(lower) || strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// IsSpam flags long runs of one character and mostly-uppercase Latin text.
func IsSpam(text string) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if run > 0 && r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= repeatRunLimit {
			return true
		}
	}

	letters, upper := 0, 0
	for _, r := range text {
		switch {
		case r >= 'A' && r <= 'Z':
			letters++
			upper++
		case r >= 'a' && r <= 'z':
			letters++
		}
	}
	return letters > capsMinLetters && float64(upper)/float64(letters) > capsRatioLimit
}

// SanitizeUsername keeps ASCII letters, digits, whitespace and the configured scripts, then trims.
func (p *Pipeline) SanitizeUsername(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if p.allowedInName(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func (p *Pipeline) allowedInName(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case unicode.IsSpace(r):
		return true
	}
	for _, table := range p.scripts {
		if unicode.Is(table, r) {
			return true
		}
	}
	return false
}

// IsValidUsername checks an already sanitized name against [min, max] code points.
func IsValidUsername(cleaned string, min, max int) bool {
	n := utf8.RuneCountInString(cleaned)
	return n >= min && n <= max
}
