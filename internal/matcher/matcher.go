package matcher

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"BananaBot/internal/domain"
)

const (
	// MaxInstructionRunes bounds the extracted instruction.
	MaxInstructionRunes = 300

	defaultQuotes    = "\"'“”"
	defaultLeadTrims = " \t:-—,>\n\r\f\v"
)

// DefaultTriggers are the mentions that address the bot.
var DefaultTriggers = []string{"u/bananas", "@bananas"}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Options configures a Matcher. Zero values fall back to defaults.
type Options struct {
	Triggers  []string
	Quotes    string
	LeadTrims string
	MaxRunes  int
}

// Matcher finds trigger mentions and extracts the instruction that follows.
type Matcher struct {
	trigger   *regexp.Regexp
	quoted    *regexp.Regexp
	leadTrims string
	maxRunes  int
}

// New compiles a matcher for the configured triggers and quote set.
func New(opts Options) *Matcher {
	triggers := make([]string, 0, len(opts.Triggers))
	for _, t := range opts.Triggers {
		if t = strings.TrimSpace(t); t != "" {
			triggers = append(triggers, regexp.QuoteMeta(t))
		}
	}
	if len(triggers) == 0 {
		for _, t := range DefaultTriggers {
			triggers = append(triggers, regexp.QuoteMeta(t))
		}
	}

	quotes := opts.Quotes
	if quotes == "" {
		quotes = defaultQuotes
	}
	var class strings.Builder
	for _, r := range quotes {
		class.WriteString(regexp.QuoteMeta(string(r)))
	}

	leadTrims := opts.LeadTrims
	if leadTrims == "" {
		leadTrims = defaultLeadTrims
	}
	maxRunes := opts.MaxRunes
	if maxRunes <= 0 {
		maxRunes = MaxInstructionRunes
	}

	return &Matcher{
		trigger:   regexp.MustCompile(`(?i)(?:` + strings.Join(triggers, "|") + `)`),
		quoted:    regexp.MustCompile(`[` + class.String() + `](.*?)[` + class.String() + `]`),
		leadTrims: leadTrims,
		maxRunes:  maxRunes,
	}
}

// Mentions reports whether body addresses the bot at all.
func (m *Matcher) Mentions(body string) bool {
	return m.trigger.MatchString(body)
}

// Match returns the instruction following the first trigger mention.
// ok is false when there is no mention or nothing usable after it.
func (m *Matcher) Match(body string) (domain.Instruction, bool) {
	loc := m.trigger.FindStringIndex(body)
	if loc == nil {
		return "", false
	}
	tail := body[loc[1]:]

	candidate := ""
	if sub := m.quoted.FindStringSubmatch(tail); sub != nil && strings.TrimSpace(sub[1]) != "" {
		candidate = sub[1]
	} else {
		candidate = strings.TrimLeft(tail, m.leadTrims)
	}

	candidate = strings.TrimSpace(whitespaceRun.ReplaceAllString(candidate, " "))
	if candidate == "" {
		return "", false
	}
	return domain.Instruction(truncateRunes(candidate, m.maxRunes)), true
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
