package matcher

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestMatchScenarios(t *testing.T) {
	t.Parallel()

	m := New(Options{})
	cases := []struct {
		name string
		body string
		want string
		ok   bool
	}{
		{name: "quoted after reddit mention", body: `hey u/bananas "make it sunset"`, want: "make it sunset", ok: true},
		{name: "unquoted uppercase handle", body: "@BANANAS turn this into a sketch", want: "turn this into a sketch", ok: true},
		{name: "no mention", body: "no mention here", ok: false},
		{name: "curly quotes", body: "u/bananas please “add a hat” thanks", want: "add a hat", ok: true},
		{name: "leading punctuation stripped", body: "@bananas: - make it snow", want: "make it snow", ok: true},
		{name: "whitespace collapsed", body: "@bananas   make\n\tit   pop  ", want: "make it pop", ok: true},
		{name: "mention only", body: "look at this u/bananas", ok: false},
		{name: "empty quotes fall back to tail", body: `@bananas "" neon glow`, want: `"" neon glow`, ok: true},
		{name: "quote before mention ignored", body: `"ignored" u/bananas paint it blue`, want: "paint it blue", ok: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := m.Match(tc.body)
			if ok != tc.ok {
				t.Fatalf("Match(%q) ok=%v, want %v", tc.body, ok, tc.ok)
			}
			if string(got) != tc.want {
				t.Fatalf("Match(%q) = %q, want %q", tc.body, got, tc.want)
			}
		})
	}
}

func TestMatchTruncatesToMaxRunes(t *testing.T) {
	t.Parallel()

	m := New(Options{})
	long := strings.Repeat("ab", 400)
	got, ok := m.Match("@bananas " + long)
	if !ok {
		t.Fatalf("expected a match")
	}
	if n := utf8.RuneCountInString(string(got)); n != MaxInstructionRunes {
		t.Fatalf("expected %d runes, got %d", MaxInstructionRunes, n)
	}
	if string(got) != long[:MaxInstructionRunes] {
		t.Fatalf("unexpected truncated prefix")
	}
}

func TestMatchTruncatesMultibyteByRunes(t *testing.T) {
	t.Parallel()

	m := New(Options{})
	got, ok := m.Match("u/bananas " + strings.Repeat("🍌", 350))
	if !ok {
		t.Fatalf("expected a match")
	}
	if n := utf8.RuneCountInString(string(got)); n != MaxInstructionRunes {
		t.Fatalf("expected %d runes, got %d", MaxInstructionRunes, n)
	}
	if !utf8.ValidString(string(got)) {
		t.Fatalf("truncation produced invalid utf-8")
	}
}

func TestCustomTriggers(t *testing.T) {
	t.Parallel()

	m := New(Options{Triggers: []string{"!remix"}})
	if m.Mentions("u/bananas do it") {
		t.Fatalf("default trigger should not match when custom triggers are set")
	}
	got, ok := m.Match("!REMIX 'vaporwave'")
	if !ok || got != "vaporwave" {
		t.Fatalf("unexpected match %q ok=%v", got, ok)
	}
}

func TestMentions(t *testing.T) {
	t.Parallel()

	m := New(Options{})
	if !m.Mentions("cc U/Bananas") {
		t.Fatalf("expected case-insensitive mention")
	}
	if m.Mentions("bananas are great") {
		t.Fatalf("bare word must not count as mention")
	}
}
