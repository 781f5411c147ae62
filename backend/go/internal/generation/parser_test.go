package generation

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseReplyAcceptsFencedJSON(t *testing.T) {
	raw := "Here you go:\n```json\n" +
		`{"topic": "Raft", "cards": [{"question": "What does Raft elect?", "answer": "A single leader per term."}]}` +
		"\n```\nLet me know if you need more."

	topic, cards, err := ParseReply(raw, 10)
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if topic != "Raft" {
		t.Errorf("topic = %q, want Raft", topic)
	}
	if len(cards) != 1 {
		t.Fatalf("got %d cards, want 1", len(cards))
	}
	if cards[0].Question != "What does Raft elect?" {
		t.Errorf("unexpected question %q", cards[0].Question)
	}
}

func TestParseReplyDropsEmptyCards(t *testing.T) {
	raw := `{"topic": "t", "cards": [
		{"question": "  ", "answer": "a"},
		{"question": "q", "answer": ""},
		{"question": "keep me", "answer": "kept"}
	]}`

	_, cards, err := ParseReply(raw, 10)
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if len(cards) != 1 || cards[0].Question != "keep me" {
		t.Fatalf("expected only the complete card, got %+v", cards)
	}
}

func TestParseReplyTruncatesToMaxCards(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`{"topic": "t", "cards": [`)
	for i := 0; i < 5; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"question": "q", "answer": "a"}`)
	}
	sb.WriteString(`]}`)

	_, cards, err := ParseReply(sb.String(), 3)
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if len(cards) != 3 {
		t.Errorf("got %d cards, want 3", len(cards))
	}
}

func TestParseReplyRejectsGarbage(t *testing.T) {
	cases := map[string]string{
		"no json":         "I could not find any facts in this document.",
		"broken json":     `{"topic": "t", "cards": [`,
		"no usable cards": `{"topic": "t", "cards": [{"question": "", "answer": ""}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := ParseReply(raw, 10); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestBuildPromptTruncatesAtRuneBoundary(t *testing.T) {
	// 三 is 3 bytes in UTF-8; a 4-byte cap must not split the second rune.
	text := "三三三"
	prompt := buildPrompt(text, 5, 4)
	if !utf8.ValidString(prompt) {
		t.Error("truncation split a rune and produced invalid UTF-8")
	}
	if strings.Count(prompt, "三") != 1 {
		t.Errorf("expected exactly one rune to survive, prompt: %q", prompt)
	}
}
