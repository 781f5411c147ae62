package generation

import (
	"fmt"
	"unicode/utf8"
)

// promptVersion participates in the cache key so that a prompt change
// invalidates previously cached replies.
const promptVersion = "v1"

const promptTemplate = `You are a flashcard author. Read the study material below and produce up to %d question/answer flashcards covering its key facts and concepts.

Respond with a single JSON object and nothing else, in this exact shape:

{"topic": "<short topic label for the material>", "cards": [{"question": "...", "answer": "..."}]}

Rules:
- Questions must be answerable from the material alone.
- Keep each answer short and factual.
- Do not wrap the JSON in markdown fences.

Study material:
%s`

// buildPrompt renders the card generation prompt, truncating oversized
// input at a rune boundary so we never send half a character.
func buildPrompt(text string, maxCards, maxChars int) string {
	if maxChars > 0 && len(text) > maxChars {
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return fmt.Sprintf(promptTemplate, maxCards, text)
}
