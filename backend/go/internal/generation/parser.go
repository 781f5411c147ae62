package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
)

type replyCard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type reply struct {
	Topic string      `json:"topic"`
	Cards []replyCard `json:"cards"`
}

// ParseReply extracts the topic and cards from a raw model reply. Models
// routinely wrap the JSON in prose or markdown fences, so we cut out the
// outermost object before decoding.
func ParseReply(raw string, maxCards int) (string, []models.Card, error) {
	jsonPart, err := extractJSON(raw)
	if err != nil {
		return "", nil, err
	}

	var r reply
	if err := json.Unmarshal([]byte(jsonPart), &r); err != nil {
		return "", nil, fmt.Errorf("failed to decode model reply: %w", err)
	}

	cards := make([]models.Card, 0, len(r.Cards))
	for _, c := range r.Cards {
		question := strings.TrimSpace(c.Question)
		answer := strings.TrimSpace(c.Answer)
		if question == "" || answer == "" {
			continue
		}
		cards = append(cards, models.Card{Question: question, Answer: answer})
	}

	if maxCards > 0 && len(cards) > maxCards {
		cards = cards[:maxCards]
	}

	if len(cards) == 0 {
		return "", nil, fmt.Errorf("model reply contained no usable cards")
	}

	return strings.TrimSpace(r.Topic), cards, nil
}

func extractJSON(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in model reply")
	}
	return raw[start : end+1], nil
}
