package generation

import (
	"context"
	"fmt"

	"github.com/mutusfa/Neurodeck/backend/go/internal/config"
	"github.com/mutusfa/Neurodeck/backend/go/internal/llm"
	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
	"github.com/mutusfa/Neurodeck/backend/go/pkg/logger"
)

const (
	defaultMaxCards      = 10
	defaultMaxInputChars = 24000
)

// Generator turns extracted document text into flashcards via an LLM.
type Generator struct {
	llm      llm.LLM
	cache    *Cache
	model    string
	maxCards int
	maxChars int
	log      *logger.Logger
}

// Result is one generation run: the inferred topic plus the parsed cards.
type Result struct {
	Topic     string
	Cards     []models.Card
	FromCache bool
}

// NewGenerator creates a Generator. model names the configured LLM and is
// only used for cache keying and logging.
func NewGenerator(client llm.LLM, cache *Cache, model string, cfg config.GenerationConfig, log *logger.Logger) *Generator {
	g := &Generator{
		llm:      client,
		cache:    cache,
		model:    model,
		maxCards: cfg.MaxCards,
		maxChars: cfg.MaxInputChars,
		log:      log,
	}
	if g.maxCards <= 0 {
		g.maxCards = defaultMaxCards
	}
	if g.maxChars <= 0 {
		g.maxChars = defaultMaxInputChars
	}
	return g
}

// Generate produces cards for the given text, consulting the reply cache
// first. The raw model reply is cached, not the parsed cards, so parser
// improvements apply to cached entries too.
func (g *Generator) Generate(ctx context.Context, text string) (*Result, error) {
	key := Key(g.model, text)

	if raw, ok := g.cache.Get(ctx, key); ok {
		topic, cards, err := ParseReply(raw, g.maxCards)
		if err == nil {
			return &Result{Topic: topic, Cards: cards, FromCache: true}, nil
		}
		// A cached reply that no longer parses counts as a miss.
		if g.log != nil {
			g.log.Warn("discarding unparsable cached reply: " + err.Error())
		}
	}

	prompt := buildPrompt(text, g.maxCards, g.maxChars)
	raw, err := g.llm.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cards: %w", err)
	}

	topic, cards, err := ParseReply(raw, g.maxCards)
	if err != nil {
		return nil, err
	}

	g.cache.Put(ctx, key, raw)

	return &Result{Topic: topic, Cards: cards}, nil
}
