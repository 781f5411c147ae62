package similarity

import (
	"context"
	"errors"
	"fmt"

	"github.com/mutusfa/Neurodeck/backend/go/internal/database/milvus"
	"github.com/mutusfa/Neurodeck/backend/go/internal/embedding"
	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
	"github.com/mutusfa/Neurodeck/backend/go/pkg/logger"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Schema fields of the card collection that we filter on or output.
const (
	FieldCardID    = "card_id"
	FieldContext   = "context"
	FieldQuestion  = "question"
	FieldEmbedding = "embedding"
)

// ErrDisabled is returned by query operations when no vector index is
// configured. Write operations degrade to no-ops instead.
var ErrDisabled = errors.New("similarity index is not enabled")

// Match is one vector search hit.
type Match struct {
	CardID   int64   `json:"card_id"`
	Question string  `json:"question"`
	Score    float32 `json:"score"`
}

// Index is an adapter over the Milvus client that embeds card questions
// and supports similarity search over them. A nil *Index is valid and
// behaves as a disabled index.
type Index struct {
	log        *logger.Logger
	client     client.Client
	embedder   embedding.Embedding
	collection string
}

// NewIndex creates an Index over the project's Milvus client wrapper.
func NewIndex(milvusClient *milvus.MilvusClient, embedder embedding.Embedding, log *logger.Logger) (*Index, error) {
	if milvusClient == nil || milvusClient.Client == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedding model is not initialized")
	}
	return &Index{
		log:        log,
		client:     milvusClient.Client,
		embedder:   embedder,
		collection: milvusClient.Config.Schema.CollectionName,
	}, nil
}

// Enabled reports whether vector search is available.
func (ix *Index) Enabled() bool {
	return ix != nil
}

// IndexCards embeds the questions of the given cards and inserts them into
// the collection. Cards without a database ID are skipped. With the index
// disabled this is a no-op, so card creation never depends on Milvus.
func (ix *Index) IndexCards(ctx context.Context, cards []models.Card) error {
	if ix == nil {
		return nil
	}

	ids := make([]int64, 0, len(cards))
	contexts := make([]string, 0, len(cards))
	questions := make([]string, 0, len(cards))
	texts := make([]string, 0, len(cards))
	for _, card := range cards {
		if card.ID == 0 {
			continue
		}
		ids = append(ids, int64(card.ID))
		contexts = append(contexts, card.Context)
		questions = append(questions, card.Question)
		texts = append(texts, card.Question)
	}
	if len(ids) == 0 {
		return nil
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed card questions: %w", err)
	}
	if len(vectors) != len(ids) {
		return fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(ids), len(vectors))
	}

	idCol := entity.NewColumnInt64(FieldCardID, ids)
	contextCol := entity.NewColumnVarChar(FieldContext, contexts)
	questionCol := entity.NewColumnVarChar(FieldQuestion, questions)
	embeddingCol := entity.NewColumnFloatVector(FieldEmbedding, len(vectors[0]), vectors)

	if _, err := ix.client.Insert(ctx, ix.collection, "", idCol, contextCol, questionCol, embeddingCol); err != nil {
		return fmt.Errorf("failed to insert card vectors: %w", err)
	}

	if ix.log != nil {
		ix.log.Info(fmt.Sprintf("indexed %d card questions in collection %s", len(ids), ix.collection))
	}
	return nil
}

// Similar embeds the question and returns the topK closest indexed cards,
// best score first. The caller decides whether to filter out the card the
// question came from.
func (ix *Index) Similar(ctx context.Context, question string, topK int) ([]Match, error) {
	if ix == nil {
		return nil, ErrDisabled
	}
	if topK <= 0 {
		topK = 5
	}

	vector, err := ix.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	if err := ix.client.LoadCollection(ctx, ix.collection, false); err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", ix.collection, err)
	}

	searchParams, _ := entity.NewIndexIvfFlatSearchParam(10)
	outputFields := []string{FieldCardID, FieldQuestion}

	searchResults, err := ix.client.Search(
		ctx, ix.collection, []string{}, "", outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		FieldEmbedding, entity.L2, topK, searchParams,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search in Milvus: %w", err)
	}

	var matches []Match
	for _, res := range searchResults {
		findColumn := func(name string) entity.Column {
			for _, field := range res.Fields {
				if field.Name() == name {
					return field
				}
			}
			return nil
		}

		idCol, ok := findColumn(FieldCardID).(*entity.ColumnInt64)
		if !ok {
			if ix.log != nil {
				ix.log.Warn("search result is missing the card_id field, skipping")
			}
			continue
		}
		idData := idCol.Data()

		var questionData []string
		if questionCol, ok := findColumn(FieldQuestion).(*entity.ColumnVarChar); ok {
			questionData = questionCol.Data()
		}

		for i := 0; i < res.ResultCount; i++ {
			match := Match{
				CardID: idData[i],
				Score:  res.Scores[i],
			}
			if questionData != nil {
				match.Question = questionData[i]
			}
			matches = append(matches, match)
		}
	}

	return matches, nil
}

// RemoveContext drops all vectors belonging to one source document.
func (ix *Index) RemoveContext(ctx context.Context, contextKey string) error {
	if ix == nil {
		return nil
	}
	expr := fmt.Sprintf("%s == %q", FieldContext, contextKey)
	if err := ix.client.Delete(ctx, ix.collection, "", expr); err != nil {
		return fmt.Errorf("failed to delete vectors for context %s: %w", contextKey, err)
	}
	return nil
}
