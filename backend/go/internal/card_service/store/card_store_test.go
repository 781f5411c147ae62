package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
)

// newTestStore opens a throwaway SQLite database with the full schema migrated.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Document{}, &models.Card{}, &models.AnkiNoteFeedback{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return NewStore(db)
}

// seedContext saves a document and n cards under the given context key.
func seedContext(t *testing.T, s *Store, contextKey string, n int) []models.Card {
	t.Helper()
	ctx := context.Background()
	doc := &models.Document{Context: contextKey, SourceType: models.SourceURL, Topic: "seeded"}
	if err := s.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("SaveDocument() returned error: %v", err)
	}
	cards := make([]models.Card, 0, n)
	for i := 0; i < n; i++ {
		cards = append(cards, models.Card{
			Question:   "q",
			Answer:     "a",
			Context:    contextKey,
			Evaluation: models.EvaluationNotEvaluated,
		})
	}
	saved, err := s.SaveCards(ctx, cards)
	if err != nil {
		t.Fatalf("SaveCards() returned error: %v", err)
	}
	return saved
}

func TestSaveCardsAssignsIDsAndLoadCardsKeepsOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	saved := seedContext(t, s, "https://example.com/a", 3)

	for i, card := range saved {
		if card.ID == 0 {
			t.Errorf("card %d has no database id", i)
		}
	}

	loaded, err := s.LoadCards(ctx, "https://example.com/a")
	if err != nil {
		t.Fatalf("LoadCards() returned error: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("LoadCards() returned %d cards, want 3", len(loaded))
	}
	for i := 1; i < len(loaded); i++ {
		if loaded[i].ID < loaded[i-1].ID {
			t.Errorf("cards are not ordered by id: %d before %d", loaded[i-1].ID, loaded[i].ID)
		}
	}
}

func TestSaveDocumentUpsertsByContext(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &models.Document{Context: "https://example.com/doc", SourceType: models.SourceURL, Topic: "v1"}
	if err := s.SaveDocument(ctx, first); err != nil {
		t.Fatalf("SaveDocument() returned error: %v", err)
	}

	second := &models.Document{Context: "https://example.com/doc", SourceType: models.SourceURL, Topic: "v2"}
	if err := s.SaveDocument(ctx, second); err != nil {
		t.Fatalf("SaveDocument() on re-ingest returned error: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("re-ingested document id = %d, want the original %d", second.ID, first.ID)
	}

	got, err := s.GetDocumentByContext(ctx, "https://example.com/doc")
	if err != nil {
		t.Fatalf("GetDocumentByContext() returned error: %v", err)
	}
	if got == nil || got.Topic != "v2" {
		t.Errorf("document after upsert = %+v, want topic v2", got)
	}

	var count int64
	s.DB.Model(&models.Document{}).Count(&count)
	if count != 1 {
		t.Errorf("document rows = %d, want 1", count)
	}
}

func TestGetDocumentByContextMissingIsNilNil(t *testing.T) {
	s := newTestStore(t)
	doc, err := s.GetDocumentByContext(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetDocumentByContext() returned error: %v", err)
	}
	if doc != nil {
		t.Errorf("GetDocumentByContext() = %+v, want nil for a missing context", doc)
	}
}

func TestListContextsCountsCards(t *testing.T) {
	s := newTestStore(t)
	seedContext(t, s, "media/a.pdf", 2)
	seedContext(t, s, "https://example.com/b", 3)

	infos, err := s.ListContexts(context.Background())
	if err != nil {
		t.Fatalf("ListContexts() returned error: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("ListContexts() returned %d entries, want 2", len(infos))
	}
	// Ordered by context: the URL sorts after the media path.
	if infos[0].Context != "https://example.com/b" || infos[0].CardCount != 3 {
		t.Errorf("infos[0] = %+v, want https://example.com/b with 3 cards", infos[0])
	}
	if infos[1].Context != "media/a.pdf" || infos[1].CardCount != 2 {
		t.Errorf("infos[1] = %+v, want media/a.pdf with 2 cards", infos[1])
	}
}

func TestUpdateEvaluationUnknownCard(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateEvaluation(context.Background(), 4242, models.EvaluationLiked)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("UpdateEvaluation() error = %v, want gorm.ErrRecordNotFound", err)
	}
}

func TestDeleteContextCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cards := seedContext(t, s, "media/a.pdf", 2)
	keep := seedContext(t, s, "media/b.pdf", 1)

	// Give the first card a feedback record so the cascade has something to remove.
	if _, err := s.UpsertPendingFeedback(ctx, cards[0].ID); err != nil {
		t.Fatalf("UpsertPendingFeedback() returned error: %v", err)
	}

	doc, err := s.DeleteContext(ctx, "media/a.pdf")
	if err != nil {
		t.Fatalf("DeleteContext() returned error: %v", err)
	}
	if doc == nil || doc.Context != "media/a.pdf" {
		t.Fatalf("DeleteContext() doc = %+v, want the deleted document", doc)
	}

	remaining, err := s.LoadCards(ctx, "media/a.pdf")
	if err != nil {
		t.Fatalf("LoadCards() returned error: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("cards remaining after delete = %d, want 0", len(remaining))
	}
	fb, err := s.GetFeedback(ctx, cards[0].ID)
	if err != nil {
		t.Fatalf("GetFeedback() returned error: %v", err)
	}
	if fb != nil {
		t.Errorf("feedback record survived the cascade: %+v", fb)
	}

	// The other context is untouched.
	others, _ := s.LoadCards(ctx, "media/b.pdf")
	if len(others) != len(keep) {
		t.Errorf("unrelated context lost cards: %d, want %d", len(others), len(keep))
	}

	// Deleting a context twice is not an error.
	doc, err = s.DeleteContext(ctx, "media/a.pdf")
	if err != nil {
		t.Fatalf("second DeleteContext() returned error: %v", err)
	}
	if doc != nil {
		t.Errorf("second DeleteContext() doc = %+v, want nil", doc)
	}
}

func TestStatsAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cards := seedContext(t, s, "media/a.pdf", 3)

	if err := s.UpdateEvaluation(ctx, cards[0].ID, models.EvaluationLiked); err != nil {
		t.Fatalf("UpdateEvaluation() returned error: %v", err)
	}
	if _, err := s.UpsertPendingFeedback(ctx, cards[0].ID); err != nil {
		t.Fatalf("UpsertPendingFeedback() returned error: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() returned error: %v", err)
	}
	if stats.Documents != 1 || stats.Cards != 3 {
		t.Errorf("Stats() = %d documents / %d cards, want 1 / 3", stats.Documents, stats.Cards)
	}
	if stats.Evaluations["liked"] != 1 || stats.Evaluations["not_evaluated"] != 2 {
		t.Errorf("evaluation buckets = %v", stats.Evaluations)
	}
	if stats.SyncStatus["pending"] != 1 {
		t.Errorf("sync buckets = %v, want one pending record", stats.SyncStatus)
	}
}
