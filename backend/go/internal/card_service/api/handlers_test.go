package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/mutusfa/Neurodeck/backend/go/internal/anki"
	"github.com/mutusfa/Neurodeck/backend/go/internal/card_service/service"
	"github.com/mutusfa/Neurodeck/backend/go/internal/card_service/store"
	"github.com/mutusfa/Neurodeck/backend/go/internal/config"
	"github.com/mutusfa/Neurodeck/backend/go/internal/generation"
	"github.com/mutusfa/Neurodeck/backend/go/internal/ingestion"
	"github.com/mutusfa/Neurodeck/backend/go/internal/media"
	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
	pkghttp "github.com/mutusfa/Neurodeck/backend/go/pkg/http"
	"github.com/mutusfa/Neurodeck/backend/go/pkg/logger"
)

const apiTestReply = `{
  "topic": "Raft",
  "cards": [
    {"question": "What is a term?", "answer": "A logical clock epoch."},
    {"question": "Who votes?", "answer": "Followers with stale logs."}
  ]
}`

type fakeLLM struct {
	reply string
}

func (f *fakeLLM) GenerateContent(ctx context.Context, prompt string) (string, error) {
	return f.reply, nil
}

// fakeDeck satisfies anki.DeckClient; only ListDecks and AddNote are
// expected to run in these tests.
type fakeDeck struct {
	addNote func(deck, question, answer string, tags []string) (int64, error)
}

func (d *fakeDeck) ListDecks(ctx context.Context) ([]string, error) {
	return []string{"Neurodeck", "Japanese"}, nil
}

func (d *fakeDeck) FindNotes(ctx context.Context, query string) ([]int64, error) {
	return nil, errors.New("unexpected FindNotes call")
}

func (d *fakeDeck) GetNoteInfo(ctx context.Context, ids []int64) (map[int64]anki.NoteInfo, []int64, error) {
	return nil, nil, errors.New("unexpected GetNoteInfo call")
}

func (d *fakeDeck) AddNote(ctx context.Context, deck, question, answer string, tags []string) (int64, error) {
	if d.addNote == nil {
		return 0, errors.New("unexpected AddNote call")
	}
	return d.addNote(deck, question, answer, tags)
}

func (d *fakeDeck) UpdateNoteFields(ctx context.Context, id int64, fields map[string]string) error {
	return nil
}

func (d *fakeDeck) DeleteNote(ctx context.Context, id int64) error {
	return nil
}

// newTestRouter wires the full handler stack against a throwaway database
// and fakes for the LLM and the remote deck.
func newTestRouter(t *testing.T) (*gin.Engine, *store.Store, *fakeDeck) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Document{}, &models.Card{}, &models.AnkiNoteFeedback{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	st := store.NewStore(db)

	mediaStore, err := media.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create media store: %v", err)
	}
	fetcher, err := pkghttp.NewClient(config.CircuitBreakerConfig{Enabled: false})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	ingest := ingestion.New(fetcher, time.Second)

	cache := generation.NewCache(nil, time.Hour, nil)
	generator := generation.NewGenerator(&fakeLLM{reply: apiTestReply}, cache, "test-model", config.GenerationConfig{}, nil)

	deck := &fakeDeck{}
	engine := anki.NewEngine(deck, st, st, "Neurodeck")
	svc := service.NewService(st, mediaStore, ingest, generator, engine, deck, nil, nil, nil)

	return SetupRouter(NewHandler(svc, logger.New("card_service_test", ""))), st, deck
}

func seedCards(t *testing.T, st *store.Store, contextKey string, n int) []models.Card {
	t.Helper()
	ctx := context.Background()
	doc := &models.Document{Context: contextKey, SourceType: models.SourceURL, Topic: "seeded"}
	if err := st.SaveDocument(ctx, doc); err != nil {
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
	saved, err := st.SaveCards(ctx, cards)
	if err != nil {
		t.Fatalf("SaveCards() returned error: %v", err)
	}
	return saved
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func uploadFile(t *testing.T, router *gin.Engine, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadDocumentGeneratesCards(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := uploadFile(t, router, "raft.txt", []byte("Raft elects one leader per term."))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body %s", w.Code, w.Body.String())
	}

	var res struct {
		Context string        `json:"context"`
		Topic   string        `json:"topic"`
		Cards   []models.Card `json:"cards"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res.Topic != "Raft" || len(res.Cards) != 2 || res.Context == "" {
		t.Errorf("response = %+v, want topic Raft with 2 cards and a context", res)
	}
}

func TestUploadDocumentRejectsUnknownBinary(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := uploadFile(t, router, "blob.bin", []byte{0x00, 0x01, 0x02, 0x03, 0xff, 0xfe})
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("upload status = %d, want 415 (body %s)", w.Code, w.Body.String())
	}
}

func TestUploadDocumentRequiresFileField(t *testing.T) {
	router, _, _ := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("name", "no file here")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("upload without file = %d, want 400", w.Code)
	}
}

func TestListCardsRequiresContextParam(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/contexts/cards", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 when context is missing", w.Code)
	}
}

func TestListCardsReturnsSeededContext(t *testing.T) {
	router, st, _ := newTestRouter(t)
	seedCards(t, st, "https://example.com/raft", 3)

	w := doJSON(t, router, http.MethodGet, "/api/v1/contexts/cards?context=https%3A%2F%2Fexample.com%2Fraft", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var res struct {
		Cards []models.Card `json:"cards"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(res.Cards) != 3 {
		t.Errorf("cards = %d, want 3", len(res.Cards))
	}
}

func TestUpdateEvaluationEndpoint(t *testing.T) {
	router, st, _ := newTestRouter(t)
	cards := seedCards(t, st, "https://example.com/raft", 1)
	path := "/api/v1/cards/" + itoa(cards[0].ID) + "/evaluation"

	// Unknown evaluation values are rejected.
	w := doJSON(t, router, http.MethodPut, path, gin.H{"evaluation": "adored"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid evaluation = %d, want 400", w.Code)
	}

	// Unknown cards are a 404.
	w = doJSON(t, router, http.MethodPut, "/api/v1/cards/99999/evaluation", gin.H{"evaluation": "liked"})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing card = %d, want 404", w.Code)
	}

	// The happy path registers pending feedback.
	w = doJSON(t, router, http.MethodPut, path, gin.H{"evaluation": "liked"})
	if w.Code != http.StatusOK {
		t.Fatalf("valid evaluation = %d, body %s", w.Code, w.Body.String())
	}
	fb, err := st.GetFeedback(context.Background(), cards[0].ID)
	if err != nil || fb == nil || fb.SyncStatus != models.SyncStatusPending {
		t.Errorf("feedback = %+v (err %v), want a pending record", fb, err)
	}
}

func TestSimilarWithoutIndexReturnsNotFound(t *testing.T) {
	router, st, _ := newTestRouter(t)
	cards := seedCards(t, st, "https://example.com/raft", 1)

	w := doJSON(t, router, http.MethodGet, "/api/v1/cards/"+itoa(cards[0].ID)+"/similar", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("similar with disabled index = %d, want 404", w.Code)
	}
}

func TestSyncEndpointRequiresTarget(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/anki/sync", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("sync without target = %d, want 400", w.Code)
	}
}

func TestSyncEndpointRunsPassOverContext(t *testing.T) {
	router, st, deck := newTestRouter(t)
	cards := seedCards(t, st, "https://example.com/raft", 2)
	deck.addNote = func(deckName, question, answer string, tags []string) (int64, error) {
		return 2001, nil
	}

	w := doJSON(t, router, http.MethodPut, "/api/v1/cards/"+itoa(cards[0].ID)+"/evaluation", gin.H{"evaluation": "liked"})
	if w.Code != http.StatusOK {
		t.Fatalf("evaluation status = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/anki/sync", gin.H{"context": "https://example.com/raft"})
	if w.Code != http.StatusOK {
		t.Fatalf("sync status = %d, body %s", w.Code, w.Body.String())
	}

	var res struct {
		Outcomes []anki.Outcome `json:"outcomes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(res.Outcomes) != 1 || res.Outcomes[0].Status != anki.OutcomePushed || res.Outcomes[0].NoteID != 2001 {
		t.Errorf("outcomes = %+v, want one push to note 2001", res.Outcomes)
	}
}

func TestDeleteContextIsIdempotent(t *testing.T) {
	router, st, _ := newTestRouter(t)
	seedCards(t, st, "https://example.com/raft", 1)

	for i := 0; i < 2; i++ {
		w := doJSON(t, router, http.MethodDelete, "/api/v1/contexts?context=https%3A%2F%2Fexample.com%2Fraft", nil)
		if w.Code != http.StatusOK {
			t.Errorf("delete #%d status = %d, want 200", i+1, w.Code)
		}
	}
}

func TestDecksEndpointListsRemoteDecks(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/anki/decks", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("decks status = %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Japanese") {
		t.Errorf("decks body = %s, want it to include Japanese", w.Body.String())
	}
}

func TestHealthEndpointReportsDependencies(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, body %s", w.Code, w.Body.String())
	}

	var health map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if health["database"] != "ok" || health["anki"] != "ok" {
		t.Errorf("health = %v, want database and anki ok", health)
	}
	if health["similarity"] != "disabled" || health["events"] != "disabled" {
		t.Errorf("health = %v, want similarity and events disabled", health)
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
