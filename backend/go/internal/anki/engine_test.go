package anki

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
)

// fakeDeck is a scripted DeckClient. Each hook may be nil, in which case any
// call to it errors out, flagging a remote call the engine should not have made.
type fakeDeck struct {
	addNote   func(deck, question, answer string, tags []string) (int64, error)
	findNotes func(query string) ([]int64, error)
	noteInfo  func(ids []int64) (map[int64]NoteInfo, []int64, error)

	addCalls  int
	findCalls int
	infoCalls int
}

func (d *fakeDeck) ListDecks(ctx context.Context) ([]string, error) {
	return []string{"Neurodeck"}, nil
}

func (d *fakeDeck) FindNotes(ctx context.Context, query string) ([]int64, error) {
	d.findCalls++
	if d.findNotes == nil {
		return nil, errors.New("unexpected FindNotes call")
	}
	return d.findNotes(query)
}

func (d *fakeDeck) GetNoteInfo(ctx context.Context, ids []int64) (map[int64]NoteInfo, []int64, error) {
	d.infoCalls++
	if d.noteInfo == nil {
		return nil, nil, errors.New("unexpected GetNoteInfo call")
	}
	return d.noteInfo(ids)
}

func (d *fakeDeck) AddNote(ctx context.Context, deck, question, answer string, tags []string) (int64, error) {
	d.addCalls++
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

// memoryStore implements FeedbackStore in memory with the same observable
// semantics as the database-backed store.
type memoryStore struct {
	records map[uint]*models.AnkiNoteFeedback
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[uint]*models.AnkiNoteFeedback{}}
}

func (s *memoryStore) GetFeedback(ctx context.Context, cardID uint) (*models.AnkiNoteFeedback, error) {
	fb, ok := s.records[cardID]
	if !ok {
		return nil, nil
	}
	copied := *fb
	return &copied, nil
}

func (s *memoryStore) UpsertPendingFeedback(ctx context.Context, cardID uint) (*models.AnkiNoteFeedback, error) {
	if fb, ok := s.records[cardID]; ok {
		copied := *fb
		return &copied, nil
	}
	fb := &models.AnkiNoteFeedback{CardID: cardID, SyncStatus: models.SyncStatusPending}
	s.records[cardID] = fb
	copied := *fb
	return &copied, nil
}

func (s *memoryStore) MarkSynced(ctx context.Context, cardID uint, noteID int64, stats models.ReviewStats) error {
	for otherID, other := range s.records {
		if otherID != cardID && other.AnkiNoteID != nil && *other.AnkiNoteID == noteID {
			return fmt.Errorf("%w: note %d is bound to card %d", ErrConflict, noteID, otherID)
		}
	}
	fb, ok := s.records[cardID]
	if !ok {
		return errors.New("feedback record not found")
	}
	fb.AnkiNoteID = &noteID
	fb.ApplyStats(stats)
	fb.SyncStatus = models.SyncStatusSynced
	fb.LastError = nil
	return nil
}

func (s *memoryStore) RecordReviewStats(ctx context.Context, cardID uint, stats models.ReviewStats) error {
	fb, ok := s.records[cardID]
	if !ok || fb.AnkiNoteID == nil {
		return fmt.Errorf("%w: card %d", ErrNotSynced, cardID)
	}
	fb.ApplyStats(stats)
	fb.SyncStatus = models.SyncStatusSynced
	fb.LastError = nil
	return nil
}

func (s *memoryStore) MarkError(ctx context.Context, cardID uint, message string) error {
	fb, ok := s.records[cardID]
	if !ok {
		return errors.New("feedback record not found")
	}
	fb.SyncStatus = models.SyncStatusError
	fb.LastError = &message
	return nil
}

// seedSynced installs a synced record bound to the given remote note.
func (s *memoryStore) seedSynced(cardID uint, noteID int64, stats models.ReviewStats) {
	fb := &models.AnkiNoteFeedback{CardID: cardID, AnkiNoteID: &noteID, SyncStatus: models.SyncStatusSynced}
	fb.ApplyStats(stats)
	s.records[cardID] = fb
}

// memoryCards is a CardSource over a fixed map.
type memoryCards map[uint]*models.Card

func (m memoryCards) GetCard(ctx context.Context, cardID uint) (*models.Card, error) {
	card, ok := m[cardID]
	if !ok {
		return nil, fmt.Errorf("card %d not found", cardID)
	}
	return card, nil
}

func testCards() memoryCards {
	return memoryCards{
		1: {ID: 1, Question: "What is a CRDT?", Answer: "A conflict-free replicated data type.", Topic: "distributed systems"},
		2: {ID: 2, Question: "What does idempotent mean?", Answer: "Safe to apply more than once.", Topic: "distributed systems"},
		3: {ID: 3, Question: "What is a quorum?", Answer: "A majority of replicas.", Topic: "distributed systems"},
		4: {ID: 4, Question: "What is a WAL?", Answer: "A write-ahead log.", Topic: "storage"},
	}
}

func TestRunPassPushesPendingCard(t *testing.T) {
	store := newMemoryStore()
	deck := &fakeDeck{
		addNote: func(deckName, question, answer string, tags []string) (int64, error) {
			if deckName != "Neurodeck" {
				t.Errorf("AddNote deck = %q, want %q", deckName, "Neurodeck")
			}
			return 501, nil
		},
	}
	engine := NewEngine(deck, store, testCards(), "Neurodeck", WithTags([]string{"neurodeck"}))

	outcomes := engine.RunPass(context.Background(), []uint{1})
	if len(outcomes) != 1 {
		t.Fatalf("RunPass() returned %d outcomes, want 1", len(outcomes))
	}
	if outcomes[0].Status != OutcomePushed || outcomes[0].NoteID != 501 {
		t.Fatalf("outcome = %+v, want pushed with note 501", outcomes[0])
	}

	fb := store.records[1]
	if fb == nil || fb.AnkiNoteID == nil || *fb.AnkiNoteID != 501 {
		t.Fatalf("stored record = %+v, want note id 501", fb)
	}
	if fb.SyncStatus != models.SyncStatusSynced {
		t.Errorf("stored status = %q, want synced", fb.SyncStatus)
	}
}

func TestRunPassAddsTopicTag(t *testing.T) {
	store := newMemoryStore()
	var gotTags []string
	deck := &fakeDeck{
		addNote: func(_, _, _ string, tags []string) (int64, error) {
			gotTags = tags
			return 501, nil
		},
	}
	engine := NewEngine(deck, store, testCards(), "Neurodeck", WithTags([]string{"neurodeck"}))

	engine.RunPass(context.Background(), []uint{1})
	if len(gotTags) != 2 || gotTags[0] != "neurodeck" || gotTags[1] != "distributed_systems" {
		t.Errorf("tags = %v, want [neurodeck distributed_systems]", gotTags)
	}
}

func TestRunPassPullsSyncedCard(t *testing.T) {
	store := newMemoryStore()
	store.seedSynced(1, 601, models.ReviewStats{})
	deck := &fakeDeck{
		noteInfo: func(ids []int64) (map[int64]NoteInfo, []int64, error) {
			if len(ids) != 1 || ids[0] != 601 {
				t.Errorf("GetNoteInfo ids = %v, want [601]", ids)
			}
			return map[int64]NoteInfo{
				601: {NoteID: 601, Stats: models.ReviewStats{EaseFactor: 2350, IntervalDays: 16, Repetitions: 7, Lapses: 1}},
			}, nil, nil
		},
	}
	engine := NewEngine(deck, store, testCards(), "Neurodeck")

	outcomes := engine.RunPass(context.Background(), []uint{1})
	if outcomes[0].Status != OutcomePulled || outcomes[0].NoteID != 601 {
		t.Fatalf("outcome = %+v, want pulled with note 601", outcomes[0])
	}
	fb := store.records[1]
	if fb.EaseFactor != 2350 || fb.IntervalDays != 16 || fb.Repetitions != 7 || fb.Lapses != 1 {
		t.Errorf("stored stats = %+v, pull did not refresh them", fb.Stats())
	}
	if deck.addCalls != 0 {
		t.Errorf("AddNote was called %d times for an already synced card", deck.addCalls)
	}
}

func TestRunPassIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	deck := &fakeDeck{
		addNote: func(_, _, _ string, _ []string) (int64, error) { return 501, nil },
		noteInfo: func(ids []int64) (map[int64]NoteInfo, []int64, error) {
			found := map[int64]NoteInfo{}
			for _, id := range ids {
				found[id] = NoteInfo{NoteID: id}
			}
			return found, nil, nil
		},
	}
	engine := NewEngine(deck, store, testCards(), "Neurodeck")

	first := engine.RunPass(context.Background(), []uint{1})
	second := engine.RunPass(context.Background(), []uint{1})

	if first[0].Status != OutcomePushed {
		t.Fatalf("first pass outcome = %+v, want pushed", first[0])
	}
	if second[0].Status != OutcomePulled {
		t.Fatalf("second pass outcome = %+v, want pulled", second[0])
	}
	if deck.addCalls != 1 {
		t.Errorf("AddNote called %d times across two passes, want exactly 1", deck.addCalls)
	}
	if fb := store.records[1]; fb.AnkiNoteID == nil || *fb.AnkiNoteID != 501 {
		t.Errorf("record note id changed across passes: %+v", fb)
	}
}

func TestRunPassUnavailableStopsFurtherPushes(t *testing.T) {
	store := newMemoryStore()
	store.seedSynced(4, 904, models.ReviewStats{})
	deck := &fakeDeck{
		addNote: func(_, _, _ string, _ []string) (int64, error) {
			return 0, fmt.Errorf("%w: connection refused", ErrUnavailable)
		},
		noteInfo: func(ids []int64) (map[int64]NoteInfo, []int64, error) {
			return map[int64]NoteInfo{904: {NoteID: 904}}, nil, nil
		},
	}
	engine := NewEngine(deck, store, testCards(), "Neurodeck")

	outcomes := engine.RunPass(context.Background(), []uint{1, 2, 3, 4})

	if deck.addCalls != 1 {
		t.Fatalf("AddNote called %d times, want 1 (no calls after the endpoint is known to be down)", deck.addCalls)
	}
	for i := 0; i < 3; i++ {
		if outcomes[i].Status != OutcomeError {
			t.Errorf("outcome[%d] = %+v, want error", i, outcomes[i])
		}
		if !strings.Contains(outcomes[i].Reason, "unavailable") {
			t.Errorf("outcome[%d] reason = %q, want an unavailable classification", i, outcomes[i].Reason)
		}
		fb := store.records[outcomes[i].CardID]
		if fb.SyncStatus != models.SyncStatusError || fb.LastError == nil {
			t.Errorf("record %d = %+v, want error status with a message", outcomes[i].CardID, fb)
		}
	}
	// The pull side still runs: its calls fail on their own if the endpoint
	// is really down, but it is not skipped pre-emptively.
	if outcomes[3].Status != OutcomePulled {
		t.Errorf("outcome[3] = %+v, want pulled", outcomes[3])
	}
}

func TestRunPassEndpointDownMarksEveryCard(t *testing.T) {
	store := newMemoryStore()
	store.seedSynced(4, 904, models.ReviewStats{EaseFactor: 2500, IntervalDays: 3})
	deck := &fakeDeck{
		addNote: func(_, _, _ string, _ []string) (int64, error) {
			return 0, fmt.Errorf("%w: connection refused", ErrUnavailable)
		},
		noteInfo: func(ids []int64) (map[int64]NoteInfo, []int64, error) {
			return nil, nil, fmt.Errorf("%w: connection refused", ErrUnavailable)
		},
	}
	engine := NewEngine(deck, store, testCards(), "Neurodeck")

	outcomes := engine.RunPass(context.Background(), []uint{1, 4})

	for i, outcome := range outcomes {
		if outcome.Status != OutcomeError {
			t.Errorf("outcome[%d] = %+v, want error", i, outcome)
		}
		if !strings.Contains(outcome.Reason, "unavailable") {
			t.Errorf("outcome[%d] reason = %q, want an unavailable classification", i, outcome.Reason)
		}
	}
	if deck.infoCalls != 1 {
		t.Errorf("GetNoteInfo called %d times, the pull batch is still attempted once", deck.infoCalls)
	}
	// The synced record keeps everything it knew.
	fb := store.records[4]
	if fb.AnkiNoteID == nil || *fb.AnkiNoteID != 904 {
		t.Errorf("record lost its note binding: %+v", fb)
	}
	if fb.EaseFactor != 2500 || fb.IntervalDays != 3 {
		t.Errorf("record lost its stats: %+v", fb.Stats())
	}
}

func TestRunPassRepairsDuplicate(t *testing.T) {
	store := newMemoryStore()
	var gotQuery string
	deck := &fakeDeck{
		addNote: func(_, _, _ string, _ []string) (int64, error) {
			return 0, fmt.Errorf("%w: cannot create note because it is a duplicate", ErrDuplicateNote)
		},
		findNotes: func(query string) ([]int64, error) {
			gotQuery = query
			return []int64{801}, nil
		},
	}
	engine := NewEngine(deck, store, testCards(), "Neurodeck")

	outcomes := engine.RunPass(context.Background(), []uint{1})
	if outcomes[0].Status != OutcomeRepaired || outcomes[0].NoteID != 801 {
		t.Fatalf("outcome = %+v, want repaired with note 801", outcomes[0])
	}
	if want := `deck:"Neurodeck" "What is a CRDT?"`; gotQuery != want {
		t.Errorf("repair query = %q, want %q", gotQuery, want)
	}
	fb := store.records[1]
	if fb.AnkiNoteID == nil || *fb.AnkiNoteID != 801 || fb.SyncStatus != models.SyncStatusSynced {
		t.Errorf("record after repair = %+v, want synced with note 801", fb)
	}
	if fb.EaseFactor != 0 || fb.Repetitions != 0 {
		t.Errorf("record after repair carries invented stats: %+v", fb.Stats())
	}
}

func TestRunPassRepairNeedsExactlyOneMatch(t *testing.T) {
	for _, tt := range []struct {
		name    string
		matches []int64
	}{
		{"no matches", nil},
		{"ambiguous", []int64{801, 802}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			deck := &fakeDeck{
				addNote: func(_, _, _ string, _ []string) (int64, error) {
					return 0, fmt.Errorf("%w: duplicate", ErrDuplicateNote)
				},
				findNotes: func(string) ([]int64, error) { return tt.matches, nil },
			}
			engine := NewEngine(deck, store, testCards(), "Neurodeck")

			outcomes := engine.RunPass(context.Background(), []uint{1})
			if outcomes[0].Status != OutcomeError {
				t.Fatalf("outcome = %+v, want error", outcomes[0])
			}
			fb := store.records[1]
			if fb.SyncStatus != models.SyncStatusError || fb.AnkiNoteID != nil {
				t.Errorf("record = %+v, want unbound error record", fb)
			}
		})
	}
}

func TestRunPassReportsVanishedNote(t *testing.T) {
	store := newMemoryStore()
	store.seedSynced(1, 901, models.ReviewStats{EaseFactor: 2500, IntervalDays: 3})
	deck := &fakeDeck{
		noteInfo: func(ids []int64) (map[int64]NoteInfo, []int64, error) {
			return map[int64]NoteInfo{}, ids, nil
		},
	}
	engine := NewEngine(deck, store, testCards(), "Neurodeck")

	outcomes := engine.RunPass(context.Background(), []uint{1})
	if outcomes[0].Status != OutcomeError {
		t.Fatalf("outcome = %+v, want error for a vanished note", outcomes[0])
	}
	fb := store.records[1]
	if fb.SyncStatus != models.SyncStatusError {
		t.Errorf("record status = %q, want error", fb.SyncStatus)
	}
	// The binding and the previously pulled stats stay: the next pass retries
	// the pull, and no remote note is recreated behind the user's back.
	if fb.AnkiNoteID == nil || *fb.AnkiNoteID != 901 {
		t.Errorf("record lost its note binding: %+v", fb)
	}
	if fb.EaseFactor != 2500 || fb.IntervalDays != 3 {
		t.Errorf("record lost its stats: %+v", fb.Stats())
	}
	if deck.addCalls != 0 {
		t.Errorf("AddNote called %d times, the engine must not recreate vanished notes", deck.addCalls)
	}
}

func TestRunPassDetectsBindingConflict(t *testing.T) {
	store := newMemoryStore()
	store.seedSynced(2, 777, models.ReviewStats{EaseFactor: 2100})
	deck := &fakeDeck{
		addNote: func(_, _, _ string, _ []string) (int64, error) { return 777, nil },
		noteInfo: func(ids []int64) (map[int64]NoteInfo, []int64, error) {
			return map[int64]NoteInfo{777: {NoteID: 777, Stats: models.ReviewStats{EaseFactor: 2100}}}, nil, nil
		},
	}
	engine := NewEngine(deck, store, testCards(), "Neurodeck")

	outcomes := engine.RunPass(context.Background(), []uint{1, 2})
	if outcomes[0].Status != OutcomeError {
		t.Fatalf("outcome for card 1 = %+v, want error on conflicting note id", outcomes[0])
	}
	if !strings.Contains(outcomes[0].Reason, "777") {
		t.Errorf("reason = %q, want it to name the conflicting note", outcomes[0].Reason)
	}

	// The record that legitimately owns the note is untouched.
	other := store.records[2]
	if other.SyncStatus != models.SyncStatusSynced || *other.AnkiNoteID != 777 || other.EaseFactor != 2100 {
		t.Errorf("owning record was modified: %+v", other)
	}
}

func TestRunPassIsolatesPerCardFailures(t *testing.T) {
	store := newMemoryStore()
	deck := &fakeDeck{
		addNote: func(_, question, _ string, _ []string) (int64, error) {
			if question == "What is a CRDT?" {
				return 0, fmt.Errorf("%w: addNote: model rejected the fields", ErrProtocol)
			}
			return 502, nil
		},
	}
	engine := NewEngine(deck, store, testCards(), "Neurodeck")

	outcomes := engine.RunPass(context.Background(), []uint{1, 2})
	if outcomes[0].Status != OutcomeError {
		t.Errorf("outcome[0] = %+v, want error", outcomes[0])
	}
	if outcomes[1].Status != OutcomePushed || outcomes[1].NoteID != 502 {
		t.Errorf("outcome[1] = %+v, want pushed with note 502 despite the earlier failure", outcomes[1])
	}
}

func TestRunPassDeduplicatesInput(t *testing.T) {
	store := newMemoryStore()
	deck := &fakeDeck{
		addNote: func(_, _, _ string, _ []string) (int64, error) { return 501, nil },
	}
	engine := NewEngine(deck, store, testCards(), "Neurodeck")

	outcomes := engine.RunPass(context.Background(), []uint{1, 1, 1})
	if len(outcomes) != 1 {
		t.Fatalf("RunPass() returned %d outcomes for a thrice-repeated id, want 1", len(outcomes))
	}
	if deck.addCalls != 1 {
		t.Errorf("AddNote called %d times, want 1", deck.addCalls)
	}
}

func TestRunPassKeepsInputOrder(t *testing.T) {
	store := newMemoryStore()
	store.seedSynced(2, 602, models.ReviewStats{})
	next := int64(500)
	deck := &fakeDeck{
		addNote: func(_, _, _ string, _ []string) (int64, error) {
			next++
			return next, nil
		},
		noteInfo: func(ids []int64) (map[int64]NoteInfo, []int64, error) {
			return map[int64]NoteInfo{602: {NoteID: 602}}, nil, nil
		},
	}
	engine := NewEngine(deck, store, testCards(), "Neurodeck")

	outcomes := engine.RunPass(context.Background(), []uint{3, 2, 1})
	want := []uint{3, 2, 1}
	for i, outcome := range outcomes {
		if outcome.CardID != want[i] {
			t.Errorf("outcome[%d].CardID = %d, want %d", i, outcome.CardID, want[i])
		}
	}
}

func TestDefaultQueryBuilderStripsQuotes(t *testing.T) {
	card := &models.Card{Question: `What does "exactly once" promise?`}
	got := DefaultQueryBuilder("Neurodeck", card)
	want := `deck:"Neurodeck" "What does exactly once promise?"`
	if got != want {
		t.Errorf("DefaultQueryBuilder() = %q, want %q", got, want)
	}
}
