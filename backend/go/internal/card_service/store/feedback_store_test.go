package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mutusfa/Neurodeck/backend/go/internal/anki"
	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
)

func TestGetFeedbackMissingIsNilNil(t *testing.T) {
	s := newTestStore(t)
	fb, err := s.GetFeedback(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetFeedback() returned error: %v", err)
	}
	if fb != nil {
		t.Errorf("GetFeedback() = %+v, want nil for a missing record", fb)
	}
}

func TestUpsertPendingFeedbackIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cards := seedContext(t, s, "media/a.pdf", 1)

	first, err := s.UpsertPendingFeedback(ctx, cards[0].ID)
	if err != nil {
		t.Fatalf("UpsertPendingFeedback() returned error: %v", err)
	}
	if first.SyncStatus != models.SyncStatusPending || first.AnkiNoteID != nil {
		t.Fatalf("fresh record = %+v, want pending without a note id", first)
	}

	second, err := s.UpsertPendingFeedback(ctx, cards[0].ID)
	if err != nil {
		t.Fatalf("second UpsertPendingFeedback() returned error: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second upsert produced a new row: id %d vs %d", second.ID, first.ID)
	}

	var count int64
	s.DB.Model(&models.AnkiNoteFeedback{}).Count(&count)
	if count != 1 {
		t.Errorf("feedback rows = %d, want exactly 1", count)
	}
}

func TestUpsertPendingFeedbackDoesNotTouchSyncedRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cards := seedContext(t, s, "media/a.pdf", 1)

	if _, err := s.UpsertPendingFeedback(ctx, cards[0].ID); err != nil {
		t.Fatalf("UpsertPendingFeedback() returned error: %v", err)
	}
	if err := s.MarkSynced(ctx, cards[0].ID, 501, models.ReviewStats{EaseFactor: 2500}); err != nil {
		t.Fatalf("MarkSynced() returned error: %v", err)
	}

	fb, err := s.UpsertPendingFeedback(ctx, cards[0].ID)
	if err != nil {
		t.Fatalf("UpsertPendingFeedback() on a synced record returned error: %v", err)
	}
	if fb.SyncStatus != models.SyncStatusSynced || fb.AnkiNoteID == nil || *fb.AnkiNoteID != 501 {
		t.Errorf("synced record was reset by an upsert: %+v", fb)
	}
}

func TestMarkSyncedRejectsConflictingBinding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cards := seedContext(t, s, "media/a.pdf", 2)

	if _, err := s.UpsertPendingFeedback(ctx, cards[0].ID); err != nil {
		t.Fatalf("UpsertPendingFeedback() returned error: %v", err)
	}
	if _, err := s.UpsertPendingFeedback(ctx, cards[1].ID); err != nil {
		t.Fatalf("UpsertPendingFeedback() returned error: %v", err)
	}
	if err := s.MarkSynced(ctx, cards[0].ID, 777, models.ReviewStats{}); err != nil {
		t.Fatalf("MarkSynced() returned error: %v", err)
	}

	err := s.MarkSynced(ctx, cards[1].ID, 777, models.ReviewStats{})
	if !errors.Is(err, anki.ErrConflict) {
		t.Fatalf("MarkSynced() with a taken note id = %v, want anki.ErrConflict", err)
	}

	// Both records keep their previous shape.
	owner, _ := s.GetFeedback(ctx, cards[0].ID)
	if owner.AnkiNoteID == nil || *owner.AnkiNoteID != 777 || owner.SyncStatus != models.SyncStatusSynced {
		t.Errorf("owning record changed: %+v", owner)
	}
	loser, _ := s.GetFeedback(ctx, cards[1].ID)
	if loser.AnkiNoteID != nil || loser.SyncStatus != models.SyncStatusPending {
		t.Errorf("rejected record changed: %+v", loser)
	}
}

func TestMarkSyncedIsRetrySafeForSameBinding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cards := seedContext(t, s, "media/a.pdf", 1)

	if _, err := s.UpsertPendingFeedback(ctx, cards[0].ID); err != nil {
		t.Fatalf("UpsertPendingFeedback() returned error: %v", err)
	}
	if err := s.MarkSynced(ctx, cards[0].ID, 501, models.ReviewStats{}); err != nil {
		t.Fatalf("MarkSynced() returned error: %v", err)
	}
	// Re-binding the same card to the same note must not conflict with itself.
	if err := s.MarkSynced(ctx, cards[0].ID, 501, models.ReviewStats{EaseFactor: 2500}); err != nil {
		t.Fatalf("repeated MarkSynced() returned error: %v", err)
	}
}

func TestRecordReviewStatsRequiresBinding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cards := seedContext(t, s, "media/a.pdf", 1)

	err := s.RecordReviewStats(ctx, cards[0].ID, models.ReviewStats{EaseFactor: 2500})
	if !errors.Is(err, anki.ErrNotSynced) {
		t.Fatalf("RecordReviewStats() without a record = %v, want anki.ErrNotSynced", err)
	}

	if _, err := s.UpsertPendingFeedback(ctx, cards[0].ID); err != nil {
		t.Fatalf("UpsertPendingFeedback() returned error: %v", err)
	}
	err = s.RecordReviewStats(ctx, cards[0].ID, models.ReviewStats{EaseFactor: 2500})
	if !errors.Is(err, anki.ErrNotSynced) {
		t.Fatalf("RecordReviewStats() on a pending record = %v, want anki.ErrNotSynced", err)
	}
}

func TestRecordReviewStatsRefreshesAndRecovers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cards := seedContext(t, s, "media/a.pdf", 1)

	if _, err := s.UpsertPendingFeedback(ctx, cards[0].ID); err != nil {
		t.Fatalf("UpsertPendingFeedback() returned error: %v", err)
	}
	if err := s.MarkSynced(ctx, cards[0].ID, 501, models.ReviewStats{}); err != nil {
		t.Fatalf("MarkSynced() returned error: %v", err)
	}
	// A later failure flips the record to error; a successful pull must
	// bring it back to synced and clear the message.
	if err := s.MarkError(ctx, cards[0].ID, "endpoint unavailable"); err != nil {
		t.Fatalf("MarkError() returned error: %v", err)
	}

	reviewed := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	stats := models.ReviewStats{EaseFactor: 2350, IntervalDays: 16, Repetitions: 7, Lapses: 1, LastReviewedAt: &reviewed}
	if err := s.RecordReviewStats(ctx, cards[0].ID, stats); err != nil {
		t.Fatalf("RecordReviewStats() returned error: %v", err)
	}

	fb, _ := s.GetFeedback(ctx, cards[0].ID)
	if fb.SyncStatus != models.SyncStatusSynced {
		t.Errorf("status = %q, want synced", fb.SyncStatus)
	}
	if fb.LastError != nil {
		t.Errorf("last error = %q, want cleared", *fb.LastError)
	}
	if fb.EaseFactor != 2350 || fb.IntervalDays != 16 || fb.Repetitions != 7 || fb.Lapses != 1 {
		t.Errorf("stats = %+v, not refreshed", fb.Stats())
	}
	if fb.LastReviewedAt == nil || !fb.LastReviewedAt.Equal(reviewed) {
		t.Errorf("last reviewed = %v, want %v", fb.LastReviewedAt, reviewed)
	}
	if fb.LastSyncAttemptAt == nil {
		t.Error("last sync attempt timestamp was not set")
	}
}

func TestMarkErrorPreservesBindingAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cards := seedContext(t, s, "media/a.pdf", 1)

	if _, err := s.UpsertPendingFeedback(ctx, cards[0].ID); err != nil {
		t.Fatalf("UpsertPendingFeedback() returned error: %v", err)
	}
	if err := s.MarkSynced(ctx, cards[0].ID, 501, models.ReviewStats{EaseFactor: 2500, IntervalDays: 3}); err != nil {
		t.Fatalf("MarkSynced() returned error: %v", err)
	}

	if err := s.MarkError(ctx, cards[0].ID, "notesInfo failed"); err != nil {
		t.Fatalf("MarkError() returned error: %v", err)
	}

	fb, _ := s.GetFeedback(ctx, cards[0].ID)
	if fb.SyncStatus != models.SyncStatusError || fb.LastError == nil || *fb.LastError != "notesInfo failed" {
		t.Errorf("record = %+v, want error status with the message", fb)
	}
	if fb.AnkiNoteID == nil || *fb.AnkiNoteID != 501 {
		t.Errorf("binding lost on error: %+v", fb)
	}
	if fb.EaseFactor != 2500 || fb.IntervalDays != 3 {
		t.Errorf("stats lost on error: %+v", fb.Stats())
	}
}

func TestGetFeedbackByNoteID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cards := seedContext(t, s, "media/a.pdf", 1)

	if _, err := s.UpsertPendingFeedback(ctx, cards[0].ID); err != nil {
		t.Fatalf("UpsertPendingFeedback() returned error: %v", err)
	}
	if err := s.MarkSynced(ctx, cards[0].ID, 888, models.ReviewStats{}); err != nil {
		t.Fatalf("MarkSynced() returned error: %v", err)
	}

	fb, err := s.GetFeedbackByNoteID(ctx, 888)
	if err != nil {
		t.Fatalf("GetFeedbackByNoteID() returned error: %v", err)
	}
	if fb == nil || fb.CardID != cards[0].ID {
		t.Errorf("GetFeedbackByNoteID() = %+v, want the record for card %d", fb, cards[0].ID)
	}

	missing, err := s.GetFeedbackByNoteID(ctx, 999)
	if err != nil {
		t.Fatalf("GetFeedbackByNoteID() returned error: %v", err)
	}
	if missing != nil {
		t.Errorf("GetFeedbackByNoteID() = %+v, want nil for an unknown note", missing)
	}
}

func TestDeleteFeedbackIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cards := seedContext(t, s, "media/a.pdf", 1)

	if _, err := s.UpsertPendingFeedback(ctx, cards[0].ID); err != nil {
		t.Fatalf("UpsertPendingFeedback() returned error: %v", err)
	}
	if err := s.DeleteFeedback(ctx, cards[0].ID); err != nil {
		t.Fatalf("DeleteFeedback() returned error: %v", err)
	}
	if err := s.DeleteFeedback(ctx, cards[0].ID); err != nil {
		t.Fatalf("second DeleteFeedback() returned error: %v", err)
	}
}
