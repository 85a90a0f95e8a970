package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cometik/assessd/database"
	"github.com/cometik/assessd/errors"
	"github.com/cometik/assessd/logger"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(context.Background(), database.Config{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	}, logger.NewDefault("test"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := NewStore(db, logger.NewDefault("test"))
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return s
}

func TestCreateAttemptGapless(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	key := Key{DocumentID: "D1", SceneID: "S1", QuestionID: "Q1"}

	for want := 1; want <= 3; want++ {
		resp, err := s.CreateAttempt(ctx, key)
		if err != nil {
			t.Fatalf("CreateAttempt() error: %v", err)
		}
		if resp.Attempt != want {
			t.Errorf("attempt = %d, want %d", resp.Attempt, want)
		}
		if resp.Status != StatusReceived {
			t.Errorf("status = %q, want received", resp.Status)
		}
	}

	// Attempts for a different key start back at 1.
	other := Key{DocumentID: "D1", SceneID: "S1", QuestionID: "Q2"}
	resp, err := s.CreateAttempt(ctx, other)
	if err != nil {
		t.Fatalf("CreateAttempt() error: %v", err)
	}
	if resp.Attempt != 1 {
		t.Errorf("attempt for new key = %d, want 1", resp.Attempt)
	}
}

func TestGetCurrentPrefersNonFailed(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	key := Key{DocumentID: "D1", SceneID: "S1", QuestionID: "Q1"}

	first, err := s.CreateAttempt(ctx, key)
	if err != nil {
		t.Fatalf("CreateAttempt() error: %v", err)
	}
	if err := s.RecordScores(ctx, first.ID, `{"dsm5_composite":1.5}`, "2025.1"); err != nil {
		t.Fatalf("RecordScores() error: %v", err)
	}

	second, err := s.CreateAttempt(ctx, key)
	if err != nil {
		t.Fatalf("CreateAttempt() error: %v", err)
	}
	if err := s.MarkFailed(ctx, second.ID, string(errors.ErrCodeTranscriptionUnavailable), "engine down"); err != nil {
		t.Fatalf("MarkFailed() error: %v", err)
	}

	// Attempt 2 failed, so attempt 1 (scored) is current.
	cur, err := s.GetCurrent(ctx, key)
	if err != nil {
		t.Fatalf("GetCurrent() error: %v", err)
	}
	if cur.Attempt != 1 || cur.Status != StatusScored {
		t.Errorf("current = attempt %d status %s, want attempt 1 scored", cur.Attempt, cur.Status)
	}
}

func TestGetCurrentAllFailed(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	key := Key{DocumentID: "D1", SceneID: "S1", QuestionID: "Q1"}

	for i := 0; i < 2; i++ {
		resp, err := s.CreateAttempt(ctx, key)
		if err != nil {
			t.Fatalf("CreateAttempt() error: %v", err)
		}
		if err := s.MarkFailed(ctx, resp.ID, string(errors.ErrCodeTimeout), "engine timeout"); err != nil {
			t.Fatalf("MarkFailed() error: %v", err)
		}
	}

	cur, err := s.GetCurrent(ctx, key)
	if err != nil {
		t.Fatalf("GetCurrent() error: %v", err)
	}
	if cur.Attempt != 2 {
		t.Errorf("current attempt = %d, want highest overall (2)", cur.Attempt)
	}
	if cur.FailureCode != string(errors.ErrCodeTimeout) {
		t.Errorf("failure code = %q, want TIMEOUT", cur.FailureCode)
	}
}

func TestGetCurrentNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetCurrent(context.Background(), Key{DocumentID: "D9", SceneID: "S9", QuestionID: "Q9"})
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("error code = %v, want NOT_FOUND", errors.CodeOf(err))
	}
}

func TestEnsureDocumentIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.EnsureDocument(ctx, "D1", "6-8", "es-ES"); err != nil {
		t.Fatalf("EnsureDocument() error: %v", err)
	}
	// Second call with different metadata must not overwrite.
	if err := s.EnsureDocument(ctx, "D1", "9-11", "en-US"); err != nil {
		t.Fatalf("EnsureDocument() error: %v", err)
	}

	doc, err := s.GetDocument(ctx, "D1")
	if err != nil {
		t.Fatalf("GetDocument() error: %v", err)
	}
	if doc.AgeBand != "6-8" || doc.Locale != "es-ES" {
		t.Errorf("document metadata overwritten: %+v", doc)
	}
}

func TestStageTransitionsPersisted(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	key := Key{DocumentID: "D1", SceneID: "S1", QuestionID: "Q1"}

	resp, err := s.CreateAttempt(ctx, key)
	if err != nil {
		t.Fatalf("CreateAttempt() error: %v", err)
	}

	steps := []struct {
		apply func() error
		want  string
	}{
		{func() error { return s.BeginStage(ctx, resp.ID, StatusNormalizing) }, StatusNormalizing},
		{func() error { return s.RecordNormalized(ctx, resp.ID, "documents/D1/S1/Q1/1/normalized.wav") }, StatusNormalizing},
		{func() error { return s.BeginStage(ctx, resp.ID, StatusTranscribing) }, StatusTranscribing},
		{func() error { return s.RecordTranscript(ctx, resp.ID, "hola", 0.82, false, "whisper") }, StatusTranscribing},
		{func() error { return s.BeginStage(ctx, resp.ID, StatusScoring) }, StatusScoring},
		{func() error { return s.RecordScores(ctx, resp.ID, `{}`, "2025.1") }, StatusScored},
	}
	for i, step := range steps {
		if err := step.apply(); err != nil {
			t.Fatalf("step %d error: %v", i, err)
		}
		got, err := s.GetByID(ctx, resp.ID)
		if err != nil {
			t.Fatalf("GetByID() error: %v", err)
		}
		if got.Status != step.want {
			t.Errorf("step %d status = %q, want %q", i, got.Status, step.want)
		}
	}

	final, _ := s.GetByID(ctx, resp.ID)
	if final.NormalizedAt == nil || final.TranscribedAt == nil || final.ScoredAt == nil {
		t.Error("stage timestamps missing after full run")
	}
	if final.Transcript != "hola" || final.Confidence != 0.82 {
		t.Errorf("transcript fields not persisted: %+v", final)
	}
}

func TestNonTerminal(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	active, err := s.CreateAttempt(ctx, Key{DocumentID: "D1", SceneID: "S1", QuestionID: "Q1"})
	if err != nil {
		t.Fatalf("CreateAttempt() error: %v", err)
	}
	done, err := s.CreateAttempt(ctx, Key{DocumentID: "D1", SceneID: "S1", QuestionID: "Q2"})
	if err != nil {
		t.Fatalf("CreateAttempt() error: %v", err)
	}
	if err := s.RecordScores(ctx, done.ID, `{}`, "2025.1"); err != nil {
		t.Fatalf("RecordScores() error: %v", err)
	}

	rows, err := s.NonTerminal(ctx)
	if err != nil {
		t.Fatalf("NonTerminal() error: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != active.ID {
		t.Errorf("NonTerminal() = %+v, want only the received attempt", rows)
	}
}
