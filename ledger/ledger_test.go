package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	stderrors "errors"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cometik/assessd/audio"
	"github.com/cometik/assessd/catalog"
	"github.com/cometik/assessd/database"
	"github.com/cometik/assessd/errors"
	"github.com/cometik/assessd/logger"
	"github.com/cometik/assessd/scoring"
	"github.com/cometik/assessd/storage"
	"github.com/cometik/assessd/storage/local"
	"github.com/cometik/assessd/transcription"
)

// testWAV synthesizes ~1s of tone as a 16kHz mono PCM16 WAV.
func testWAV(t *testing.T) []byte {
	t.Helper()
	const rate = 16000
	frames := rate
	dataLen := frames * 2
	buf := make([]byte, 44+dataLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], rate)
	binary.LittleEndian.PutUint32(buf[28:32], rate*2)
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	for f := 0; f < frames; f++ {
		v := int16(8000 * math.Sin(2*math.Pi*330*float64(f)/rate))
		binary.LittleEndian.PutUint16(buf[44+f*2:46+f*2], uint16(v))
	}
	return buf
}

type fakeTranscriber struct {
	calls  int64
	text   string
	err    error
	block  chan struct{}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, _ []byte, _ string) (*transcription.Result, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, errors.Cancelled("transcribing")
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &transcription.Result{Text: f.text, Confidence: 0.85, Provider: "fake"}, nil
}

type testEnv struct {
	ledger *Ledger
	store  *Store
	blobs  storage.Storage
	cat    *catalog.Catalog
}

func newTestEnv(t *testing.T, transcriber Transcriber) *testEnv {
	t.Helper()
	log := logger.NewDefault("test")

	db, err := database.Open(context.Background(), database.Config{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "ledger.db"),
		LogLevel: "silent",
	}, log)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	blobs, err := local.NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	catPath := filepath.Join(t.TempDir(), "catalog.yml")
	catYAML := "scenes:\n  - scene_id: S1\n    criterion: social_use\n    questions: [Q1, Q2]\n"
	if err := os.WriteFile(catPath, []byte(catYAML), 0o600); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}
	cat, err := catalog.Load(catalog.Config{Path: catPath})
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}

	store := NewStore(db, log)
	led := New(Config{MaxConcurrent: 4, ShutdownGrace: "200ms"}, Deps{
		Store:       store,
		Blobs:       blobs,
		Normalizer:  audio.NewNormalizer(audio.Config{}, nil, log),
		Transcriber: transcriber,
		Scorer:      scoring.NewScorer(scoring.Config{}),
		Catalog:     cat,
		Logger:      log,
	})
	if err := led.Start(context.Background()); err != nil {
		t.Fatalf("ledger start failed: %v", err)
	}
	t.Cleanup(func() { led.Stop(context.Background()) })

	return &testEnv{ledger: led, store: store, blobs: blobs, cat: cat}
}

func TestSubmitEndToEnd(t *testing.T) {
	ft := &fakeTranscriber{text: "hola señora gracias por preguntar fuimos al parque y jugamos mucho rato con mis amigos de clase"}
	env := newTestEnv(t, ft)
	ctx := context.Background()

	resp, err := env.ledger.Submit(ctx, SubmitRequest{
		DocumentID: "D1", SceneID: "S1", QuestionID: "Q1",
		AgeBand: "6-8", Locale: "es-ES",
		RawAudio: testWAV(t),
	})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if resp.Attempt != 1 {
		t.Errorf("attempt = %d, want 1", resp.Attempt)
	}

	env.ledger.WaitIdle()

	cur, err := env.ledger.GetCurrent(ctx, "D1", "S1", "Q1")
	if err != nil {
		t.Fatalf("GetCurrent() error: %v", err)
	}
	if cur.Status != StatusScored {
		t.Fatalf("status = %q (%s: %s), want scored", cur.Status, cur.FailureCode, cur.FailureDetail)
	}
	if cur.Transcript == "" {
		t.Error("scored response has empty transcript")
	}

	var set scoring.ScoreSet
	if err := json.Unmarshal([]byte(cur.ScoresJSON), &set); err != nil {
		t.Fatalf("scores not valid JSON: %v", err)
	}
	if set.Criterion != scoring.CriterionSocialUse {
		t.Errorf("scored criterion = %q, want the one mapped to S1", set.Criterion)
	}
	if cur.RubricVersion == "" {
		t.Error("rubric version not recorded")
	}

	// All three artifacts must be durable.
	for _, name := range []string{artifactRaw, artifactNormalized, artifactAnalysis} {
		key := Key{DocumentID: "D1", SceneID: "S1", QuestionID: "Q1"}
		ok, err := env.blobs.Exists(ctx, artifactPath(key, 1, name))
		if err != nil || !ok {
			t.Errorf("artifact %s missing (ok=%v err=%v)", name, ok, err)
		}
	}
}

func TestSubmitRejectsBadAudioWithoutRecord(t *testing.T) {
	env := newTestEnv(t, &fakeTranscriber{text: "x"})
	ctx := context.Background()

	tests := []struct {
		name string
		data []byte
		code errors.ErrorCode
	}{
		{"garbage bytes", []byte("certainly not an audio container"), errors.ErrCodeUnsupportedAudioFormat},
		{"empty payload", nil, errors.ErrCodeCorruptAudio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ledger.Submit(ctx, SubmitRequest{
				DocumentID: "D1", SceneID: "S1", QuestionID: "Q1",
				RawAudio: tt.data,
			})
			if !errors.HasCode(err, tt.code) {
				t.Errorf("error code = %v, want %v", errors.CodeOf(err), tt.code)
			}
		})
	}

	// Input errors never create a Response.
	if _, err := env.ledger.GetCurrent(ctx, "D1", "S1", "Q1"); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND after rejected submissions, got %v", err)
	}
}

func TestSubmitConflictThenNewAttempt(t *testing.T) {
	ft := &fakeTranscriber{text: "respuesta del niño sobre el parque y los juegos con sus amigos durante el recreo", block: make(chan struct{})}
	env := newTestEnv(t, ft)
	ctx := context.Background()

	if _, err := env.ledger.Submit(ctx, SubmitRequest{
		DocumentID: "D1", SceneID: "S1", QuestionID: "Q1", RawAudio: testWAV(t),
	}); err != nil {
		t.Fatalf("first Submit() error: %v", err)
	}

	// Same key while attempt 1 is still transcribing.
	_, err := env.ledger.Submit(ctx, SubmitRequest{
		DocumentID: "D1", SceneID: "S1", QuestionID: "Q1", RawAudio: testWAV(t),
	})
	if !errors.HasCode(err, errors.ErrCodeAttemptInProgress) {
		t.Fatalf("error code = %v, want ATTEMPT_IN_PROGRESS", errors.CodeOf(err))
	}

	// A different key is not serialized with it.
	if _, err := env.ledger.Submit(ctx, SubmitRequest{
		DocumentID: "D1", SceneID: "S1", QuestionID: "Q2", RawAudio: testWAV(t),
	}); err != nil {
		t.Errorf("different key Submit() error: %v", err)
	}

	close(ft.block)
	env.ledger.WaitIdle()

	resp, err := env.ledger.Submit(ctx, SubmitRequest{
		DocumentID: "D1", SceneID: "S1", QuestionID: "Q1", RawAudio: testWAV(t),
	})
	if err != nil {
		t.Fatalf("Submit() after completion error: %v", err)
	}
	if resp.Attempt != 2 {
		t.Errorf("attempt = %d, want 2", resp.Attempt)
	}

	env.ledger.WaitIdle()
	cur, err := env.ledger.GetCurrent(ctx, "D1", "S1", "Q1")
	if err != nil {
		t.Fatalf("GetCurrent() error: %v", err)
	}
	if cur.Attempt != 2 {
		t.Errorf("current attempt = %d, want 2", cur.Attempt)
	}
}

func TestTranscriptionFailureThenFreshAttempt(t *testing.T) {
	ft := &fakeTranscriber{err: errors.TranscriptionUnavailable(stderrors.New("engine down"))}
	env := newTestEnv(t, ft)
	ctx := context.Background()

	if _, err := env.ledger.Submit(ctx, SubmitRequest{
		DocumentID: "D1", SceneID: "S1", QuestionID: "Q1", RawAudio: testWAV(t),
	}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	env.ledger.WaitIdle()

	cur, err := env.ledger.GetCurrent(ctx, "D1", "S1", "Q1")
	if err != nil {
		t.Fatalf("GetCurrent() error: %v", err)
	}
	if cur.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", cur.Status)
	}
	if cur.FailureCode != string(errors.ErrCodeTranscriptionUnavailable) {
		t.Errorf("failure code = %q, want TRANSCRIPTION_UNAVAILABLE", cur.FailureCode)
	}

	// Prior failure does not poison the next attempt.
	ft.err = nil
	ft.text = "ahora sí funciona el motor y la respuesta es larga y completa para puntuar bien"
	resp, err := env.ledger.Submit(ctx, SubmitRequest{
		DocumentID: "D1", SceneID: "S1", QuestionID: "Q1", RawAudio: testWAV(t),
	})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if resp.Attempt != 2 {
		t.Errorf("attempt = %d, want 2", resp.Attempt)
	}
	env.ledger.WaitIdle()

	cur, err = env.ledger.GetCurrent(ctx, "D1", "S1", "Q1")
	if err != nil {
		t.Fatalf("GetCurrent() error: %v", err)
	}
	if cur.Attempt != 2 || cur.Status != StatusScored {
		t.Errorf("current = attempt %d status %s, want attempt 2 scored", cur.Attempt, cur.Status)
	}
}

func TestInsufficientTranscriptIsTerminal(t *testing.T) {
	ft := &fakeTranscriber{text: ""}
	env := newTestEnv(t, ft)
	ctx := context.Background()

	if _, err := env.ledger.Submit(ctx, SubmitRequest{
		DocumentID: "D1", SceneID: "S1", QuestionID: "Q1", RawAudio: testWAV(t),
	}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	env.ledger.WaitIdle()

	cur, err := env.ledger.GetCurrent(ctx, "D1", "S1", "Q1")
	if err != nil {
		t.Fatalf("GetCurrent() error: %v", err)
	}
	if cur.Status != StatusFailed || cur.FailureCode != string(errors.ErrCodeInsufficientTranscript) {
		t.Errorf("got status %q code %q, want failed/INSUFFICIENT_TRANSCRIPT", cur.Status, cur.FailureCode)
	}
	if cur.ScoresJSON != "" {
		t.Error("insufficient transcript must never produce a score set")
	}
}

func TestRecoverResumesFromCheckpoint(t *testing.T) {
	ft := &fakeTranscriber{text: "una respuesta recuperada después del reinicio del proceso con muchas palabras para puntuar"}
	env := newTestEnv(t, ft)
	ctx := context.Background()
	key := Key{DocumentID: "D2", SceneID: "S1", QuestionID: "Q1"}

	// Simulate a crash after normalization: row parked in transcribing
	// with its normalized artifact durable.
	if err := env.store.EnsureDocument(ctx, "D2", "6-8", "es-ES"); err != nil {
		t.Fatalf("EnsureDocument() error: %v", err)
	}
	resp, err := env.store.CreateAttempt(ctx, key)
	if err != nil {
		t.Fatalf("CreateAttempt() error: %v", err)
	}
	ref := artifactPath(key, resp.Attempt, artifactNormalized)
	if err := storage.UploadBytes(ctx, env.blobs, ref, testWAV(t)); err != nil {
		t.Fatalf("upload error: %v", err)
	}
	if err := env.store.RecordNormalized(ctx, resp.ID, ref); err != nil {
		t.Fatalf("RecordNormalized() error: %v", err)
	}
	if err := env.store.BeginStage(ctx, resp.ID, StatusTranscribing); err != nil {
		t.Fatalf("BeginStage() error: %v", err)
	}

	if err := env.ledger.Recover(ctx); err != nil {
		t.Fatalf("Recover() error: %v", err)
	}
	env.ledger.WaitIdle()

	cur, err := env.ledger.GetCurrent(ctx, "D2", "S1", "Q1")
	if err != nil {
		t.Fatalf("GetCurrent() error: %v", err)
	}
	if cur.Status != StatusScored {
		t.Errorf("status = %q (%s), want scored after recovery", cur.Status, cur.FailureDetail)
	}
	if atomic.LoadInt64(&ft.calls) != 1 {
		t.Errorf("transcriber calls = %d, want 1 (resume from checkpoint)", ft.calls)
	}
}

func TestStopCancelsInFlightUnit(t *testing.T) {
	ft := &fakeTranscriber{text: "nunca llega", block: make(chan struct{})}
	env := newTestEnv(t, ft)
	ctx := context.Background()

	if _, err := env.ledger.Submit(ctx, SubmitRequest{
		DocumentID: "D1", SceneID: "S1", QuestionID: "Q1", RawAudio: testWAV(t),
	}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	// Give the unit time to reach the blocked transcription call, then
	// stop; the 200ms grace elapses and the unit is cancelled.
	time.Sleep(50 * time.Millisecond)
	if err := env.ledger.Stop(ctx); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	cur, err := env.ledger.GetCurrent(ctx, "D1", "S1", "Q1")
	if err != nil {
		t.Fatalf("GetCurrent() error: %v", err)
	}
	if cur.Status != StatusFailed || cur.FailureCode != string(errors.ErrCodeCancelled) {
		t.Errorf("got status %q code %q, want failed/CANCELLED", cur.Status, cur.FailureCode)
	}
}

func TestGetDocumentDerivedStatus(t *testing.T) {
	ft := &fakeTranscriber{text: "hola gracias fuimos a la escuela y después jugamos en casa porque llovía mucho esa tarde"}
	env := newTestEnv(t, ft)
	ctx := context.Background()

	if _, err := env.ledger.Submit(ctx, SubmitRequest{
		DocumentID: "D1", SceneID: "S1", QuestionID: "Q1", Locale: "es-ES", RawAudio: testWAV(t),
	}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	env.ledger.WaitIdle()

	view, err := env.ledger.GetDocument(ctx, "D1", env.cat)
	if err != nil {
		t.Fatalf("GetDocument() error: %v", err)
	}
	// Q2 of S1 has no scored response yet.
	if view.Status != DocumentInProgress {
		t.Errorf("document status = %q, want in_progress", view.Status)
	}
	if len(view.Responses) != 1 {
		t.Errorf("response summaries = %d, want 1", len(view.Responses))
	}

	if _, err := env.ledger.Submit(ctx, SubmitRequest{
		DocumentID: "D1", SceneID: "S1", QuestionID: "Q2", RawAudio: testWAV(t),
	}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	env.ledger.WaitIdle()

	view, err = env.ledger.GetDocument(ctx, "D1", env.cat)
	if err != nil {
		t.Fatalf("GetDocument() error: %v", err)
	}
	if view.Status != DocumentCompleted {
		t.Errorf("document status = %q, want completed", view.Status)
	}
}
