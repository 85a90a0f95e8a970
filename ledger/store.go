package ledger

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/cometik/assessd/database"
	apperrors "github.com/cometik/assessd/errors"
	"github.com/cometik/assessd/logger"
)

// Store persists documents and responses through GORM. All status writes go
// through here; nothing else mutates response rows.
type Store struct {
	db  *database.DB
	log *logger.Logger
}

// NewStore builds a Store over an open database.
func NewStore(db *database.DB, log *logger.Logger) *Store {
	return &Store{db: db, log: log.WithComponent("ledger.store")}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Document{}, &Response{})
}

// EnsureDocument creates the document row on first submission. Metadata is
// written once and not overwritten by later submissions.
func (s *Store) EnsureDocument(ctx context.Context, documentID, ageBand, locale string) error {
	doc := Document{DocumentID: documentID, AgeBand: ageBand, Locale: locale}
	err := s.db.WithContext(ctx).
		Where(Document{DocumentID: documentID}).
		FirstOrCreate(&doc).Error
	if err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

// CreateAttempt allocates the next attempt number for the key atomically and
// persists the new response in status received. The composite unique index
// backstops the allocation against races the tracker did not catch.
func (s *Store) CreateAttempt(ctx context.Context, key Key) (*Response, error) {
	resp := &Response{
		DocumentID: key.DocumentID,
		SceneID:    key.SceneID,
		QuestionID: key.QuestionID,
		Status:     StatusReceived,
		ReceivedAt: time.Now().UTC(),
	}
	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		var maxAttempt int64
		err := tx.Model(&Response{}).
			Where("document_id = ? AND scene_id = ? AND question_id = ?",
				key.DocumentID, key.SceneID, key.QuestionID).
			Select("COALESCE(MAX(attempt), 0)").
			Scan(&maxAttempt).Error
		if err != nil {
			return err
		}
		resp.Attempt = int(maxAttempt) + 1
		return tx.Create(resp).Error
	})
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return resp, nil
}

// SetRawRef records where the raw audio bytes were persisted.
func (s *Store) SetRawRef(ctx context.Context, id uint, ref string) error {
	return s.update(ctx, id, map[string]interface{}{"raw_audio_ref": ref})
}

// BeginStage durably transitions the response into a processing stage.
func (s *Store) BeginStage(ctx context.Context, id uint, status string) error {
	return s.update(ctx, id, map[string]interface{}{"status": status})
}

// RecordNormalized persists the normalization result.
func (s *Store) RecordNormalized(ctx context.Context, id uint, ref string) error {
	now := time.Now().UTC()
	return s.update(ctx, id, map[string]interface{}{
		"normalized_audio_ref": ref,
		"normalized_at":        &now,
	})
}

// RecordTranscript persists the transcription result.
func (s *Store) RecordTranscript(ctx context.Context, id uint, text string, confidence float64, lowConfidence bool, provider string) error {
	now := time.Now().UTC()
	return s.update(ctx, id, map[string]interface{}{
		"transcript":     text,
		"confidence":     confidence,
		"low_confidence": lowConfidence,
		"provider":       provider,
		"transcribed_at": &now,
	})
}

// RecordScores persists the score set and moves the attempt to scored.
func (s *Store) RecordScores(ctx context.Context, id uint, scoresJSON, rubricVersion string) error {
	now := time.Now().UTC()
	return s.update(ctx, id, map[string]interface{}{
		"scores":         scoresJSON,
		"rubric_version": rubricVersion,
		"status":         StatusScored,
		"scored_at":      &now,
	})
}

// MarkFailed moves the attempt to failed with an explicit reason. Every
// non-scored terminal row carries its code and detail.
func (s *Store) MarkFailed(ctx context.Context, id uint, code, detail string) error {
	now := time.Now().UTC()
	return s.update(ctx, id, map[string]interface{}{
		"status":         StatusFailed,
		"failure_code":   code,
		"failure_detail": detail,
		"failed_at":      &now,
	})
}

func (s *Store) update(ctx context.Context, id uint, fields map[string]interface{}) error {
	err := s.db.WithContext(ctx).
		Model(&Response{}).
		Where("id = ?", id).
		Updates(fields).Error
	if err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

// GetCurrent returns the highest non-failed attempt for the key, or the
// highest overall when every attempt failed.
func (s *Store) GetCurrent(ctx context.Context, key Key) (*Response, error) {
	var rows []Response
	err := s.db.WithContext(ctx).
		Where("document_id = ? AND scene_id = ? AND question_id = ?",
			key.DocumentID, key.SceneID, key.QuestionID).
		Order("attempt DESC").
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NotFound("response", key.String())
	}
	for i := range rows {
		if rows[i].Status != StatusFailed {
			return &rows[i], nil
		}
	}
	return &rows[0], nil
}

// GetByID fetches one response row.
func (s *Store) GetByID(ctx context.Context, id uint) (*Response, error) {
	var resp Response
	err := s.db.WithContext(ctx).First(&resp, id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("response", "")
	}
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return &resp, nil
}

// GetDocument fetches the document row.
func (s *Store) GetDocument(ctx context.Context, documentID string) (*Document, error) {
	var doc Document
	err := s.db.WithContext(ctx).First(&doc, "document_id = ?", documentID).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("document", documentID)
	}
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return &doc, nil
}

// ListByDocument returns all responses for a document ordered by key and
// attempt.
func (s *Store) ListByDocument(ctx context.Context, documentID string) ([]Response, error) {
	var rows []Response
	err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("scene_id, question_id, attempt").
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return rows, nil
}

// NonTerminal returns every response still in a processing status, for
// restart recovery.
func (s *Store) NonTerminal(ctx context.Context) ([]Response, error) {
	var rows []Response
	err := s.db.WithContext(ctx).
		Where("status NOT IN ?", []string{StatusScored, StatusFailed}).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return rows, nil
}
