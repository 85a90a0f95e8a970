// Package ledger is the authoritative store of one record per
// (document, scene, question, attempt) and the single writer of response
// processing status. It schedules each accepted submission as a pipeline
// unit through normalize, transcribe and score, persisting a durable
// checkpoint at every stage boundary.
package ledger

import (
	"fmt"
	"time"
)

// Response processing statuses. Only scored and failed are terminal.
const (
	StatusReceived     = "received"
	StatusNormalizing  = "normalizing"
	StatusTranscribing = "transcribing"
	StatusScoring      = "scoring"
	StatusScored       = "scored"
	StatusFailed       = "failed"
)

// IsTerminal reports whether the status ends the attempt's lifecycle.
func IsTerminal(status string) bool {
	return status == StatusScored || status == StatusFailed
}

// Derived document statuses.
const (
	DocumentInProgress = "in_progress"
	DocumentCompleted  = "completed"
	DocumentAbandoned  = "abandoned"
)

// Document is one evaluated child session. Its status is derived from its
// responses on read; the row only carries an administrative override.
type Document struct {
	DocumentID  string    `gorm:"column:document_id;primaryKey;size:64" json:"document_id"`
	AgeBand     string    `gorm:"size:32" json:"age_band,omitempty"`
	Locale      string    `gorm:"size:16" json:"locale,omitempty"`
	AdminStatus string    `gorm:"size:16" json:"admin_status,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName sets the documents table name.
func (Document) TableName() string { return "documents" }

// Response is one audio answer attempt. The composite unique index enforces
// one row per (document, scene, question, attempt).
type Response struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	DocumentID string `gorm:"column:document_id;size:64;not null;uniqueIndex:idx_response_key" json:"document_id"`
	SceneID    string `gorm:"column:scene_id;size:64;not null;uniqueIndex:idx_response_key" json:"scene_id"`
	QuestionID string `gorm:"column:question_id;size:64;not null;uniqueIndex:idx_response_key" json:"question_id"`
	Attempt    int    `gorm:"not null;uniqueIndex:idx_response_key" json:"attempt"`

	RawAudioRef        string `gorm:"size:256" json:"raw_audio_ref,omitempty"`
	NormalizedAudioRef string `gorm:"size:256" json:"normalized_audio_ref,omitempty"`

	Transcript    string  `gorm:"type:text" json:"transcript,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	LowConfidence bool    `json:"low_confidence,omitempty"`
	Provider      string  `gorm:"size:64" json:"provider,omitempty"`

	ScoresJSON    string `gorm:"column:scores;type:text" json:"-"`
	RubricVersion string `gorm:"size:32" json:"rubric_version,omitempty"`

	Status        string `gorm:"size:16;not null;index" json:"status"`
	FailureCode   string `gorm:"size:64" json:"failure_code,omitempty"`
	FailureDetail string `gorm:"type:text" json:"failure_detail,omitempty"`

	ReceivedAt    time.Time  `json:"received_at"`
	NormalizedAt  *time.Time `json:"normalized_at,omitempty"`
	TranscribedAt *time.Time `json:"transcribed_at,omitempty"`
	ScoredAt      *time.Time `json:"scored_at,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName sets the responses table name.
func (Response) TableName() string { return "responses" }

// Key identifies one question within one document's scene.
type Key struct {
	DocumentID string
	SceneID    string
	QuestionID string
}

// ResponseKey returns the response's three-part key.
func (r *Response) ResponseKey() Key {
	return Key{DocumentID: r.DocumentID, SceneID: r.SceneID, QuestionID: r.QuestionID}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.DocumentID, k.SceneID, k.QuestionID)
}

// artifactPath builds the storage path for one attempt artifact.
func artifactPath(k Key, attempt int, name string) string {
	return fmt.Sprintf("documents/%s/%s/%s/%d/%s", k.DocumentID, k.SceneID, k.QuestionID, attempt, name)
}

// Attempt artifact names.
const (
	artifactRaw        = "raw.bin"
	artifactNormalized = "normalized.wav"
	artifactAnalysis   = "analysis.json"
)
