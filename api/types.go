package api

import (
	"encoding/json"
	"time"

	"github.com/cometik/assessd/ledger"
	"github.com/cometik/assessd/scoring"
)

// submitForm is the multipart shape of a submission. The audio file part is
// read separately.
type submitForm struct {
	DocumentID string `form:"document_id" validate:"required,max=64"`
	SceneID    string `form:"scene_id" validate:"required,max=64"`
	QuestionID string `form:"question_id" validate:"required,max=64"`
	AgeBand    string `form:"age_band" validate:"omitempty,max=32"`
	Locale     string `form:"locale" validate:"omitempty,bcp47_language_tag"`
}

// SubmitAccepted is the 202 body returned for an accepted submission.
type SubmitAccepted struct {
	DocumentID string `json:"document_id"`
	SceneID    string `json:"scene_id"`
	QuestionID string `json:"question_id"`
	Attempt    int    `json:"attempt"`
	Status     string `json:"status"`
}

// ResponseView is the client-facing shape of one attempt. Scores are
// unmarshalled from the stored analysis when the attempt reached scored.
type ResponseView struct {
	DocumentID string `json:"document_id"`
	SceneID    string `json:"scene_id"`
	QuestionID string `json:"question_id"`
	Attempt    int    `json:"attempt"`
	Status     string `json:"status"`

	Transcript    string  `json:"transcript,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	LowConfidence bool    `json:"low_confidence,omitempty"`
	Provider      string  `json:"provider,omitempty"`

	Scores        *scoring.ScoreSet `json:"scores,omitempty"`
	RubricVersion string            `json:"rubric_version,omitempty"`

	FailureCode   string `json:"failure_code,omitempty"`
	FailureDetail string `json:"failure_detail,omitempty"`

	ReceivedAt time.Time  `json:"received_at"`
	ScoredAt   *time.Time `json:"scored_at,omitempty"`
	FailedAt   *time.Time `json:"failed_at,omitempty"`
}

// DocumentView is the client-facing per-document roll-up.
type DocumentView struct {
	DocumentID string         `json:"document_id"`
	AgeBand    string         `json:"age_band,omitempty"`
	Locale     string         `json:"locale,omitempty"`
	Status     string         `json:"status"`
	Responses  []ResponseView `json:"responses"`
}

func toResponseView(r *ledger.Response) ResponseView {
	view := ResponseView{
		DocumentID:    r.DocumentID,
		SceneID:       r.SceneID,
		QuestionID:    r.QuestionID,
		Attempt:       r.Attempt,
		Status:        r.Status,
		Transcript:    r.Transcript,
		Confidence:    r.Confidence,
		LowConfidence: r.LowConfidence,
		Provider:      r.Provider,
		RubricVersion: r.RubricVersion,
		FailureCode:   r.FailureCode,
		FailureDetail: r.FailureDetail,
		ReceivedAt:    r.ReceivedAt,
		ScoredAt:      r.ScoredAt,
		FailedAt:      r.FailedAt,
	}
	if r.ScoresJSON != "" {
		var scores scoring.ScoreSet
		if err := json.Unmarshal([]byte(r.ScoresJSON), &scores); err == nil {
			view.Scores = &scores
		}
	}
	return view
}

func toDocumentView(d *ledger.DocumentView) DocumentView {
	responses := make([]ResponseView, 0, len(d.Responses))
	for i := range d.Responses {
		responses = append(responses, toResponseView(&d.Responses[i]))
	}
	return DocumentView{
		DocumentID: d.DocumentID,
		AgeBand:    d.AgeBand,
		Locale:     d.Locale,
		Status:     d.Status,
		Responses:  responses,
	}
}
