package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cometik/assessd/audio"
	"github.com/cometik/assessd/catalog"
	apperrors "github.com/cometik/assessd/errors"
	"github.com/cometik/assessd/logger"
	"github.com/cometik/assessd/observability"
	"github.com/cometik/assessd/scoring"
	"github.com/cometik/assessd/storage"
	"github.com/cometik/assessd/transcription"
)

// Transcriber is the engine collaborator the pipeline calls. Satisfied by
// *transcription.Orchestrator.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, locale string) (*transcription.Result, error)
}

// pipeline runs one attempt through its stages with a durable write at
// every boundary. Artifacts live in object storage so a restarted process
// can resume from the last completed stage instead of redoing clinical work.
type pipeline struct {
	store       *Store
	blobs       storage.Storage
	normalizer  *audio.Normalizer
	transcriber Transcriber
	scorer      *scoring.Scorer
	catalog     *catalog.Catalog
	metrics     *observability.PipelineMetrics
	log         *logger.Logger
}

// run drives the attempt from its persisted checkpoint to a terminal
// status. A cancelled context marks the attempt failed/CANCELLED rather
// than leaving it dangling.
func (p *pipeline) run(ctx context.Context, resp *Response) {
	log := p.log.WithResponseKey(resp.DocumentID, resp.SceneID, resp.QuestionID, resp.Attempt)

	err := p.process(ctx, resp, log)
	if err == nil {
		p.metrics.RecordCompletion(context.Background(), "")
		log.Info("attempt scored", logger.Fields(logger.FieldStatus, StatusScored))
		return
	}

	p.fail(resp, err, log)
}

// fail persists the terminal failed status. The write uses a fresh context
// so cancellation of the unit cannot also lose the failure record.
func (p *pipeline) fail(resp *Response, cause error, log *logger.Logger) {
	code := apperrors.CodeOf(cause)
	if code == "" || code == apperrors.ErrCodeInternal {
		code = apperrors.ErrCodeInternal
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.store.MarkFailed(writeCtx, resp.ID, string(code), cause.Error()); err != nil {
		log.Error("failed to persist terminal failure", logger.Fields(
			logger.FieldError, err.Error(),
		))
	}
	p.metrics.RecordCompletion(context.Background(), string(code))
	log.Warn("attempt failed", logger.Fields(
		logger.FieldStatus, StatusFailed,
		"failure_code", string(code),
		logger.FieldError, cause.Error(),
	))
}

// process executes the remaining stages for the response's current status.
func (p *pipeline) process(ctx context.Context, resp *Response, log *logger.Logger) error {
	key := resp.ResponseKey()

	var normalized []byte

	switch resp.Status {
	case StatusReceived, StatusNormalizing:
		data, err := p.normalize(ctx, resp, key, log)
		if err != nil {
			return err
		}
		normalized = data
		fallthrough
	case StatusTranscribing:
		if err := p.transcribe(ctx, resp, key, normalized, log); err != nil {
			return err
		}
		fallthrough
	case StatusScoring:
		return p.score(ctx, resp, key, log)
	case StatusScored, StatusFailed:
		return nil
	default:
		return apperrors.Internal(fmt.Errorf("response %d in unknown status %q", resp.ID, resp.Status))
	}
}

func (p *pipeline) normalize(ctx context.Context, resp *Response, key Key, log *logger.Logger) ([]byte, error) {
	if err := checkCancelled(ctx, StatusNormalizing); err != nil {
		return nil, err
	}
	if err := p.store.BeginStage(ctx, resp.ID, StatusNormalizing); err != nil {
		return nil, err
	}
	resp.Status = StatusNormalizing

	stageCtx, span := observability.StartStageSpan(ctx, StatusNormalizing, key.DocumentID, key.SceneID, key.QuestionID, resp.Attempt)
	defer span.End()
	start := time.Now()

	raw, err := storage.DownloadBytes(stageCtx, p.blobs, artifactPath(key, resp.Attempt, artifactRaw))
	if err != nil {
		p.metrics.RecordStage(ctx, StatusNormalizing, "error", time.Since(start))
		return nil, apperrors.Internal(fmt.Errorf("raw audio artifact missing: %w", err))
	}

	normalized, err := p.normalizer.Normalize(stageCtx, raw, "")
	if err != nil {
		p.metrics.RecordStage(ctx, StatusNormalizing, "error", time.Since(start))
		return nil, err
	}

	ref := artifactPath(key, resp.Attempt, artifactNormalized)
	if err := storage.UploadBytes(stageCtx, p.blobs, ref, normalized); err != nil {
		p.metrics.RecordStage(ctx, StatusNormalizing, "error", time.Since(start))
		return nil, apperrors.Internal(fmt.Errorf("persist normalized audio: %w", err))
	}
	if err := p.store.RecordNormalized(ctx, resp.ID, ref); err != nil {
		return nil, err
	}
	resp.NormalizedAudioRef = ref

	if err := p.store.BeginStage(ctx, resp.ID, StatusTranscribing); err != nil {
		return nil, err
	}
	resp.Status = StatusTranscribing

	p.metrics.RecordStage(ctx, StatusNormalizing, "ok", time.Since(start))
	log.Debug("audio normalized", logger.Fields("bytes", len(normalized)))
	return normalized, nil
}

func (p *pipeline) transcribe(ctx context.Context, resp *Response, key Key, normalized []byte, log *logger.Logger) error {
	if err := checkCancelled(ctx, StatusTranscribing); err != nil {
		return err
	}

	stageCtx, span := observability.StartStageSpan(ctx, StatusTranscribing, key.DocumentID, key.SceneID, key.QuestionID, resp.Attempt)
	defer span.End()
	start := time.Now()

	// On recovery the normalized artifact is already durable.
	if normalized == nil {
		data, err := storage.DownloadBytes(stageCtx, p.blobs, artifactPath(key, resp.Attempt, artifactNormalized))
		if err != nil {
			p.metrics.RecordStage(ctx, StatusTranscribing, "error", time.Since(start))
			return apperrors.Internal(fmt.Errorf("normalized audio artifact missing: %w", err))
		}
		normalized = data
	}

	locale := ""
	if doc, err := p.store.GetDocument(ctx, key.DocumentID); err == nil {
		locale = doc.Locale
	}

	result, err := p.transcriber.Transcribe(stageCtx, normalized, locale)
	if err != nil {
		p.metrics.RecordStage(ctx, StatusTranscribing, "error", time.Since(start))
		return err
	}

	if err := p.store.RecordTranscript(ctx, resp.ID, result.Text, result.Confidence, result.LowConfidence, result.Provider); err != nil {
		return err
	}
	resp.Transcript = result.Text
	resp.Confidence = result.Confidence
	resp.LowConfidence = result.LowConfidence

	if err := p.store.BeginStage(ctx, resp.ID, StatusScoring); err != nil {
		return err
	}
	resp.Status = StatusScoring

	p.metrics.RecordStage(ctx, StatusTranscribing, "ok", time.Since(start))
	log.Debug("transcription complete", logger.Fields(
		"confidence", result.Confidence,
		"low_confidence", result.LowConfidence,
		logger.FieldProvider, result.Provider,
	))
	return nil
}

func (p *pipeline) score(ctx context.Context, resp *Response, key Key, log *logger.Logger) error {
	if err := checkCancelled(ctx, StatusScoring); err != nil {
		return err
	}

	stageCtx, span := observability.StartStageSpan(ctx, StatusScoring, key.DocumentID, key.SceneID, key.QuestionID, resp.Attempt)
	defer span.End()
	start := time.Now()

	criterion, ok := p.catalog.CriterionFor(key.SceneID)
	if !ok {
		p.metrics.RecordStage(ctx, StatusScoring, "error", time.Since(start))
		return apperrors.NotFound("scene", key.SceneID)
	}

	locale := ""
	if doc, err := p.store.GetDocument(ctx, key.DocumentID); err == nil {
		locale = doc.Locale
	}

	set, err := p.scorer.Score(resp.Transcript, criterion, scoring.SceneContext{
		SceneID:    key.SceneID,
		QuestionID: key.QuestionID,
		Locale:     locale,
	})
	if err != nil {
		p.metrics.RecordStage(ctx, StatusScoring, "error", time.Since(start))
		return err
	}

	scoresJSON, err := json.Marshal(set)
	if err != nil {
		p.metrics.RecordStage(ctx, StatusScoring, "error", time.Since(start))
		return apperrors.Internal(err)
	}

	// The analysis artifact keeps the full score set reviewable outside
	// the database.
	if err := storage.UploadBytes(stageCtx, p.blobs, artifactPath(key, resp.Attempt, artifactAnalysis), scoresJSON); err != nil {
		p.metrics.RecordStage(ctx, StatusScoring, "error", time.Since(start))
		return apperrors.Internal(fmt.Errorf("persist analysis artifact: %w", err))
	}

	if err := p.store.RecordScores(ctx, resp.ID, string(scoresJSON), set.RubricVersion); err != nil {
		return err
	}
	resp.Status = StatusScored
	resp.ScoresJSON = string(scoresJSON)
	resp.RubricVersion = set.RubricVersion

	p.writeDocumentSummary(stageCtx, key.DocumentID, log)

	p.metrics.RecordStage(ctx, StatusScoring, "ok", time.Since(start))
	log.Debug("scoring complete", logger.Fields(
		logger.FieldRubric, set.RubricVersion,
		"dsm5_composite", set.DSM5Composite,
	))
	return nil
}

// writeDocumentSummary regenerates the per-document transcript roll-up after
// each scored attempt. Failure is logged, never fatal to the attempt.
func (p *pipeline) writeDocumentSummary(ctx context.Context, documentID string, log *logger.Logger) {
	rows, err := p.store.ListByDocument(ctx, documentID)
	if err != nil {
		log.Warn("document summary skipped", logger.Fields(logger.FieldError, err.Error()))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "document %s transcript summary\n", documentID)
	for i := range rows {
		r := &rows[i]
		if r.Status != StatusScored {
			continue
		}
		fmt.Fprintf(&b, "%s/%s attempt %d (confidence %.2f): %s\n",
			r.SceneID, r.QuestionID, r.Attempt, r.Confidence, r.Transcript)
	}

	path := fmt.Sprintf("documents/%s/transcripts.txt", documentID)
	if err := storage.UploadBytes(ctx, p.blobs, path, []byte(b.String())); err != nil {
		log.Warn("document summary write failed", logger.Fields(logger.FieldError, err.Error()))
	}
}

func checkCancelled(ctx context.Context, stage string) error {
	if ctx.Err() != nil {
		return apperrors.Cancelled(stage)
	}
	return nil
}
