package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cometik/assessd/audio"
	"github.com/cometik/assessd/catalog"
	"github.com/cometik/assessd/component"
	apperrors "github.com/cometik/assessd/errors"
	"github.com/cometik/assessd/logger"
	"github.com/cometik/assessd/observability"
	"github.com/cometik/assessd/resilience"
	"github.com/cometik/assessd/scoring"
	"github.com/cometik/assessd/storage"
)

// Deps are the collaborators the ledger drives the pipeline with.
type Deps struct {
	Store       *Store
	Blobs       storage.Storage
	Normalizer  *audio.Normalizer
	Transcriber Transcriber
	Scorer      *scoring.Scorer
	Catalog     *catalog.Catalog
	Metrics     *observability.PipelineMetrics
	Logger      *logger.Logger
}

// Ledger owns the Response lifecycle. Submit is the single mutation entry
// point: it allocates the next attempt, persists it, and schedules the
// pipeline unit onto a bounded worker pool. Units for different keys run in
// parallel; the tracker serializes units for the same key.
type Ledger struct {
	cfg      Config
	store    *Store
	tracker  *Tracker
	pipeline *pipeline
	bulkhead *resilience.Bulkhead
	metrics  *observability.PipelineMetrics
	log      *logger.Logger

	mu      sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New builds the ledger. Call Start before submitting.
func New(cfg Config, deps Deps) *Ledger {
	cfg.ApplyDefaults()
	log := deps.Logger.WithComponent("ledger")

	return &Ledger{
		cfg:     cfg,
		store:   deps.Store,
		tracker: NewTracker(),
		pipeline: &pipeline{
			store:       deps.Store,
			blobs:       deps.Blobs,
			normalizer:  deps.Normalizer,
			transcriber: deps.Transcriber,
			scorer:      deps.Scorer,
			catalog:     deps.Catalog,
			metrics:     deps.Metrics,
			log:         log,
		},
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "pipeline",
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       30 * time.Second,
		}),
		metrics: deps.Metrics,
		log:     log,
	}
}

// Name returns the component name.
func (l *Ledger) Name() string { return "ledger" }

// Start migrates the schema, rebuilds the tracker from durable state and
// resumes interrupted attempts.
func (l *Ledger) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return nil
	}
	l.baseCtx, l.cancel = context.WithCancel(context.Background())
	l.started = true
	l.mu.Unlock()

	if err := l.store.Migrate(); err != nil {
		return err
	}
	return l.Recover(ctx)
}

// Stop waits for in-flight units up to the shutdown grace period, then
// cancels them; cancelled units persist failed/CANCELLED before exiting.
func (l *Ledger) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return nil
	}
	cancel := l.cancel
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(l.cfg.ShutdownGraceValue()):
		l.log.Warn("shutdown grace elapsed, cancelling in-flight units", logger.Fields(
			"in_flight", l.tracker.Len(),
		))
		cancel()
		<-done
	case <-ctx.Done():
		cancel()
		<-done
	}

	l.mu.Lock()
	l.started = false
	l.mu.Unlock()
	return nil
}

// Health reports the ledger's capacity state.
func (l *Ledger) Health(ctx context.Context) component.Health {
	return component.Health{
		Name:    l.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d active keys, %d units in flight", l.tracker.Len(), l.bulkhead.InUse()),
	}
}

// SubmitRequest carries one audio submission.
type SubmitRequest struct {
	DocumentID string
	SceneID    string
	QuestionID string
	AgeBand    string
	Locale     string
	RawAudio   []byte
}

// Submit validates the audio synchronously, allocates the next attempt,
// persists it as received and schedules the pipeline unit. Returns the new
// attempt number immediately; the score arrives asynchronously via
// GetCurrent. A key with an in-flight attempt is rejected with
// ATTEMPT_IN_PROGRESS. Input errors never create a Response row.
func (l *Ledger) Submit(ctx context.Context, req SubmitRequest) (*Response, error) {
	l.mu.Lock()
	started := l.started
	baseCtx := l.baseCtx
	l.mu.Unlock()
	if !started {
		return nil, apperrors.ServiceUnavailable("ledger")
	}

	// Reject undecodable payloads before anything durable happens.
	if err := l.pipeline.normalizer.Inspect(req.RawAudio); err != nil {
		return nil, err
	}

	key := Key{DocumentID: req.DocumentID, SceneID: req.SceneID, QuestionID: req.QuestionID}
	if !l.tracker.Acquire(key) {
		return nil, apperrors.AttemptInProgress(req.DocumentID, req.SceneID, req.QuestionID)
	}

	resp, err := l.admit(ctx, key, req)
	if err != nil {
		l.tracker.Release(key)
		return nil, err
	}

	l.metrics.RecordSubmission(ctx)
	l.schedule(baseCtx, resp, key)
	return resp, nil
}

// admit persists the document, the attempt row and the raw audio artifact.
func (l *Ledger) admit(ctx context.Context, key Key, req SubmitRequest) (*Response, error) {
	if err := l.store.EnsureDocument(ctx, req.DocumentID, req.AgeBand, req.Locale); err != nil {
		return nil, err
	}

	resp, err := l.store.CreateAttempt(ctx, key)
	if err != nil {
		return nil, err
	}

	rawRef := artifactPath(key, resp.Attempt, artifactRaw)
	if err := storage.UploadBytes(ctx, l.pipeline.blobs, rawRef, req.RawAudio); err != nil {
		wrapped := apperrors.Internal(err)
		l.pipeline.fail(resp, wrapped, l.log)
		return nil, wrapped
	}
	if err := l.store.SetRawRef(ctx, resp.ID, rawRef); err != nil {
		return nil, err
	}
	resp.RawAudioRef = rawRef
	return resp, nil
}

// schedule runs the unit on the worker pool and frees the key afterwards.
func (l *Ledger) schedule(baseCtx context.Context, resp *Response, key Key) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.tracker.Release(key)

		err := l.bulkhead.Execute(baseCtx, func() error {
			l.pipeline.run(baseCtx, resp)
			return nil
		})
		if err != nil {
			// No slot within the wait budget; the attempt must not
			// stay non-terminal.
			l.pipeline.fail(resp, apperrors.ServiceUnavailable("pipeline"), l.log)
		}
	}()
}

// GetCurrent returns the current attempt for the key: the highest non-failed
// attempt, or the highest overall when all failed.
func (l *Ledger) GetCurrent(ctx context.Context, documentID, sceneID, questionID string) (*Response, error) {
	return l.store.GetCurrent(ctx, Key{DocumentID: documentID, SceneID: sceneID, QuestionID: questionID})
}

// DocumentView is the per-document roll-up with derived status.
type DocumentView struct {
	Document
	Status    string     `json:"status"`
	Responses []Response `json:"responses"`
}

// GetDocument returns the document with its derived status and the current
// response per question.
func (l *Ledger) GetDocument(ctx context.Context, documentID string, cat *catalog.Catalog) (*DocumentView, error) {
	doc, err := l.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	rows, err := l.store.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	current := currentPerKey(rows)
	return &DocumentView{
		Document:  *doc,
		Status:    DeriveDocumentStatus(doc, current, cat),
		Responses: current,
	}, nil
}

// currentPerKey reduces all attempts to the current one per key, preserving
// the input's key order.
func currentPerKey(rows []Response) []Response {
	byKey := make(map[Key]Response)
	var order []Key
	for _, r := range rows {
		k := r.ResponseKey()
		cur, seen := byKey[k]
		if !seen {
			order = append(order, k)
			byKey[k] = r
			continue
		}
		// Higher non-failed wins; a failed row only wins over another
		// failed row.
		if r.Status != StatusFailed && (cur.Status == StatusFailed || r.Attempt > cur.Attempt) {
			byKey[k] = r
		} else if r.Status == StatusFailed && cur.Status == StatusFailed && r.Attempt > cur.Attempt {
			byKey[k] = r
		}
	}
	out := make([]Response, 0, len(order))
	for _, k := range order {
		out = append(out, byKey[k])
	}
	return out
}

// DeriveDocumentStatus recomputes the document status from its responses.
// Never stored, so it cannot drift.
func DeriveDocumentStatus(doc *Document, current []Response, cat *catalog.Catalog) string {
	if doc.AdminStatus == DocumentAbandoned {
		return DocumentAbandoned
	}

	scored := make(map[Key]bool, len(current))
	for _, r := range current {
		if r.Status == StatusScored {
			scored[r.ResponseKey()] = true
		}
	}
	for _, scene := range cat.Scenes() {
		for _, q := range scene.Questions {
			k := Key{DocumentID: doc.DocumentID, SceneID: scene.ID, QuestionID: q}
			if !scored[k] {
				return DocumentInProgress
			}
		}
	}
	return DocumentCompleted
}

// Recover scans non-terminal rows and re-runs each from its last durable
// checkpoint. Stages whose artifacts already exist are skipped by the
// pipeline's status dispatch.
func (l *Ledger) Recover(ctx context.Context) error {
	l.mu.Lock()
	baseCtx := l.baseCtx
	l.mu.Unlock()

	rows, err := l.store.NonTerminal(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	l.log.Info("recovering interrupted attempts", logger.Fields("count", len(rows)))
	for i := range rows {
		resp := rows[i]
		key := resp.ResponseKey()
		if !l.tracker.Acquire(key) {
			continue
		}
		l.schedule(baseCtx, &resp, key)
	}
	return nil
}

// WaitIdle blocks until every scheduled unit has finished. Test hook.
func (l *Ledger) WaitIdle() {
	l.wg.Wait()
}
