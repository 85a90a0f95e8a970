// Package api exposes the ingestion HTTP endpoints: submit one audio answer,
// read the current attempt for a question, and read a document roll-up.
package api

import (
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"github.com/cometik/assessd/catalog"
	apperrors "github.com/cometik/assessd/errors"
	"github.com/cometik/assessd/ledger"
	"github.com/cometik/assessd/logger"
	"github.com/cometik/assessd/server"
	"github.com/cometik/assessd/server/middleware"
	"github.com/cometik/assessd/validation"
)

// Handler serves the ingestion API on top of the ledger.
type Handler struct {
	config  Config
	ledger  *ledger.Ledger
	catalog *catalog.Catalog
	log     *logger.Logger
}

// NewHandler builds the API handler.
func NewHandler(cfg Config, led *ledger.Ledger, cat *catalog.Catalog, log *logger.Logger) *Handler {
	cfg.ApplyDefaults()
	return &Handler{
		config:  cfg,
		ledger:  led,
		catalog: cat,
		log:     log.WithComponent("api"),
	}
}

// Register mounts the API routes under /api/v1.
func (h *Handler) Register(engine *gin.Engine) {
	v1 := engine.Group("/api/v1")
	if h.config.RateLimitPerMinute > 0 {
		v1.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerMinute: h.config.RateLimitPerMinute,
		}))
	}

	v1.POST("/responses", h.Submit)
	v1.GET("/responses/:document_id/:scene_id/:question_id", h.GetResponse)
	v1.GET("/documents/:document_id", h.GetDocument)
}

// Submit accepts one multipart audio submission and schedules it for
// processing. Input errors never create an attempt.
func (h *Handler) Submit(c *gin.Context) {
	var form submitForm
	if err := c.ShouldBind(&form); err != nil {
		server.RespondWithError(c, apperrors.Validation("malformed multipart form").WithCause(err))
		return
	}
	if err := validation.Validate(form); err != nil {
		server.RespondWithError(c, err)
		return
	}
	if !h.catalog.HasQuestion(form.SceneID, form.QuestionID) {
		server.RespondWithError(c, apperrors.NotFound("question", form.SceneID+"/"+form.QuestionID))
		return
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		server.RespondWithError(c, apperrors.MissingField("audio"))
		return
	}
	raw, err := readFilePart(fileHeader)
	if err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("audio", "unreadable file part").WithCause(err))
		return
	}

	resp, err := h.ledger.Submit(c.Request.Context(), ledger.SubmitRequest{
		DocumentID: form.DocumentID,
		SceneID:    form.SceneID,
		QuestionID: form.QuestionID,
		AgeBand:    form.AgeBand,
		Locale:     form.Locale,
		RawAudio:   raw,
	})
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	h.log.Info("submission accepted", logger.Fields(
		logger.FieldDocumentID, resp.DocumentID,
		logger.FieldSceneID, resp.SceneID,
		logger.FieldQuestionID, resp.QuestionID,
		logger.FieldAttempt, resp.Attempt,
	))
	server.RespondAccepted(c, SubmitAccepted{
		DocumentID: resp.DocumentID,
		SceneID:    resp.SceneID,
		QuestionID: resp.QuestionID,
		Attempt:    resp.Attempt,
		Status:     resp.Status,
	})
}

// GetResponse returns the current attempt for one question.
func (h *Handler) GetResponse(c *gin.Context) {
	documentID := c.Param("document_id")
	sceneID := c.Param("scene_id")
	questionID := c.Param("question_id")

	resp, err := h.ledger.GetCurrent(c.Request.Context(), documentID, sceneID, questionID)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, toResponseView(resp))
}

// GetDocument returns the document with its derived status and the current
// response per question.
func (h *Handler) GetDocument(c *gin.Context) {
	doc, err := h.ledger.GetDocument(c.Request.Context(), c.Param("document_id"), h.catalog)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, toDocumentView(doc))
}

func readFilePart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
