package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/DerMichael0408/CyberGuide/internal/chat"
	"github.com/DerMichael0408/CyberGuide/internal/common"
	"github.com/DerMichael0408/CyberGuide/internal/config"
	"github.com/DerMichael0408/CyberGuide/internal/httpapi/middleware"
	"github.com/DerMichael0408/CyberGuide/internal/knowledge"
	"github.com/DerMichael0408/CyberGuide/internal/logger"
	"github.com/DerMichael0408/CyberGuide/internal/training"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JobPublisher enqueues index jobs for the worker.
type JobPublisher interface {
	PublishIndexJob(ctx context.Context, jobID string) error
}

type Handler struct {
	Cfg       config.Config
	Training  *training.Service
	Expert    *chat.Service
	Indexer   *knowledge.Indexer
	Retriever *knowledge.Retriever
	Jobs      *knowledge.JobRepo
	// Rabbit is nil when no broker is configured; uploads then index inline.
	Rabbit JobPublisher
	Log    *zap.Logger
}

func (h *Handler) log() *zap.Logger { return logger.OrNop(h.Log) }

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func userID(c *gin.Context) string {
	if uid := c.GetString(middleware.UserIDKey); uid != "" {
		return uid
	}
	return middleware.DefaultUserID
}

// failErr maps domain errors onto the response envelope.
func (h *Handler) failErr(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, training.ErrUnknownScenario):
		common.Fail(c, http.StatusNotFound, 40401, "scenario not found")
	case errors.Is(err, training.ErrSessionNotFound):
		common.Fail(c, http.StatusNotFound, 40402, "training session not found")
	case errors.Is(err, chat.ErrSessionNotFound):
		common.Fail(c, http.StatusNotFound, 40403, "session not found")
	case errors.Is(err, knowledge.ErrJobNotFound):
		common.Fail(c, http.StatusNotFound, 40404, "job not found")
	case errors.Is(err, training.ErrNotStarted):
		common.Fail(c, http.StatusConflict, 40901, "training not started")
	case errors.Is(err, training.ErrSessionCompleted), errors.Is(err, training.ErrAlreadyScored):
		common.Fail(c, http.StatusConflict, 40902, "training already completed")
	case errors.Is(err, training.ErrTurnInFlight):
		common.Fail(c, http.StatusConflict, 40903, "previous answer still processing")
	case errors.Is(err, training.ErrEmptyAnswer):
		common.Fail(c, http.StatusBadRequest, 10002, "answer is required")
	case errors.Is(err, knowledge.ErrUnsupportedDocument):
		common.Fail(c, http.StatusBadRequest, 10005, "unsupported document type")
	default:
		h.log().Error(op+" failed",
			zap.String("user_id", userID(c)),
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err),
		)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}
