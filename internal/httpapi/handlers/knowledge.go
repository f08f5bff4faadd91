package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/DerMichael0408/CyberGuide/internal/common"
	"github.com/DerMichael0408/CyberGuide/internal/knowledge"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxKnowledgeUpload = 50 << 20

// UploadDocument stores a PDF or scenarios JSON under the knowledge dir, named
// by a content hash, and indexes it. With ?async=1 and a broker configured, an index job is queued
// instead and its id returned.
func (h *Handler) UploadDocument(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10003, "file is required")
		return
	}
	if fh.Size > maxKnowledgeUpload {
		common.Fail(c, http.StatusBadRequest, 10006, "file too large")
		return
	}

	name := filepath.Base(fh.Filename)
	if (knowledge.Source{Path: name}).Kind() == knowledge.KindUnsupported {
		h.failErr(c, "upload document", knowledge.ErrUnsupportedDocument)
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10004, "idempotency key too long")
		return
	}

	prefix, err := contentPrefix(fh)
	if err != nil {
		h.failErr(c, "upload document", err)
		return
	}
	if err := os.MkdirAll(h.Cfg.KnowledgeDir, 0o755); err != nil {
		h.failErr(c, "upload document", err)
		return
	}
	dst := filepath.Join(h.Cfg.KnowledgeDir, prefix+"_"+name)
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		h.failErr(c, "save upload", err)
		return
	}

	async, _ := strconv.ParseBool(c.Query("async"))
	if async && h.Rabbit != nil && h.Jobs != nil {
		h.enqueueIndexJob(c, dst, idempoKey)
		return
	}

	n, err := h.Indexer.IndexFile(c.Request.Context(), dst)
	if err != nil {
		h.failErr(c, "index document", err)
		return
	}
	common.OK(c, gin.H{
		"path":       dst,
		"new_chunks": n,
	})
}

// contentPrefix names an upload by its content, so re-uploading the same
// document lands on the same path and its chunks keep their source ids.
func contentPrefix(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum := sha256.New()
	if _, err := io.Copy(sum, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(sum.Sum(nil))[:16], nil
}

func (h *Handler) enqueueIndexJob(c *gin.Context, path, idempoKey string) {
	jobID, err := common.NewULID()
	if err != nil {
		h.failErr(c, "enqueue index job", err)
		return
	}

	var keyPtr *string
	if idempoKey != "" {
		keyPtr = &idempoKey
	}

	j, created, err := h.Jobs.CreateJobOrGetExisting(c.Request.Context(), &knowledge.IndexJob{
		ID:             jobID,
		Path:           path,
		IdempotencyKey: keyPtr,
		Status:         knowledge.JobQueued,
	})
	if err != nil {
		h.failErr(c, "create index job", err)
		return
	}

	// Enqueue only when a new job was created
	if created {
		if err := h.Rabbit.PublishIndexJob(c.Request.Context(), j.ID); err != nil {
			h.log().Error("publish index job failed", zap.String("job_id", j.ID), zap.Error(err))
			common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
	}

	common.OK(c, gin.H{"job_id": j.ID, "created": created})
}

func (h *Handler) GetIndexJob(c *gin.Context) {
	if h.Jobs == nil {
		h.failErr(c, "get index job", knowledge.ErrJobNotFound)
		return
	}
	j, err := h.Jobs.GetJobByID(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		h.failErr(c, "get index job", err)
		return
	}
	common.OK(c, gin.H{"job": j})
}

// SearchKnowledge exposes the retriever directly: GET /knowledge/search?q=...&k=3
func (h *Handler) SearchKnowledge(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "q is required")
		return
	}
	k, _ := strconv.Atoi(c.Query("k"))
	if k > 50 {
		k = 50
	}

	res, err := h.Retriever.Retrieve(c.Request.Context(), q, k)
	if err != nil {
		h.failErr(c, "search knowledge", err)
		return
	}
	common.OK(c, gin.H{
		"query":  q,
		"best":   res.Best(),
		"ranked": res.Ranked,
	})
}
