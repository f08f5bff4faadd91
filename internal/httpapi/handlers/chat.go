package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/DerMichael0408/CyberGuide/internal/chat"
	"github.com/DerMichael0408/CyberGuide/internal/common"
	"github.com/DerMichael0408/CyberGuide/internal/knowledge"
	"github.com/gin-gonic/gin"
)

const maxGuidelinesUpload = 10 << 20

type createSessionReq struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (h *Handler) CreateExpertSession(c *gin.Context) {
	var req createSessionReq
	_ = c.ShouldBindJSON(&req) // allow empty {}

	sess, err := h.Expert.CreateSession(c.Request.Context(), userID(c), req.Provider, req.Model)
	if err != nil {
		h.failErr(c, "create expert session", err)
		return
	}

	common.OK(c, gin.H{
		"session_id": sess.SessionID,
		"provider":   sess.Provider,
		"model":      sess.Model,
	})
}

type sendMessageReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

func (h *Handler) SendExpertMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	reply, msgID, err := h.Expert.SendMessage(c.Request.Context(), userID(c), req.SessionID, req.Message)
	if err != nil {
		h.failErr(c, "send expert message", err)
		return
	}

	common.OK(c, gin.H{
		"session_id": req.SessionID,
		"reply":      reply,
		"message_id": msgID,
	})
}

func (h *Handler) ListExpertMessages(c *gin.Context) {
	sessionID := c.Param("session_id")

	limit, _ := strconv.Atoi(c.Query("limit"))
	var beforeID uint64
	if s := c.Query("before_id"); s != "" {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			beforeID = n
		}
	}

	msgs, err := h.Expert.ListMessages(c.Request.Context(), userID(c), sessionID, limit, beforeID)
	if err != nil {
		h.failErr(c, "list expert messages", err)
		return
	}

	var nextBeforeID uint64
	if len(msgs) > 0 {
		nextBeforeID = msgs[len(msgs)-1].ID
	}

	common.OK(c, gin.H{
		"messages":       msgs,
		"next_before_id": nextBeforeID,
	})
}

func (h *Handler) SendExpertMessageStream(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	ctx := c.Request.Context()
	uid := userID(c)
	if err := h.Expert.ValidateSessionOwner(ctx, uid, req.SessionID); err != nil {
		h.failErr(c, "stream expert message", err)
		return
	}

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx

	// avoid gin writing a JSON response later
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "event: error\ndata: flusher not supported\n\n")
		return
	}

	chunks, done, msgIDCh, errs := h.Expert.SendMessageStream(ctx, uid, req.SessionID, req.Message)

	// heartbeat ticker (keeps connections alive)
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		if event != "" {
			fmt.Fprintf(c.Writer, "event: %s\n", event)
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(b))
		flusher.Flush()
	}

	for {
		select {
		case ch, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			writeJSON("chunk", gin.H{
				"type":  "chunk",
				"delta": ch,
			})

		case <-ticker.C:
			writeJSON("ping", gin.H{
				"type": "ping",
				"ts":   time.Now().Unix(),
			})

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err == nil {
				continue
			}
			msg := err.Error()
			if errors.Is(err, chat.ErrSessionNotFound) {
				msg = "session not found"
			}
			writeJSON("error", gin.H{
				"type":    "error",
				"message": msg,
			})
			return

		case <-done:
			// flush buffered chunks; chunks is closed right after done
			if chunks != nil {
				for ch := range chunks {
					writeJSON("chunk", gin.H{
						"type":  "chunk",
						"delta": ch,
					})
				}
			}
			// the producer sends an error before closing done
			select {
			case err := <-errs:
				if err != nil {
					writeJSON("error", gin.H{
						"type":    "error",
						"message": err.Error(),
					})
					return
				}
			default:
			}
			var mid uint64
			select {
			case mid = <-msgIDCh:
			default:
			}
			writeJSON("done", gin.H{
				"type":       "done",
				"message_id": mid,
			})
			return

		case <-ctx.Done():
			return
		}
	}
}

type guidelinesReq struct {
	Document string `json:"document" binding:"required"`
	Question string `json:"question" binding:"required"`
}

// AskGuidelines answers a question about a policy document. The document is
// either sent inline as JSON or uploaded as multipart "file" (PDF or text)
// with a "question" form field.
func (h *Handler) AskGuidelines(c *gin.Context) {
	var document, question string

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10003, "file is required")
			return
		}
		if fh.Size > maxGuidelinesUpload {
			common.Fail(c, http.StatusBadRequest, 10006, "file too large")
			return
		}
		f, err := fh.Open()
		if err != nil {
			h.failErr(c, "open guidelines upload", err)
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			h.failErr(c, "read guidelines upload", err)
			return
		}

		switch strings.ToLower(filepath.Ext(fh.Filename)) {
		case ".txt", ".md":
			document = string(data)
		default:
			document, err = knowledge.ExtractText(knowledge.Source{Path: fh.Filename, Data: data})
			if err != nil {
				h.failErr(c, "extract guidelines", err)
				return
			}
		}
		question = c.PostForm("question")
	} else {
		var req guidelinesReq
		if err := c.ShouldBindJSON(&req); err != nil {
			common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
			return
		}
		document, question = req.Document, req.Question
	}

	if strings.TrimSpace(document) == "" || strings.TrimSpace(question) == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "document and question are required")
		return
	}

	answer, err := h.Expert.AskGuidelines(c.Request.Context(), document, question)
	if err != nil {
		h.failErr(c, "ask guidelines", err)
		return
	}
	common.OK(c, gin.H{"answer": answer})
}
