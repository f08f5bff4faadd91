package handlers

import (
	"net/http"

	"github.com/DerMichael0408/CyberGuide/internal/common"
	"github.com/DerMichael0408/CyberGuide/internal/training"
	"github.com/gin-gonic/gin"
)

type scenarioView struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Intro     string              `json:"intro"`
	Material  string              `json:"material,omitempty"`
	Questions []training.Question `json:"questions"`
}

func (h *Handler) ListScenarios(c *gin.Context) {
	list := h.Training.Catalog().List()
	out := make([]scenarioView, 0, len(list))
	for _, sc := range list {
		out = append(out, scenarioView{
			ID:        sc.ID,
			Title:     sc.Title,
			Intro:     sc.Intro,
			Material:  sc.Material,
			Questions: sc.Questions,
		})
	}
	common.OK(c, gin.H{"scenarios": out})
}

func sessionView(sess *training.Session) gin.H {
	return gin.H{
		"scenario_id":    sess.ScenarioID,
		"state":          sess.State().String(),
		"question_index": sess.QuestionIndex,
		"completed":      sess.Completed,
		"final_score":    sess.FinalScore,
		"assessment":     sess.Assessment,
		"strengths":      sess.Strengths,
		"weaknesses":     sess.Weaknesses,
		"suggestions":    sess.Suggestions,
		"score_source":   sess.ScoreSource,
		"messages":       sess.Visible(),
	}
}

func (h *Handler) StartTraining(c *gin.Context) {
	sess, msg, err := h.Training.Start(c.Request.Context(), userID(c), c.Param("scenario"))
	if err != nil {
		h.failErr(c, "start training", err)
		return
	}
	common.OK(c, gin.H{
		"message": msg,
		"session": sessionView(sess),
	})
}

type answerReq struct {
	Answer string `json:"answer" binding:"required"`
}

func (h *Handler) AnswerTraining(c *gin.Context) {
	var req answerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	reply, err := h.Training.Answer(c.Request.Context(), userID(c), c.Param("scenario"), req.Answer)
	if err != nil {
		h.failErr(c, "answer training", err)
		return
	}
	common.OK(c, reply)
}

func (h *Handler) GetTraining(c *gin.Context) {
	sess, err := h.Training.Get(c.Request.Context(), userID(c), c.Param("scenario"))
	if err != nil {
		h.failErr(c, "get training", err)
		return
	}
	common.OK(c, sessionView(sess))
}

func (h *Handler) ResetTraining(c *gin.Context) {
	if err := h.Training.Reset(c.Request.Context(), userID(c), c.Param("scenario")); err != nil {
		h.failErr(c, "reset training", err)
		return
	}
	common.OK(c, gin.H{"reset": true})
}

func (h *Handler) TrainingFact(c *gin.Context) {
	fact, err := h.Training.Fact(c.Request.Context(), c.Param("scenario"))
	if err != nil {
		h.failErr(c, "training fact", err)
		return
	}
	common.OK(c, gin.H{"fact": fact})
}

type passwordReq struct {
	Password string `json:"password"`
}

// EvaluatePassword scores a password without storing it anywhere.
func (h *Handler) EvaluatePassword(c *gin.Context) {
	var req passwordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	common.OK(c, gin.H{
		"masked": training.MaskPassword(req.Password),
		"report": training.EvaluatePassword(req.Password),
	})
}

func (h *Handler) Dashboard(c *gin.Context) {
	p, err := h.Training.Progress(c.Request.Context(), userID(c))
	if err != nil {
		h.failErr(c, "dashboard", err)
		return
	}
	common.OK(c, p)
}
