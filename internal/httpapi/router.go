package httpapi

import (
	"net/http"
	"time"

	"github.com/DerMichael0408/CyberGuide/internal/common"
	"github.com/DerMichael0408/CyberGuide/internal/config"
	"github.com/DerMichael0408/CyberGuide/internal/httpapi/handlers"
	"github.com/DerMichael0408/CyberGuide/internal/httpapi/middleware"
	"github.com/DerMichael0408/CyberGuide/internal/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", middleware.UserIDHeader, middleware.RequestIDHeader, "Idempotency-Key"},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
		return cc
	}
	cc.AllowOrigins = origins
	return cc
}

func NewRouter(h *handlers.Handler, cfg config.Config, log *zap.Logger) *gin.Engine {
	log = logger.OrNop(log)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(log))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(log))
	r.Use(middleware.UserID())

	r.GET("/ping", h.Ping)

	// training
	r.GET("/training/scenarios", h.ListScenarios)
	r.GET("/training/:scenario", h.GetTraining)
	r.DELETE("/training/:scenario", h.ResetTraining)
	r.POST("/training/:scenario/start", h.StartTraining)
	r.POST("/training/:scenario/answer", h.AnswerTraining)
	r.GET("/training/:scenario/fact", h.TrainingFact)
	r.POST("/password/evaluate", h.EvaluatePassword)
	r.GET("/dashboard", h.Dashboard)

	// expert chat
	r.POST("/expert/sessions", h.CreateExpertSession)
	r.POST("/expert/messages", h.SendExpertMessage)
	r.POST("/expert/messages/stream", h.SendExpertMessageStream)
	r.GET("/expert/sessions/:session_id/messages", h.ListExpertMessages)
	r.POST("/expert/guidelines", h.AskGuidelines)

	// knowledge base
	r.POST("/knowledge/documents", h.UploadDocument)
	r.GET("/knowledge/jobs/:job_id", h.GetIndexJob)
	r.GET("/knowledge/search", h.SearchKnowledge)
	return r
}
