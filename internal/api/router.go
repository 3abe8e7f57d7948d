// Package api exposes the HTTP surface of the service and orchestrates the
// message exchange flow.
package api

import (
	"ai-copilot-go/internal/config"
	"ai-copilot-go/internal/db"
	"ai-copilot-go/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires middleware and routes onto a fresh gin engine.
func NewRouter(database *db.Database, completer Completer, cfg config.Settings, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(logger), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	}))

	h := NewHandler(database, completer, cfg, logger)

	r.GET("/health", h.Health)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/conversations", h.ListConversations)
		apiGroup.POST("/conversations", h.CreateConversation)
		apiGroup.GET("/conversations/:id", h.GetConversation)
		apiGroup.DELETE("/conversations/:id", h.DeleteConversation)
		apiGroup.POST("/conversations/:id/messages", h.SendMessage)
	}

	return r
}
