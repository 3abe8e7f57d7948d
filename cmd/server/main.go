package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-copilot-go/internal/api"
	"ai-copilot-go/internal/config"
	"ai-copilot-go/internal/db"
	"ai-copilot-go/internal/llm"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	database, err := db.New(cfg.DBPath())
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.Error(err),
			zap.String("db_path", cfg.DBPath()))
	}
	defer database.Close()

	llmService := llm.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, logger)
	if cfg.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set; message sends will fail until it is configured")
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(database, llmService, cfg, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
