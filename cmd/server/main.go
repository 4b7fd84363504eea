package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"imageCaptioner/captioner"
	"imageCaptioner/config"
	"imageCaptioner/handlers"
	"imageCaptioner/jobs"
	"imageCaptioner/middleware"
	"imageCaptioner/pipeline"
	"imageCaptioner/runner"
	"imageCaptioner/service"
	"imageCaptioner/staging"
	"imageCaptioner/store"
	"imageCaptioner/tags"
)

func main() {
	cfg := config.Load()

	var logger *zap.Logger
	var err error
	if cfg.Env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Caption service starting",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	stager, err := staging.NewStager(cfg.UploadDir, logger)
	if err != nil {
		logger.Fatal("Failed to create stager", zap.Error(err))
	}

	var taskStore store.Store
	switch cfg.TaskStore {
	case "redis":
		client, err := store.ConnectRedis(cfg.RedisAddr)
		if err != nil {
			logger.Fatal("Failed to connect redis", zap.Error(err))
		}
		defer client.Close()
		taskStore = store.NewRedis(client, cfg.TaskRetention, logger)
		logger.Info("Using redis task store", zap.String("addr", cfg.RedisAddr))
	default:
		memory := store.NewMemory(cfg.TaskRetention, logger)
		defer memory.Close()
		taskStore = memory
	}

	var captionModel captioner.Captioner
	switch cfg.Captioner {
	case "openai":
		captionModel, err = captioner.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, logger)
		if err != nil {
			logger.Fatal("Failed to create captioner", zap.Error(err))
		}
	default:
		captionModel = captioner.NewDescriber(logger)
	}

	pipe := pipeline.New(captionModel, tags.NewExtractor(logger), logger)
	batchRunner := runner.New(taskStore, pipe, stager, logger)

	queue := jobs.NewQueue(cfg.QueueSize, cfg.WorkerCount, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)

	taskService := service.NewTaskService(taskStore, queue, batchRunner, logger)

	mux := http.NewServeMux()
	handler := handlers.NewCaptionHandler(taskService, pipe, stager, cfg.MaxFileSize, logger)
	handler.Register(mux)

	chain := middleware.TraceID(middleware.Logging(logger)(middleware.Recovery(logger)(mux)))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: chain,
	}

	go func() {
		logger.Info("Server started", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	// Queued tasks still run to a terminal status before exit.
	queue.Stop()

	logger.Info("Server stopped")
}
