package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/waste-classifier/internal/classifier"
	"github.com/Brownie44l1/waste-classifier/internal/config"
	"github.com/Brownie44l1/waste-classifier/internal/logger"
	"github.com/Brownie44l1/waste-classifier/internal/model"
	"github.com/Brownie44l1/waste-classifier/internal/router"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&cfg.Log, "classifier-api")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	gin.SetMode(cfg.Server.Mode)

	metadata, err := loadMetadata(cfg.Model.MetadataPath, log)
	if err != nil {
		return err
	}

	if err := model.InitRuntime(cfg.Model.LibraryPath); err != nil {
		return err
	}
	defer func() { _ = model.ShutdownRuntime() }()

	log.Info("Loading model", zap.String("path", cfg.Model.Path))
	modelServer, err := model.NewServer(cfg.Model.Path, metadata, model.ServerOptions{
		IntraOpThreads: cfg.Model.IntraOpThreads,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize model server: %w", err)
	}
	defer modelServer.Close()

	svc := classifier.NewService(modelServer, metadata, cfg.Server.TempDir, log)
	r := router.Setup(svc, cfg.Model.Path, log, router.Options{MaxUploadBytes: cfg.Server.MaxUploadBytes})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Starting server",
			zap.String("address", addr),
			zap.Strings("classes", metadata.Classes),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-quit:
	}

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}

// loadMetadata prefers the label order persisted with the model and falls
// back to the built-in waste classes when the model ships without one.
func loadMetadata(path string, log *zap.Logger) (model.Metadata, error) {
	metadata, err := model.LoadMetadata(path)
	if err == nil {
		return metadata, nil
	}
	if errors.Is(err, model.ErrMetadataNotFound) {
		log.Warn("No model metadata found, using built-in class list",
			zap.String("path", path),
			zap.Strings("classes", model.DefaultClasses),
		)
		return model.DefaultMetadata(model.DefaultClasses), nil
	}
	return model.Metadata{}, fmt.Errorf("failed to load model metadata: %w", err)
}
