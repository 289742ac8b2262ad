package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/uniedit/imagegen/internal/app"
	"github.com/uniedit/imagegen/internal/infra/config"
	"github.com/uniedit/imagegen/internal/utils/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLog, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	application, err := app.NewWithLogger(cfg, zapLog)
	if err != nil {
		zapLog.Fatal("Failed to initialize application", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      application.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zapLog.Info("Starting server", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop accepting requests before draining background generations.
	if err := srv.Shutdown(ctx); err != nil {
		zapLog.Error("Server forced to shutdown", zap.Error(err))
	}
	application.Stop()

	zapLog.Info("Server exited")
}
