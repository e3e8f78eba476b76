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

	"github.com/timmy/courtside/internal/api"
	"github.com/timmy/courtside/internal/app"
	"github.com/timmy/courtside/internal/config"
	"github.com/timmy/courtside/internal/logger"
)

func main() {
	// CONFIG_PATH selects the config file in deployments.
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	log := app.NewLogger(&cfg.Log, "courtside-api")
	defer logger.Sync()

	ctx := log.WithContext(context.Background())
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize pipeline")
	}
	defer a.Close()

	router := api.SetupRouter(&api.Services{
		Ingest:  a.Ingest,
		Catalog: a.Catalog,
		Chat:    a.Chat,
		DB:      a.SQL,
	}, cfg, log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Ingest requests run synchronously, so give in-flight pipelines time to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.StageTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}
