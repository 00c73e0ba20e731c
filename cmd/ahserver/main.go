package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ColinPogu/donutsmp-ah-scanner/internal/api"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/config"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/logger"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/signals"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/stats"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/storage"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	engine := stats.New(store, cfg.Signals.SampleCap)
	detector := signals.New(store, engine, signals.Config{
		ThresholdFactor: cfg.Signals.UnderpriceThreshold,
		MinObservations: cfg.Signals.MinObservations,
		MaxResults:      cfg.Signals.MaxResults,
	})

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: api.New(store, engine, detector).Router(),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, draining connections...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed: %v", err)
		}
	}()

	logger.Info("Reporting server listening on %s", cfg.Server.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server failed: %v", err)
	}
	logger.Info("Server stopped")
}
