package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ColinPogu/donutsmp-ah-scanner/internal/compactor"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/config"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/donutsmp"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/logger"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/scheduler"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/signals"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/stats"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/storage"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/telegram"
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

	// The credential itself must never reach a log line.
	if cfg.API.AuthKey == "" {
		logger.Fatal("Auth key not set: export DONUTSMP_AUTH_KEY or set api.auth_key")
	}
	logger.Info("Auth key: set")

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	client := donutsmp.NewClient(cfg.API.BaseURL, cfg.API.AuthKey, cfg.API.Timeout)
	engine := stats.New(store, cfg.Signals.SampleCap)
	detector := signals.New(store, engine, signals.Config{
		ThresholdFactor: cfg.Signals.UnderpriceThreshold,
		MinObservations: cfg.Signals.MinObservations,
		MaxResults:      cfg.Signals.MaxResults,
	})
	comp := compactor.New(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var notifier scheduler.Notifier
	if cfg.Telegram.Enabled {
		telegramClient, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		telegramClient.ListenForCommands(ctx)
		notifier = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	sched := scheduler.New(client, store, detector, comp, notifier, scheduler.Config{
		Pages:              cfg.Scanner.Pages,
		PollInterval:       cfg.Scanner.PollInterval,
		Search:             cfg.Scanner.Search,
		Sort:               cfg.Scanner.Sort,
		FullBackfill:       cfg.Scanner.FullBackfill,
		MaxEmptyPages:      cfg.Scanner.MaxEmptyPages,
		UnauthorizedPause:  cfg.Scanner.UnauthorizedPause,
		RetentionDays:      cfg.Storage.RetentionDays,
		CompactionInterval: cfg.Storage.CompactionInterval,
		NotifyTopK:         cfg.Telegram.TopK,
	}, scheduler.RetryPolicy{
		MaxRetries: cfg.Scanner.MaxRetries,
		Base:       cfg.Scanner.RetryBase,
		Step:       cfg.Scanner.RetryStep,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	logger.Info("Starting auction scanner (interval: %v, pages: %d, retention: %dd)",
		cfg.Scanner.PollInterval, cfg.Scanner.Pages, cfg.Storage.RetentionDays)

	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("Scan loop failed: %v", err)
	}
	logger.Info("Service stopped")
}
