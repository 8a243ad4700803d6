package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/okgrp/groupwatch/internal/config"
	"github.com/okgrp/groupwatch/internal/database"
	"github.com/okgrp/groupwatch/internal/logger"
	"github.com/okgrp/groupwatch/internal/maintenance"
	"github.com/okgrp/groupwatch/internal/monitor"
	"github.com/okgrp/groupwatch/internal/nats"
	"github.com/okgrp/groupwatch/internal/publisher"
	"github.com/okgrp/groupwatch/internal/repository"
	"github.com/okgrp/groupwatch/internal/web"
)

func main() {
	// 1. Load config (.env is optional)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Msg("starting group monitor")

	// 3. Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	// 4. Open database and apply schema
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(&repository.Message{}); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	repo := repository.NewMessageRepository(db.GORM)

	// 5. Connect to NATS (optional)
	var pub monitor.EventPublisher
	if cfg.NatsURL != "" {
		nc, err := nats.New(cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, event publishing disabled")
		} else {
			defer nc.Close()
			if err := nc.EnsureStream(ctx, "MESSAGES", []string{"messages.>"}); err != nil {
				log.Warn().Err(err).Msg("failed to ensure messages stream")
			}
			pub = publisher.NewNATSPublisher(nc, 50, 10)
		}
	}

	// 6. Load pipeline definition
	pipelineCfg := &config.Pipeline{Name: "default"}
	if cfg.PipelineFile != "" {
		pipelineCfg, err = config.LoadPipeline(cfg.PipelineFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load pipeline file")
		}
	}

	// 7. WebSocket hub for live events
	hub := web.NewHub()
	go hub.Run()

	// 8. Assemble the pipeline
	sink := monitor.NewSink(repo, pub, log, cfg.IngestQueueSize)
	summarizer := monitor.NewSummarizer(repo)
	scheduler := monitor.NewDeliveryScheduler(summarizer, monitor.NewWebhookClient(nil), log, monitor.SchedulerOptions{
		WindowHours: cfg.SummaryWindowHours,
		Backoff:     time.Duration(cfg.DeliveryBackoffSec) * time.Second,
		Notifier:    web.NewSchedulerNotifier(hub),
	})

	pipeline := monitor.NewPipeline(pipelineCfg.Name, pipelineCfg.Groups, repo, sink, summarizer, scheduler, log)
	pipeline.Start()

	if pipelineCfg.Webhook != nil {
		_, err := pipeline.Configure(monitor.DeliveryTarget{
			URL:      pipelineCfg.Webhook.URL,
			Interval: time.Duration(pipelineCfg.Webhook.IntervalMinutes) * time.Minute,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("invalid webhook in pipeline file")
		}
	}

	// 9. Database housekeeping
	housekeeping, err := maintenance.New(repo, log, maintenance.DefaultInterval)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create maintenance job")
	}
	housekeeping.Start()

	// 10. HTTP server
	handler := monitor.NewHandler(pipeline)
	server := web.NewServer(&web.Config{Port: cfg.HTTPPort}, hub)
	server.Mount(monitor.NewRouter(handler))

	log.Info().Int("port", cfg.HTTPPort).Msg("starting http server")
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// 11. Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down...")

	// Stop accepting requests before closing the sink, so no in-flight
	// ingest hits a draining pipeline.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown error")
	}

	pipeline.Stop()
	if err := housekeeping.Stop(); err != nil {
		log.Warn().Err(err).Msg("failed to stop maintenance job")
	}

	log.Info().Msg("shutdown complete")
}
