package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"monitoring-service/internal/alerting"
	"monitoring-service/internal/api"
	"monitoring-service/internal/channels"
	"monitoring-service/internal/config"
	"monitoring-service/internal/db"
	"monitoring-service/internal/kafka"
	"monitoring-service/internal/logging"
	"monitoring-service/internal/monitor"
	"monitoring-service/internal/sqlite"
	"monitoring-service/internal/store"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Open the store backend
	st, err := openStore(cfg)
	if err != nil {
		logger.Errorf("Failed to open store: %v", err)
		log.Fatalf("Store open failed: %v", err)
	}
	defer st.Close()

	// Build the alerting pipeline
	hub := channels.NewWSHub(logger)
	dispatcher := channels.NewDispatcher(logger,
		channels.NewEmailChannel(cfg),
		channels.NewWebhookChannel(cfg),
		channels.NewTelegramChannel(cfg, logger),
		hub,
		channels.NewLogChannel(cfg, logger),
	)
	gate := alerting.NewGate(st.Notifications(), cfg.Cooldown(), cfg.Thresholds.MaxNotificationsPerHour, logger)
	orchestrator := alerting.NewOrchestrator(st, gate, dispatcher, cfg, logger)

	// Start the monitoring service and the activity check loop
	svc := monitor.New(st, orchestrator, logger, cfg)
	var wg sync.WaitGroup
	svc.Start(&wg)

	checker := monitor.NewActivityChecker(st, orchestrator, logger, cfg)
	checker.Start(&wg)

	// Start the Kafka ingest when a broker is configured
	var consumer *kafka.Consumer
	if cfg.Kafka.Broker != "" {
		consumer = kafka.NewConsumer(cfg, svc)
		consumer.Start(&wg)
		logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.Topic)
	}

	// Start API server
	handler := api.NewHandler(st, svc, orchestrator, hub, logger)
	router := api.NewRouter(logger, cfg, handler)
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")
	checker.Stop()
	if consumer != nil {
		consumer.Close()
	}
	svc.Stop()
	wg.Wait()
	logger.Infof("Service stopped")
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.DB.Driver {
	case "postgres":
		pg, err := db.New(context.Background(), cfg.DB.DSN)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(context.Background()); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	case "sqlite":
		lite, err := sqlite.New(cfg.DB.DSN)
		if err != nil {
			return nil, err
		}
		if err := lite.Migrate(); err != nil {
			lite.Close()
			return nil, err
		}
		return lite, nil
	default:
		return nil, fmt.Errorf("unknown DB driver %q", cfg.DB.Driver)
	}
}
