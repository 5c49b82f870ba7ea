package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"publish-queue/internal/config"
	"publish-queue/internal/metrics"
	"publish-queue/internal/publisher"
	"publish-queue/internal/repository"
	"publish-queue/internal/service"
)

func main() {
	cfg := config.Load()

	// Initialize repository
	repo, err := repository.NewSQLiteRepository(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to initialize repository: %v", err)
	}
	defer repo.Close()

	// Initialize metrics
	metricsInstance := metrics.NewMetrics()

	// Initialize services
	queueService := service.NewQueueService(repo, cfg.MaxRetries, metricsInstance)
	credentialService := service.NewCredentialService(repo, metricsInstance)

	// The registry gates publishes behind stored credentials; the actual
	// platform upload functions are registered here by platform modules.
	registry := publisher.NewRegistry(credentialService)
	for platform, provider := range service.ProvidersFromConfig(cfg.OAuth) {
		registry.RegisterRefresher(platform, publisher.OAuthRefresher(provider))
	}

	dispatcher := service.NewDispatcherService(queueService, registry, cfg.PollInterval, cfg.RetentionDays)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("shutting down dispatcher...")
		cancel()
	}()

	log.Println("dispatcher started, polling for ready jobs...")

	if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("dispatcher error: %v", err)
	}

	log.Println("dispatcher stopped")
}
