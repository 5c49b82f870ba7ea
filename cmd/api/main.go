package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"publish-queue/internal/config"
	"publish-queue/internal/handler"
	"publish-queue/internal/metrics"
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

	sessionStore := service.NewMemorySessionStore(service.SessionTTL)
	defer sessionStore.Stop()
	handshakeService := service.NewHandshakeService(service.ProvidersFromConfig(cfg.OAuth), credentialService, sessionStore)

	// Initialize handlers
	jobHandler := handler.NewJobHandler(queueService, metricsInstance)
	authHandler := handler.NewAuthHandler(handshakeService, credentialService)

	// CORS middleware - sets headers for all responses
	corsMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", authHandler.Health)
	mux.HandleFunc("/jobs", corsMiddleware(jobHandler.Jobs))
	mux.HandleFunc("/jobs/", corsMiddleware(jobHandler.JobByID))
	mux.HandleFunc("/metrics", corsMiddleware(jobHandler.GetMetrics))
	mux.HandleFunc("/auth/", corsMiddleware(authHandler.Auth))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("API server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-sigChan
	log.Println("shutting down server...")
	if err := server.Close(); err != nil {
		log.Printf("error closing server: %v", err)
	}
	log.Println("server stopped")
}
