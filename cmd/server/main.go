package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gowri7989009215/ehrb/internal/cache"
	"github.com/Gowri7989009215/ehrb/internal/config"
	"github.com/Gowri7989009215/ehrb/internal/database"
	"github.com/Gowri7989009215/ehrb/internal/handlers"
	"github.com/Gowri7989009215/ehrb/internal/middleware"
	"github.com/Gowri7989009215/ehrb/internal/repository"
	"github.com/Gowri7989009215/ehrb/internal/services"
	"github.com/Gowri7989009215/ehrb/pkg/logger"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting EHR consent backend")

	// Connect to database
	dbConfig := database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		LogLevel: cfg.Database.LogLevel,
	}

	if err := database.Connect(dbConfig); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	// Initialize decision cache
	var cacheImpl cache.Cache
	if cfg.Cache.Enabled && cfg.Cache.Type == "redis" {
		addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		cacheImpl, err = cache.NewRedisCache(addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		log.Info().Msg("Redis decision cache initialized")
	} else {
		cacheImpl = cache.NewMemoryCache()
		log.Info().Msg("Memory decision cache initialized")
	}
	defer cacheImpl.Close()

	// Initialize repositories
	consentRepo := repository.NewConsentRepository()
	auditRepo := repository.NewAuditRepository()
	ledgerRepo := repository.NewLedgerRepository()

	// Initialize services
	auditService := services.NewAuditService(auditRepo)
	ledgerService := services.NewLedgerService(ledgerRepo, cfg.Ledger.Difficulty)
	if err := ledgerService.Init(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger")
	}
	consentService := services.NewConsentService(consentRepo, auditService, ledgerService, cacheImpl)
	accessService := services.NewAccessService(consentService, cacheImpl)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(ledgerService)
	consentHandler := handlers.NewConsentHandler(consentService)
	accessHandler := handlers.NewAccessHandler(accessService, auditService)
	ledgerHandler := handlers.NewLedgerHandler(ledgerService)
	auditHandler := handlers.NewAuditHandler(auditService)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints (no actor context required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ActorContext)

		// Consent policy engine
		r.Post("/consents/request", consentHandler.RequestAccess)
		r.Post("/consents/grant", consentHandler.Grant)
		r.Post("/consents/revoke", consentHandler.Revoke)
		r.Post("/consents/extend", consentHandler.Extend)
		r.Get("/consents/{id}", consentHandler.GetConsent)
		r.Get("/patients/{id}/consents", consentHandler.ListForPatient)
		r.Get("/doctors/{id}/consents", consentHandler.ListForDoctor)

		// Access-decision facade
		r.Get("/access/check", accessHandler.Check)

		// Audit ledger
		r.Get("/ledger", ledgerHandler.GetChain)
		r.Get("/ledger/stats", ledgerHandler.GetStats)
		r.Get("/ledger/verify", ledgerHandler.Verify)
		r.Get("/ledger/trail/{userId}", ledgerHandler.GetAuditTrail)
		r.Get("/ledger/blocks/{type}", ledgerHandler.GetBlocksByType)

		// Audit log store
		r.Get("/audit/trail/{subjectId}", auditHandler.GetAuditTrail)
		r.Get("/audit/system", auditHandler.GetSystemAudit)
		r.Get("/audit/alerts", auditHandler.GetSecurityAlerts)
		r.Get("/audit/stats", auditHandler.GetActivityStats)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
