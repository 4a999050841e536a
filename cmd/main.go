package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/mstgnz/hyperpay/handler"
	"github.com/mstgnz/hyperpay/infra/config"
	"github.com/mstgnz/hyperpay/infra/conn"
	"github.com/mstgnz/hyperpay/infra/logger"
	"github.com/mstgnz/hyperpay/infra/metrics"
	"github.com/mstgnz/hyperpay/infra/middle"
	"github.com/mstgnz/hyperpay/infra/opensearch"
	"github.com/mstgnz/hyperpay/infra/response"
	"github.com/mstgnz/hyperpay/infra/storage"
	"github.com/mstgnz/hyperpay/infra/validate"
	"github.com/mstgnz/hyperpay/provider"
	"github.com/mstgnz/hyperpay/provider/hyperpay"
	"github.com/mstgnz/hyperpay/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load Env
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg := config.GetAppConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := conn.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Database Error: %v", err)
	}
	defer db.CloseDatabase()
	config.App().DB = db
	validate.CustomValidate()

	// Initialize OpenSearch client and logger
	var openSearchLogger *opensearch.Logger
	if cfg.EnableOpenSearch {
		osClient, err := opensearch.NewClient(cfg)
		if err != nil {
			log.Printf("Failed to initialize OpenSearch client: %v", err)
			log.Println("Continuing without OpenSearch logging...")
		} else {
			openSearchLogger = opensearch.NewLogger(osClient)
		}
	}

	var sink logger.Sink
	var mirror provider.GatewayMirror
	if openSearchLogger != nil {
		sink = openSearchLogger
		mirror = openSearchLogger
	}
	logger.InitGlobalLogger(sink, cfg)

	configStorage, err := config.NewSQLiteStorage(db)
	if err != nil {
		logger.Fatal("Failed to initialize config storage", err)
	}
	providerConfig := config.NewProviderConfig(configStorage)
	if loaded, err := providerConfig.LoadFromEnv(); err != nil {
		logger.Error("Failed to load HyperPay config from environment", err)
	} else if !loaded {
		logger.Warn("No HyperPay credentials in environment, using stored configuration")
	}

	paymentLogger, err := provider.NewDBPaymentLogger(db, mirror)
	if err != nil {
		logger.Fatal("Failed to initialize gateway log", err)
	}

	gatewayProvider := hyperpay.NewProvider(nil, paymentLogger)
	var gateway handler.Gateway
	if providerCfg, err := providerConfig.GetConfig("hyperpay"); err != nil {
		logger.Warn("HyperPay is not configured", logger.LogContext{Provider: "hyperpay"})
	} else if err := gatewayProvider.Initialize(providerCfg); err != nil {
		logger.Error("Failed to initialize HyperPay", err, logger.LogContext{Provider: "hyperpay"})
	} else {
		gateway = gatewayProvider
	}

	transactions, err := storage.NewTransactionStore(db)
	if err != nil {
		logger.Fatal("Failed to initialize transaction store", err)
	}

	paymentService := hyperpay.NewPaymentService(gatewayProvider, transactions, nil)
	paymentHandler := handler.NewPaymentHandler(paymentService, paymentLogger, config.App().Validator, cfg.StatusURL)
	healthHandler := handler.NewHealthHandler(db.DB, gateway, cfg.Environment)

	// Chi Define Routes
	r := chi.NewRouter()

	r.Use(middle.RequestID)
	r.Use(middle.PanicRecoveryMiddleware())
	r.Use(middle.RequestLogger)
	r.Use(metrics.Middleware)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Origin", "X-Requested-With", middle.RequestIDHeader},
		ExposedHeaders:   []string{"Content-Length", middle.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300, // Preflight cache time (second)
	}))

	r.Get("/health", healthHandler.CheckHealth)
	r.Handle("/metrics", promhttp.Handler())

	router.Routes(r, cfg.APIKey, paymentHandler)

	// Not Found
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "Not Found", nil)
	})

	// Create a context that listens for interrupt and terminate signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server stopped", err)
		}
	}()

	logger.Info("API is running", logger.LogContext{Fields: map[string]any{"port": cfg.Port, "environment": cfg.Environment}})

	// Block until a signal is received
	<-ctx.Done()

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", err)
	}
}
