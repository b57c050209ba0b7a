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

	"github.com/joho/godotenv"

	httpapi "outstanding-ledger-backend/internal/api/http"
	"outstanding-ledger-backend/internal/config"
	"outstanding-ledger-backend/internal/logger"
	"outstanding-ledger-backend/internal/repository"
	"outstanding-ledger-backend/internal/repository/memory"
	"outstanding-ledger-backend/internal/repository/postgres"
	"outstanding-ledger-backend/internal/service"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run owns every deferred cleanup; main only turns its result into an exit code.
func run(args []string) int {
	// Parse command-line flags
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	configPath := fs.String("config", "config/config.dev.yaml", "Path to configuration file")
	envFile := fs.String("env-file", ".env", "Optional dotenv file applied before environment overrides")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load env file %s: %v", *envFile, err)
		return 1
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Outstanding Ledger Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Ledger configuration", "store", cfg.Ledger.Store, "max_retries", cfg.Ledger.MaxRetries, "time_zone", cfg.Ledger.TimeZone)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openLedgerStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize ledger store", "error", err)
		return 1
	}
	defer closeStore()

	// Initialize Services
	ledgerSvc := service.NewOutstandingService(repo, service.LedgerOptions{
		MaxRetries: cfg.Ledger.MaxRetries,
		Location:   cfg.Location(),
	})

	srv := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      httpapi.NewRouter(ledgerSvc),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
		return 1
	}

	select {
	case err := <-serveErr:
		logger.Error("HTTP server error", "error", err)
		return 1
	default:
	}
	logger.Info("Server stopped. Goodbye!")
	return 0
}

// openLedgerStore builds the configured store; the returned func releases it.
func openLedgerStore(ctx context.Context, cfg *config.Config) (repository.OutstandingRepository, func(), error) {
	if cfg.Ledger.Store == "memory" {
		logger.Warn("Using in-memory ledger store; data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
	db, err := postgres.Open(ctx, cfg.GetDatabaseConnectionString(), cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
	}

	store := postgres.NewStore(db)
	return store, func() { store.Close() }, nil
}
