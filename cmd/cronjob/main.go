package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"outstanding-ledger-backend/internal/config"
	"outstanding-ledger-backend/internal/jobs"
	"outstanding-ledger-backend/internal/logger"
	"outstanding-ledger-backend/internal/repository/postgres"
	"outstanding-ledger-backend/internal/scheduler"
	"outstanding-ledger-backend/internal/service"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run owns every deferred cleanup; main only turns its result into an exit code.
func run(args []string) int {
	// Parse command-line flags
	fs := flag.NewFlagSet("cronjob", flag.ContinueOnError)
	configPath := fs.String("config", "config/config.dev.yaml", "Path to configuration file")
	envFile := fs.String("env-file", ".env", "Optional dotenv file applied before environment overrides")
	runOnce := fs.String("run-once", "", "Run a specific job once and exit (e.g., 'refresh-statuses')")
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
	logger.Info("Starting Outstanding Ledger Cronjob Runner...", "log_level", cfg.Log.Level)

	// The materializer rewrites the shared store; an in-memory store would only
	// refresh this process's own empty copy.
	if cfg.Ledger.Store != "postgres" {
		logger.Error("Cronjob runner requires the postgres ledger store", "store", cfg.Ledger.Store)
		return 1
	}

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := postgres.Open(context.Background(), cfg.GetDatabaseConnectionString(), cfg.Database.MaxOpenConns)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		return 1
	}
	store := postgres.NewStore(db)
	defer store.Close()

	// Initialize Services
	ledgerSvc := service.NewOutstandingService(store, service.LedgerOptions{
		MaxRetries: cfg.Ledger.MaxRetries,
		Location:   cfg.Location(),
	})

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(ledgerSvc, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if err := jobRunner.RunJob(*runOnce); err != nil {
			logger.Error("Unknown job name", "job", *runOnce)
			fmt.Printf("Available jobs:\n")
			for _, name := range jobRunner.JobNames() {
				fmt.Printf("  - %s\n", name)
			}
			return 1
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return 0
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		logger.Error("Failed to initialize scheduler", "error", err)
		return 1
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
	return 0
}
