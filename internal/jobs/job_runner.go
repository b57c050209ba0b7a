package jobs

import (
	"fmt"
	"sort"
	"time"

	"outstanding-ledger-backend/internal/config"
	"outstanding-ledger-backend/internal/logger"
	"outstanding-ledger-backend/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	ledger  service.OutstandingService
	config  *config.Config
	timeout time.Duration
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(ledger service.OutstandingService, cfg *config.Config) *JobRunner {
	return &JobRunner{
		ledger:  ledger,
		config:  cfg,
		timeout: 10 * time.Minute,
	}
}

// Config exposes the configuration the scheduler reads cron specs from.
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// Jobs maps the names accepted by -run-once to their job functions.
func (jr *JobRunner) Jobs() map[string]func() {
	return map[string]func(){
		"refresh-statuses": jr.RefreshStatuses,
	}
}

// RunJob runs the named job once.
func (jr *JobRunner) RunJob(name string) error {
	job, ok := jr.Jobs()[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	job()
	return nil
}

// JobNames lists the registered job names in a stable order.
func (jr *JobRunner) JobNames() []string {
	names := make([]string, 0, len(jr.Jobs()))
	for name := range jr.Jobs() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}
