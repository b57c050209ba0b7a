package jobs

import (
	"context"

	"outstanding-ledger-backend/internal/logger"
)

// RefreshStatuses rewrites stored status labels that drifted from the live
// value, typically records whose due date passed since the last write.
func (jr *JobRunner) RefreshStatuses() {
	jr.runWithRecovery("RefreshStatuses", func() {
		ctx, cancel := context.WithTimeout(context.Background(), jr.timeout)
		defer cancel()

		updated, err := jr.ledger.RefreshStatuses(ctx)
		if err != nil {
			logger.Error("Failed to refresh outstanding statuses", "error", err, "updated", updated)
			return
		}
		logger.Info("Refreshed outstanding statuses", "updated", updated)
	})
}
