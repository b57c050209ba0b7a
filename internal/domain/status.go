package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EvaluateStatus derives the live status of a debt. It has no side effects and
// is the single source for status labels on both write and read paths.
//
// A record is overdue once its due date is strictly before the calendar date of
// now; being due today is not overdue. Overdue takes precedence over partial.
func EvaluateStatus(amount, cleared decimal.Decimal, dueDate *time.Time, now time.Time) OutstandingStatus {
	pending := amount.Sub(cleared)
	if !pending.IsPositive() {
		return OutstandingStatusCleared
	}
	if dueDate != nil && DateOf(*dueDate).Before(DateOf(now)) {
		return OutstandingStatusOverdue
	}
	if cleared.IsPositive() {
		return OutstandingStatusPartial
	}
	return OutstandingStatusPending
}

// DateOf returns the calendar date of t (in t's own location) as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
