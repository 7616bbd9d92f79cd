// Package quota tracks how many sends happened in the current rate window
// and whether another send is permitted.
package quota

import (
	"context"
	"time"
)

// Ledger is the daily send-quota counter. Reserve is a single atomic
// check-and-increment: two concurrent schedulers must never jointly overshoot
// the ceiling.
type Ledger interface {
	// TryReserve reserves one send for the given day. Returns false, without
	// mutating anything, when the ceiling is already reached.
	TryReserve(ctx context.Context, day time.Time) (bool, error)

	// Remaining returns how many sends are still permitted for the day.
	Remaining(ctx context.Context, day time.Time) (int, error)
}

// PeriodKey normalizes an instant to its UTC calendar day, the quota period.
func PeriodKey(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
