package quota

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger is an in-process Ledger for tests and single-instance local
// runs. Multi-instance deployments must use PostgresLedger: an in-memory
// counter cannot be externally consistent.
type MemoryLedger struct {
	mu      sync.Mutex
	counts  map[time.Time]int
	ceiling int
}

// NewMemoryLedger creates an in-memory ledger with the given ceiling.
func NewMemoryLedger(ceiling int) *MemoryLedger {
	return &MemoryLedger{
		counts:  make(map[time.Time]int),
		ceiling: ceiling,
	}
}

// TryReserve atomically reserves one send for the day.
func (l *MemoryLedger) TryReserve(_ context.Context, day time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := PeriodKey(day)
	if l.counts[key] >= l.ceiling {
		return false, nil
	}
	l.counts[key]++
	return true, nil
}

// Remaining returns the unspent quota for the day.
func (l *MemoryLedger) Remaining(_ context.Context, day time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.ceiling - l.counts[PeriodKey(day)]
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
