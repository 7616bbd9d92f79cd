package quota

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPeriodKeyNormalizesToUTCDay(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 00:30 local on June 3rd in Berlin is still June 2nd in UTC.
	at := time.Date(2025, 6, 3, 0, 30, 0, 0, berlin)
	want := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	if got := PeriodKey(at); !got.Equal(want) {
		t.Fatalf("PeriodKey = %v, want %v", got, want)
	}

	// Two instants on the same UTC day share a key.
	a := PeriodKey(time.Date(2025, 6, 2, 0, 0, 1, 0, time.UTC))
	b := PeriodKey(time.Date(2025, 6, 2, 23, 59, 59, 0, time.UTC))
	if !a.Equal(b) {
		t.Fatalf("same UTC day produced different keys: %v vs %v", a, b)
	}
}

func TestMemoryLedgerCeiling(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger(3)
	day := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ok, err := ledger.TryReserve(ctx, day)
		if err != nil {
			t.Fatalf("TryReserve %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("TryReserve %d: expected reservation below ceiling", i)
		}
	}

	ok, err := ledger.TryReserve(ctx, day)
	if err != nil {
		t.Fatalf("TryReserve at ceiling: %v", err)
	}
	if ok {
		t.Fatalf("TryReserve must refuse once the ceiling is reached")
	}

	remaining, err := ledger.Remaining(ctx, day)
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("Remaining = %d, want 0", remaining)
	}

	// The next day starts fresh.
	ok, err = ledger.TryReserve(ctx, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("TryReserve next day: %v", err)
	}
	if !ok {
		t.Fatalf("a new day must reset the quota")
	}
}

func TestMemoryLedgerConcurrentReserve(t *testing.T) {
	ctx := context.Background()
	const ceiling = 50
	const workers = 200

	ledger := NewMemoryLedger(ceiling)
	day := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	granted := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ledger.TryReserve(ctx, day)
			if err != nil {
				t.Errorf("TryReserve: %v", err)
				return
			}
			if ok {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	got := 0
	for range granted {
		got++
	}
	if got != ceiling {
		t.Fatalf("granted %d reservations, want exactly %d", got, ceiling)
	}
}
