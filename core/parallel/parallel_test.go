package parallel

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
)

func TestParallelizeCoversAllItems(t *testing.T) {
	tests := []struct {
		name    string
		items   int
		workers int
	}{
		{"empty", 0, 4},
		{"fewer items than workers", 3, 8},
		{"uneven chunks", 101, 4},
		{"default workers", 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := make([]int32, tt.items)
			ParallelizeN(tt.items, tt.workers, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&seen[i], 1)
				}
			})
			for i, c := range seen {
				if c != 1 {
					t.Fatalf("item %d visited %d times", i, c)
				}
			}
		})
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		if start != 0 || end != 10 {
			t.Errorf("range = [%d, %d), want [0, 10)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestForEach(t *testing.T) {
	var count int32
	err := ForEach(context.Background(), 20, 3, func(_ context.Context, i int) error {
		atomic.AddInt32(&count, 1)
		if i == 5 || i == 9 {
			return fmt.Errorf("item %d failed", i)
		}
		return nil
	})

	if count != 20 {
		t.Errorf("ran %d items, want 20", count)
	}
	if err == nil || err.Error() != "item 5 failed" {
		t.Errorf("err = %v, want first failure in index order", err)
	}
}

func TestForEachCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ForEach(ctx, 1000, 1, func(context.Context, int) error { return nil })
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
