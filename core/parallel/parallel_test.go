package parallel

import (
	"sync/atomic"
	"testing"
)

func TestParallelizeCoversEveryIndex(t *testing.T) {
	tests := []struct {
		name    string
		items   int
		workers int
	}{
		{"single item", 1, 4},
		{"fewer items than workers", 3, 8},
		{"uneven chunks", 101, 4},
		{"one worker", 50, 1},
		{"zero workers clamps to one", 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := make([]int32, tt.items)
			ParallelizeWorkers(tt.items, tt.workers, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&seen[i], 1)
				}
			})
			for i, n := range seen {
				if n != 1 {
					t.Fatalf("index %d visited %d times", i, n)
				}
			}
		})
	}
}

func TestParallelizeZeroItems(t *testing.T) {
	called := false
	Parallelize(0, func(start, end int) { called = true })
	ParallelizeWithThreshold(0, 10, func(start, end int) { called = true })
	if called {
		t.Error("fn should not run for zero items")
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	var calls int32
	ParallelizeWithThreshold(20, 100, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		if start != 0 || end != 20 {
			t.Errorf("got range [%d,%d), want [0,20)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("expected exactly one sequential call, got %d", calls)
	}
}

func TestParallelizeRepanicsOnCaller(t *testing.T) {
	defer func() {
		if r := recover(); r != "worker failed" {
			t.Errorf("recovered %v, want worker failed", r)
		}
	}()
	ParallelizeWorkers(100, 4, func(start, end int) {
		if start == 0 {
			panic("worker failed")
		}
	})
	t.Error("expected panic to propagate")
}
