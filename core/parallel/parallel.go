// Package parallel splits index ranges across goroutines. Kernel matrices,
// design matrices and per-row predictions use it once they are large enough
// for the goroutine overhead to pay off.
package parallel

import (
	"runtime"
	"sync"
)

// DefaultThreshold is the row count below which callers stay sequential.
const DefaultThreshold = 500

// Parallelize divides items into one contiguous range per CPU core and runs fn
// on each range concurrently. A panic inside fn is re-raised on the calling
// goroutine after all workers finish, so callers wrapped in errors.SafeExecute
// still recover it.
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeWorkers(items, runtime.NumCPU(), fn)
}

// ParallelizeWorkers is Parallelize with an explicit worker cap.
func ParallelizeWorkers(items, workers int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}
	if workers > items {
		workers = items
	}

	// ceiling division
	chunkSize := (items + workers - 1) / workers

	var (
		wg        sync.WaitGroup
		panicOnce sync.Once
		panicVal  interface{}
	)

	for i := 0; i < workers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panicOnce.Do(func() { panicVal = r })
				}
			}()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()

	if panicVal != nil {
		panic(panicVal)
	}
}

// ParallelizeWithThreshold runs fn(0, items) on the calling goroutine when
// items <= threshold and falls back to Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		if items > 0 {
			fn(0, items)
		}
		return
	}
	Parallelize(items, fn)
}
