package parallel

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// Parallelize divides items into contiguous ranges, one per CPU core, and
// runs fn on each range (start, end) concurrently.
// A panic in fn is recovered per range and returned as a PanicError; the
// range with the lowest start wins when several panic.
func Parallelize(items int, fn func(start, end int)) error {
	if items <= 0 {
		return nil
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	errs := make([]error, numWorkers)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(slot, s, e int) {
			defer wg.Done()
			errs[slot] = callRange(fn, s, e)
		}(i, start, end)
	}
	wg.Wait()
	return firstError(errs)
}

// ParallelizeWithThreshold runs fn sequentially over [0, items) when items
// does not exceed threshold and falls back to Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) error {
	if items <= threshold {
		return callRange(fn, 0, items)
	}
	return Parallelize(items, fn)
}

// ForEach calls fn(i) for every i in [0, n) with at most workers goroutines.
// workers <= 0 means runtime.NumCPU(). Callers store results in per-index
// slots, so output order never depends on completion order.
// Every index runs even if another one panics; the panic of the lowest
// index is returned as a PanicError.
func ForEach(n, workers int, fn func(i int)) error {
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	errs := make([]error, n)
	if workers == 1 {
		for i := 0; i < n; i++ {
			errs[i] = callIndex(fn, i)
		}
		return firstError(errs)
	}

	next := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				errs[i] = callIndex(fn, i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		next <- i
	}
	close(next)
	wg.Wait()
	return firstError(errs)
}

func callIndex(fn func(i int), i int) (err error) {
	defer errors.Recover(&err, fmt.Sprintf("parallel item %d", i))
	fn(i)
	return nil
}

func callRange(fn func(start, end int), start, end int) (err error) {
	defer errors.Recover(&err, fmt.Sprintf("parallel range [%d, %d)", start, end))
	fn(start, end)
	return nil
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
