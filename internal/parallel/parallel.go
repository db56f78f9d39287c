// Package parallel runs independent per-index work across a bounded set of
// goroutines. It is the data-parallel map used by the stateless stages.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minChunk keeps tiny inputs from being split into goroutine-sized crumbs.
const minChunk = 64

// Workers normalizes a requested worker count: values <= 0 mean one per CPU.
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// ForEach calls fn(i) for every i in [0, n). Indices are split into
// contiguous chunks processed by at most workers goroutines. fn must only
// write state owned by index i. When several indices fail, the error of the
// lowest one is reported, whatever the scheduling.
func ForEach(n, workers int, fn func(i int) error) error {
	if n <= 0 {
		return nil
	}
	workers = Workers(workers)
	if workers == 1 || n <= minChunk {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	chunk := (n + workers - 1) / workers
	if chunk < minChunk {
		chunk = minChunk
	}

	// A chunk stops at its own first failure; the other chunks keep going so
	// that a lower failing index is never missed.
	errs := make([]error, (n+chunk-1)/chunk)
	var g errgroup.Group
	g.SetLimit(workers)
	for k := range errs {
		lo := k * chunk
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := fn(i); err != nil {
					errs[k] = err
					return nil
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Each is ForEach over an explicit index list, used by staged schedules
// where only a subset of cells is ready.
func Each(ids []int, workers int, fn func(id int) error) error {
	return ForEach(len(ids), workers, func(i int) error {
		return fn(ids[i])
	})
}
