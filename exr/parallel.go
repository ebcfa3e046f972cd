package exr

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// ParallelConfig configures parallel chunk processing.
type ParallelConfig struct {
	// NumWorkers is the number of worker goroutines. 0 means runtime.GOMAXPROCS(0).
	NumWorkers int

	// GrainSize is the minimum number of chunks per worker. Operations with
	// fewer than GrainSize*NumWorkers chunks run on the calling goroutine.
	GrainSize int
}

// DefaultParallelConfig returns the default parallel configuration.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		NumWorkers: 0,
		GrainSize:  1,
	}
}

// effectiveWorkers returns the number of workers to use.
func effectiveWorkers(config ParallelConfig) int {
	if config.NumWorkers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return config.NumWorkers
}

// ProgressFunc is called after every completed chunk with the fraction of
// chunks done, between 0 and 1. Returning true aborts the operation, which
// then fails with ErrAborted. Calls are never concurrent.
type ProgressFunc func(progress float64) (abort bool)

// progressTracker serializes progress reports.
type progressTracker struct {
	mu      sync.Mutex
	fn      ProgressFunc
	done    int
	total   int
	aborted bool
}

// step records a finished chunk and reports whether the caller aborted.
func (p *progressTracker) step() bool {
	if p.fn == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.aborted {
		return true
	}
	p.done++
	p.aborted = p.fn(float64(p.done) / float64(p.total))
	return p.aborted
}

// runChunks calls fn(i) for i in [0, n). With parallel unset, or too few
// chunks for the configured grain size, the calls happen in order on the
// calling goroutine. Otherwise a bounded pool of workers pulls indices from
// a shared counter. The first error stops dispatch and is returned once all
// workers have finished.
func runChunks(config ParallelConfig, parallel bool, n int, fn func(i int) error, progress ProgressFunc) error {
	tracker := &progressTracker{fn: progress, total: n}
	numWorkers := min(effectiveWorkers(config), n)

	if !parallel || numWorkers <= 1 || n < max(config.GrainSize, 1)*numWorkers {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
			if tracker.step() {
				return ErrAborted
			}
		}
		return nil
	}

	var (
		wg       sync.WaitGroup
		next     atomic.Int64
		stop     atomic.Bool
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
		stop.Store(true)
	}
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				i := int(next.Add(1) - 1)
				if i >= n {
					return
				}
				if err := fn(i); err != nil {
					fail(err)
					return
				}
				if tracker.step() {
					fail(ErrAborted)
					return
				}
			}
		}()
	}
	wg.Wait()
	return firstErr
}
