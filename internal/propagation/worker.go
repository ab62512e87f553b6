package propagation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/escapeSeq/spacecore-orbits/internal/tle"
)

// WorkerPool propagates element sets on a fixed number of goroutines.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a pool of the given size. Values below one are
// treated as one.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	return &WorkerPool{
		workers: max(workers, 1),
		logger:  logger,
	}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int { return wp.workers }

// PropagateBatch propagates every element set to targetTime. States are
// returned in input order. If ctx is cancelled before the batch completes,
// the partial result is discarded and ctx.Err() is returned.
func (wp *WorkerPool) PropagateBatch(ctx context.Context, elements []*tle.OrbitalElements, targetTime time.Time) ([]StateVector, error) {
	if len(elements) == 0 {
		return nil, ctx.Err()
	}

	states := make([]StateVector, len(elements))
	indexes := make(chan int)

	// Each index is written by exactly one worker.
	var wg sync.WaitGroup
	for range min(wp.workers, len(elements)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				states[i] = Propagate(elements[i], targetTime)
			}
		}()
	}

feed:
	for i := range elements {
		select {
		case indexes <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, sv := range states {
		if !sv.Converged {
			wp.logger.Warn("kepler solver did not converge",
				"norad_id", elements[i].CatalogNumber,
				"eccentricity", elements[i].Eccentricity,
				"iterations", sv.Iterations,
			)
		}
	}
	return states, nil
}
