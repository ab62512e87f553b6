package propagation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/escapeSeq/spacecore-orbits/internal/metrics"
	"github.com/escapeSeq/spacecore-orbits/internal/tle"
)

// ErrNoCatalog is returned when the store has no catalog loaded.
var ErrNoCatalog = errors.New("no TLE catalog loaded")

// sgp4Cache holds preinitialized SGP4 references for a specific catalog.
// Immutable after construction; safe for concurrent reads.
type sgp4Cache struct {
	refs    map[int]*SGP4Reference
	catalog *tle.Catalog
}

// Propagator propagates the store's current catalog with a worker pool.
type Propagator struct {
	store  *tle.Store
	pool   *WorkerPool
	logger *slog.Logger
	sgp4   atomic.Pointer[sgp4Cache]
	sgp4Mu sync.Mutex // serializes cache rebuilds
}

// NewPropagator creates a new propagation orchestrator.
func NewPropagator(store *tle.Store, workers int, logger *slog.Logger) *Propagator {
	return &Propagator{
		store:  store,
		pool:   NewWorkerPool(workers, logger),
		logger: logger,
	}
}

// PropagateCatalog propagates every satellite of the current catalog to
// the target time.
func (p *Propagator) PropagateCatalog(ctx context.Context, targetTime time.Time) (*Frame, error) {
	cat := p.store.Get()
	if cat == nil {
		return nil, ErrNoCatalog
	}

	p.logger.Debug("propagating",
		"satellite_count", len(cat.Satellites),
		"target_time", targetTime.UTC().Format(time.RFC3339),
		"workers", p.pool.Workers(),
	)

	start := time.Now()
	states, err := p.pool.PropagateBatch(ctx, cat.Satellites, targetTime)
	if err != nil {
		return nil, fmt.Errorf("propagating catalog: %w", err)
	}
	duration := time.Since(start)

	var converged int
	for _, s := range states {
		if s.Converged {
			converged++
		}
	}
	metrics.RecordPropagation(duration, converged, len(states)-converged)

	p.logger.Debug("propagation complete",
		"converged", converged,
		"not_converged", len(states)-converged,
		"duration_ms", duration.Milliseconds(),
	)

	return &Frame{Time: targetTime, Catalog: cat, States: states}, nil
}

// cachedRefs returns preinitialized SGP4 references for the given catalog.
// Rebuilds the cache if the catalog has changed (double-checked locking).
func (p *Propagator) cachedRefs(cat *tle.Catalog) map[int]*SGP4Reference {
	if c := p.sgp4.Load(); c != nil && c.catalog == cat {
		return c.refs
	}

	p.sgp4Mu.Lock()
	defer p.sgp4Mu.Unlock()

	if c := p.sgp4.Load(); c != nil && c.catalog == cat {
		return c.refs
	}

	refs := make(map[int]*SGP4Reference, len(cat.Satellites))
	var skipped int
	for _, el := range cat.Satellites {
		if _, ok := refs[el.CatalogNumber]; ok {
			continue
		}
		ref, err := NewSGP4Reference(el)
		if err != nil {
			p.logger.Warn("sgp4 cache init failed", "norad_id", el.CatalogNumber, "error", err)
			skipped++
			continue
		}
		refs[el.CatalogNumber] = ref
	}

	p.logger.Info("sgp4 reference cache rebuilt",
		"cached", len(refs),
		"skipped", skipped,
		"catalog_loaded_at", cat.LoadedAt.UTC().Format(time.RFC3339),
	)
	p.sgp4.Store(&sgp4Cache{refs: refs, catalog: cat})
	return refs
}

// CompareSGP4 measures the two-body drift against SGP4 for every catalog
// satellite at the target time. Satellites SGP4 cannot initialize or
// propagate are logged and left out.
func (p *Propagator) CompareSGP4(ctx context.Context, targetTime time.Time) ([]Drift, error) {
	cat := p.store.Get()
	if cat == nil {
		return nil, ErrNoCatalog
	}

	refs := p.cachedRefs(cat)
	drifts := make([]Drift, 0, len(refs))
	for _, el := range cat.Satellites {
		if err := ctx.Err(); err != nil {
			return drifts, err
		}
		ref, ok := refs[el.CatalogNumber]
		if !ok {
			continue
		}
		d, err := ref.Compare(el, targetTime)
		if err != nil {
			p.logger.Warn("sgp4 comparison failed", "norad_id", el.CatalogNumber, "error", err)
			continue
		}
		drifts = append(drifts, d)
	}
	return drifts, nil
}
