// Package engine ties the catalog, propagator and coverage estimator
// together for the calling application. It owns which satellites show
// coverage; the numeric packages stay pure.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/escapeSeq/spacecore-orbits/internal/coverage"
	"github.com/escapeSeq/spacecore-orbits/internal/metrics"
	"github.com/escapeSeq/spacecore-orbits/internal/propagation"
	"github.com/escapeSeq/spacecore-orbits/internal/tle"
	"github.com/escapeSeq/spacecore-orbits/internal/transform"
)

var (
	// ErrNotFound is returned for an unknown catalog number.
	ErrNotFound = errors.New("satellite not found")

	// ErrEmptyCatalog is returned when loaded TLE text has no usable entries.
	ErrEmptyCatalog = errors.New("no valid TLE entries")
)

// Config holds engine settings.
type Config struct {
	Workers         int
	MinElevationDeg float64 // default for snapshots
	ShowCoverage    bool    // default for satellites without an override
}

// Satellite is a catalog entry with its display attributes.
type Satellite struct {
	ID           int                  `json:"norad_id"`
	Name         string               `json:"name"`
	Elements     *tle.OrbitalElements `json:"-"`
	ShowCoverage bool                 `json:"show_coverage"`
	Orbit        OrbitSummary         `json:"orbit"`
}

// OrbitSummary holds derived orbit quantities for listings.
type OrbitSummary struct {
	Epoch             time.Time `json:"epoch"`
	InclinationDeg    float64   `json:"inclination_deg"`
	Eccentricity      float64   `json:"eccentricity"`
	MeanMotion        float64   `json:"mean_motion_rev_per_day"`
	PeriodMinutes     float64   `json:"period_minutes"`
	SemiMajorAxisKm   float64   `json:"semi_major_axis_km"`
	PerigeeAltitudeKm float64   `json:"perigee_altitude_km"`
	ApogeeAltitudeKm  float64   `json:"apogee_altitude_km"`
}

// State is one satellite's propagated state with its ground projections.
type State struct {
	ID            int                `json:"norad_id"`
	Name          string             `json:"name"`
	Time          time.Time          `json:"time"`
	Position      [3]float64         `json:"position_km"`
	Velocity      [3]float64         `json:"velocity_km_s"`
	RadiusKm      float64            `json:"radius_km"`
	AltitudeKm    float64            `json:"altitude_km"`
	Converged     bool               `json:"converged"`
	Iterations    int                `json:"iterations"`
	Subpoint      transform.Subpoint `json:"subpoint"`
	ScenePosition [3]float64         `json:"scene_position"`
}

// Snapshot is the coverage picture at one instant.
type Snapshot struct {
	Time            time.Time         `json:"time" yaml:"time"`
	MinElevationDeg float64           `json:"min_elevation_deg" yaml:"min_elevation_deg"`
	Satellites      []coverage.Record `json:"satellites" yaml:"satellites"`
	Union           coverage.Result   `json:"union" yaml:"union"`
}

// Engine computes states and coverage for the store's current catalog.
// Safe for concurrent use.
type Engine struct {
	store     *tle.Store
	prop      *propagation.Propagator
	estimator *coverage.Estimator
	config    Config
	logger    *slog.Logger

	mu        sync.RWMutex
	overrides map[int]bool // per-satellite ShowCoverage
}

// New creates an engine over store. Grids are shared through grids; a nil
// cache gets a private one.
func New(store *tle.Store, grids *coverage.GridCache, config Config, logger *slog.Logger) *Engine {
	return &Engine{
		store:     store,
		prop:      propagation.NewPropagator(store, config.Workers, logger),
		estimator: coverage.NewEstimator(grids),
		config:    config,
		logger:    logger,
		overrides: make(map[int]bool),
	}
}

// Store returns the engine's catalog store.
func (e *Engine) Store() *tle.Store { return e.store }

// Propagator returns the engine's propagator.
func (e *Engine) Propagator() *propagation.Propagator { return e.prop }

// DefaultMinElevation returns the configured minimum elevation in degrees.
func (e *Engine) DefaultMinElevation() float64 { return e.config.MinElevationDeg }

// LoadCatalog parses TLE text and replaces the current catalog. Malformed
// entries are skipped; text without any valid entry is rejected and the
// current catalog is kept.
func (e *Engine) LoadCatalog(r io.Reader, source string) (*tle.Catalog, error) {
	sats, err := tle.Parse(r, e.logger)
	if err != nil {
		return nil, fmt.Errorf("loading catalog from %s: %w", source, err)
	}
	if len(sats) == 0 {
		return nil, fmt.Errorf("loading catalog from %s: %w", source, ErrEmptyCatalog)
	}

	cat := tle.NewCatalog(source, time.Now(), sats)
	prev := e.store.Swap(cat)
	metrics.SetCatalogSize(len(sats))
	metrics.SetCatalogAge(0)

	attrs := []any{
		"source", source,
		"satellite_count", len(sats),
		"epoch_min", cat.EpochRange.Min.Format(time.RFC3339),
		"epoch_max", cat.EpochRange.Max.Format(time.RFC3339),
	}
	if prev != nil {
		attrs = append(attrs, "replaced_source", prev.Source, "replaced_count", len(prev.Satellites))
	}
	e.logger.Info("catalog loaded", attrs...)
	return cat, nil
}

// SetShowCoverage overrides whether a satellite contributes coverage.
func (e *Engine) SetShowCoverage(id int, show bool) error {
	cat := e.store.Get()
	if cat == nil {
		return propagation.ErrNoCatalog
	}
	if cat.Lookup(id) == nil {
		return ErrNotFound
	}

	e.mu.Lock()
	e.overrides[id] = show
	e.mu.Unlock()
	return nil
}

func (e *Engine) showCoverage(id int) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if show, ok := e.overrides[id]; ok {
		return show
	}
	return e.config.ShowCoverage
}

// Satellites lists the current catalog.
func (e *Engine) Satellites() ([]Satellite, error) {
	cat := e.store.Get()
	if cat == nil {
		return nil, propagation.ErrNoCatalog
	}

	out := make([]Satellite, len(cat.Satellites))
	for i, el := range cat.Satellites {
		out[i] = e.describe(el)
	}
	return out, nil
}

// Satellite returns one catalog entry.
func (e *Engine) Satellite(id int) (*Satellite, error) {
	cat := e.store.Get()
	if cat == nil {
		return nil, propagation.ErrNoCatalog
	}
	el := cat.Lookup(id)
	if el == nil {
		return nil, ErrNotFound
	}
	sat := e.describe(el)
	return &sat, nil
}

func (e *Engine) describe(el *tle.OrbitalElements) Satellite {
	return Satellite{
		ID:           el.CatalogNumber,
		Name:         el.Name,
		Elements:     el,
		ShowCoverage: e.showCoverage(el.CatalogNumber),
		Orbit: OrbitSummary{
			Epoch:             el.Epoch,
			InclinationDeg:    el.Inclination,
			Eccentricity:      el.Eccentricity,
			MeanMotion:        el.MeanMotion,
			PeriodMinutes:     el.Period.Minutes(),
			SemiMajorAxisKm:   el.SemiMajorAxisKm,
			PerigeeAltitudeKm: el.PerigeeAltitudeKm(),
			ApogeeAltitudeKm:  el.ApogeeAltitudeKm(),
		},
	}
}

// State propagates one satellite to at.
func (e *Engine) State(id int, at time.Time) (*State, error) {
	cat := e.store.Get()
	if cat == nil {
		return nil, propagation.ErrNoCatalog
	}
	el := cat.Lookup(id)
	if el == nil {
		return nil, ErrNotFound
	}

	sv := propagation.Propagate(el, at)
	ef := transform.InertialToEarthFixed(sv.Position, sv.Velocity, at)
	scene := transform.ToScene(sv.Position, transform.DefaultSceneScale)

	return &State{
		ID:            el.CatalogNumber,
		Name:          el.Name,
		Time:          at,
		Position:      [3]float64{sv.Position.X, sv.Position.Y, sv.Position.Z},
		Velocity:      [3]float64{sv.Velocity.X, sv.Velocity.Y, sv.Velocity.Z},
		RadiusKm:      sv.RadiusKm,
		AltitudeKm:    sv.AltitudeKm,
		Converged:     sv.Converged,
		Iterations:    sv.Iterations,
		Subpoint:      transform.SubpointOf(ef.Position),
		ScenePosition: [3]float64{scene.X, scene.Y, scene.Z},
	}, nil
}

// Snapshot propagates every catalog satellite to at, builds a coverage
// record for each satellite that shows coverage, and estimates the union
// of their caps.
func (e *Engine) Snapshot(ctx context.Context, at time.Time, minElevationDeg float64) (*Snapshot, error) {
	frame, err := e.prop.PropagateCatalog(ctx, at)
	if err != nil {
		return nil, err
	}

	gmst := transform.GMST(at)
	records := make([]coverage.Record, 0, len(frame.States))
	caps := make([]coverage.Cap, 0, len(frame.States))

	for i, el := range frame.Catalog.Satellites {
		if !e.showCoverage(el.CatalogNumber) {
			continue
		}
		sv := frame.States[i]
		c := coverage.FromPosition(sv.Position, minElevationDeg)

		rec := coverage.NewRecord(sv.Position, c)
		rec.CatalogNumber = el.CatalogNumber
		rec.Name = el.Name
		rec.Subpoint = transform.SubpointOf(transform.InertialToEarthFixedWithGMST(sv.Position, sv.Velocity, gmst).Position)
		scene := transform.ToScene(sv.Position, transform.DefaultSceneScale)
		rec.ScenePosition = [3]float64{scene.X, scene.Y, scene.Z}

		records = append(records, rec)
		caps = append(caps, c)
	}

	start := time.Now()
	union := e.estimator.Union(caps)
	duration := time.Since(start)
	metrics.RecordUnion(duration, union.Surviving, union.Percent)

	e.logger.Debug("snapshot computed",
		"time", at.UTC().Format(time.RFC3339),
		"caps", union.Caps,
		"surviving_caps", union.Surviving,
		"step_deg", union.StepDeg,
		"union_percent", union.Percent,
		"duration_ms", duration.Milliseconds(),
	)

	return &Snapshot{
		Time:            at,
		MinElevationDeg: minElevationDeg,
		Satellites:      records,
		Union:           union,
	}, nil
}
