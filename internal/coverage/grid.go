package coverage

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/escapeSeq/spacecore-orbits/internal/metrics"
)

// Band is one latitude band of a Grid. Every cell in the band carries the
// same weight, its solid-angle share of the sphere:
//
//	Δλ·(sin φ₂ − sin φ₁) / 4π
type Band struct {
	SinLat, CosLat float64 // at the band centre
	LatRad         float64
	HalfWidthRad   float64
	Weight         float64 // per cell
}

// Grid is an equal-area quadrature grid of sample directions at
// latitude-band centres and longitude-cell centres. The weights of all
// samples sum to 1. A Grid is immutable once built.
type Grid struct {
	LatStepDeg, LonStepDeg float64

	Bands []Band
	// CosLon and SinLon hold the longitude cell centres.
	CosLon, SinLon []float64
}

// BuildGrid builds the grid for the given steps in degrees. Band and cell
// counts are rounded up so the grid tiles the sphere exactly.
func BuildGrid(latStepDeg, lonStepDeg float64) *Grid {
	nLat := int(math.Ceil(180 / latStepDeg))
	nLon := int(math.Ceil(360 / lonStepDeg))

	g := &Grid{
		LatStepDeg: latStepDeg,
		LonStepDeg: lonStepDeg,
		Bands:      make([]Band, nLat),
		CosLon:     make([]float64, nLon),
		SinLon:     make([]float64, nLon),
	}

	dLat := math.Pi / float64(nLat)
	dLon := 2 * math.Pi / float64(nLon)

	for k := range g.Bands {
		lat1 := -math.Pi/2 + float64(k)*dLat
		lat2 := -math.Pi/2 + float64(k+1)*dLat
		lat := (lat1 + lat2) / 2
		sin, cos := math.Sincos(lat)
		g.Bands[k] = Band{
			SinLat:       sin,
			CosLat:       cos,
			LatRad:       lat,
			HalfWidthRad: (lat2 - lat1) / 2,
			Weight:       dLon * (math.Sin(lat2) - math.Sin(lat1)) / (4 * math.Pi),
		}
	}
	for j := range g.CosLon {
		g.SinLon[j], g.CosLon[j] = math.Sincos((float64(j) + 0.5) * dLon)
	}
	return g
}

// Samples returns the number of sample directions.
func (g *Grid) Samples() int {
	return len(g.Bands) * len(g.CosLon)
}

// gridKey quantizes steps to micro-degrees so equal resolutions computed by
// different arithmetic share one entry.
type gridKey struct {
	lat, lon int64
}

func keyFor(latStepDeg, lonStepDeg float64) gridKey {
	return gridKey{
		lat: int64(math.Round(latStepDeg * 1e6)),
		lon: int64(math.Round(lonStepDeg * 1e6)),
	}
}

// GridCache memoizes grids by resolution. Each grid is built at most once.
// Safe for concurrent use by multiple goroutines.
type GridCache struct {
	mu    sync.Mutex
	grids map[gridKey]*Grid

	// Counters (lock-free).
	hits   atomic.Int64
	misses atomic.Int64
}

// NewGridCache creates an empty grid cache.
func NewGridCache() *GridCache {
	return &GridCache{grids: make(map[gridKey]*Grid)}
}

// Get returns the grid for the given steps, building it on first use.
func (c *GridCache) Get(latStepDeg, lonStepDeg float64) *Grid {
	key := keyFor(latStepDeg, lonStepDeg)

	c.mu.Lock()
	defer c.mu.Unlock()

	if g, ok := c.grids[key]; ok {
		c.hits.Add(1)
		metrics.IncGridCacheHits()
		return g
	}

	g := BuildGrid(latStepDeg, lonStepDeg)
	c.grids[key] = g
	c.misses.Add(1)
	metrics.IncGridCacheMisses()
	return g
}

// Len returns the number of cached grids.
func (c *GridCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.grids)
}

// Stats returns the cache hit and miss counts.
func (c *GridCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
