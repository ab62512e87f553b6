package coverage

import (
	"math"
	"sync"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestBuildGridWeights(t *testing.T) {
	for _, step := range []float64{FineStepDeg, MediumStepDeg, CoarseStepDeg, 7} {
		g := BuildGrid(step, step)

		var sum float64
		for _, b := range g.Bands {
			sum += b.Weight * float64(len(g.CosLon))
		}
		if !scalar.EqualWithinAbs(sum, 1, 1e-12) {
			t.Errorf("step %v: weights sum to %v, want 1", step, sum)
		}

		wantLat := int(math.Ceil(180 / step))
		wantLon := int(math.Ceil(360 / step))
		if len(g.Bands) != wantLat || len(g.CosLon) != wantLon {
			t.Errorf("step %v: %d×%d grid, want %d×%d", step, len(g.Bands), len(g.CosLon), wantLat, wantLon)
		}
		if g.Samples() != wantLat*wantLon {
			t.Errorf("Samples = %d, want %d", g.Samples(), wantLat*wantLon)
		}
	}
}

// TestBuildGridEqualArea checks that polar bands get smaller per-sample
// weights than equatorial ones and the grid is symmetric about the equator.
func TestBuildGridEqualArea(t *testing.T) {
	g := BuildGrid(1, 1)
	n := len(g.Bands)

	if !(g.Bands[0].Weight < g.Bands[n/2].Weight) {
		t.Errorf("polar weight %v not below equatorial weight %v", g.Bands[0].Weight, g.Bands[n/2].Weight)
	}
	for k := 0; k < n/2; k++ {
		if !scalar.EqualWithinRel(g.Bands[k].Weight, g.Bands[n-1-k].Weight, 1e-9) {
			t.Errorf("band %d weight %v != mirrored band weight %v", k, g.Bands[k].Weight, g.Bands[n-1-k].Weight)
		}
	}
	if !scalar.EqualWithinAbs(g.Bands[0].LatRad, -89.5*deg, 1e-12) {
		t.Errorf("first band centre = %v°, want -89.5°", g.Bands[0].LatRad/deg)
	}
}

func TestGridCacheReuse(t *testing.T) {
	c := NewGridCache()

	a := c.Get(0.5, 0.5)
	b := c.Get(0.5, 0.5)
	if a != b {
		t.Error("second Get built a new grid")
	}
	// 1/2 computed differently still maps to the same key.
	if c.Get(1.0/2.0, 5.0/10.0) != a {
		t.Error("equal steps should share a cache entry")
	}
	if c.Get(1, 1) == a {
		t.Error("different steps returned the same grid")
	}

	hits, misses := c.Stats()
	if hits != 2 || misses != 2 {
		t.Errorf("hits/misses = %d/%d, want 2/2", hits, misses)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestGridCacheConcurrent(t *testing.T) {
	c := NewGridCache()

	const goroutines = 16
	grids := make([]*Grid, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			grids[i] = c.Get(1, 1)
		}(i)
	}
	wg.Wait()

	for i, g := range grids {
		if g != grids[0] {
			t.Fatalf("goroutine %d got a different grid", i)
		}
	}
	if _, misses := c.Stats(); misses != 1 {
		t.Errorf("misses = %d, want 1", misses)
	}
}

func TestEstimatorsShareCache(t *testing.T) {
	cache := NewGridCache()
	caps := []Cap{capAt(0, 0, 1, 20)}

	NewEstimator(cache).Union(caps)
	NewEstimator(cache).Union(caps)

	hits, misses := cache.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", hits, misses)
	}
}
