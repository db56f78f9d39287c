// Package sampler produces the generation sites: seeded point sets inside the
// world bounds, optionally relaxed toward even spacing.
package sampler

import (
	"math"
	"math/rand"

	"github.com/talgya/worldgen/internal/failure"
	"github.com/talgya/worldgen/internal/geom"
)

// Method selects how sites are drawn.
type Method string

const (
	Uniform   Method = "uniform"   // Independent uniform draws
	BlueNoise Method = "bluenoise" // Poisson-disk (Bridson) draws
)

// maxRedraws bounds the attempts to replace a duplicate or border point.
const maxRedraws = 64

// Sample draws count sites uniformly and strictly inside bounds.
// The result depends only on (seed, count, bounds).
func Sample(seed uint64, count int, bounds geom.Rect) ([]geom.Site, error) {
	if err := validate("sampler.Sample", count, bounds); err != nil {
		return nil, err
	}
	rng := newRand(seed)
	seen := make(map[geom.Point]bool, count)
	sites := make([]geom.Site, 0, count)
	for len(sites) < count {
		var p geom.Point
		ok := false
		for try := 0; try < maxRedraws; try++ {
			p = geom.Point{
				X: bounds.Min.X + rng.Float64()*bounds.Width(),
				Y: bounds.Min.Y + rng.Float64()*bounds.Height(),
			}
			if bounds.Contains(p) && !seen[p] {
				ok = true
				break
			}
		}
		if !ok {
			return nil, failure.New(failure.ErrInvalidParameter, "sampler.Sample", len(sites),
				"could not draw a distinct site inside %v", bounds)
		}
		seen[p] = true
		sites = append(sites, geom.Site{ID: len(sites), Pos: p})
	}
	return sites, nil
}

// Draw dispatches to the sampling method.
func Draw(method Method, seed uint64, count int, bounds geom.Rect) ([]geom.Site, error) {
	switch method {
	case "", Uniform:
		return Sample(seed, count, bounds)
	case BlueNoise:
		return SampleBlueNoise(seed, count, bounds)
	default:
		return nil, failure.New(failure.ErrInvalidParameter, "sampler.Draw", failure.NoID,
			"unknown sampling method %q", method)
	}
}

func validate(op string, count int, bounds geom.Rect) error {
	if count <= 0 {
		return failure.New(failure.ErrInvalidParameter, op, failure.NoID, "count must be positive, got %d", count)
	}
	if bounds.Area() <= 0 || math.IsInf(bounds.Area(), 0) || math.IsNaN(bounds.Area()) {
		return failure.New(failure.ErrInvalidParameter, op, failure.NoID, "bounds %v has non-positive area", bounds)
	}
	return nil
}

// newRand builds a deterministic source from a 64-bit seed.
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(int64(seed)))
}
