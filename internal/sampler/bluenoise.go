package sampler

import (
	"math"
	"slices"

	"github.com/talgya/worldgen/internal/geom"
)

// bridsonTries is the number of candidates tried around an active point
// before it is retired.
const bridsonTries = 30

// SampleBlueNoise draws count Poisson-disk distributed sites using Bridson's
// algorithm. The disk radius is derived from count so that the packing comes
// out dense; a random subset of the surplus is dropped, which keeps coverage
// even, and any shortfall is topped up with uniform draws. Exactly count sites
// are returned.
func SampleBlueNoise(seed uint64, count int, bounds geom.Rect) ([]geom.Site, error) {
	if err := validate("sampler.SampleBlueNoise", count, bounds); err != nil {
		return nil, err
	}
	rng := newRand(seed)

	// Bridson packings settle near 0.6 points per r², so this radius leaves
	// a surplus of about a fifth.
	minDist := math.Sqrt(0.5 * bounds.Area() / float64(count))
	cellSize := minDist / math.Sqrt2
	gridW := int(math.Ceil(bounds.Width() / cellSize))
	gridH := int(math.Ceil(bounds.Height() / cellSize))
	grid := make([]int, gridW*gridH)
	for i := range grid {
		grid[i] = -1
	}

	toGrid := func(p geom.Point) (int, int) {
		gx := geom.Clamp(int((p.X-bounds.Min.X)/cellSize), 0, gridW-1)
		gy := geom.Clamp(int((p.Y-bounds.Min.Y)/cellSize), 0, gridH-1)
		return gx, gy
	}

	var points []geom.Point
	var active []int
	r2 := minDist * minDist

	valid := func(p geom.Point) bool {
		if !bounds.Contains(p) {
			return false
		}
		gx, gy := toGrid(p)
		for dy := -2; dy <= 2; dy++ {
			for dx := -2; dx <= 2; dx++ {
				nx, ny := gx+dx, gy+dy
				if nx < 0 || nx >= gridW || ny < 0 || ny >= gridH {
					continue
				}
				if idx := grid[ny*gridW+nx]; idx != -1 && points[idx].Dist2(p) < r2 {
					return false
				}
			}
		}
		return true
	}
	insert := func(p geom.Point) {
		idx := len(points)
		points = append(points, p)
		active = append(active, idx)
		gx, gy := toGrid(p)
		grid[gy*gridW+gx] = idx
	}

	insert(geom.Point{
		X: bounds.Min.X + (0.25+0.5*rng.Float64())*bounds.Width(),
		Y: bounds.Min.Y + (0.25+0.5*rng.Float64())*bounds.Height(),
	})
	for len(active) > 0 {
		ai := rng.Intn(len(active))
		p := points[active[ai]]
		found := false
		for k := 0; k < bridsonTries; k++ {
			angle := rng.Float64() * 2 * math.Pi
			dist := minDist * (1 + rng.Float64())
			cand := geom.Point{X: p.X + dist*math.Cos(angle), Y: p.Y + dist*math.Sin(angle)}
			if valid(cand) {
				insert(cand)
				found = true
				break
			}
		}
		if !found {
			active[ai] = active[len(active)-1]
			active = active[:len(active)-1]
		}
	}

	if len(points) > count {
		keep := rng.Perm(len(points))[:count]
		slices.Sort(keep)
		kept := make([]geom.Point, count)
		for i, idx := range keep {
			kept[i] = points[idx]
		}
		points = kept
	}

	seen := make(map[geom.Point]bool, count)
	sites := make([]geom.Site, 0, count)
	for _, p := range points {
		seen[p] = true
		sites = append(sites, geom.Site{ID: len(sites), Pos: p})
	}
	for len(sites) < count {
		p := geom.Point{
			X: bounds.Min.X + rng.Float64()*bounds.Width(),
			Y: bounds.Min.Y + rng.Float64()*bounds.Height(),
		}
		if !bounds.Contains(p) || seen[p] {
			continue
		}
		seen[p] = true
		sites = append(sites, geom.Site{ID: len(sites), Pos: p})
	}
	return sites, nil
}
