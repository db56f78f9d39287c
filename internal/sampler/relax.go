package sampler

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/worldgen/internal/delaunay"
	"github.com/talgya/worldgen/internal/failure"
	"github.com/talgya/worldgen/internal/geom"
	"github.com/talgya/worldgen/internal/voronoi"
)

// MaxRelaxIterations caps Lloyd relaxation.
const MaxRelaxIterations = 16

// relaxTolerance stops relaxation early once no site moves further than this
// fraction of the bounds diagonal.
const relaxTolerance = 1e-4

// Relax runs up to iterations rounds of Lloyd relaxation: every site moves
// to the centroid of its bounded Voronoi cell. Sites are kept strictly inside
// bounds and keep their ids.
func Relax(sites []geom.Site, bounds geom.Rect, iterations, workers int) ([]geom.Site, error) {
	const op = "sampler.Relax"
	if iterations < 0 || iterations > MaxRelaxIterations {
		return nil, failure.New(failure.ErrInvalidParameter, op, failure.NoID,
			"iterations must be in [0,%d], got %d", MaxRelaxIterations, iterations)
	}
	if err := validate(op, len(sites), bounds); err != nil {
		return nil, err
	}

	out := make([]geom.Site, len(sites))
	copy(out, sites)
	margin := 1e-9 * bounds.Diagonal()

	for it := 0; it < iterations; it++ {
		tri, err := delaunay.Triangulate(out)
		if err != nil {
			return nil, fmt.Errorf("relax iteration %d: %w", it, err)
		}
		g, err := voronoi.Build(tri, bounds, workers)
		if err != nil {
			return nil, fmt.Errorf("relax iteration %d: %w", it, err)
		}

		maxMove := 0.0
		next := make([]geom.Site, len(out))
		for _, s := range out {
			c := bounds.Inset(geom.Centroid(g.Cell(s.ID).Polygon), margin)
			maxMove = math.Max(maxMove, c.Dist(s.Pos))
			next[s.ID] = geom.Site{ID: s.ID, Pos: c}
		}
		out = next

		slog.Debug("lloyd relaxation", "iteration", it+1, "max_move", maxMove)
		if maxMove < relaxTolerance*bounds.Diagonal() {
			break
		}
	}
	return out, nil
}
