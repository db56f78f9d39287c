package propagate

import (
	"log/slog"
	"math"

	"github.com/aquilax/go-perlin"

	"github.com/talgya/worldgen/internal/failure"
	"github.com/talgya/worldgen/internal/geom"
	"github.com/talgya/worldgen/internal/parallel"
	"github.com/talgya/worldgen/internal/voronoi"
)

// MoistureConfig tunes DiffuseMoisture.
type MoistureConfig struct {
	SeaLevel float64 // Cells below this elevation are moisture sources
	Decay    float64 // Moisture kept per graph hop, in (0, 1]
	Noise    float64 // Amplitude of the Perlin modulation, in [0, 1]
	Seed     int64
	Workers  int
}

// DefaultMoistureConfig returns the diffusion settings used by the generator.
func DefaultMoistureConfig() MoistureConfig {
	return MoistureConfig{
		SeaLevel: 0.25,
		Decay:    0.8,
		Noise:    0.15,
	}
}

// Perlin parameters: smoothness, frequency step, octaves.
const (
	perlinAlpha   = 2.0
	perlinBeta    = 2.0
	perlinOctaves = 3
	// Noise features per bounds diagonal.
	perlinScale = 4.0
)

// DiffuseMoisture fills moisture from the water cells outward: a cell at
// graph distance d from the nearest cell below sea level gets Decay^d, then a
// bounded Perlin offset, clamped to [0, 1]. Without any water cell the base
// moisture is zero everywhere. Cells must be in ElevationSet and move to
// MoistureSet.
func DiffuseMoisture(g *voronoi.Graph, cfg MoistureConfig) error {
	const op = "propagate.DiffuseMoisture"
	if cfg.Decay <= 0 || cfg.Decay > 1 {
		return failure.New(failure.ErrInvalidParameter, op, failure.NoID, "decay must be in (0,1], got %g", cfg.Decay)
	}
	if cfg.Noise < 0 || cfg.Noise > 1 {
		return failure.New(failure.ErrInvalidParameter, op, failure.NoID, "noise must be in [0,1], got %g", cfg.Noise)
	}
	if err := g.Require(op, voronoi.ElevationSet); err != nil {
		return err
	}

	// Multi-source BFS seeded in ascending id order.
	depth := make([]int, g.Len())
	var queue []int
	for i := range g.Cells {
		depth[i] = -1
		if g.Cells[i].Attr.Elevation < cfg.SeaLevel {
			depth[i] = 0
			queue = append(queue, i)
		}
	}
	sources := len(queue)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, nb := range g.Cells[c].Neighbors {
			if depth[nb] < 0 {
				depth[nb] = depth[c] + 1
				queue = append(queue, nb)
			}
		}
	}

	noise := perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, cfg.Seed)
	freq := perlinScale / g.Bounds.Diagonal()
	origin := g.Bounds.Min

	err := parallel.ForEach(g.Len(), cfg.Workers, func(i int) error {
		c := g.Cell(i)
		base := 0.0
		if depth[i] >= 0 {
			base = math.Pow(cfg.Decay, float64(depth[i]))
		}
		p := c.Site.Sub(origin)
		m := base + cfg.Noise*noise.Noise2D(p.X*freq, p.Y*freq)
		c.Attr.Moisture = geom.Clamp(m, 0, 1)
		return c.Advance(op, voronoi.ElevationSet, voronoi.MoistureSet)
	})
	if err != nil {
		return err
	}
	slog.Debug("moisture diffused", "cells", g.Len(), "sources", sources, "decay", cfg.Decay)
	return nil
}
