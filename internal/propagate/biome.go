package propagate

import (
	"log/slog"

	"github.com/talgya/worldgen/internal/failure"
	"github.com/talgya/worldgen/internal/parallel"
	"github.com/talgya/worldgen/internal/voronoi"
)

// Rules holds the thresholds of the biome classifier. Elevation thresholds
// are in field units; moisture is in [0, 1].
type Rules struct {
	SeaLevel       float64 // Below this: ocean
	BeachBand      float64 // Land within this of sea level: beach or marsh
	TundraLevel    float64
	MountainLevel  float64
	SnowLevel      float64
	RiverThreshold int // Accumulated flow that turns a land cell into river
	LakeThreshold  int // Accumulated flow that turns an inland sink into lake
}

// DefaultRules returns thresholds tuned for elevation fields spanning
// roughly [0, 1].
func DefaultRules() Rules {
	return Rules{
		SeaLevel:       0.25,
		BeachBand:      0.04,
		TundraLevel:    0.72,
		MountainLevel:  0.82,
		SnowLevel:      0.93,
		RiverThreshold: 12,
		LakeThreshold:  4,
	}
}

// Validate checks that the thresholds are ordered.
func (r Rules) Validate() error {
	const op = "propagate.Rules"
	if r.BeachBand < 0 {
		return failure.New(failure.ErrInvalidParameter, op, failure.NoID, "beach band must be >= 0, got %g", r.BeachBand)
	}
	if !(r.SeaLevel <= r.TundraLevel && r.TundraLevel <= r.MountainLevel && r.MountainLevel <= r.SnowLevel) {
		return failure.New(failure.ErrInvalidParameter, op, failure.NoID,
			"levels must be ordered: sea %g, tundra %g, mountain %g, snow %g",
			r.SeaLevel, r.TundraLevel, r.MountainLevel, r.SnowLevel)
	}
	if r.RiverThreshold < 1 || r.LakeThreshold < 1 {
		return failure.New(failure.ErrInvalidParameter, op, failure.NoID,
			"flow thresholds must be >= 1, got river %d, lake %d", r.RiverThreshold, r.LakeThreshold)
	}
	return nil
}

// Biome classifies one cell from its resolved attributes. It reads only
// elevation, moisture, flow, whether the cell is a sink, and whether it
// touches the hull. Hull sinks drain off the map, so only inland sinks pool
// into lakes.
func (r Rules) Biome(a voronoi.Attributes, hull bool) voronoi.Biome {
	elev, wet := a.Elevation, a.Moisture
	switch {
	case elev < r.SeaLevel:
		return voronoi.BiomeOcean
	case a.Downslope == voronoi.Sink && !hull && a.Flow >= r.LakeThreshold:
		return voronoi.BiomeLake
	case a.Flow >= r.RiverThreshold && elev < r.MountainLevel:
		return voronoi.BiomeRiver
	case elev >= r.SnowLevel:
		return voronoi.BiomeSnow
	case elev >= r.MountainLevel:
		return voronoi.BiomeMountain
	case elev >= r.TundraLevel:
		return voronoi.BiomeTundra
	case elev < r.SeaLevel+r.BeachBand:
		if wet >= 0.8 {
			return voronoi.BiomeMarsh
		}
		return voronoi.BiomeBeach
	case wet >= 0.85 && elev < r.SeaLevel+3*r.BeachBand:
		return voronoi.BiomeMarsh
	case wet < 0.2:
		return voronoi.BiomeDesert
	case wet < 0.45:
		return voronoi.BiomeGrassland
	case wet < 0.75:
		return voronoi.BiomeForest
	default:
		return voronoi.BiomeRainforest
	}
}

// Classify assigns every cell its biome. Cells are independent, so the
// stage is a plain parallel map. Cells must be in FlowResolved and move to
// Classified.
func Classify(g *voronoi.Graph, rules Rules, workers int) error {
	const op = "propagate.Classify"
	if err := rules.Validate(); err != nil {
		return err
	}
	if err := g.Require(op, voronoi.FlowResolved); err != nil {
		return err
	}
	err := parallel.ForEach(g.Len(), workers, func(i int) error {
		c := g.Cell(i)
		c.Attr.Biome = rules.Biome(c.Attr, c.Boundary)
		return c.Advance(op, voronoi.FlowResolved, voronoi.Classified)
	})
	if err != nil {
		return err
	}
	slog.Debug("biomes classified", "cells", g.Len())
	return nil
}

// BiomeCounts returns how many cells carry each biome.
func BiomeCounts(g *voronoi.Graph) map[voronoi.Biome]int {
	counts := make(map[voronoi.Biome]int)
	for i := range g.Cells {
		counts[g.Cells[i].Attr.Biome]++
	}
	return counts
}
