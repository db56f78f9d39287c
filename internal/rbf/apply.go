package rbf

import (
	"log/slog"

	"github.com/talgya/worldgen/internal/geom"
	"github.com/talgya/worldgen/internal/parallel"
	"github.com/talgya/worldgen/internal/voronoi"
)

// ApplyElevation evaluates field at every cell site and moves each cell to
// ElevationSet.
func ApplyElevation(g *voronoi.Graph, field *Field, workers int) error {
	const op = "rbf.ApplyElevation"
	if err := g.Require(op, voronoi.Unassigned); err != nil {
		return err
	}
	err := parallel.ForEach(g.Len(), workers, func(i int) error {
		c := g.Cell(i)
		c.Attr.Elevation = field.Evaluate(c.Site)
		return c.Advance(op, voronoi.Unassigned, voronoi.ElevationSet)
	})
	if err != nil {
		return err
	}
	slog.Debug("elevation applied", "cells", g.Len(), "kernel", field.Kernel())
	return nil
}

// ApplyMoisture evaluates field at every cell site, clamps the result to
// [0, 1], and moves each cell to MoistureSet. Controls are expected inside
// [0, 1], so only overshoot between them is clamped.
func ApplyMoisture(g *voronoi.Graph, field *Field, workers int) error {
	const op = "rbf.ApplyMoisture"
	if err := g.Require(op, voronoi.ElevationSet); err != nil {
		return err
	}
	err := parallel.ForEach(g.Len(), workers, func(i int) error {
		c := g.Cell(i)
		v := field.Evaluate(c.Site)
		c.Attr.Moisture = geom.Clamp(v, 0, 1)
		return c.Advance(op, voronoi.ElevationSet, voronoi.MoistureSet)
	})
	if err != nil {
		return err
	}
	slog.Debug("moisture applied", "cells", g.Len(), "kernel", field.Kernel())
	return nil
}
