// World generation pipeline.
// Samples sites, builds the Delaunay/Voronoi dual graph, interpolates
// elevation and moisture from control points, then derives drainage and
// biomes and rasterizes the result. Stages run strictly in sequence.
package world

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/worldgen/internal/controls"
	"github.com/talgya/worldgen/internal/delaunay"
	"github.com/talgya/worldgen/internal/failure"
	"github.com/talgya/worldgen/internal/geom"
	"github.com/talgya/worldgen/internal/propagate"
	"github.com/talgya/worldgen/internal/raster"
	"github.com/talgya/worldgen/internal/rbf"
	"github.com/talgya/worldgen/internal/sampler"
	"github.com/talgya/worldgen/internal/voronoi"
)

// GenConfig holds world generation parameters. It is passed by value; the
// pipeline never reads global state.
type GenConfig struct {
	Seed     uint64         `json:"seed"`
	Count    int            `json:"count"`    // Number of sites / cells
	Bounds   geom.Rect      `json:"bounds"`   // Sampling rectangle
	Sampling sampler.Method `json:"sampling"` // "uniform" or "bluenoise"
	Relax    int            `json:"relax"`    // Lloyd iterations (0–16)

	// Controls are user-supplied anchors tagged by field. Without elevation
	// controls the generator synthesizes Peaks peaks plus sea-level anchors
	// on the bounds. Without moisture controls, moisture diffuses from the
	// ocean unless MoistureSources > 0.
	Controls        []rbf.ControlPoint    `json:"controls,omitempty"`
	Peaks           int                   `json:"peaks"`
	Distribution    controls.Distribution `json:"distribution"`
	MoistureSources int                   `json:"moisture_sources"`

	Kernel      rbf.Kernel `json:"kernel"`
	KernelWidth float64    `json:"kernel_width"` // 0 = derived from the controls

	SeaLevel       float64 `json:"sea_level"`       // Elevation threshold for ocean
	MountainLvl    float64 `json:"mountain_level"`  // Elevation threshold for mountains
	RiverThreshold int     `json:"river_threshold"` // 0 = derived from Count
	Decay          float64 `json:"decay"`           // Moisture kept per hop when diffusing

	Width  int `json:"width"` // Raster resolution; 0x0 skips rasterization
	Height int `json:"height"`

	Workers int `json:"workers"` // 0 = one per CPU
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Seed:         1,
		Count:        2000,
		Bounds:       geom.NewRect(0, 0, 1000, 1000),
		Sampling:     sampler.BlueNoise,
		Relax:        2,
		Peaks:        20,
		Distribution: controls.CenteredRandom,
		Kernel:       rbf.Gaussian,
		SeaLevel:     0.25,
		MountainLvl:  0.82,
		Decay:        0.8,
		Width:        512,
		Height:       512,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Seed:         42,
		Count:        50,
		Bounds:       geom.NewRect(0, 0, 100, 100),
		Sampling:     sampler.Uniform,
		Peaks:        4,
		Distribution: controls.CenteredRandom,
		Kernel:       rbf.Gaussian,
		SeaLevel:     0.25,
		MountainLvl:  0.82,
		Decay:        0.8,
		Width:        64,
		Height:       64,
		Workers:      2,
	}
}

// Validate fails fast on malformed configuration.
func (cfg GenConfig) Validate() error {
	const op = "world.Validate"
	bad := func(format string, args ...any) error {
		return failure.New(failure.ErrInvalidParameter, op, failure.NoID, format, args...)
	}
	switch {
	case cfg.Count <= 0:
		return bad("count must be positive, got %d", cfg.Count)
	case !cfg.Bounds.Min.IsFinite() || !cfg.Bounds.Max.IsFinite() || cfg.Bounds.Area() <= 0:
		return bad("bounds %v has non-positive area", cfg.Bounds)
	case cfg.Relax < 0 || cfg.Relax > sampler.MaxRelaxIterations:
		return bad("relax must be in [0,%d], got %d", sampler.MaxRelaxIterations, cfg.Relax)
	case cfg.Peaks < 0 || cfg.MoistureSources < 0:
		return bad("peaks and moisture sources must be >= 0")
	case cfg.KernelWidth < 0 || math.IsNaN(cfg.KernelWidth):
		return bad("kernel width must be >= 0, got %g", cfg.KernelWidth)
	case cfg.Decay < 0 || cfg.Decay > 1:
		return bad("decay must be in [0,1], got %g", cfg.Decay)
	case cfg.RiverThreshold < 0:
		return bad("river threshold must be >= 0, got %d", cfg.RiverThreshold)
	case (cfg.Width == 0) != (cfg.Height == 0) || cfg.Width < 0 || cfg.Height < 0:
		return bad("resolution %dx%d: both sides must be positive, or both zero", cfg.Width, cfg.Height)
	case cfg.Width > raster.MaxSide || cfg.Height > raster.MaxSide:
		return bad("resolution %dx%d exceeds %d", cfg.Width, cfg.Height, raster.MaxSide)
	}
	for i, c := range cfg.Controls {
		if c.Field != "" && c.Field != rbf.FieldElevation && c.Field != rbf.FieldMoisture {
			return failure.New(failure.ErrInvalidParameter, op, i, "control %d has unknown field %q", i, c.Field)
		}
		// Moisture lives in [0,1]; an anchor outside it would be clamped
		// away from its own value.
		if c.Field == rbf.FieldMoisture && !(c.Value >= 0 && c.Value <= 1) {
			return failure.New(failure.ErrInvalidParameter, op, i, "moisture control %d has value %g outside [0,1]", i, c.Value)
		}
	}
	return cfg.Rules().Validate()
}

// Rules derives the biome thresholds from the config.
func (cfg GenConfig) Rules() propagate.Rules {
	r := propagate.DefaultRules()
	r.SeaLevel = cfg.SeaLevel
	if cfg.MountainLvl > 0 {
		shift := cfg.MountainLvl - r.MountainLevel
		r.TundraLevel += shift
		r.MountainLevel = cfg.MountainLvl
		r.SnowLevel += shift
	}
	r.RiverThreshold = cfg.RiverThreshold
	if r.RiverThreshold == 0 {
		// Roughly one cell in forty drains enough area to carry a river.
		r.RiverThreshold = max(3, cfg.Count/40)
	}
	return r
}

// Generate runs the full pipeline once. The result depends only on cfg.
func Generate(cfg GenConfig) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	w := &World{ID: uuid.NewString(), Config: cfg}

	// ── Sites ─────────────────────────────────────────────────────────
	sites, err := sampler.Draw(cfg.Sampling, cfg.Seed, cfg.Count, cfg.Bounds)
	if err != nil {
		return nil, fmt.Errorf("sample sites: %w", err)
	}
	if cfg.Relax > 0 {
		sites, err = sampler.Relax(sites, cfg.Bounds, cfg.Relax, cfg.Workers)
		if err != nil {
			return nil, fmt.Errorf("relax sites: %w", err)
		}
	}

	// ── Dual graph ────────────────────────────────────────────────────
	tri, err := delaunay.Triangulate(sites)
	if err != nil {
		return nil, fmt.Errorf("triangulate: %w", err)
	}
	g, err := voronoi.Build(tri, cfg.Bounds, cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("build dual graph: %w", err)
	}
	w.Graph = g
	w.Triangles = len(tri.Triangles)
	slog.Debug("dual graph built", "cells", g.Len(), "edges", g.EdgeCount(), "triangles", w.Triangles)

	// ── Fields ────────────────────────────────────────────────────────
	elev, wet, err := cfg.resolveControls()
	if err != nil {
		return nil, err
	}
	w.Controls = append(append([]rbf.ControlPoint{}, elev...), wet...)

	opts := rbf.Options{Kernel: cfg.Kernel, Width: cfg.KernelWidth}
	elevField, err := rbf.Fit(elev, opts)
	if err != nil {
		return nil, fmt.Errorf("fit elevation: %w", err)
	}
	if err := rbf.ApplyElevation(g, elevField, cfg.Workers); err != nil {
		return nil, fmt.Errorf("apply elevation: %w", err)
	}

	if len(wet) > 0 {
		wetField, err := rbf.Fit(wet, opts)
		if err != nil {
			return nil, fmt.Errorf("fit moisture: %w", err)
		}
		if err := rbf.ApplyMoisture(g, wetField, cfg.Workers); err != nil {
			return nil, fmt.Errorf("apply moisture: %w", err)
		}
	} else {
		mc := propagate.DefaultMoistureConfig()
		mc.SeaLevel = cfg.SeaLevel
		if cfg.Decay > 0 {
			mc.Decay = cfg.Decay
		}
		mc.Seed = int64(cfg.Seed) + 7
		mc.Workers = cfg.Workers
		if err := propagate.DiffuseMoisture(g, mc); err != nil {
			return nil, fmt.Errorf("diffuse moisture: %w", err)
		}
	}

	// ── Propagation ───────────────────────────────────────────────────
	if err := propagate.ResolveFlow(g, cfg.Workers); err != nil {
		return nil, fmt.Errorf("resolve flow: %w", err)
	}
	if err := propagate.Classify(g, cfg.Rules(), cfg.Workers); err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	// ── Raster ────────────────────────────────────────────────────────
	if cfg.Width > 0 {
		buf, err := raster.Rasterize(g, cfg.Width, cfg.Height, raster.Options{Workers: cfg.Workers})
		if err != nil {
			return nil, fmt.Errorf("rasterize: %w", err)
		}
		w.Raster = buf
	}

	w.Elapsed = time.Since(start)
	slog.Info("world generated",
		"id", w.ID,
		"seed", cfg.Seed,
		"cells", g.Len(),
		"controls", len(w.Controls),
		"sinks", len(propagate.Sinks(g)),
		"elapsed", w.Elapsed.Round(time.Millisecond),
	)
	return w, nil
}

// resolveControls splits the configured controls by field and synthesizes
// whatever is missing.
func (cfg GenConfig) resolveControls() (elev, wet []rbf.ControlPoint, err error) {
	byField := rbf.Split(cfg.Controls)
	elev = byField[rbf.FieldElevation]
	wet = byField[rbf.FieldMoisture]

	if len(elev) == 0 {
		pc := controls.DefaultPeakConfig()
		pc.Count = cfg.Peaks
		pc.Distribution = cfg.Distribution
		peaks, err := controls.Peaks(int64(cfg.Seed)+3, cfg.Bounds, pc)
		if err != nil {
			return nil, nil, fmt.Errorf("synthesize peaks: %w", err)
		}
		elev = append(peaks, controls.Anchors(cfg.Bounds, 0)...)
	}
	if len(wet) == 0 && cfg.MoistureSources > 0 {
		wet, err = controls.MoistureSources(int64(cfg.Seed)+5, cfg.MoistureSources, cfg.Bounds)
		if err != nil {
			return nil, nil, fmt.Errorf("synthesize moisture sources: %w", err)
		}
	}
	return elev, wet, nil
}
