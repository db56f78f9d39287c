package world

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/worldgen/internal/failure"
	"github.com/talgya/worldgen/internal/geom"
	"github.com/talgya/worldgen/internal/rbf"
	"github.com/talgya/worldgen/internal/sampler"
	"github.com/talgya/worldgen/internal/voronoi"
)

// peakConfig raises a single Gaussian peak at the center. The zero anchors
// sit far outside the map, so inside it the field falls off with distance
// from the peak alone.
func peakConfig() GenConfig {
	cfg := SmallTestConfig()
	cfg.KernelWidth = 30
	cfg.Controls = []rbf.ControlPoint{
		{Pos: geom.Point{X: 50, Y: 50}, Value: 1},
		{Pos: geom.Point{X: -2000, Y: -2000}},
		{Pos: geom.Point{X: 2100, Y: -2000}},
		{Pos: geom.Point{X: 50, Y: 2100}},
	}
	return cfg
}

func TestGenerateSinglePeak(t *testing.T) {
	w, err := Generate(peakConfig())
	require.NoError(t, err)
	g := w.Graph
	require.Equal(t, 50, g.Len())
	assert.Len(t, w.Controls, 4)

	peak := geom.Point{X: 50, Y: 50}
	center := g.Nearest(peak)
	assert.Equal(t, center, Highest(g))

	// Every cell but the peak has a strictly higher neighbor, so a strictly
	// ascending walk along neighbors leads from any cell to the peak.
	for i := range g.Cells {
		if i == center {
			continue
		}
		c := &g.Cells[i]
		higher := false
		for _, n := range c.Neighbors {
			if g.Cells[n].Attr.Elevation > c.Attr.Elevation {
				higher = true
				break
			}
		}
		assert.True(t, higher, "cell %d (elevation %.4f) is a local maximum", i, c.Attr.Elevation)
	}
	for i := range g.Cells {
		steps := 0
		for cur := i; cur != center; steps++ {
			require.Less(t, steps, g.Len(), "ascent from cell %d does not reach the peak", i)
			best := cur
			for _, n := range g.Cells[cur].Neighbors {
				if g.Cells[n].Attr.Elevation > g.Cells[best].Attr.Elevation {
					best = n
				}
			}
			require.NotEqual(t, cur, best, "ascent from cell %d stalls at %d", i, cur)
			cur = best
		}
	}

	// Elevation orders cells by their distance from the peak.
	for i := range g.Cells {
		for j := range g.Cells {
			di, dj := g.Cells[i].Site.Dist(peak), g.Cells[j].Site.Dist(peak)
			if di+1e-9 < dj {
				assert.Greater(t, g.Cells[i].Attr.Elevation, g.Cells[j].Attr.Elevation, "cells %d and %d", i, j)
			}
		}
	}

	for i := range g.Cells {
		assert.Equal(t, voronoi.Classified, g.Cells[i].Attr.State)
	}
	require.NotNil(t, w.Raster)
	assert.Equal(t, 64*64, w.Raster.Coverage())
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := SmallTestConfig()
	cfg.Count = 200
	a, err := Generate(cfg)
	require.NoError(t, err)
	cfg.Workers = 7
	b, err := Generate(cfg)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Graph.Cells, b.Graph.Cells)
	assert.Equal(t, a.Graph.Corners, b.Graph.Corners)
	assert.Equal(t, a.Raster, b.Raster)
	assert.Equal(t, a.Controls, b.Controls)

	cfg.Seed++
	c, err := Generate(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.Graph.Cells, c.Graph.Cells)
}

func TestGenerateVariants(t *testing.T) {
	cfg := SmallTestConfig()
	cfg.Count = 300
	cfg.Sampling = sampler.BlueNoise
	cfg.Relax = 2
	cfg.Kernel = rbf.ThinPlate
	cfg.MoistureSources = 6
	cfg.Width, cfg.Height = 0, 0

	w, err := Generate(cfg)
	require.NoError(t, err)
	assert.Nil(t, w.Raster)
	assert.Len(t, w.Controls, cfg.Peaks+8+cfg.MoistureSources)
	assert.NoError(t, w.Graph.Validate())

	s := w.Summarize()
	assert.Equal(t, 300, s.Cells)
	assert.Equal(t, w.ID, s.ID)
	total := 0
	for _, n := range s.Biomes {
		total += n
	}
	assert.Equal(t, 300, total)
	assert.Positive(t, s.Sinks)
	assert.GreaterOrEqual(t, s.MaxFlow, 1)
	assert.True(t, s.Land >= 0 && s.Land <= 1)

	table := BiomeTable(w.Graph)
	for i := 1; i < len(table); i++ {
		assert.GreaterOrEqual(t, table[i-1].Count, table[i].Count)
	}
}

func TestGenerateErrors(t *testing.T) {
	cfg := SmallTestConfig()
	cfg.Count = 2
	_, err := Generate(cfg)
	assert.ErrorIs(t, err, failure.ErrDegenerateInput)

	cfg = peakConfig()
	cfg.Controls = append(cfg.Controls, rbf.ControlPoint{Pos: geom.Point{X: 50, Y: 50}, Value: 0.3})
	_, err = Generate(cfg)
	assert.ErrorIs(t, err, failure.ErrIllConditioned)
	var fe *failure.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 4, fe.ID)
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultGenConfig().Validate())
	require.NoError(t, SmallTestConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*GenConfig)
	}{
		{"zero count", func(c *GenConfig) { c.Count = 0 }},
		{"flat bounds", func(c *GenConfig) { c.Bounds = geom.NewRect(0, 0, 10, 0) }},
		{"too much relax", func(c *GenConfig) { c.Relax = sampler.MaxRelaxIterations + 1 }},
		{"negative peaks", func(c *GenConfig) { c.Peaks = -1 }},
		{"negative width", func(c *GenConfig) { c.KernelWidth = -1 }},
		{"decay", func(c *GenConfig) { c.Decay = 1.2 }},
		{"half resolution", func(c *GenConfig) { c.Height = 0 }},
		{"huge resolution", func(c *GenConfig) { c.Width = 1 << 20 }},
		{"unknown field", func(c *GenConfig) {
			c.Controls = []rbf.ControlPoint{{Field: "temperature"}}
		}},
		{"inverted levels", func(c *GenConfig) { c.SeaLevel = 0.99 }},
		{"soaked moisture control", func(c *GenConfig) {
			c.Controls = []rbf.ControlPoint{{Field: rbf.FieldMoisture, Value: 1.5}}
		}},
		{"negative moisture control", func(c *GenConfig) {
			c.Controls = []rbf.ControlPoint{{Field: rbf.FieldMoisture, Value: -0.1}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := SmallTestConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, failure.ErrInvalidParameter)
			_, err = Generate(cfg)
			assert.ErrorIs(t, err, failure.ErrInvalidParameter)
		})
	}
}

func TestValidateMoistureBounds(t *testing.T) {
	cfg := SmallTestConfig()
	cfg.Controls = []rbf.ControlPoint{
		{Pos: geom.Point{X: 10, Y: 10}, Value: 0, Field: rbf.FieldMoisture},
		{Pos: geom.Point{X: 90, Y: 10}, Value: 1, Field: rbf.FieldMoisture},
		{Pos: geom.Point{X: 50, Y: 90}, Value: 0.4, Field: rbf.FieldMoisture},
		{Pos: geom.Point{X: 50, Y: 50}, Value: 7},
	}
	assert.NoError(t, cfg.Validate())
}

func TestRules(t *testing.T) {
	cfg := SmallTestConfig()
	r := cfg.Rules()
	assert.Equal(t, 3, r.RiverThreshold)
	assert.Equal(t, cfg.SeaLevel, r.SeaLevel)

	cfg.Count = 4000
	assert.Equal(t, 100, cfg.Rules().RiverThreshold)

	cfg.RiverThreshold = 9
	cfg.MountainLvl = 0.7
	r = cfg.Rules()
	assert.Equal(t, 9, r.RiverThreshold)
	assert.InDelta(t, 0.7, r.MountainLevel, 1e-12)
	assert.Less(t, r.TundraLevel, r.MountainLevel)
	assert.Greater(t, r.SnowLevel, r.MountainLevel)
}

func TestLoadControls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "controls.json")
	body := `[{"pos":{"x":1,"y":2},"value":0.5,"field":"elevation"},{"pos":{"x":3,"y":4},"value":1,"field":"moisture"}]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cps, err := LoadControls(path)
	require.NoError(t, err)
	require.Len(t, cps, 2)
	assert.Equal(t, geom.Point{X: 1, Y: 2}, cps[0].Pos)
	assert.Equal(t, rbf.FieldMoisture, cps[1].Field)

	_, err = LoadControls(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
