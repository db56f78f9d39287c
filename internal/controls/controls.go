// Package controls synthesizes the sparse control points that anchor the
// interpolated fields: mountain peaks, sea-level anchors along the bounds,
// and optional moisture sources.
package controls

import (
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/worldgen/internal/failure"
	"github.com/talgya/worldgen/internal/geom"
	"github.com/talgya/worldgen/internal/rbf"
)

// Distribution selects where peaks are placed.
type Distribution string

const (
	// CenteredRandom averages two uniform draws per axis, so peaks cluster
	// toward the middle of the map and the edges stay low.
	CenteredRandom Distribution = "centered"
	// UniformRandom spreads peaks evenly over the inset bounds.
	UniformRandom Distribution = "uniform"
)

// PeakConfig tunes Peaks.
type PeakConfig struct {
	Count        int
	Distribution Distribution
	MinHeight    float64 // Peak heights fall in [MinHeight, MaxHeight]
	MaxHeight    float64
	Margin       float64 // Fraction of each side kept free of peaks
	Jitter       float64 // Simplex displacement, as a fraction of the bounds diagonal
}

// DefaultPeakConfig mirrors the generator's default of 20 centered peaks.
func DefaultPeakConfig() PeakConfig {
	return PeakConfig{
		Count:        20,
		Distribution: CenteredRandom,
		MinHeight:    0.55,
		MaxHeight:    1.0,
		Margin:       0.1,
		Jitter:       0.03,
	}
}

// Peaks places cfg.Count elevation peaks inside bounds. Heights come from
// layered simplex noise at each peak. Positions are distinct.
func Peaks(seed int64, bounds geom.Rect, cfg PeakConfig) ([]rbf.ControlPoint, error) {
	const op = "controls.Peaks"
	if cfg.Count < 0 {
		return nil, failure.New(failure.ErrInvalidParameter, op, failure.NoID, "peak count must be >= 0, got %d", cfg.Count)
	}
	if cfg.MinHeight > cfg.MaxHeight {
		return nil, failure.New(failure.ErrInvalidParameter, op, failure.NoID,
			"min height %g above max height %g", cfg.MinHeight, cfg.MaxHeight)
	}
	if cfg.Margin < 0 || cfg.Margin >= 0.5 {
		return nil, failure.New(failure.ErrInvalidParameter, op, failure.NoID, "margin must be in [0,0.5), got %g", cfg.Margin)
	}
	if bounds.Area() <= 0 {
		return nil, failure.New(failure.ErrInvalidParameter, op, failure.NoID, "bounds %v has no area", bounds)
	}

	rng := rand.New(rand.NewSource(seed))
	heightNoise := opensimplex.NewNormalized(seed + 1)
	jitterX := opensimplex.New(seed + 2)
	jitterY := opensimplex.New(seed + 3)

	inner := geom.Rect{
		Min: geom.Point{X: bounds.Min.X + cfg.Margin*bounds.Width(), Y: bounds.Min.Y + cfg.Margin*bounds.Height()},
		Max: geom.Point{X: bounds.Max.X - cfg.Margin*bounds.Width(), Y: bounds.Max.Y - cfg.Margin*bounds.Height()},
	}
	diag := bounds.Diagonal()
	freq := 3 / diag

	draw := func() float64 { return rng.Float64() }
	if cfg.Distribution == CenteredRandom || cfg.Distribution == "" {
		draw = func() float64 { return (rng.Float64() + rng.Float64()) / 2 }
	} else if cfg.Distribution != UniformRandom {
		return nil, failure.New(failure.ErrInvalidParameter, op, failure.NoID, "unknown distribution %q", cfg.Distribution)
	}

	seen := make(map[geom.Point]bool, cfg.Count)
	out := make([]rbf.ControlPoint, 0, cfg.Count)
	for len(out) < cfg.Count {
		p := geom.Point{
			X: geom.Lerp(inner.Min.X, inner.Max.X, draw()),
			Y: geom.Lerp(inner.Min.Y, inner.Max.Y, draw()),
		}
		// Low-frequency displacement keeps nearby peaks from lining up on
		// the raw random grid.
		p.X += cfg.Jitter * diag * jitterX.Eval2(p.X*freq, p.Y*freq)
		p.Y += cfg.Jitter * diag * jitterY.Eval2(p.X*freq, p.Y*freq)
		p = bounds.Inset(p, 1e-9*diag)
		if seen[p] {
			continue
		}
		seen[p] = true

		h := octaveNoise(heightNoise, p.X, p.Y, 3, freq, 0.5)
		out = append(out, rbf.ControlPoint{
			Pos:   p,
			Value: geom.Lerp(cfg.MinHeight, cfg.MaxHeight, h),
			Field: rbf.FieldElevation,
		})
	}
	return out, nil
}

// Anchors pins the field to value at the four corners and the midpoint of
// every side of bounds, which pulls the map edges down to sea.
func Anchors(bounds geom.Rect, value float64) []rbf.ControlPoint {
	c := bounds.Center()
	pts := []geom.Point{
		bounds.Min,
		{X: c.X, Y: bounds.Min.Y},
		{X: bounds.Max.X, Y: bounds.Min.Y},
		{X: bounds.Max.X, Y: c.Y},
		bounds.Max,
		{X: c.X, Y: bounds.Max.Y},
		{X: bounds.Min.X, Y: bounds.Max.Y},
		{X: bounds.Min.X, Y: c.Y},
	}
	out := make([]rbf.ControlPoint, len(pts))
	for i, p := range pts {
		out[i] = rbf.ControlPoint{Pos: p, Value: value, Field: rbf.FieldElevation}
	}
	return out
}

// MoistureSources scatters count moisture controls with values in [0, 1]
// drawn from simplex noise.
func MoistureSources(seed int64, count int, bounds geom.Rect) ([]rbf.ControlPoint, error) {
	const op = "controls.MoistureSources"
	if count < 0 {
		return nil, failure.New(failure.ErrInvalidParameter, op, failure.NoID, "count must be >= 0, got %d", count)
	}
	rng := rand.New(rand.NewSource(seed))
	noise := opensimplex.NewNormalized(seed + 1)
	freq := 2 / bounds.Diagonal()

	seen := make(map[geom.Point]bool, count)
	out := make([]rbf.ControlPoint, 0, count)
	for len(out) < count {
		p := geom.Point{
			X: geom.Lerp(bounds.Min.X, bounds.Max.X, rng.Float64()),
			Y: geom.Lerp(bounds.Min.Y, bounds.Max.Y, rng.Float64()),
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, rbf.ControlPoint{
			Pos:   p,
			Value: octaveNoise(noise, p.X, p.Y, 2, freq, 0.5),
			Field: rbf.FieldMoisture,
		})
	}
	return out, nil
}

// octaveNoise layers octaves of simplex noise. The result stays in [0, 1]
// for a normalized source.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return geom.Clamp(total/maxVal, 0, 1)
}
