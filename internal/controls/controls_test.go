package controls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/worldgen/internal/failure"
	"github.com/talgya/worldgen/internal/geom"
	"github.com/talgya/worldgen/internal/rbf"
)

var bounds = geom.NewRect(0, 0, 1000, 600)

func TestPeaks(t *testing.T) {
	for _, dist := range []Distribution{CenteredRandom, UniformRandom} {
		t.Run(string(dist), func(t *testing.T) {
			cfg := DefaultPeakConfig()
			cfg.Distribution = dist
			peaks, err := Peaks(7, bounds, cfg)
			require.NoError(t, err)
			require.Len(t, peaks, cfg.Count)

			seen := map[geom.Point]bool{}
			for _, p := range peaks {
				assert.True(t, bounds.Contains(p.Pos), "peak %v outside", p.Pos)
				assert.False(t, seen[p.Pos])
				seen[p.Pos] = true
				assert.GreaterOrEqual(t, p.Value, cfg.MinHeight)
				assert.LessOrEqual(t, p.Value, cfg.MaxHeight)
				assert.Equal(t, rbf.FieldElevation, p.Field)
			}

			again, err := Peaks(7, bounds, cfg)
			require.NoError(t, err)
			assert.Equal(t, peaks, again)

			other, err := Peaks(8, bounds, cfg)
			require.NoError(t, err)
			assert.NotEqual(t, peaks, other)
		})
	}
}

func TestPeaksCentered(t *testing.T) {
	cfg := DefaultPeakConfig()
	cfg.Count = 400
	cfg.Jitter = 0
	peaks, err := Peaks(3, bounds, cfg)
	require.NoError(t, err)

	// Averaged draws keep most peaks in the middle half of each axis.
	mid := 0
	for _, p := range peaks {
		if p.Pos.X > 250 && p.Pos.X < 750 {
			mid++
		}
	}
	assert.Greater(t, mid, len(peaks)*2/3)
}

func TestPeaksInvalid(t *testing.T) {
	cfg := DefaultPeakConfig()
	cfg.Count = -1
	_, err := Peaks(1, bounds, cfg)
	assert.ErrorIs(t, err, failure.ErrInvalidParameter)

	cfg = DefaultPeakConfig()
	cfg.MinHeight, cfg.MaxHeight = 1, 0.5
	_, err = Peaks(1, bounds, cfg)
	assert.ErrorIs(t, err, failure.ErrInvalidParameter)

	cfg = DefaultPeakConfig()
	cfg.Margin = 0.5
	_, err = Peaks(1, bounds, cfg)
	assert.ErrorIs(t, err, failure.ErrInvalidParameter)

	cfg = DefaultPeakConfig()
	cfg.Distribution = "ring"
	_, err = Peaks(1, bounds, cfg)
	assert.ErrorIs(t, err, failure.ErrInvalidParameter)

	_, err = Peaks(1, geom.NewRect(0, 0, 10, 0), DefaultPeakConfig())
	assert.ErrorIs(t, err, failure.ErrInvalidParameter)
}

func TestAnchors(t *testing.T) {
	anchors := Anchors(bounds, -0.2)
	require.Len(t, anchors, 8)
	seen := map[geom.Point]bool{}
	for _, a := range anchors {
		assert.True(t, bounds.ContainsClosed(a.Pos))
		assert.False(t, bounds.Contains(a.Pos), "anchor %v should sit on the border", a.Pos)
		assert.Equal(t, -0.2, a.Value)
		assert.False(t, seen[a.Pos])
		seen[a.Pos] = true
	}
}

func TestMoistureSources(t *testing.T) {
	src, err := MoistureSources(11, 30, bounds)
	require.NoError(t, err)
	require.Len(t, src, 30)
	for _, s := range src {
		assert.Equal(t, rbf.FieldMoisture, s.Field)
		assert.True(t, s.Value >= 0 && s.Value <= 1)
		assert.True(t, bounds.ContainsClosed(s.Pos))
	}

	none, err := MoistureSources(11, 0, bounds)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = MoistureSources(11, -1, bounds)
	assert.ErrorIs(t, err, failure.ErrInvalidParameter)
}

func TestPeaksFitWithAnchors(t *testing.T) {
	peaks, err := Peaks(5, bounds, DefaultPeakConfig())
	require.NoError(t, err)
	f, err := rbf.Fit(append(peaks, Anchors(bounds, 0)...), rbf.Options{Kernel: rbf.ThinPlate})
	require.NoError(t, err)
	assert.InDelta(t, 0, f.Evaluate(bounds.Min), 1e-6)
}
