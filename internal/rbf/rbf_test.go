package rbf

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/worldgen/internal/delaunay"
	"github.com/talgya/worldgen/internal/failure"
	"github.com/talgya/worldgen/internal/geom"
	"github.com/talgya/worldgen/internal/voronoi"
)

func scattered(seed int64, n int) []ControlPoint {
	rng := rand.New(rand.NewSource(seed))
	out := make([]ControlPoint, n)
	for i := range out {
		out[i] = ControlPoint{
			Pos:   geom.Point{X: rng.Float64() * 100, Y: rng.Float64() * 100},
			Value: rng.Float64()*2 - 1,
			Field: FieldElevation,
		}
	}
	return out
}

func TestExactAtControls(t *testing.T) {
	for _, k := range []Kernel{Gaussian, ThinPlate} {
		t.Run(string(k), func(t *testing.T) {
			cps := scattered(1, 25)
			f, err := Fit(cps, Options{Kernel: k, Width: 15})
			require.NoError(t, err)
			assert.Equal(t, k, f.Kernel())
			for i, c := range cps {
				assert.InDelta(t, c.Value, f.Evaluate(c.Pos), 1e-6, "control %d", i)
			}
		})
	}
}

func TestPeakFalloff(t *testing.T) {
	cps := []ControlPoint{
		{Pos: geom.Point{X: 50, Y: 50}, Value: 1},
		{Pos: geom.Point{X: 0, Y: 0}},
		{Pos: geom.Point{X: 100, Y: 0}},
		{Pos: geom.Point{X: 100, Y: 100}},
		{Pos: geom.Point{X: 0, Y: 100}},
	}
	f, err := Fit(cps, Options{})
	require.NoError(t, err)
	assert.InDelta(t, geom.NewRect(0, 0, 100, 100).Diagonal()/4, f.Width(), 1e-9)

	prev := f.Evaluate(geom.Point{X: 50, Y: 50})
	for r := 5.0; r <= 45; r += 5 {
		v := f.Evaluate(geom.Point{X: 50 + r, Y: 50})
		assert.Less(t, v, prev, "field must fall off with distance at r=%g", r)
		prev = v
	}
}

func TestThinPlateReproducesPlane(t *testing.T) {
	plane := func(p geom.Point) float64 { return 0.5 + 0.02*p.X - 0.01*p.Y }
	cps := scattered(2, 12)
	for i := range cps {
		cps[i].Value = plane(cps[i].Pos)
	}
	f, err := Fit(cps, Options{Kernel: ThinPlate})
	require.NoError(t, err)
	for _, p := range []geom.Point{{X: 10, Y: 90}, {X: 55, Y: 5}, {X: 33, Y: 33}} {
		assert.InDelta(t, plane(p), f.Evaluate(p), 1e-6)
	}
}

func TestDuplicateControls(t *testing.T) {
	cps := scattered(3, 6)
	cps[4].Pos = cps[1].Pos
	cps[4].Value = cps[1].Value + 1
	_, err := Fit(cps, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrIllConditioned)
	id, ok := failure.CellID(err)
	assert.True(t, ok)
	assert.Equal(t, 4, id)
}

func TestNearDuplicateControls(t *testing.T) {
	cps := scattered(3, 6)
	// One ulp apart: distinct positions, numerically identical kernel rows.
	cps[4].Pos = geom.Point{X: math.Nextafter(cps[1].Pos.X, math.Inf(1)), Y: cps[1].Pos.Y}
	cps[4].Value = cps[1].Value + 1
	_, err := Fit(cps, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrIllConditioned)
	assert.Contains(t, err.Error(), "condition number")
}

func TestTooFewControls(t *testing.T) {
	_, err := Fit(scattered(4, 2), Options{})
	assert.ErrorIs(t, err, failure.ErrIllConditioned)
	_, err = Fit(nil, Options{})
	assert.ErrorIs(t, err, failure.ErrIllConditioned)
}

func TestSingularThinPlate(t *testing.T) {
	// Collinear controls leave the affine tail undetermined.
	cps := []ControlPoint{
		{Pos: geom.Point{X: 0, Y: 0}, Value: 1},
		{Pos: geom.Point{X: 1, Y: 1}, Value: 2},
		{Pos: geom.Point{X: 2, Y: 2}, Value: 3},
	}
	_, err := Fit(cps, Options{Kernel: ThinPlate})
	assert.ErrorIs(t, err, failure.ErrIllConditioned)
}

func TestUnknownKernel(t *testing.T) {
	_, err := Fit(scattered(5, 5), Options{Kernel: "cubic"})
	assert.ErrorIs(t, err, failure.ErrInvalidParameter)
}

func TestSplit(t *testing.T) {
	cps := []ControlPoint{
		{Value: 1},
		{Value: 2, Field: FieldMoisture},
		{Value: 3, Field: FieldElevation},
	}
	by := Split(cps)
	require.Len(t, by[FieldElevation], 2)
	assert.Equal(t, 1.0, by[FieldElevation][0].Value)
	assert.Equal(t, 3.0, by[FieldElevation][1].Value)
	assert.Len(t, by[FieldMoisture], 1)
}

func TestApplyStates(t *testing.T) {
	sites := make([]geom.Site, 30)
	rng := rand.New(rand.NewSource(8))
	for i := range sites {
		sites[i] = geom.Site{ID: i, Pos: geom.Point{X: 1 + rng.Float64()*98, Y: 1 + rng.Float64()*98}}
	}
	tri, err := delaunay.Triangulate(sites)
	require.NoError(t, err)
	g, err := voronoi.Build(tri, geom.NewRect(0, 0, 100, 100), 2)
	require.NoError(t, err)

	wet, err := Fit([]ControlPoint{
		{Pos: geom.Point{X: 0, Y: 0}, Value: 5},
		{Pos: geom.Point{X: 100, Y: 0}, Value: -5},
		{Pos: geom.Point{X: 50, Y: 100}, Value: 0.5},
	}, Options{})
	require.NoError(t, err)

	assert.ErrorIs(t, ApplyMoisture(g, wet, 2), failure.ErrAttributeMissing)

	elev, err := Fit(scattered(6, 8), Options{})
	require.NoError(t, err)
	require.NoError(t, ApplyElevation(g, elev, 2))
	for i := range g.Cells {
		c := &g.Cells[i]
		assert.Equal(t, voronoi.ElevationSet, c.Attr.State)
		assert.Equal(t, elev.Evaluate(c.Site), c.Attr.Elevation)
	}
	assert.ErrorIs(t, ApplyElevation(g, elev, 2), failure.ErrAttributeMissing)

	require.NoError(t, ApplyMoisture(g, wet, 2))
	for i := range g.Cells {
		m := g.Cells[i].Attr.Moisture
		assert.True(t, m >= 0 && m <= 1, "moisture %g out of range", m)
		assert.Equal(t, voronoi.MoistureSet, g.Cells[i].Attr.State)
	}
}
