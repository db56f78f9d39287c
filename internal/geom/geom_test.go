package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRect(t *testing.T) {
	r := NewRect(0, 0, 100, 50)
	assert.Equal(t, 100.0, r.Width())
	assert.Equal(t, 50.0, r.Height())
	assert.Equal(t, 5000.0, r.Area())
	assert.Equal(t, Point{50, 25}, r.Center())

	assert.True(t, r.Contains(Point{1, 1}))
	assert.False(t, r.Contains(Point{0, 10}), "border is not strictly inside")
	assert.True(t, r.ContainsClosed(Point{0, 10}))
	assert.False(t, r.ContainsClosed(Point{-1, 10}))

	assert.Zero(t, NewRect(0, 0, 0, 10).Area())
	assert.Zero(t, NewRect(5, 5, 1, 1).Area())

	assert.InDelta(t, r.Area(), Area(r.Polygon()), 1e-9)
}

func TestInset(t *testing.T) {
	r := NewRect(0, 0, 10, 10)
	p := r.Inset(Point{-3, 12}, 0.5)
	assert.Equal(t, Point{0.5, 9.5}, p)
	assert.True(t, r.Contains(p))
	assert.Equal(t, Point{4, 4}, r.Inset(Point{4, 4}, 0.5))
}

func TestClampLerp(t *testing.T) {
	assert.Equal(t, 3, Clamp(7, 0, 3))
	assert.Equal(t, 0.0, Clamp(-1.5, 0, 1))
	assert.Equal(t, 0.25, Clamp(0.25, 0, 1))
	assert.Equal(t, 5.0, Lerp(0.0, 10.0, 0.5))
}

func TestOrientAndInCircle(t *testing.T) {
	a, b, c := Point{0, 0}, Point{1, 0}, Point{0, 1}
	assert.Positive(t, Orient(a, b, c))
	assert.Negative(t, Orient(a, c, b))
	assert.Zero(t, Orient(a, b, Point{2, 0}))

	assert.Positive(t, InCircle(a, b, c, Point{0.4, 0.4}))
	assert.Negative(t, InCircle(a, b, c, Point{3, 3}))
	assert.InDelta(t, 0, InCircle(a, b, c, Point{1, 1}), 1e-12)
}

func TestExactPredicates(t *testing.T) {
	const o = 1e6
	a, b, c := Point{o, o}, Point{o + 2, o}, Point{o + 2, o + 2}

	assert.Zero(t, OrientSign(a, Point{o + 1, o + 1}, Point{o + 3, o + 3}))
	above := Point{o + 3, math.Nextafter(o+3, math.Inf(1))}
	assert.Equal(t, 1, OrientSign(a, Point{o + 1, o + 1}, above))
	assert.Equal(t, -1, OrientSign(Point{o + 1, o + 1}, a, above))

	assert.Zero(t, InCircleSign(a, b, c, Point{o, o + 2}), "square corners are co-circular")
	assert.Equal(t, 1, InCircleSign(a, b, c, Point{o, math.Nextafter(o+2, 0)}))
	assert.Equal(t, -1, InCircleSign(a, b, c, Point{o, math.Nextafter(o+2, math.Inf(1))}))

	assert.Equal(t, 1, InCircleSign(a, b, c, Point{o + 1, o + 1}))
	assert.Equal(t, -1, InCircleSign(a, b, c, Point{o + 10, o + 10}))
}

func TestCircumcenter(t *testing.T) {
	cc, ok := Circumcenter(Point{0, 0}, Point{2, 0}, Point{0, 2})
	require.True(t, ok)
	assert.InDelta(t, 1, cc.X, 1e-12)
	assert.InDelta(t, 1, cc.Y, 1e-12)

	_, ok = Circumcenter(Point{0, 0}, Point{1, 1}, Point{2, 2})
	assert.False(t, ok)
}

func TestAreaAndCentroid(t *testing.T) {
	sq := []Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}}
	assert.Equal(t, 4.0, Area(sq))
	assert.Equal(t, Point{1, 1}, Centroid(sq))

	cw := []Point{{0, 0}, {0, 2}, {2, 2}, {2, 0}}
	assert.Equal(t, -4.0, Area(cw))

	assert.True(t, IsConvexCCW(sq, 1e-12))
	assert.False(t, IsConvexCCW(cw, 1e-12))
	assert.False(t, IsConvexCCW([]Point{{0, 0}, {2, 0}, {1, 0.2}, {2, 2}, {0, 2}}, 1e-12))

	assert.True(t, ContainsPoint(sq, Point{1, 1}, 0))
	assert.True(t, ContainsPoint(sq, Point{2, 1}, 1e-12))
	assert.False(t, ContainsPoint(sq, Point{3, 1}, 1e-12))
}

func TestClip(t *testing.T) {
	sq := NewRect(0, 0, 2, 2).Polygon()

	h := Bisector(Point{0.5, 1}, Point{1.5, 1}) // keeps x <= 1
	out, clipped := Clip(sq, h)
	require.True(t, clipped)
	assert.InDelta(t, 2, Area(out), 1e-12)
	assert.True(t, IsConvexCCW(out, 1e-12))
	for _, p := range out {
		assert.LessOrEqual(t, p.X, 1+1e-12)
	}

	far := Bisector(Point{1, 1}, Point{10, 1})
	out, clipped = Clip(sq, far)
	assert.False(t, clipped)
	assert.Len(t, out, 4)

	away := Bisector(Point{10, 1}, Point{1, 1})
	out, _ = Clip(sq, away)
	assert.Less(t, len(out), 3)
}

func TestPointHelpers(t *testing.T) {
	a, b := Point{3, 4}, Point{0, 0}
	assert.Equal(t, 5.0, a.Dist(b))
	assert.Equal(t, 25.0, a.Len2())
	assert.True(t, b.Less(a))
	assert.False(t, a.Less(a))
	assert.True(t, a.IsFinite())
	assert.False(t, Point{math.NaN(), 0}.IsFinite())
	assert.False(t, Point{0, math.Inf(1)}.IsFinite())
}
