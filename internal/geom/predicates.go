package geom

import (
	"math"
	"math/big"
)

// Error bounds for the float filters, after Shewchuk's adaptive predicates.
// epsilon is half an ulp of 1.
const (
	epsilon       = 1.0 / (1 << 53)
	orientBound   = (3 + 16*epsilon) * epsilon
	inCircleBound = (10 + 96*epsilon) * epsilon
)

// OrientSign returns the exact sign of Orient(a, b, c).
// The float result is trusted when it clears its error bound; otherwise the
// determinant is recomputed with rationals.
func OrientSign(a, b, c Point) int {
	l := (b.X - a.X) * (c.Y - a.Y)
	r := (b.Y - a.Y) * (c.X - a.X)
	det := l - r
	if math.Abs(det) > orientBound*(math.Abs(l)+math.Abs(r)) {
		return sign(det)
	}
	bx, by := diff(b.X, a.X), diff(b.Y, a.Y)
	cx, cy := diff(c.X, a.X), diff(c.Y, a.Y)
	return new(big.Rat).Mul(bx, cy).Cmp(new(big.Rat).Mul(by, cx))
}

// InCircleSign returns the exact sign of InCircle(a, b, c, d): 1 when d is
// strictly inside the circumcircle of the CCW triangle (a, b, c), -1 when
// outside and 0 when the four points are co-circular.
func InCircleSign(a, b, c, d Point) int {
	ax, ay := a.X-d.X, a.Y-d.Y
	bx, by := b.X-d.X, b.Y-d.Y
	cx, cy := c.X-d.X, c.Y-d.Y
	alift := ax*ax + ay*ay
	blift := bx*bx + by*by
	clift := cx*cx + cy*cy
	det := alift*(bx*cy-cx*by) - blift*(ax*cy-cx*ay) + clift*(ax*by-bx*ay)
	perm := alift*(math.Abs(bx*cy)+math.Abs(cx*by)) +
		blift*(math.Abs(ax*cy)+math.Abs(cx*ay)) +
		clift*(math.Abs(ax*by)+math.Abs(bx*ay))
	if math.Abs(det) > inCircleBound*perm {
		return sign(det)
	}
	return inCircleExact(a, b, c, d)
}

func inCircleExact(a, b, c, d Point) int {
	ax, ay := diff(a.X, d.X), diff(a.Y, d.Y)
	bx, by := diff(b.X, d.X), diff(b.Y, d.Y)
	cx, cy := diff(c.X, d.X), diff(c.Y, d.Y)

	lift := func(x, y *big.Rat) *big.Rat {
		s := new(big.Rat).Mul(x, x)
		return s.Add(s, new(big.Rat).Mul(y, y))
	}
	cross := func(px, py, qx, qy *big.Rat) *big.Rat {
		s := new(big.Rat).Mul(px, qy)
		return s.Sub(s, new(big.Rat).Mul(qx, py))
	}

	det := new(big.Rat).Mul(lift(ax, ay), cross(bx, by, cx, cy))
	det.Sub(det, new(big.Rat).Mul(lift(bx, by), cross(ax, ay, cx, cy)))
	det.Add(det, new(big.Rat).Mul(lift(cx, cy), cross(ax, ay, bx, by)))
	return det.Sign()
}

// diff returns x-y exactly. Both inputs must be finite.
func diff(x, y float64) *big.Rat {
	r := new(big.Rat).SetFloat64(x)
	return r.Sub(r, new(big.Rat).SetFloat64(y))
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
