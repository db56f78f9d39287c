// Package rbf fits radial-basis-function fields through scattered control
// points and evaluates them at cell sites.
package rbf

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/talgya/worldgen/internal/failure"
	"github.com/talgya/worldgen/internal/geom"
)

// Field names used to tag control points.
const (
	FieldElevation = "elevation"
	FieldMoisture  = "moisture"
)

// MinControls is the smallest control set Fit accepts.
const MinControls = 3

// maxCondition is the largest LU condition estimate Fit accepts. Past it the
// weights no longer reproduce the control values reliably.
const maxCondition = 1e14

// ControlPoint anchors a field value at a position.
type ControlPoint struct {
	Pos   geom.Point `json:"pos"`
	Value float64    `json:"value"`
	Field string     `json:"field"`
}

// Kernel selects the radial basis function.
type Kernel string

const (
	Gaussian  Kernel = "gaussian"   // exp(-(r/w)²), positive definite
	ThinPlate Kernel = "thin-plate" // r² log r with an affine tail
)

// Options tunes Fit.
type Options struct {
	Kernel Kernel
	// Width is the Gaussian length scale. Zero derives it from the spread of
	// the control points (a quarter of their bounding-box diagonal).
	Width float64
}

// Field is a fitted scalar field. It is immutable after Fit and safe for
// concurrent Evaluate calls.
type Field struct {
	kernel  Kernel
	width   float64
	centers []geom.Point
	weights []float64
	affine  [3]float64 // c0 + c1*x + c2*y, thin-plate only
}

// Fit solves for the weights that make the field pass exactly through every
// control value.
func Fit(controls []ControlPoint, opts Options) (*Field, error) {
	const op = "rbf.Fit"
	n := len(controls)
	if n < MinControls {
		return nil, failure.New(failure.ErrIllConditioned, op, failure.NoID,
			"need at least %d control points, got %d", MinControls, n)
	}
	if i, j, ok := duplicate(controls); ok {
		return nil, failure.New(failure.ErrIllConditioned, op, j,
			"control %d duplicates control %d at %v (values %g, %g)",
			j, i, controls[i].Pos, controls[i].Value, controls[j].Value)
	}

	kernel := opts.Kernel
	if kernel == "" {
		kernel = Gaussian
	}
	f := &Field{kernel: kernel, centers: make([]geom.Point, n)}
	for i, c := range controls {
		if !c.Pos.IsFinite() || math.IsNaN(c.Value) || math.IsInf(c.Value, 0) {
			return nil, failure.New(failure.ErrIllConditioned, op, i, "non-finite control %v=%g", c.Pos, c.Value)
		}
		f.centers[i] = c.Pos
	}

	switch kernel {
	case Gaussian:
		f.width = opts.Width
		if f.width <= 0 {
			f.width = defaultWidth(f.centers)
		}
		if f.width <= 0 {
			return nil, failure.New(failure.ErrIllConditioned, op, failure.NoID, "control points have no spread")
		}
		a := mat.NewDense(n, n, nil)
		b := make([]float64, n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				a.Set(i, j, f.phi(f.centers[i].Dist(f.centers[j])))
			}
			b[i] = controls[i].Value
		}
		x, err := solve(a, b)
		if err != nil {
			return nil, err
		}
		f.weights = x

	case ThinPlate:
		// [Φ P; Pᵀ 0] [w; c] = [v; 0]
		m := n + 3
		a := mat.NewDense(m, m, nil)
		b := make([]float64, m)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				a.Set(i, j, f.phi(f.centers[i].Dist(f.centers[j])))
			}
			p := [3]float64{1, f.centers[i].X, f.centers[i].Y}
			for k := 0; k < 3; k++ {
				a.Set(i, n+k, p[k])
				a.Set(n+k, i, p[k])
			}
			b[i] = controls[i].Value
		}
		x, err := solve(a, b)
		if err != nil {
			return nil, err
		}
		f.weights = x[:n]
		copy(f.affine[:], x[n:])

	default:
		return nil, failure.New(failure.ErrInvalidParameter, op, failure.NoID, "unknown kernel %q", kernel)
	}
	return f, nil
}

// Evaluate returns the field value at p.
func (f *Field) Evaluate(p geom.Point) float64 {
	sum := 0.0
	for i, c := range f.centers {
		sum += f.weights[i] * f.phi(c.Dist(p))
	}
	if f.kernel == ThinPlate {
		sum += f.affine[0] + f.affine[1]*p.X + f.affine[2]*p.Y
	}
	return sum
}

// Kernel returns the kernel the field was fitted with.
func (f *Field) Kernel() Kernel { return f.kernel }

// Width returns the Gaussian length scale (zero for thin-plate fields).
func (f *Field) Width() float64 { return f.width }

func (f *Field) phi(r float64) float64 {
	switch f.kernel {
	case ThinPlate:
		if r == 0 {
			return 0
		}
		return r * r * math.Log(r)
	default:
		s := r / f.width
		return math.Exp(-s * s)
	}
}

func defaultWidth(pts []geom.Point) float64 {
	lo, hi := pts[0], pts[0]
	for _, p := range pts[1:] {
		lo = geom.Point{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y)}
		hi = geom.Point{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y)}
	}
	return lo.Dist(hi) / 4
}

// duplicate finds two controls at identical coordinates.
func duplicate(controls []ControlPoint) (int, int, bool) {
	idx := make([]int, len(controls))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		pa, pb := controls[idx[a]].Pos, controls[idx[b]].Pos
		if pa.Equal(pb) {
			return idx[a] < idx[b]
		}
		return pa.Less(pb)
	})
	for k := 1; k < len(idx); k++ {
		if controls[idx[k-1]].Pos.Equal(controls[idx[k]].Pos) {
			return idx[k-1], idx[k], true
		}
	}
	return 0, 0, false
}

// solve factorizes a with partial-pivoting LU and solves a·x = b.
// Singular or near-singular systems are reported as ill-conditioned.
func solve(a *mat.Dense, b []float64) ([]float64, error) {
	const op = "rbf.Fit"
	if mat.Norm(a, 1) == 0 {
		return nil, failure.New(failure.ErrIllConditioned, op, failure.NoID, "system matrix is zero")
	}

	var lu mat.LU
	lu.Factorize(a)
	if c := lu.Cond(); !(c <= maxCondition) {
		return nil, failure.New(failure.ErrIllConditioned, op, failure.NoID,
			"system condition number %.3g exceeds %.0e", c, maxCondition)
	}

	x := mat.NewVecDense(len(b), nil)
	if err := lu.SolveVecTo(x, false, mat.NewVecDense(len(b), b)); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, failure.New(failure.ErrIllConditioned, op, failure.NoID,
				"system condition number %.3g", float64(cond))
		}
		return nil, failure.New(failure.ErrIllConditioned, op, failure.NoID, "solve: %v", err)
	}
	return x.RawVector().Data, nil
}

// Split groups control points by field name, keeping their relative order.
func Split(controls []ControlPoint) map[string][]ControlPoint {
	out := make(map[string][]ControlPoint)
	for _, c := range controls {
		name := c.Field
		if name == "" {
			name = FieldElevation
		}
		out[name] = append(out[name], c)
	}
	return out
}
