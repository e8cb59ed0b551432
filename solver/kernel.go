package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// bspline is the 1D cubic B-spline interpolation kernel N(x). It is C1
// continuous with compact support on |x| < 2 and satisfies partition of
// unity on any integer-spaced sample set.
func bspline(x float64) float64 {
	x = math.Abs(x)
	switch {
	case x < 1:
		return 0.5*x*x*x - x*x + 2.0/3.0
	case x < 2:
		return -x*x*x/6.0 + x*x - 2*x + 4.0/3.0
	default:
		return 0
	}
}

// bsplineSlope is dN/dx.
func bsplineSlope(x float64) float64 {
	a := math.Abs(x)
	var d float64
	switch {
	case a < 1:
		d = 1.5*a*a - 2*a
	case a < 2:
		d = -0.5*a*a + 2*a - 2
	default:
		return 0
	}
	if x < 0 {
		return -d
	}
	return d
}

// weight evaluates the interpolation weight between a grid node and a world
// position: the product of the 1D kernel along each axis, in cell units.
func (s *Solver) weight(node *GridNode, pos mgl64.Vec3) float64 {
	return bspline((pos[0]-node.Position[0])*s.invh) *
		bspline((pos[1]-node.Position[1])*s.invh) *
		bspline((pos[2]-node.Position[2])*s.invh)
}

// nablaWeight is the analytic gradient of weight with respect to the particle
// position. The chain rule contributes a 1/h factor per differentiated axis.
func (s *Solver) nablaWeight(node *GridNode, pos mgl64.Vec3) mgl64.Vec3 {
	dx := (pos[0] - node.Position[0]) * s.invh
	dy := (pos[1] - node.Position[1]) * s.invh
	dz := (pos[2] - node.Position[2]) * s.invh

	nx := bspline(dx)
	ny := bspline(dy)
	nz := bspline(dz)

	return mgl64.Vec3{
		bsplineSlope(dx) * ny * nz,
		nx * bsplineSlope(dy) * nz,
		nx * ny * bsplineSlope(dz),
	}.Mul(s.invh)
}
