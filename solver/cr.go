package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// dotVec3 is the inner product of two velocity fields.
func dotVec3(a, b []mgl64.Vec3) float64 {
	var sum float64
	for i := range a {
		sum += a[i].Dot(b[i])
	}
	return sum
}

// conjugateResidual solves A·x = b for a symmetric operator given only its
// action, overwriting x with the solution. apply must write A·v into dst.
// The solve stops after maxIterations or once the residual norm drops below
// tolerance, and returns the number of iterations run.
func conjugateResidual(apply func(dst, v []mgl64.Vec3), x, b []mgl64.Vec3, maxIterations int, tolerance float64) int {
	n := len(x)

	r := make([]mgl64.Vec3, n)
	p := make([]mgl64.Vec3, n)
	ar := make([]mgl64.Vec3, n)
	ap := make([]mgl64.Vec3, n)

	// r = b - A·x
	apply(r, x)
	for i := range r {
		r[i] = b[i].Sub(r[i])
	}
	copy(p, r)

	apply(ar, r)
	copy(ap, ar)

	rAr := dotVec3(r, ar)

	for k := 0; k < maxIterations; k++ {
		if math.Sqrt(dotVec3(r, r)) <= tolerance {
			return k
		}

		apAp := dotVec3(ap, ap)
		if apAp == 0 {
			return k
		}
		alpha := rAr / apAp

		for i := range x {
			x[i] = x[i].Add(p[i].Mul(alpha))
			r[i] = r[i].Sub(ap[i].Mul(alpha))
		}

		apply(ar, r)
		rArNext := dotVec3(r, ar)
		if rAr == 0 {
			return k + 1
		}
		beta := rArNext / rAr
		rAr = rArNext

		for i := range p {
			p[i] = r[i].Add(p[i].Mul(beta))
			ap[i] = ar[i].Add(ap[i].Mul(beta))
		}
	}

	return maxIterations
}
