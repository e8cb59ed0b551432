package solver

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestConjugateResidualIdentity(t *testing.T) {
	apply := func(dst, v []mgl64.Vec3) {
		copy(dst, v)
	}

	b := []mgl64.Vec3{{1, -2, 3}, {0.5, 0, -1}, {4, 4, 4}}
	x := make([]mgl64.Vec3, len(b))

	iters := conjugateResidual(apply, x, b, 100, 1e-12)

	for i := range x {
		if x[i].Sub(b[i]).Len() > 1e-12 {
			t.Errorf("x[%d] = %v, want %v", i, x[i], b[i])
		}
	}
	if iters > 2 {
		t.Errorf("identity solve took %d iterations", iters)
	}
}

func TestConjugateResidualDiagonal(t *testing.T) {
	// Symmetric positive definite diagonal operator with a known solution.
	diag := []float64{1, 2.5, 4, 0.5, 3, 1.5, 2, 5}
	apply := func(dst, v []mgl64.Vec3) {
		for i := range v {
			dst[i] = v[i].Mul(diag[i])
		}
	}

	want := make([]mgl64.Vec3, len(diag))
	b := make([]mgl64.Vec3, len(diag))
	for i := range diag {
		want[i] = mgl64.Vec3{float64(i) - 3, 0.5 * float64(i%3), -float64(i * i)}
		b[i] = want[i].Mul(diag[i])
	}

	x := make([]mgl64.Vec3, len(diag))
	iters := conjugateResidual(apply, x, b, 100, 1e-12)

	for i := range x {
		if x[i].Sub(want[i]).Len() > 1e-8 {
			t.Errorf("x[%d] = %v, want %v", i, x[i], want[i])
		}
	}
	if iters >= 100 {
		t.Errorf("solve did not converge within the iteration cap")
	}
}

func TestConjugateResidualRespectsIterationCap(t *testing.T) {
	diag := []float64{1, 10, 100}
	apply := func(dst, v []mgl64.Vec3) {
		for i := range v {
			dst[i] = v[i].Mul(diag[i])
		}
	}

	b := []mgl64.Vec3{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
	x := make([]mgl64.Vec3, len(b))

	if iters := conjugateResidual(apply, x, b, 1, 0); iters != 1 {
		t.Errorf("iterations = %d, want exactly the cap of 1", iters)
	}
}

func TestConjugateResidualZeroRHS(t *testing.T) {
	apply := func(dst, v []mgl64.Vec3) {
		copy(dst, v)
	}

	b := make([]mgl64.Vec3, 4)
	x := make([]mgl64.Vec3, 4)

	iters := conjugateResidual(apply, x, b, 50, 1e-12)
	if iters != 0 {
		t.Errorf("zero right-hand side took %d iterations, want 0", iters)
	}
	for i := range x {
		if x[i].Len() != 0 {
			t.Errorf("x[%d] = %v, want zero", i, x[i])
		}
	}
}

func TestDotVec3(t *testing.T) {
	a := []mgl64.Vec3{{1, 0, 0}, {0, 2, 0}}
	b := []mgl64.Vec3{{3, 1, 1}, {1, 4, 1}}
	if got := dotVec3(a, b); math.Abs(got-11) > 1e-15 {
		t.Errorf("dotVec3 = %v, want 11", got)
	}
}
