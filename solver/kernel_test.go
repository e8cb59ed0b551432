package solver

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestKernelPartitionOfUnity(t *testing.T) {
	s := New(testParams())
	defer s.Close()

	// Positions deliberately off cell centers and cell corners.
	positions := []mgl64.Vec3{
		{0.8, 0.8, 0.8},
		{0.53, 0.47, 0.81},
		{0.333, 0.666, 0.999},
		{1.01, 0.25, 0.49},
	}

	for _, pos := range positions {
		var sum float64
		var gradSum mgl64.Vec3
		s.forEachStencilNode(pos, func(_ int, n *GridNode) {
			sum += s.weight(n, pos)
			gradSum = gradSum.Add(s.nablaWeight(n, pos))
		})

		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("weights at %v sum to %v, want 1", pos, sum)
		}
		if gradSum.Len() > 1e-9 {
			t.Errorf("weight gradients at %v sum to %v, want zero", pos, gradSum)
		}
	}
}

func TestKernelCompactSupport(t *testing.T) {
	s := New(testParams())
	defer s.Close()

	pos := mgl64.Vec3{0.8, 0.8, 0.8}

	// 2.5 cells away on one axis: outside the support radius.
	far := s.gridNode(8+3, 8, 8)
	if w := s.weight(far, pos); w != 0 {
		t.Errorf("weight outside support = %v, want 0", w)
	}
	if g := s.nablaWeight(far, pos); g.Len() != 0 {
		t.Errorf("gradient outside support = %v, want zero", g)
	}
}

func TestKernelRange(t *testing.T) {
	s := New(testParams())
	defer s.Close()

	pos := mgl64.Vec3{0.837, 0.751, 0.914}
	s.forEachStencilNode(pos, func(_ int, n *GridNode) {
		w := s.weight(n, pos)
		if w < 0 || w > 1 {
			t.Errorf("weight %v at node %v outside [0,1]", w, n.Location)
		}
	})
}

func TestBsplineShape(t *testing.T) {
	if got, want := bspline(0), 2.0/3.0; math.Abs(got-want) > 1e-15 {
		t.Errorf("bspline(0) = %v, want %v", got, want)
	}
	if got, want := bspline(1), 1.0/6.0; math.Abs(got-want) > 1e-15 {
		t.Errorf("bspline(1) = %v, want %v", got, want)
	}
	if bspline(2) != 0 || bspline(-2.5) != 0 {
		t.Error("bspline must vanish outside |x| < 2")
	}
	if bspline(-0.7) != bspline(0.7) {
		t.Error("bspline must be even")
	}

	// Derivative consistency against central differences.
	for _, x := range []float64{-1.7, -1.0, -0.3, 0.2, 0.9, 1.4} {
		h := 1e-6
		fd := (bspline(x+h) - bspline(x-h)) / (2 * h)
		if math.Abs(bsplineSlope(x)-fd) > 1e-8 {
			t.Errorf("bsplineSlope(%v) = %v, finite difference %v", x, bsplineSlope(x), fd)
		}
	}
}
