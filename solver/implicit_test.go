package solver

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

// forceTerm evaluates the per-particle force matrix -V0·P(fe)·feBaseᵗ with
// the transpose factor held at the base gradient, which is the quantity
// unweightedDelForce differentiates.
func forceTerm(s *Solver, fe, feBase mgl64.Mat3, jp, volume0 float64) mgl64.Mat3 {
	hardening := math.Exp(s.params.HardeningCoefficient * (1 - jp))
	mu := s.params.Mu0 * hardening
	lambda := s.params.Lambda0 * hardening

	je := fe.Det()
	cof := fe.Inv().Transpose().Mul(je)

	p := fe.Sub(polarRot(fe)).Mul(2 * mu).Add(cof.Mul(lambda * (je - 1)))
	return p.Mul3(feBase.Transpose()).Mul(-volume0)
}

func implicitTestSolver(t *testing.T) *Solver {
	t.Helper()
	p := testParams()
	p.Gravity = 0
	s := New(p)
	t.Cleanup(s.Close)

	s.AddParticle(mgl64.Vec3{0.8, 0.8, 0.8}, mgl64.Vec3{}, 1e-3)
	particle := &s.Particles()[0]
	particle.Volume0 = 1e-6
	particle.DeformElastic = mgl64.Mat3{
		1.05, 0.02, 0.01,
		0.02, 0.98, -0.03,
		0.01, -0.03, 1.1,
	}
	return s
}

// latticeField fills a deterministic, spatially varying velocity field.
func latticeField(n int) []mgl64.Vec3 {
	v := make([]mgl64.Vec3, n)
	for i := range v {
		v[i] = mgl64.Vec3{
			0.3 * float64((i*7)%11-5) / 5,
			0.2 * float64((i*13)%9-4) / 4,
			0.25 * float64((i*5)%7-3) / 3,
		}
	}
	return v
}

func TestDelForceMatchesFiniteDifference(t *testing.T) {
	s := implicitTestSolver(t)
	s.implicitDT = 1e-4
	p := &s.Particles()[0]

	v := latticeField(len(s.nodes))

	// The same elastic gradient perturbation the operator derives from the
	// lattice field.
	var delFe mgl64.Mat3
	s.forEachStencilNode(p.Position, func(idx int, n *GridNode) {
		delFe = delFe.Add(v[idx].OuterProd3(s.nablaWeight(n, p.Position)))
	})
	delFe = delFe.Mul(s.implicitDT).Mul3(p.DeformElastic)

	analytic := s.unweightedDelForce(p, v)

	jp := p.DeformPlastic.Det()
	hi := forceTerm(s, p.DeformElastic.Add(delFe), p.DeformElastic, jp, p.Volume0)
	lo := forceTerm(s, p.DeformElastic.Sub(delFe), p.DeformElastic, jp, p.Volume0)
	fd := hi.Sub(lo).Mul(0.5)

	var scale float64
	for i := 0; i < 9; i++ {
		scale = math.Max(scale, math.Abs(analytic[i]))
	}
	tol := 1e-3*scale + 1e-12
	for i := 0; i < 9; i++ {
		if math.Abs(analytic[i]-fd[i]) > tol {
			t.Fatalf("entry %d: analytic %v, finite difference %v (tol %v)", i, analytic[i], fd[i], tol)
		}
	}
}

func TestOperatorAtRest(t *testing.T) {
	s := implicitTestSolver(t)
	s.implicitDT = 1e-4

	v := make([]mgl64.Vec3, len(s.nodes))
	dst := make([]mgl64.Vec3, len(s.nodes))
	s.applyImplicitOperator(dst, v)

	for i := range dst {
		if dst[i].Len() != 0 {
			t.Fatalf("operator at rest produced motion at node %d: %v", i, dst[i])
		}
	}
}

func TestOperatorIdentityWithoutParticles(t *testing.T) {
	p := testParams()
	s := New(p)
	defer s.Close()
	s.implicitDT = 1e-4

	v := latticeField(len(s.nodes))
	dst := make([]mgl64.Vec3, len(s.nodes))
	s.applyImplicitOperator(dst, v)

	for i := range dst {
		if dst[i] != v[i] {
			t.Fatalf("operator without particles changed node %d: %v -> %v", i, v[i], dst[i])
		}
	}
}

func TestOperatorSizeMismatchPanics(t *testing.T) {
	s := implicitTestSolver(t)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for mismatched field sizes")
		}
	}()
	s.applyImplicitOperator(make([]mgl64.Vec3, 1), make([]mgl64.Vec3, len(s.nodes)))
}

func TestImplicitStepStaysFinite(t *testing.T) {
	p := testParams()
	p.Implicit = true
	p.MaxIterations = 50
	s := New(p)
	defer s.Close()

	seedBall(s, mgl64.Vec3{0.8, 0.8, 0.5}, 0.1, 0.05, 400)

	dt := 1e-4
	for step := uint64(0); step < 3; step++ {
		s.Update(dt, step)
	}

	for i := range s.Particles() {
		particle := &s.Particles()[i]
		v := particle.Velocity(3)
		for axis := 0; axis < 3; axis++ {
			if math.IsNaN(v[axis]) || math.IsInf(v[axis], 0) {
				t.Fatalf("particle %d velocity %v not finite", i, v)
			}
			if math.IsNaN(particle.Position[axis]) {
				t.Fatalf("particle %d position %v not finite", i, particle.Position)
			}
		}
	}
}
