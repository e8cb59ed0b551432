package solver

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// applyImplicitOperator evaluates the matrix-free operator of the
// semi-implicit velocity update,
//
//	A(v) = v - β·Δt·M⁻¹·δf(v)
//
// where δf is the directional derivative of the grid force along the
// velocity field v, so that conjugateResidual can solve A(v_next) = v_star
// without an assembled matrix. dst and v must both span the full lattice;
// anything else is caller misuse and fatal.
func (s *Solver) applyImplicitOperator(dst, v []mgl64.Vec3) {
	if len(dst) != len(s.nodes) || len(v) != len(s.nodes) {
		panic(fmt.Sprintf("solver: implicit operator field size mismatch: dst=%d v=%d nodes=%d",
			len(dst), len(v), len(s.nodes)))
	}

	if cap(s.delForce) < len(s.particles) {
		s.delForce = make([]mgl64.Mat3, len(s.particles))
	}
	s.delForce = s.delForce[:len(s.particles)]

	s.pool.parallelFor(len(s.particles), func(i0, i1 int) {
		for i := i0; i < i1; i++ {
			s.delForce[i] = s.unweightedDelForce(&s.particles[i], v)
		}
	})

	if cap(s.delf) < len(s.nodes) {
		s.delf = make([]mgl64.Vec3, len(s.nodes))
	}
	s.delf = s.delf[:len(s.nodes)]
	for i := range s.delf {
		s.delf[i] = mgl64.Vec3{}
	}

	for pi := range s.particles {
		p := &s.particles[pi]
		delForce := s.delForce[pi]
		s.forEachStencilNode(p.Position, func(idx int, n *GridNode) {
			s.delf[idx] = s.delf[idx].Add(delForce.Mul3x1(s.nablaWeight(n, p.Position)))
		})
	}

	beta := s.params.ImplicitBeta
	dt := s.implicitDT
	s.pool.parallelFor(len(s.nodes), func(i0, i1 int) {
		for i := i0; i < i1; i++ {
			dst[i] = v[i]
			if s.nodes[i].Mass > 0 {
				dst[i] = dst[i].Sub(s.delf[i].Mul(beta * dt / s.nodes[i].Mass))
			}
		}
	})
}

// unweightedDelForce computes one particle's force differential along the
// grid velocity field v, the exact derivative of unweightedStress through
// the elastic gradient perturbation δF_e = Δt·(Σ v_i⊗∇w_i)·F_e.
func (s *Solver) unweightedDelForce(p *Particle, v []mgl64.Vec3) mgl64.Mat3 {
	var delFe mgl64.Mat3
	s.forEachStencilNode(p.Position, func(idx int, n *GridNode) {
		delFe = delFe.Add(v[idx].OuterProd3(s.nablaWeight(n, p.Position)))
	})
	delFe = delFe.Mul(s.implicitDT).Mul3(p.DeformElastic)

	// Rotation derivative: the skew part of δR is recovered from the polar
	// stretch via a 3x3 linear system on its off-diagonal parametrization.
	r, st := polarDecompose(p.DeformElastic)

	rhs := r.Transpose().Mul3(delFe).Sub(delFe.Transpose().Mul3(r))
	system := mgl64.Mat3{
		st[0] + st[4], st[5], -st[2],
		st[7], st[0] + st[8], st[3],
		-st[2], st[1], st[4] + st[8],
	}
	dr := system.Inv().Mul3x1(mgl64.Vec3{rhs[1], rhs[2], rhs[5]})
	delR := mgl64.Mat3{
		0, -dr[0], -dr[1],
		dr[0], 0, -dr[2],
		dr[1], dr[2], 0,
	}

	jp := p.DeformPlastic.Det()
	je := p.DeformElastic.Det()

	hardening := math.Exp(s.params.HardeningCoefficient * (1 - jp))
	mu := s.params.Mu0 * hardening
	lambda := s.params.Lambda0 * hardening

	cof := p.DeformElastic.Inv().Transpose().Mul(je)

	// δJ_e is the Frobenius inner product of the cofactor matrix with δF_e;
	// each cofactor entry differentiates to a bilinear form in δF_e.
	delJe := frobeniusDot(cof, delFe)

	delCof := mgl64.Mat3{
		frobeniusDot(mgl64.Mat3{0, 0, 0, 0, cof[8], -cof[7], 0, -cof[5], cof[4]}, delFe),
		frobeniusDot(mgl64.Mat3{0, 0, 0, -cof[8], 0, cof[6], cof[5], 0, -cof[3]}, delFe),
		frobeniusDot(mgl64.Mat3{0, 0, 0, cof[7], -cof[6], 0, -cof[4], cof[3], 0}, delFe),
		frobeniusDot(mgl64.Mat3{0, -cof[8], cof[7], 0, 0, 0, 0, cof[2], -cof[1]}, delFe),
		frobeniusDot(mgl64.Mat3{cof[8], 0, -cof[6], 0, 0, 0, -cof[2], 0, cof[0]}, delFe),
		frobeniusDot(mgl64.Mat3{-cof[7], cof[6], 0, 0, 0, 0, cof[1], -cof[0], 0}, delFe),
		frobeniusDot(mgl64.Mat3{0, cof[5], -cof[4], 0, -cof[2], cof[1], 0, 0, 0}, delFe),
		frobeniusDot(mgl64.Mat3{-cof[5], 0, cof[3], cof[2], 0, -cof[0], 0, 0, 0}, delFe),
		frobeniusDot(mgl64.Mat3{cof[4], -cof[3], 0, -cof[1], cof[0], 0, 0, 0, 0}, delFe),
	}

	return delFe.Sub(delR).Mul(2 * mu).
		Add(cof.Mul(delJe).Add(delCof.Mul(je - 1)).Mul(lambda)).
		Mul3(p.DeformElastic.Transpose()).
		Mul(-p.Volume0)
}
