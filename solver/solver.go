// Package solver implements a material point method (MPM) snow solver:
// material points carry mass, velocity and an elastoplastic deformation
// state, and a fixed background lattice is rebuilt every step to integrate
// momentum.
package solver

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Params holds the physical and numerical constants of a simulation. Mu0 and
// Lambda0 are the initial Lamé parameters; config derives them from Young's
// modulus and Poisson's ratio.
type Params struct {
	CellSize float64 `json:"cell_size"`
	GridSize [3]int  `json:"grid_size"`

	Mu0                  float64 `json:"mu0"`
	Lambda0              float64 `json:"lambda0"`
	HardeningCoefficient float64 `json:"hardening_coefficient"`
	CriticalCompression  float64 `json:"critical_compression"`
	CriticalStretch      float64 `json:"critical_stretch"`
	FlipAlpha            float64 `json:"flip_alpha"`
	Gravity              float64 `json:"gravity"`

	Implicit      bool    `json:"implicit"`
	ImplicitBeta  float64 `json:"implicit_beta"`
	MaxIterations int     `json:"max_iterations"`
	Tolerance     float64 `json:"tolerance"`

	FloorHeight   float64 `json:"floor_height"`
	FloorFriction float64 `json:"floor_friction"`

	Workers int `json:"-"`
}

// Solver owns the particle set and the background lattice. Grid and particle
// state is exclusively owned by the stepping pipeline for the duration of an
// Update call.
type Solver struct {
	params Params
	h      float64
	invh   float64
	size   [3]int

	nodes     []GridNode
	particles []Particle
	colliders []Collider

	pool *workerPool

	// Per-step scratch, sized lazily.
	stress       []mgl64.Mat3
	velocityStar []mgl64.Vec3
	velocityNext []mgl64.Vec3
	delForce     []mgl64.Mat3
	delf         []mgl64.Vec3
	implicitDT   float64
}

// New allocates a solver with the full lattice and no particles. The lattice
// is never resized. Invalid dimensions are a programming error and panic.
func New(params Params) *Solver {
	if params.CellSize <= 0 {
		panic(fmt.Sprintf("solver: cell size must be positive, got %v", params.CellSize))
	}
	for axis, n := range params.GridSize {
		if n <= 0 {
			panic(fmt.Sprintf("solver: grid size must be positive on every axis, got %d on axis %d", n, axis))
		}
	}

	s := &Solver{
		params: params,
		h:      params.CellSize,
		invh:   1 / params.CellSize,
		size:   params.GridSize,
		pool:   newWorkerPool(params.Workers),
	}

	s.nodes = make([]GridNode, 0, s.size[0]*s.size[1]*s.size[2])
	for x := 0; x < s.size[0]; x++ {
		for y := 0; y < s.size[1]; y++ {
			for z := 0; z < s.size[2]; z++ {
				s.nodes = append(s.nodes, GridNode{
					Location: [3]int{x, y, z},
					Position: mgl64.Vec3{float64(x), float64(y), float64(z)}.Mul(s.h),
				})
			}
		}
	}

	s.colliders = append(s.colliders, HalfSpace{
		Point:    mgl64.Vec3{0, 0, params.FloorHeight},
		Normal:   mgl64.Vec3{0, 0, 1},
		Friction: params.FloorFriction,
	})

	slog.Info("lattice allocated", "nodes", len(s.nodes), "size", s.size, "cell_size", s.h)

	return s
}

// Params returns a copy of the solver parameters.
func (s *Solver) Params() Params {
	return s.params
}

// Nodes returns the live grid node slice.
func (s *Solver) Nodes() []GridNode {
	return s.nodes
}

// Close releases the worker pool.
func (s *Solver) Close() {
	s.pool.stop()
}

// Update advances the simulation by one step of deltaT. The step index
// selects the velocity buffer parity: velocities at step and step+1 coexist
// during the update.
func (s *Solver) Update(deltaT float64, step uint64) {
	slog.Debug("step", "dt", deltaT, "n", step)

	// 1. Rasterize particle mass and momentum to the grid.

	s.pool.parallelFor(len(s.nodes), func(i0, i1 int) {
		for i := i0; i < i1; i++ {
			n := &s.nodes[i]
			n.Mass = 0
			n.SetVelocity(step, mgl64.Vec3{})
		}
	})

	// Scatter with write contention stays single-threaded.
	for pi := range s.particles {
		p := &s.particles[pi]
		s.forEachStencilNode(p.Position, func(_ int, n *GridNode) {
			weightedMass := p.Mass * s.weight(n, p.Position)
			n.Mass += weightedMass
			n.SetVelocity(step, n.Velocity(step).Add(p.Velocity(step).Mul(weightedMass)))
		})
	}

	// Normalize momentum to velocity only after all particles scattered.
	s.pool.parallelFor(len(s.nodes), func(i0, i1 int) {
		for i := i0; i < i1; i++ {
			n := &s.nodes[i]
			if n.Mass > 0 && n.Velocity(step).Len() > 0 {
				n.SetVelocity(step, n.Velocity(step).Mul(1/n.Mass))
			} else {
				n.SetVelocity(step, mgl64.Vec3{})
			}
		}
	})

	// 2. First step only: estimate rest densities and particle volumes.

	if step == 0 {
		s.estimateVolumes(step)
	}

	// 3. Gravity plus elastic force on the grid.

	gravity := s.params.Gravity
	s.pool.parallelFor(len(s.nodes), func(i0, i1 int) {
		for i := i0; i < i1; i++ {
			n := &s.nodes[i]
			n.Force = mgl64.Vec3{0, 0, -gravity * n.Mass}
		}
	})

	if cap(s.stress) < len(s.particles) {
		s.stress = make([]mgl64.Mat3, len(s.particles))
	}
	s.stress = s.stress[:len(s.particles)]

	s.pool.parallelFor(len(s.particles), func(i0, i1 int) {
		for i := i0; i < i1; i++ {
			s.stress[i] = s.unweightedStress(&s.particles[i])
		}
	})

	for pi := range s.particles {
		p := &s.particles[pi]
		stress := s.stress[pi]
		s.forEachStencilNode(p.Position, func(_ int, n *GridNode) {
			n.Force = n.Force.Add(stress.Mul3x1(s.nablaWeight(n, p.Position)))
		})
	}

	// 4. Explicit velocity update. 5. Grid-based collisions.

	s.pool.parallelFor(len(s.nodes), func(i0, i1 int) {
		for i := i0; i < i1; i++ {
			n := &s.nodes[i]
			n.VelocityStar = n.Velocity(step)
			if n.Mass > 0 && n.Force.Len() > 0 {
				n.VelocityStar = n.VelocityStar.Add(n.Force.Mul(deltaT / n.Mass))
			}
			n.VelocityStar = s.resolveCollisions(n.Position, n.VelocityStar)
		}
	})

	// 6. Commit grid velocities, via the linear solve in implicit mode.

	if cap(s.velocityStar) < len(s.nodes) {
		s.velocityStar = make([]mgl64.Vec3, len(s.nodes))
		s.velocityNext = make([]mgl64.Vec3, len(s.nodes))
	}
	s.velocityStar = s.velocityStar[:len(s.nodes)]
	s.velocityNext = s.velocityNext[:len(s.nodes)]

	for i := range s.nodes {
		s.velocityStar[i] = s.nodes[i].VelocityStar
		s.velocityNext[i] = s.nodes[i].VelocityStar
	}

	if s.params.Implicit {
		s.implicitDT = deltaT
		iters := conjugateResidual(s.applyImplicitOperator,
			s.velocityNext, s.velocityStar, s.params.MaxIterations, s.params.Tolerance)
		slog.Debug("implicit solve", "iterations", iters)
	}

	for i := range s.nodes {
		s.nodes[i].SetVelocity(step+1, s.velocityNext[i])
	}

	// 7-10. Deformation gradients, particle velocities, particle collisions,
	// positions.

	s.pool.parallelFor(len(s.particles), func(i0, i1 int) {
		for i := i0; i < i1; i++ {
			s.updateParticle(&s.particles[i], deltaT, step)
		}
	})
}

// estimateVolumes computes the rest density of each node from the first
// rasterized mass field and freezes each particle's rest volume. Runs once.
func (s *Solver) estimateVolumes(step uint64) {
	cellVolume := s.h * s.h * s.h

	s.pool.parallelFor(len(s.nodes), func(i0, i1 int) {
		for i := i0; i < i1; i++ {
			n := &s.nodes[i]
			n.Density0 = n.Mass / cellVolume
		}
	})

	s.pool.parallelFor(len(s.particles), func(i0, i1 int) {
		for i := i0; i < i1; i++ {
			p := &s.particles[i]

			var density float64
			s.forEachStencilNode(p.Position, func(_ int, n *GridNode) {
				density += n.Density0 * s.weight(n, p.Position)
			})

			if density > 0 {
				p.Volume0 = p.Mass / density
			}
		}
	})
}

// unweightedStress computes the stress contribution shared by every node in
// the particle's stencil:
//
//	-V0 · (2μ·(F_e - R(F_e))·F_eᵗ + λ·(J_e-1)·J_e·I)
//
// with the Lamé parameters scaled by the plastic hardening factor
// exp(ξ·(1-J_p)).
func (s *Solver) unweightedStress(p *Particle) mgl64.Mat3 {
	jp := p.DeformPlastic.Det()
	je := p.DeformElastic.Det()

	hardening := math.Exp(s.params.HardeningCoefficient * (1 - jp))
	mu := s.params.Mu0 * hardening
	lambda := s.params.Lambda0 * hardening

	fe := p.DeformElastic

	return fe.Sub(polarRot(fe)).Mul3(fe.Transpose()).Mul(2 * mu).
		Add(mgl64.Ident3().Mul(lambda * (je - 1) * je)).
		Mul(-p.Volume0)
}

// updateParticle runs pipeline stages 7 through 10 for one particle. Stages
// read only committed grid state and write only their own particle, so the
// loop parallelizes over particles.
func (s *Solver) updateParticle(p *Particle, deltaT float64, step uint64) {
	// 7. Deformation gradient update.

	deform := p.DeformElastic.Mul3(p.DeformPlastic)

	var nablaV mgl64.Mat3
	s.forEachStencilNode(p.Position, func(_ int, n *GridNode) {
		// The velocity gradient is sampled from the already committed n+1
		// field. Whether the pre-solve explicit field would be the better
		// choice is an open modeling question; the committed field is kept
		// deliberately.
		nablaV = nablaV.Add(n.Velocity(step + 1).OuterProd3(s.nablaWeight(n, p.Position)))
	})

	multiplier := mgl64.Ident3().Add(nablaV.Mul(deltaT))

	deformPrime := multiplier.Mul3(deform)
	deformElasticPrime := multiplier.Mul3(p.DeformElastic)

	u, sigma, v := svd3(deformElasticPrime)
	lo := 1 - s.params.CriticalCompression
	hi := 1 + s.params.CriticalStretch
	for axis := 0; axis < 3; axis++ {
		sigma[axis] = mgl64.Clamp(sigma[axis], lo, hi)
	}

	// Clamp the elastic part first, then rebuild the plastic part from the
	// pre-clamp combined deformation so the clamped-away strain is absorbed
	// plastically. The order matters.
	p.DeformElastic = u.Mul3(mgl64.Diag3(sigma)).Mul3(v.Transpose())
	invSigma := mgl64.Vec3{1 / sigma[0], 1 / sigma[1], 1 / sigma[2]}
	p.DeformPlastic = v.Mul3(mgl64.Diag3(invSigma)).Mul3(u.Transpose()).Mul3(deformPrime)

	// 8. PIC/FLIP velocity blend.

	var vPIC mgl64.Vec3
	vFLIP := p.Velocity(step)
	s.forEachStencilNode(p.Position, func(_ int, n *GridNode) {
		w := s.weight(n, p.Position)
		vPIC = vPIC.Add(n.Velocity(step + 1).Mul(w))
		vFLIP = vFLIP.Add(n.Velocity(step + 1).Sub(n.Velocity(step)).Mul(w))
	})

	alpha := s.params.FlipAlpha
	p.VelocityStar = vPIC.Mul(1 - alpha).Add(vFLIP.Mul(alpha))

	// 9. Particle-based collisions.

	p.VelocityStar = s.resolveCollisions(p.Position, p.VelocityStar)
	p.SetVelocity(step+1, p.VelocityStar)

	// 10. Position integration.

	p.Position = p.Position.Add(p.Velocity(step + 1).Mul(deltaT))
}
