package solver

import "github.com/go-gl/mathgl/mgl64"

// Particle is one material point. Mass is immutable after creation and
// Volume0 is frozen after the first-step density estimate. The deformation
// gradient is kept factored into an elastic and a plastic part, both with
// strictly positive determinant.
type Particle struct {
	Position mgl64.Vec3
	Mass     float64
	Volume0  float64

	DeformElastic mgl64.Mat3
	DeformPlastic mgl64.Mat3

	velocity     [2]mgl64.Vec3
	VelocityStar mgl64.Vec3
}

// Velocity returns the buffered velocity for the given step parity.
func (p *Particle) Velocity(step uint64) mgl64.Vec3 {
	return p.velocity[step&1]
}

// SetVelocity stores the buffered velocity for the given step parity.
func (p *Particle) SetVelocity(step uint64, v mgl64.Vec3) {
	p.velocity[step&1] = v
}

// AddParticle appends a material point with identity deformation gradients.
// Particles are seeded before the simulation starts and never removed.
func (s *Solver) AddParticle(position, velocity mgl64.Vec3, mass float64) {
	p := Particle{
		Position:      position,
		Mass:          mass,
		DeformElastic: mgl64.Ident3(),
		DeformPlastic: mgl64.Ident3(),
	}
	p.velocity[0] = velocity
	p.velocity[1] = velocity
	s.particles = append(s.particles, p)
}

// Particles returns the live particle slice. The caller must not append or
// reorder while an Update is in flight.
func (s *Solver) Particles() []Particle {
	return s.particles
}
