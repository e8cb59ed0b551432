package solver

import "github.com/go-gl/mathgl/mgl64"

// Collider resolves a collision between a moving point and a rigid body.
// Resolve returns the corrected velocity and reports whether the point was
// in contact. The same resolution is applied to grid nodes and particles.
type Collider interface {
	Resolve(position, velocity mgl64.Vec3) (mgl64.Vec3, bool)
}

// HalfSpace is a static or uniformly moving planar collider with Coulomb
// friction. Points on the negative side of the plane are in contact.
type HalfSpace struct {
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Velocity mgl64.Vec3
	Friction float64
}

// Resolve applies the sticking/sliding friction response. A point moving
// away from or along the surface is left untouched.
func (h HalfSpace) Resolve(position, velocity mgl64.Vec3) (mgl64.Vec3, bool) {
	if position.Sub(h.Point).Dot(h.Normal) > 0 {
		return velocity, false
	}

	vRel := velocity.Sub(h.Velocity)

	vn := vRel.Dot(h.Normal)
	if vn >= 0 {
		// Separating contact, no impulse.
		return velocity, false
	}

	vt := vRel.Sub(h.Normal.Mul(vn))

	if vt.Len() <= -h.Friction*vn {
		// Sticking: friction cancels all relative motion.
		vRel = mgl64.Vec3{}
	} else {
		vRel = vt.Add(vt.Normalize().Mul(h.Friction * vn))
	}

	return vRel.Add(h.Velocity), true
}

// AddCollider registers an additional collider. The floor half-space from
// Params is installed at construction.
func (s *Solver) AddCollider(c Collider) {
	s.colliders = append(s.colliders, c)
}

// resolveCollisions runs every collider in order against the candidate
// velocity and returns the corrected result.
func (s *Solver) resolveCollisions(position, velocity mgl64.Vec3) mgl64.Vec3 {
	for _, c := range s.colliders {
		if v, hit := c.Resolve(position, velocity); hit {
			velocity = v
		}
	}
	return velocity
}
