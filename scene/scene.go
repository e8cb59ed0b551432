// Package scene seeds material points for the bundled scenarios. Scenes are
// generated once, saved, and then stepped by the run routine; the solver
// itself never creates particles.
package scene

import (
	"github.com/go-gl/mathgl/mgl64"

	"snowsim/solver"
)

// SnowSphere fills a ball with material points on a regular lattice of the
// given spacing. Each point carries the mass of one lattice cell at the rest
// density. Returns the number of particles added.
func SnowSphere(s *solver.Solver, center mgl64.Vec3, radius, density, spacing float64) int {
	mass := density * spacing * spacing * spacing
	steps := int(2*radius/spacing) + 1
	r2 := radius * radius

	count := 0
	for ix := 0; ix < steps; ix++ {
		for iy := 0; iy < steps; iy++ {
			for iz := 0; iz < steps; iz++ {
				pos := center.Add(mgl64.Vec3{
					float64(ix)*spacing - radius,
					float64(iy)*spacing - radius,
					float64(iz)*spacing - radius,
				})
				if pos.Sub(center).LenSqr() > r2 {
					continue
				}
				s.AddParticle(pos, mgl64.Vec3{}, mass)
				count++
			}
		}
	}
	return count
}

// SnowSlab fills the axis-aligned box [min, max] with material points moving
// at the given initial velocity. Returns the number of particles added.
func SnowSlab(s *solver.Solver, min, max, velocity mgl64.Vec3, density, spacing float64) int {
	mass := density * spacing * spacing * spacing

	count := 0
	for x := min[0]; x <= max[0]; x += spacing {
		for y := min[1]; y <= max[1]; y += spacing {
			for z := min[2]; z <= max[2]; z += spacing {
				s.AddParticle(mgl64.Vec3{x, y, z}, velocity, mass)
				count++
			}
		}
	}
	return count
}
