package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// GridNode is one node of the background lattice. Mass and force are scratch
// state rebuilt every step; velocity is double-buffered by step parity so the
// n and n+1 fields coexist during a step. Density0 is estimated once on the
// first step and immutable afterwards.
type GridNode struct {
	Location [3]int
	Position mgl64.Vec3

	Mass     float64
	Density0 float64

	velocity     [2]mgl64.Vec3
	VelocityStar mgl64.Vec3
	Force        mgl64.Vec3
}

// Velocity returns the buffered velocity for the given step parity.
func (n *GridNode) Velocity(step uint64) mgl64.Vec3 {
	return n.velocity[step&1]
}

// SetVelocity stores the buffered velocity for the given step parity.
func (n *GridNode) SetVelocity(step uint64, v mgl64.Vec3) {
	n.velocity[step&1] = v
}

// gridNodeIndex maps an integer lattice location to the flat node index.
// Nodes are laid out x-major, then y, then z.
func (s *Solver) gridNodeIndex(gx, gy, gz int) int {
	return (gx*s.size[1]+gy)*s.size[2] + gz
}

// gridNode returns the node at the given lattice location. The location must
// be valid.
func (s *Solver) gridNode(gx, gy, gz int) *GridNode {
	return &s.nodes[s.gridNodeIndex(gx, gy, gz)]
}

// isValidGridNode reports whether the location lies inside the lattice.
// Stencil visits outside the lattice are skipped by callers, so mass and
// force from particles near the boundary is not deposited outside the
// domain. That edge leakage is accepted.
func (s *Solver) isValidGridNode(gx, gy, gz int) bool {
	return gx >= 0 && gx < s.size[0] &&
		gy >= 0 && gy < s.size[1] &&
		gz >= 0 && gz < s.size[2]
}

// forEachStencilNode visits every valid grid node within the kernel support
// of pos: one cell below through two cells above the containing cell on each
// axis. Membership is recomputed from the current position on every call.
func (s *Solver) forEachStencilNode(pos mgl64.Vec3, fn func(idx int, node *GridNode)) {
	bx := int(math.Floor(pos[0] * s.invh))
	by := int(math.Floor(pos[1] * s.invh))
	bz := int(math.Floor(pos[2] * s.invh))

	for gx := bx - 1; gx <= bx+2; gx++ {
		for gy := by - 1; gy <= by+2; gy++ {
			for gz := bz - 1; gz <= bz+2; gz++ {
				if !s.isValidGridNode(gx, gy, gz) {
					continue
				}
				idx := s.gridNodeIndex(gx, gy, gz)
				fn(idx, &s.nodes[idx])
			}
		}
	}
}
