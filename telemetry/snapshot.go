// Package telemetry handles simulation state persistence and per-frame
// statistics output.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"

	"snowsim/solver"
)

// StateVersion is incremented when the snapshot format changes.
const StateVersion = 1

// State is the on-disk snapshot of a simulation: everything needed to
// resume stepping exactly where the saved run left off. Grid mass, momentum
// and force are rebuilt every step and not persisted; rest densities are,
// since they are frozen after the first step.
type State struct {
	Version int           `json:"version"`
	Step    uint64        `json:"step"`
	Params  solver.Params `json:"params"`

	Density0  []float64       `json:"density0,omitempty"`
	Particles []ParticleState `json:"particles"`
}

// ParticleState holds one material point's persisted attributes.
type ParticleState struct {
	Position      [3]float64 `json:"position"`
	Velocity      [3]float64 `json:"velocity"`
	Mass          float64    `json:"mass"`
	Volume0       float64    `json:"volume0"`
	DeformElastic [9]float64 `json:"deform_elastic"`
	DeformPlastic [9]float64 `json:"deform_plastic"`
}

// CaptureState builds a snapshot of the solver at the given step index.
func CaptureState(s *solver.Solver, step uint64) *State {
	state := &State{
		Version: StateVersion,
		Step:    step,
		Params:  s.Params(),
	}

	if step > 0 {
		nodes := s.Nodes()
		state.Density0 = make([]float64, len(nodes))
		for i := range nodes {
			state.Density0[i] = nodes[i].Density0
		}
	}

	particles := s.Particles()
	state.Particles = make([]ParticleState, len(particles))
	for i := range particles {
		p := &particles[i]
		state.Particles[i] = ParticleState{
			Position:      [3]float64(p.Position),
			Velocity:      [3]float64(p.Velocity(step)),
			Mass:          p.Mass,
			Volume0:       p.Volume0,
			DeformElastic: [9]float64(p.DeformElastic),
			DeformPlastic: [9]float64(p.DeformPlastic),
		}
	}

	return state
}

// Restore rebuilds a solver from a snapshot.
func (state *State) Restore() (*solver.Solver, error) {
	if state.Version != StateVersion {
		return nil, fmt.Errorf("unsupported state version %d", state.Version)
	}

	s := solver.New(state.Params)

	if state.Density0 != nil {
		nodes := s.Nodes()
		if len(state.Density0) != len(nodes) {
			return nil, fmt.Errorf("state density field has %d entries, lattice has %d nodes",
				len(state.Density0), len(nodes))
		}
		for i := range nodes {
			nodes[i].Density0 = state.Density0[i]
		}
	}

	for i := range state.Particles {
		ps := &state.Particles[i]
		s.AddParticle(mgl64.Vec3(ps.Position), mgl64.Vec3(ps.Velocity), ps.Mass)
	}
	particles := s.Particles()
	for i := range state.Particles {
		ps := &state.Particles[i]
		particles[i].Volume0 = ps.Volume0
		particles[i].DeformElastic = mgl64.Mat3(ps.DeformElastic)
		particles[i].DeformPlastic = mgl64.Mat3(ps.DeformPlastic)
		particles[i].SetVelocity(state.Step, mgl64.Vec3(ps.Velocity))
	}

	return s, nil
}

// SaveState writes a snapshot of the solver to path.
func SaveState(s *solver.Solver, step uint64, path string) error {
	data, err := json.Marshal(CaptureState(s, step))
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}

	return nil
}

// LoadState reads a snapshot from path and rebuilds the solver. The
// returned step index is the one to pass to the next Update call.
func LoadState(path string) (*solver.Solver, uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, 0, fmt.Errorf("unmarshal state: %w", err)
	}

	s, err := state.Restore()
	if err != nil {
		return nil, 0, err
	}

	return s, state.Step, nil
}
