package telemetry

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"snowsim/solver"
)

func TestCollectFrameStats(t *testing.T) {
	s := solver.New(testSolverParams())
	defer s.Close()

	s.AddParticle(mgl64.Vec3{0.5, 0.5, 0.6}, mgl64.Vec3{3, 0, 0}, 2)
	s.AddParticle(mgl64.Vec3{0.5, 0.5, 0.9}, mgl64.Vec3{0, 4, 0}, 1)

	stats := CollectFrameStats(s, 7, 42, 0.042)

	if stats.Frame != 7 || stats.Step != 42 {
		t.Errorf("frame/step = %d/%d, want 7/42", stats.Frame, stats.Step)
	}
	if stats.Particles != 2 {
		t.Errorf("particles = %d, want 2", stats.Particles)
	}
	if stats.TotalMass != 3 {
		t.Errorf("total mass = %v, want 3", stats.TotalMass)
	}
	if stats.MaxSpeed != 4 {
		t.Errorf("max speed = %v, want 4", stats.MaxSpeed)
	}
	if stats.MeanSpeed != 3.5 {
		t.Errorf("mean speed = %v, want 3.5", stats.MeanSpeed)
	}
	// 0.5*2*9 + 0.5*1*16 = 17
	if math.Abs(stats.KineticEnergy-17) > 1e-12 {
		t.Errorf("kinetic energy = %v, want 17", stats.KineticEnergy)
	}
	if stats.MinZ != 0.6 || stats.MaxZ != 0.9 {
		t.Errorf("z range = [%v, %v], want [0.6, 0.9]", stats.MinZ, stats.MaxZ)
	}
	// Fresh particles carry identity gradients.
	if stats.MinDetElastic != 1 || stats.MaxDetElastic != 1 {
		t.Errorf("det range = [%v, %v], want [1, 1]", stats.MinDetElastic, stats.MaxDetElastic)
	}
}

func TestCollectFrameStatsEmpty(t *testing.T) {
	s := solver.New(testSolverParams())
	defer s.Close()

	stats := CollectFrameStats(s, 1, 0, 0)
	if stats.Particles != 0 || stats.TotalMass != 0 || stats.KineticEnergy != 0 {
		t.Errorf("empty solver produced nonzero aggregates: %+v", stats)
	}
}
