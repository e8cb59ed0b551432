// Package renderer plays back saved simulation frames as a 3D point cloud.
package renderer

import (
	"fmt"
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"snowsim/telemetry"
)

const (
	screenWidth  = 1280
	screenHeight = 720
)

// frame is one drawable particle cloud.
type frame struct {
	step   uint64
	points []rl.Vector3
}

// Viewer holds loaded frames and the simulation domain extent.
type Viewer struct {
	frames []frame
	extent rl.Vector3
}

// Load reads the given state files, in order, into a viewer. At least one
// frame is required.
func Load(paths []string) (*Viewer, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no state files to view")
	}

	v := &Viewer{}
	for _, path := range paths {
		s, step, err := telemetry.LoadState(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}

		params := s.Params()
		// Simulation is z-up, raylib is y-up.
		v.extent = rl.NewVector3(
			float32(float64(params.GridSize[0])*params.CellSize),
			float32(float64(params.GridSize[2])*params.CellSize),
			float32(float64(params.GridSize[1])*params.CellSize),
		)

		particles := s.Particles()
		points := make([]rl.Vector3, len(particles))
		for i := range particles {
			p := particles[i].Position
			points[i] = rl.NewVector3(float32(p[0]), float32(p[2]), float32(p[1]))
		}
		v.frames = append(v.frames, frame{step: step, points: points})
		s.Close()
	}

	slog.Info("frames loaded", "count", len(v.frames), "particles", len(v.frames[0].points))
	return v, nil
}

// Run opens a window and plays the loaded frames in a loop. Space pauses,
// left/right step single frames while paused.
func (v *Viewer) Run() {
	rl.InitWindow(screenWidth, screenHeight, "snowsim viewer")
	defer rl.CloseWindow()
	rl.SetTargetFPS(60)

	camera := rl.Camera3D{
		Position:   rl.NewVector3(v.extent.X*1.6, v.extent.Y*1.4, v.extent.Z*1.6),
		Target:     rl.NewVector3(v.extent.X/2, v.extent.Y/3, v.extent.Z/2),
		Up:         rl.NewVector3(0, 1, 0),
		Fovy:       45,
		Projection: rl.CameraPerspective,
	}

	current := 0
	paused := false
	tick := 0

	for !rl.WindowShouldClose() {
		rl.UpdateCamera(&camera, rl.CameraOrbital)

		if rl.IsKeyPressed(rl.KeySpace) {
			paused = !paused
		}
		if paused {
			if rl.IsKeyPressed(rl.KeyRight) {
				current = (current + 1) % len(v.frames)
			}
			if rl.IsKeyPressed(rl.KeyLeft) {
				current = (current - 1 + len(v.frames)) % len(v.frames)
			}
		} else {
			tick++
			if tick%3 == 0 {
				current = (current + 1) % len(v.frames)
			}
		}

		f := &v.frames[current]

		rl.BeginDrawing()
		rl.ClearBackground(rl.Black)

		rl.BeginMode3D(camera)
		rl.DrawCubeWires(
			rl.NewVector3(v.extent.X/2, v.extent.Y/2, v.extent.Z/2),
			v.extent.X, v.extent.Y, v.extent.Z, rl.DarkGray)
		for _, p := range f.points {
			rl.DrawPoint3D(p, rl.White)
		}
		rl.EndMode3D()

		rl.DrawText(fmt.Sprintf("frame %d/%d  step %d", current+1, len(v.frames), f.step),
			10, 10, 20, rl.RayWhite)
		rl.DrawFPS(10, 36)

		rl.EndDrawing()
	}
}
