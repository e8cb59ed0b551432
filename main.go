package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"snowsim/config"
	"snowsim/renderer"
	"snowsim/scene"
	"snowsim/solver"
	"snowsim/telemetry"
)

// routine is one named launcher. The binary dispatches on the first
// argument, everything after is routine-specific flags.
type routine struct {
	name        string
	description string
	run         func(args []string) error
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	routines := []routine{
		{"info", "print the effective configuration", runInfo},
		{"gen-snowball", "seed a snowball scene and save frame 0", runGenSnowball},
		{"gen-slab", "seed a slab scene and save frame 0", runGenSlab},
		{"run", "step a saved scene and write frames plus telemetry", runSim},
		{"viz", "play back saved frames in a window", runViz},
	}

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <routine> [flags]\n\nAvailable routines:\n", filepath.Base(os.Args[0]))
		for _, r := range routines {
			fmt.Fprintf(os.Stderr, "  %-14s %s\n", r.name, r.description)
		}
		os.Exit(1)
	}

	name := os.Args[1]
	for _, r := range routines {
		if r.name == name {
			if err := r.run(os.Args[2:]); err != nil {
				slog.Error("routine failed", "routine", name, "error", err)
				os.Exit(1)
			}
			return
		}
	}

	fmt.Fprintf(os.Stderr, "Routine %q not found\n", name)
	os.Exit(1)
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config.yaml (empty = use defaults)")
	fs.Parse(args)

	if err := config.Init(*configPath); err != nil {
		return err
	}
	cfg := config.Cfg()

	nodes := cfg.Grid.Size[0] * cfg.Grid.Size[1] * cfg.Grid.Size[2]
	fmt.Printf("grid: %dx%dx%d (%d nodes), cell size %g m\n",
		cfg.Grid.Size[0], cfg.Grid.Size[1], cfg.Grid.Size[2], nodes, cfg.Grid.CellSize)
	fmt.Printf("dt: %g s, %d frames x %d steps\n",
		cfg.Physics.DT, cfg.Physics.Frames, cfg.Physics.StepsPerFrame)
	fmt.Printf("snow: E=%g nu=%g (mu0=%g lambda0=%g), hardening %g\n",
		cfg.Snow.YoungsModulus, cfg.Snow.PoissonsRatio,
		cfg.Derived.Mu0, cfg.Derived.Lambda0, cfg.Snow.Hardening)
	fmt.Printf("integrator: %s\n", cfg.Integrator.Mode)
	return nil
}

func runGenSnowball(args []string) error {
	fs := flag.NewFlagSet("gen-snowball", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config.yaml (empty = use defaults)")
	out := fs.String("out", "frame-0.snowstate", "Output state file")
	radius := fs.Float64("radius", 0.03, "Snowball radius in meters")
	drop := fs.Float64("drop", 0.5, "Center height as a fraction of the domain")
	throwX := fs.Float64("vx", 0, "Initial velocity x, m/s")
	throwY := fs.Float64("vy", 0, "Initial velocity y, m/s")
	throwZ := fs.Float64("vz", 0, "Initial velocity z, m/s")
	fs.Parse(args)

	if err := config.Init(*configPath); err != nil {
		return err
	}
	cfg := config.Cfg()

	s := solver.New(cfg.SolverParams())
	defer s.Close()

	extent := mgl64.Vec3{
		float64(cfg.Grid.Size[0]) * cfg.Grid.CellSize,
		float64(cfg.Grid.Size[1]) * cfg.Grid.CellSize,
		float64(cfg.Grid.Size[2]) * cfg.Grid.CellSize,
	}
	center := mgl64.Vec3{extent[0] / 2, extent[1] / 2, extent[2] * *drop}

	n := scene.SnowSphere(s, center, *radius, cfg.Snow.Density, cfg.Snow.ParticleSize)

	if throw := (mgl64.Vec3{*throwX, *throwY, *throwZ}); throw.Len() > 0 {
		particles := s.Particles()
		for i := range particles {
			particles[i].SetVelocity(0, throw)
			particles[i].SetVelocity(1, throw)
		}
	}

	slog.Info("snowball seeded", "particles", n, "center", center, "radius", *radius,
		"velocity", mgl64.Vec3{*throwX, *throwY, *throwZ})

	if err := telemetry.SaveState(s, 0, *out); err != nil {
		return err
	}
	slog.Info("frame 0 written", "path", *out)
	return nil
}

func runGenSlab(args []string) error {
	fs := flag.NewFlagSet("gen-slab", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config.yaml (empty = use defaults)")
	out := fs.String("out", "frame-0.snowstate", "Output state file")
	thickness := fs.Float64("thickness", 0.04, "Slab thickness in meters")
	height := fs.Float64("height", 0.5, "Slab base height as a fraction of the domain")
	fs.Parse(args)

	if err := config.Init(*configPath); err != nil {
		return err
	}
	cfg := config.Cfg()

	s := solver.New(cfg.SolverParams())
	defer s.Close()

	extent := mgl64.Vec3{
		float64(cfg.Grid.Size[0]) * cfg.Grid.CellSize,
		float64(cfg.Grid.Size[1]) * cfg.Grid.CellSize,
		float64(cfg.Grid.Size[2]) * cfg.Grid.CellSize,
	}
	base := extent[2] * *height
	min := mgl64.Vec3{extent[0] * 0.25, extent[1] * 0.25, base}
	max := mgl64.Vec3{extent[0] * 0.75, extent[1] * 0.75, base + *thickness}

	n := scene.SnowSlab(s, min, max, mgl64.Vec3{}, cfg.Snow.Density, cfg.Snow.ParticleSize)
	slog.Info("slab seeded", "particles", n, "min", min, "max", max)

	if err := telemetry.SaveState(s, 0, *out); err != nil {
		return err
	}
	slog.Info("frame 0 written", "path", *out)
	return nil
}

func runSim(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config.yaml (empty = use defaults)")
	in := fs.String("in", "frame-0.snowstate", "Input state file")
	stateDir := fs.String("state-dir", ".", "Directory for frame state files")
	outputDir := fs.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	frames := fs.Int("frames", 0, "Frames to simulate (0 = use config)")
	fs.Parse(args)

	if err := config.Init(*configPath); err != nil {
		return err
	}
	cfg := config.Cfg()

	numFrames := cfg.Physics.Frames
	if *frames > 0 {
		numFrames = *frames
	}

	s, step, err := telemetry.LoadState(*in)
	if err != nil {
		return err
	}
	defer s.Close()

	om, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		return err
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		return err
	}

	if err := os.MkdirAll(*stateDir, 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	dt := cfg.Physics.DT
	stepsPerFrame := cfg.Physics.StepsPerFrame
	startStep := step

	statsInterval := cfg.Telemetry.StatsInterval
	if statsInterval <= 0 {
		statsInterval = 1
	}

	slog.Info("starting simulation",
		"particles", len(s.Particles()),
		"frames", numFrames,
		"steps_per_frame", stepsPerFrame,
		"dt", dt,
		"mode", cfg.Integrator.Mode,
	)

	for f := 1; f <= numFrames; f++ {
		for i := 0; i < stepsPerFrame; i++ {
			s.Update(dt, step)
			step++
		}

		path := filepath.Join(*stateDir, fmt.Sprintf("frame-%d.snowstate", f))
		if err := telemetry.SaveState(s, step, path); err != nil {
			return err
		}

		stats := telemetry.CollectFrameStats(s, f, step, float64(step-startStep)*dt)
		if f%statsInterval == 0 {
			if err := om.WriteFrame(stats); err != nil {
				return err
			}
		}

		slog.Info("frame written",
			"frame", f,
			"path", path,
			"max_speed", stats.MaxSpeed,
			"kinetic_energy", stats.KineticEnergy,
		)
	}

	return nil
}

func runViz(args []string) error {
	fs := flag.NewFlagSet("viz", flag.ExitOnError)
	stateDir := fs.String("state-dir", ".", "Directory holding frame-N.snowstate files")
	fs.Parse(args)

	paths, err := frameFiles(*stateDir)
	if err != nil {
		return err
	}

	v, err := renderer.Load(paths)
	if err != nil {
		return err
	}
	v.Run()
	return nil
}

// frameFiles lists frame-N.snowstate files in dir, ordered by frame number.
func frameFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "frame-*.snowstate"))
	if err != nil {
		return nil, err
	}

	type indexed struct {
		n    int
		path string
	}
	var frames []indexed
	for _, path := range matches {
		base := filepath.Base(path)
		numStr := strings.TrimSuffix(strings.TrimPrefix(base, "frame-"), ".snowstate")
		n, err := strconv.Atoi(numStr)
		if err != nil {
			continue
		}
		frames = append(frames, indexed{n: n, path: path})
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].n < frames[j].n })

	paths := make([]string, len(frames))
	for i, f := range frames {
		paths[i] = f.path
	}
	return paths, nil
}
