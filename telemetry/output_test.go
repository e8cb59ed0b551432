package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}
	if om != nil {
		t.Fatal("empty dir should disable output")
	}

	// All methods must be safe on the nil manager.
	if err := om.WriteFrame(FrameStats{}); err != nil {
		t.Errorf("WriteFrame on nil manager: %v", err)
	}
	if om.Dir() != "" {
		t.Errorf("Dir on nil manager = %q", om.Dir())
	}
	if err := om.Close(); err != nil {
		t.Errorf("Close on nil manager: %v", err)
	}
}

func TestOutputManagerCSV(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}

	if err := om.WriteFrame(FrameStats{Frame: 1, Step: 100, Particles: 42}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := om.WriteFrame(FrameStats{Frame: 2, Step: 200, Particles: 42}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		t.Fatalf("reading telemetry.csv: %v", err)
	}
	content := string(data)

	if got := strings.Count(content, "kinetic_energy"); got != 1 {
		t.Errorf("header appears %d times, want once", got)
	}

	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) != 3 {
		t.Fatalf("telemetry.csv has %d lines, want header plus 2 records", len(lines))
	}
	if !strings.HasPrefix(lines[1], "1,100,") {
		t.Errorf("first record %q should start with frame and step", lines[1])
	}
	if !strings.HasPrefix(lines[2], "2,200,") {
		t.Errorf("second record %q should start with frame and step", lines[2])
	}
}
