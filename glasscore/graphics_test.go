package glasscore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/glass3/associator/cmn"
)

func TestDumpGraphicsDisabledByDefault(t *testing.T) {
	h := newTestHypo(t, 35, -118, 8, 1000)
	cfg := cmn.GCO.Get()
	dir := t.TempDir()
	cfg.GraphicsOutFolder = dir

	DumpGraphics(h, cfg)

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no grid file when GraphicsOut is false, got %v", entries)
	}
}

func TestDumpGraphicsWritesGridFile(t *testing.T) {
	h := newTestHypo(t, 35, -118, 8, 1000)
	dir := t.TempDir()
	cfg := &cmn.Config{
		GraphicsOut:       true,
		GraphicsOutFolder: dir,
		GraphicsStepKm:    5,
		GraphicsSteps:     2,
	}

	DumpGraphics(h, cfg)

	path := filepath.Join(dir, h.ID+".grid")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected grid file at %s: %v", path, err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty grid file")
	}
}
