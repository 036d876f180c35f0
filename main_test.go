package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/forage/config"
	"github.com/pthm-cable/forage/landscape"
	"github.com/pthm-cable/forage/store"
)

func TestRunWritesOutputs(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	dir := t.TempDir()
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Output.DBPath = filepath.Join(dir, "runs.db")
	cfg.Forward.Seed = 1
	cfg.Induction.Display = true

	var stdout bytes.Buffer
	if err := run(cfg, &stdout); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, name := range []string{"config.yaml", "landscape.bin", "landscape.csv", "stats.csv", "locations.csv", "organisms.csv", "bookmarks.csv"} {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	if got := strings.Count(stdout.String(), "time "); got != cfg.Model.NTimesteps {
		t.Errorf("display printed %d timesteps, want %d", got, cfg.Model.NTimesteps)
	}

	fromFile, err := landscape.Load(filepath.Join(cfg.Output.Dir, "landscape.bin"))
	if err != nil {
		t.Fatalf("Load landscape failed: %v", err)
	}

	db, err := store.Open(cfg.Output.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	runs, err := db.Runs()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Seed != 1 || runs[0].Survivors < 0 {
		t.Fatalf("runs = %+v", runs)
	}
	fromDB, err := db.LoadLandscape(runs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	a, b := fromFile.Records(), fromDB.Records()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("record %d differs: file %+v, db %+v", i, a[i], b[i])
		}
	}
}

func TestRunWithoutForward(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Forward.NOrganisms = 0
	cfg.Output.DBPath = filepath.Join(t.TempDir(), "runs.db")

	if err := run(cfg, &bytes.Buffer{}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
}
