package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/forage/config"
)

func TestNilOutputManager(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v; want nil, nil", om, err)
	}
	// All methods are no-ops on nil
	if err := om.WriteStats(StepStats{}); err != nil {
		t.Error(err)
	}
	if err := om.WriteLocations([]Location{{}}); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
	if om.Dir() != "" {
		t.Error("nil manager should have empty dir")
	}
}

func TestOutputManagerWritesCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		s := StepStats{T: i, AliveAtStart: 10 - i, PatchCounts: Counts{1, 2, 3}}
		if err := om.WriteStats(s); err != nil {
			t.Fatalf("WriteStats failed: %v", err)
		}
	}
	locs := []Location{{T: 0, ID: 0, State: 6, Patch: 0, Alive: true}, {T: 0, ID: 1, State: 6, Patch: 2, Alive: false}}
	if err := om.WriteLocations(locs); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteLocations(locs[:1]); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteLifetimes([]LifetimeStats{{ID: 0, DeathT: -1, Visits: Counts{3, 0, 0}}}); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteBookmarks([]Bookmark{{Type: BookmarkHalfLife, T: 4, Description: "half"}}); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if err := om.WriteConfig(cfg); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "stats.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("stats.csv has %d lines, want header + 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "t,alive_start") {
		t.Errorf("stats header = %q", lines[0])
	}

	f, err := os.Open(filepath.Join(dir, "locations.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var back []Location
	if err := gocsv.UnmarshalFile(f, &back); err != nil {
		t.Fatalf("reading locations.csv: %v", err)
	}
	if len(back) != 3 || back[1] != locs[1] {
		t.Errorf("locations = %+v", back)
	}

	for _, name := range []string{"organisms.csv", "bookmarks.csv", "config.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}
