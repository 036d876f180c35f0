package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/forage/landscape"
	"github.com/pthm-cable/forage/patch"
	"github.com/pthm-cable/forage/store"
)

var testBounds = patch.Bounds{NTimesteps: 2, XCrit: 1, XMax: 3}

func makeTable(t *testing.T) *landscape.Table {
	t.Helper()
	var rows []landscape.Record
	for ts := 0; ts < testBounds.NTimesteps; ts++ {
		for x := testBounds.XCrit + 1; x <= testBounds.XMax; x++ {
			rows = append(rows, landscape.Record{T: ts, State: x, FitnessNow: 0.5, FitnessNext: 0.75, ChosenPatch: x - 2})
		}
	}
	tb, err := landscape.FromRecords(testBounds, rows)
	if err != nil {
		t.Fatal(err)
	}
	return tb
}

func TestInspectFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "landscape.bin")
	if err := makeTable(t).Save(path); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	tb, err := open(&out, path, "", 0)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	if err := inspect(&out, tb, -1, -1); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(out.String(), "\n"); lines != tb.Len() {
		t.Errorf("printed %d lines, want %d", lines, tb.Len())
	}

	out.Reset()
	if err := inspect(&out, tb, 1, 3); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "t=1 state=3 F0=0.500000 F1=0.750000 patch=1\n" {
		t.Errorf("lookup printed %q", got)
	}

	if err := inspect(&out, tb, 0, 1); !errors.Is(err, landscape.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestInspectFromArchive(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	id, err := db.CreateRun(store.Run{NTimesteps: 2, XCrit: 1, XMax: 3, NPatches: 2, ConfigYAML: "{}"})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SaveLandscape(id, makeTable(t)); err != nil {
		t.Fatal(err)
	}
	db.Close()

	var out bytes.Buffer
	tb, err := open(&out, "", dbPath, 0)
	if err != nil || tb != nil {
		t.Fatalf("listing: tb=%v err=%v", tb, err)
	}
	if !strings.Contains(out.String(), "created") || strings.Count(out.String(), "\n") != 2 {
		t.Errorf("listing = %q", out.String())
	}

	tb, err = open(&out, "", dbPath, id)
	if err != nil {
		t.Fatalf("open run failed: %v", err)
	}
	if tb.Len() != 4 {
		t.Errorf("Len() = %d, want 4", tb.Len())
	}

	if _, err := open(&out, "", "", 0); err == nil {
		t.Error("expected error with no source")
	}
}
