// Package main prints a saved decision table.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/pthm-cable/forage/landscape"
	"github.com/pthm-cable/forage/store"
)

func main() {
	path := flag.String("landscape", "", "Path to a landscape.bin file")
	dbPath := flag.String("db", "", "SQLite run archive (used with -run)")
	runID := flag.Int64("run", 0, "Run id in the archive (0 = list runs)")
	t := flag.Int("t", -1, "Timestep to look up (-1 = print the whole table)")
	state := flag.Int("state", -1, "Reserve to look up, with -t")
	flag.Parse()

	tb, err := open(os.Stdout, *path, *dbPath, *runID)
	if err != nil {
		log.Fatal(err)
	}
	if tb == nil {
		return
	}

	if err := inspect(os.Stdout, tb, *t, *state); err != nil {
		log.Fatal(err)
	}
}

// open loads the table from a file or from the run archive. With a database
// and no run id it lists the archived runs and returns nil.
func open(w io.Writer, path, dbPath string, runID int64) (*landscape.Table, error) {
	switch {
	case path != "":
		return landscape.Load(path)
	case dbPath != "":
		db, err := store.Open(dbPath)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		if runID != 0 {
			return db.LoadLandscape(runID)
		}
		runs, err := db.Runs()
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(w, "%4s  %-20s  %3s %3s %3s  %7s  %9s\n", "id", "created", "T", "xc", "xm", "patches", "survivors")
		for _, r := range runs {
			fmt.Fprintf(w, "%4d  %-20s  %3d %3d %3d  %7d  %4d/%-4d\n",
				r.ID, r.CreatedAt, r.NTimesteps, r.XCrit, r.XMax, r.NPatches, r.Survivors, r.NOrganisms)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("one of -landscape or -db is required")
	}
}

// inspect prints one record when t is set, or the whole table otherwise.
func inspect(w io.Writer, tb *landscape.Table, t, state int) error {
	if t < 0 {
		return tb.Format(w)
	}
	rec, err := tb.Get(t, state)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "t=%d state=%d F0=%.6f F1=%.6f patch=%d\n",
		rec.T, rec.State, rec.FitnessNow, rec.FitnessNext, rec.ChosenPatch)
	return err
}
