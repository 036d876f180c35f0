// Package store archives runs in SQLite: the parameters, the decision table
// and the forward trajectories, so results from many runs can be queried together.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/forage/landscape"
	"github.com/pthm-cable/forage/patch"
	"github.com/pthm-cable/forage/telemetry"
)

// ErrNoRun is returned when a run id is not in the database.
var ErrNoRun = errors.New("store: run not found")

// DB wraps a SQLite connection for run archiving.
type DB struct {
	conn *sqlx.DB
}

// Run is one archived run.
type Run struct {
	ID         int64  `db:"id"`
	CreatedAt  string `db:"created_at"`
	NTimesteps int    `db:"n_timesteps"`
	XCrit      int    `db:"x_crit"`
	XMax       int    `db:"x_max"`
	NPatches   int    `db:"n_patches"`
	NOrganisms int    `db:"n_organisms"`
	Seed       int64  `db:"seed"`
	Survivors  int    `db:"survivors"` // -1 until FinishRun
	ConfigYAML string `db:"config_yaml"`
}

// Bounds returns the model bounds the run was computed with.
func (r Run) Bounds() patch.Bounds {
	return patch.Bounds{NTimesteps: r.NTimesteps, XCrit: r.XCrit, XMax: r.XMax}
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TEXT NOT NULL,
		n_timesteps INTEGER NOT NULL,
		x_crit INTEGER NOT NULL,
		x_max INTEGER NOT NULL,
		n_patches INTEGER NOT NULL,
		n_organisms INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		survivors INTEGER NOT NULL DEFAULT -1,
		config_yaml TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS landscape (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		t INTEGER NOT NULL,
		state INTEGER NOT NULL,
		f0 REAL NOT NULL,
		f1 REAL NOT NULL,
		patch INTEGER NOT NULL,
		PRIMARY KEY (run_id, t, state)
	);

	CREATE TABLE IF NOT EXISTS locations (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		t INTEGER NOT NULL,
		organism INTEGER NOT NULL,
		state INTEGER NOT NULL,
		patch INTEGER NOT NULL,
		alive INTEGER NOT NULL,
		PRIMARY KEY (run_id, t, organism)
	);

	CREATE TABLE IF NOT EXISTS organisms (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		organism INTEGER NOT NULL,
		init_state INTEGER NOT NULL,
		final_state INTEGER NOT NULL,
		peak_state INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		times_fed INTEGER NOT NULL,
		death_t INTEGER NOT NULL,
		cause TEXT NOT NULL,
		patch_visits TEXT NOT NULL,
		PRIMARY KEY (run_id, organism)
	);

	CREATE INDEX IF NOT EXISTS idx_locations_organism ON locations(run_id, organism);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreateRun inserts a run header and returns its id.
func (db *DB) CreateRun(r Run) (int64, error) {
	if r.CreatedAt == "" {
		r.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	res, err := db.conn.NamedExec(`INSERT INTO runs
		(created_at, n_timesteps, x_crit, x_max, n_patches, n_organisms, seed, survivors, config_yaml)
		VALUES (:created_at, :n_timesteps, :x_crit, :x_max, :n_patches, :n_organisms, :seed, -1, :config_yaml)`,
		r)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun records the number of organisms alive at the end of the run.
func (db *DB) FinishRun(id int64, survivors int) error {
	res, err := db.conn.Exec("UPDATE runs SET survivors = ? WHERE id = ?", survivors, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNoRun, id)
	}
	return nil
}

// GetRun returns the run header for id.
func (db *DB) GetRun(id int64) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: %d", ErrNoRun, id)
	}
	return r, err
}

// Runs returns every archived run, newest first.
func (db *DB) Runs() ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY id DESC")
	return runs, err
}

type landscapeRow struct {
	T     int     `db:"t"`
	State int     `db:"state"`
	F0    float64 `db:"f0"`
	F1    float64 `db:"f1"`
	Patch int     `db:"patch"`
}

// SaveLandscape writes the decision table for a run (full replace).
func (db *DB) SaveLandscape(runID int64, tb *landscape.Table) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM landscape WHERE run_id = ?", runID); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO landscape (run_id, t, state, f0, f1, patch)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var insertErr error
	tb.Each(func(r landscape.Record) bool {
		_, insertErr = stmt.Exec(runID, r.T, r.State, r.FitnessNow, r.FitnessNext, r.ChosenPatch)
		if insertErr != nil {
			insertErr = fmt.Errorf("insert record t=%d state=%d: %w", r.T, r.State, insertErr)
			return false
		}
		return true
	})
	if insertErr != nil {
		return insertErr
	}

	return tx.Commit()
}

// LoadLandscape rebuilds the decision table stored for a run.
func (db *DB) LoadLandscape(runID int64) (*landscape.Table, error) {
	run, err := db.GetRun(runID)
	if err != nil {
		return nil, err
	}

	var rows []landscapeRow
	err = db.conn.Select(&rows,
		"SELECT t, state, f0, f1, patch FROM landscape WHERE run_id = ? ORDER BY t, state",
		runID)
	if err != nil {
		return nil, err
	}

	records := make([]landscape.Record, len(rows))
	for i, r := range rows {
		records[i] = landscape.Record{
			T:           r.T,
			State:       r.State,
			FitnessNow:  r.F0,
			FitnessNext: r.F1,
			ChosenPatch: r.Patch,
		}
	}
	return landscape.FromRecords(run.Bounds(), records)
}

type locationRow struct {
	T        int  `db:"t"`
	Organism int  `db:"organism"`
	State    int  `db:"state"`
	Patch    int  `db:"patch"`
	Alive    bool `db:"alive"`
}

// SaveLocations appends trajectory rows for a run.
func (db *DB) SaveLocations(runID int64, locs []telemetry.Location) error {
	if len(locs) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO locations (run_id, t, organism, state, patch, alive)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, l := range locs {
		alive := 0
		if l.Alive {
			alive = 1
		}
		if _, err := stmt.Exec(runID, l.T, l.ID, l.State, l.Patch, alive); err != nil {
			return fmt.Errorf("insert location t=%d organism=%d: %w", l.T, l.ID, err)
		}
	}

	return tx.Commit()
}

// Locations returns a run's trajectory rows ordered by time then organism.
func (db *DB) Locations(runID int64) ([]telemetry.Location, error) {
	var rows []locationRow
	err := db.conn.Select(&rows,
		"SELECT t, organism, state, patch, alive FROM locations WHERE run_id = ? ORDER BY t, organism",
		runID)
	if err != nil {
		return nil, err
	}

	locs := make([]telemetry.Location, len(rows))
	for i, r := range rows {
		locs[i] = telemetry.Location{T: r.T, ID: r.Organism, State: r.State, Patch: r.Patch, Alive: r.Alive}
	}
	return locs, nil
}

type organismRow struct {
	Organism   int    `db:"organism"`
	InitState  int    `db:"init_state"`
	FinalState int    `db:"final_state"`
	PeakState  int    `db:"peak_state"`
	Steps      int    `db:"steps"`
	TimesFed   int    `db:"times_fed"`
	DeathT     int    `db:"death_t"`
	Cause      string `db:"cause"`
	Visits     string `db:"patch_visits"`
}

// SaveLifetimes writes per-organism summaries for a run (full replace).
func (db *DB) SaveLifetimes(runID int64, stats []telemetry.LifetimeStats) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM organisms WHERE run_id = ?", runID); err != nil {
		return err
	}

	for _, s := range stats {
		visits, err := s.Visits.MarshalCSV()
		if err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT INTO organisms
			(run_id, organism, init_state, final_state, peak_state, steps, times_fed, death_t, cause, patch_visits)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, s.ID, s.InitState, s.FinalState, s.PeakState,
			s.Steps, s.TimesFed, s.DeathT, string(s.Cause), visits,
		)
		if err != nil {
			return fmt.Errorf("insert organism %d: %w", s.ID, err)
		}
	}

	return tx.Commit()
}

// Lifetimes returns the per-organism summaries of a run ordered by id.
func (db *DB) Lifetimes(runID int64) ([]telemetry.LifetimeStats, error) {
	var rows []organismRow
	err := db.conn.Select(&rows,
		`SELECT organism, init_state, final_state, peak_state, steps, times_fed, death_t, cause, patch_visits
		FROM organisms WHERE run_id = ? ORDER BY organism`,
		runID)
	if err != nil {
		return nil, err
	}

	out := make([]telemetry.LifetimeStats, len(rows))
	for i, r := range rows {
		out[i] = telemetry.LifetimeStats{
			ID:         r.Organism,
			InitState:  r.InitState,
			FinalState: r.FinalState,
			PeakState:  r.PeakState,
			Steps:      r.Steps,
			TimesFed:   r.TimesFed,
			DeathT:     r.DeathT,
			Cause:      telemetry.DeathCause(r.Cause),
		}
		if err := out[i].Visits.UnmarshalCSV(r.Visits); err != nil {
			return nil, fmt.Errorf("organism %d: %w", r.Organism, err)
		}
	}
	return out, nil
}

// SaveRun archives a finished run in one call: the table, trajectories and
// organism summaries, and the survivor count.
func (db *DB) SaveRun(runID int64, tb *landscape.Table, locs []telemetry.Location, lifetimes []telemetry.LifetimeStats, survivors int) error {
	slog.Info("archiving run", "run_id", runID, "records", tb.Len(), "locations", len(locs))

	if err := db.SaveLandscape(runID, tb); err != nil {
		return fmt.Errorf("save landscape: %w", err)
	}
	if err := db.SaveLocations(runID, locs); err != nil {
		return fmt.Errorf("save locations: %w", err)
	}
	if err := db.SaveLifetimes(runID, lifetimes); err != nil {
		return fmt.Errorf("save lifetimes: %w", err)
	}
	if err := db.FinishRun(runID, survivors); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	slog.Info("run archived", "run_id", runID)
	return nil
}
