package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/forage/config"
	"github.com/pthm-cable/forage/forward"
	"github.com/pthm-cable/forage/induction"
	"github.com/pthm-cable/forage/landscape"
	"github.com/pthm-cable/forage/patch"
	"github.com/pthm-cable/forage/store"
	"github.com/pthm-cable/forage/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for the landscape, CSV logs and config snapshot (empty = use config)")
	dbPath := flag.String("db", "", "SQLite database to archive the run in (empty = use config)")
	seed := flag.Int64("seed", 0, "Forward simulation RNG seed (0 = use config, then time-based)")
	workers := flag.Int("workers", 0, "Goroutines per backward timestep (0 = use config)")
	display := flag.Bool("display", false, "Print F0, F1 and D after every backward timestep")
	logFormat := flag.String("log-format", "", "Log format: json or text (empty = use config)")
	logLevel := flag.String("log-level", "", "Log level (empty = use config)")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Flags override config
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *dbPath != "" {
		cfg.Output.DBPath = *dbPath
	}
	if *seed != 0 {
		cfg.Forward.Seed = *seed
	}
	if *workers != 0 {
		cfg.Induction.Workers = *workers
	}
	if *display {
		cfg.Induction.Display = true
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if cfg.Forward.Seed == 0 {
		cfg.Forward.Seed = time.Now().UnixNano()
	}

	// Logs go to stderr so -display output on stdout stays clean
	logger, err := telemetry.NewLogger(os.Stderr, cfg.Logging.Format, cfg.Logging.Level)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg, os.Stdout); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, stdout io.Writer) error {
	b := cfg.Derived.Bounds
	reg := cfg.Derived.Registry

	om, err := telemetry.NewOutputManager(cfg.Output.Dir)
	if err != nil {
		return err
	}
	defer om.Close()

	if err := om.WriteConfig(cfg); err != nil {
		return fmt.Errorf("writing config snapshot: %w", err)
	}

	for i, p := range reg.Patches() {
		slog.Debug("patch", "index", i, "name", p.Name, "expected_gain", p.ExpectedGain())
	}

	opts := []induction.Option{
		induction.WithWorkers(cfg.Induction.Workers),
		induction.WithPerf(telemetry.NewPerfCollector(b.NTimesteps)),
	}
	if cfg.Induction.Display {
		opts = append(opts, induction.WithStepHook(func(t int, f0, f1 []float64, d []int) {
			printStep(stdout, b, t, f0, f1, d)
		}))
	}
	engine, err := induction.NewEngine(reg, b, opts...)
	if err != nil {
		return err
	}

	slog.Info("starting backward induction",
		"n_timesteps", b.NTimesteps,
		"x_crit", b.XCrit,
		"x_max", b.XMax,
		"patches", reg.Len(),
	)
	tb, err := engine.Run()
	if err != nil {
		return err
	}
	slog.Info("decision table built", "records", tb.Len())

	if err := om.WriteLandscape(tb, cfg.Output.LandscapeFile); err != nil {
		return fmt.Errorf("writing landscape: %w", err)
	}

	var res *forward.Result
	if cfg.Forward.NOrganisms > 0 {
		res, err = simulate(cfg, tb, om)
		if err != nil {
			return err
		}
	}

	if cfg.Output.DBPath != "" {
		if err := archive(cfg, tb, res); err != nil {
			return err
		}
	}

	if om != nil {
		slog.Info("output written", "dir", om.Dir())
	}
	return nil
}

func simulate(cfg *config.Config, tb *landscape.Table, om *telemetry.OutputManager) (*forward.Result, error) {
	sim, err := forward.NewSimulator(tb, cfg.Derived.Registry, forward.Options{
		NOrganisms: cfg.Forward.NOrganisms,
		InitState:  cfg.Forward.InitState,
		NTimesteps: cfg.Derived.ForwardTimesteps,
		Seed:       cfg.Forward.Seed,
	})
	if err != nil {
		return nil, err
	}
	sim.SetPerf(telemetry.NewPerfCollector(cfg.Derived.ForwardTimesteps))
	sim.SetObserver(func(stats telemetry.StepStats, locs []telemetry.Location) error {
		if err := om.WriteStats(stats); err != nil {
			return err
		}
		return om.WriteLocations(locs)
	})

	slog.Info("starting forward simulation",
		"organisms", cfg.Forward.NOrganisms,
		"init_state", cfg.Forward.InitState,
		"timesteps", cfg.Derived.ForwardTimesteps,
		"seed", cfg.Forward.Seed,
	)
	res, err := sim.Run()
	if err != nil {
		return nil, err
	}

	if err := om.WriteLifetimes(res.Lifetimes); err != nil {
		return nil, err
	}
	if err := om.WriteBookmarks(res.Bookmarks); err != nil {
		return nil, err
	}
	return res, nil
}

func archive(cfg *config.Config, tb *landscape.Table, res *forward.Result) error {
	db, err := store.Open(cfg.Output.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	snapshot, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	b := cfg.Derived.Bounds
	id, err := db.CreateRun(store.Run{
		NTimesteps: b.NTimesteps,
		XCrit:      b.XCrit,
		XMax:       b.XMax,
		NPatches:   cfg.Derived.Registry.Len(),
		NOrganisms: cfg.Forward.NOrganisms,
		Seed:       cfg.Forward.Seed,
		ConfigYAML: string(snapshot),
	})
	if err != nil {
		return err
	}

	if res == nil {
		res = &forward.Result{}
	}
	return db.SaveRun(id, tb, res.Locations, res.Lifetimes, res.Survivors)
}

// printStep writes one backward timestep as x, F0, F1, D rows.
func printStep(w io.Writer, b patch.Bounds, t int, f0, f1 []float64, d []int) {
	fmt.Fprintf(w, "\ntime %d\n\n", t)
	for x := b.XCrit + 1; x <= b.XMax; x++ {
		fmt.Fprintf(w, "%3d, %6.3f, %6.3f, %2d\n", x, f0[x], f1[x], d[x])
	}
}
