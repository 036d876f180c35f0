package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/forage/config"
	"github.com/pthm-cable/forage/landscape"
)

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir          string
	statsFile    *os.File
	locationFile *os.File

	// Track if headers have been written
	statsHeaderWritten    bool
	locationHeaderWritten bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "stats.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating stats.csv: %w", err)
	}
	om.statsFile = f

	f, err = os.Create(filepath.Join(dir, "locations.csv"))
	if err != nil {
		om.statsFile.Close()
		return nil, fmt.Errorf("creating locations.csv: %w", err)
	}
	om.locationFile = f

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteLandscape saves the decision table in binary and CSV form.
func (om *OutputManager) WriteLandscape(tb *landscape.Table, binaryName string) error {
	if om == nil {
		return nil
	}
	if binaryName != "" {
		if err := tb.Save(filepath.Join(om.dir, binaryName)); err != nil {
			return err
		}
	}

	f, err := os.Create(filepath.Join(om.dir, "landscape.csv"))
	if err != nil {
		return fmt.Errorf("creating landscape.csv: %w", err)
	}
	if err := tb.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteStats appends a step stats record to stats.csv.
func (om *OutputManager) WriteStats(stats StepStats) error {
	if om == nil {
		return nil
	}

	records := []StepStats{stats}

	if !om.statsHeaderWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, om.statsFile); err != nil {
			return fmt.Errorf("writing stats: %w", err)
		}
		om.statsHeaderWritten = true
	} else {
		// Subsequent writes skip headers
		if err := gocsv.MarshalWithoutHeaders(records, om.statsFile); err != nil {
			return fmt.Errorf("writing stats: %w", err)
		}
	}

	return nil
}

// WriteLocations appends location rows to locations.csv.
func (om *OutputManager) WriteLocations(locs []Location) error {
	if om == nil || len(locs) == 0 {
		return nil
	}

	if !om.locationHeaderWritten {
		if err := gocsv.Marshal(locs, om.locationFile); err != nil {
			return fmt.Errorf("writing locations: %w", err)
		}
		om.locationHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(locs, om.locationFile); err != nil {
			return fmt.Errorf("writing locations: %w", err)
		}
	}

	return nil
}

// WriteLifetimes saves per-organism summaries to organisms.csv.
func (om *OutputManager) WriteLifetimes(stats []LifetimeStats) error {
	if om == nil {
		return nil
	}

	f, err := os.Create(filepath.Join(om.dir, "organisms.csv"))
	if err != nil {
		return fmt.Errorf("creating organisms.csv: %w", err)
	}
	if err := gocsv.Marshal(stats, f); err != nil {
		f.Close()
		return fmt.Errorf("writing organisms: %w", err)
	}
	return f.Close()
}

// WriteBookmarks saves the notable timesteps of a run to bookmarks.csv.
func (om *OutputManager) WriteBookmarks(bookmarks []Bookmark) error {
	if om == nil {
		return nil
	}

	f, err := os.Create(filepath.Join(om.dir, "bookmarks.csv"))
	if err != nil {
		return fmt.Errorf("creating bookmarks.csv: %w", err)
	}
	if len(bookmarks) > 0 {
		if err := gocsv.Marshal(bookmarks, f); err != nil {
			f.Close()
			return fmt.Errorf("writing bookmarks: %w", err)
		}
	}
	return f.Close()
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error

	if om.statsFile != nil {
		if err := om.statsFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if om.locationFile != nil {
		if err := om.locationFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
