// Package config provides configuration loading and access for the model.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/forage/patch"
)

//go:embed defaults.yaml
var defaultsYAML []byte

//go:embed schema.json
var schemaJSON string

var (
	// ErrSchema wraps structural problems found by the JSON schema.
	ErrSchema = errors.New("config: schema validation failed")
	// ErrForward wraps invalid forward simulation settings.
	ErrForward = errors.New("config: invalid forward settings")
)

var schema = jsonschema.MustCompileString("config.schema.json", schemaJSON)

// Config holds all model configuration parameters.
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Patches   PatchesConfig   `yaml:"patches"`
	Induction InductionConfig `yaml:"induction"`
	Forward   ForwardConfig   `yaml:"forward"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ModelConfig holds the state space of the backward induction.
type ModelConfig struct {
	NTimesteps int `yaml:"n_timesteps"` // Horizon T
	XCrit      int `yaml:"x_crit"`      // Critical reserve, dead at or below
	XMax       int `yaml:"x_max"`       // Reserve capacity
}

// PatchesConfig holds one entry per patch in each parallel list.
type PatchesConfig struct {
	Names          []string  `yaml:"names"`
	Cost           []int     `yaml:"cost"`
	ProbPred       []float64 `yaml:"prob_pred"`
	ProbFood       []float64 `yaml:"prob_food"`
	StateIncrement []int     `yaml:"state_increment"`
}

// InductionConfig holds backward pass settings.
type InductionConfig struct {
	Workers int  `yaml:"workers"` // Goroutines per timestep (0 = GOMAXPROCS)
	Display bool `yaml:"display"` // Print F0/F1/D after every timestep
}

// ForwardConfig holds forward simulation settings.
type ForwardConfig struct {
	NOrganisms int   `yaml:"n_organisms"`
	InitState  int   `yaml:"init_state"`
	NTimesteps int   `yaml:"n_timesteps"` // 0 = model.n_timesteps
	Seed       int64 `yaml:"seed"`        // 0 = time-based
}

// OutputConfig holds output locations.
type OutputConfig struct {
	Dir           string `yaml:"dir"`
	LandscapeFile string `yaml:"landscape_file"`
	DBPath        string `yaml:"db_path"`
}

// LoggingConfig holds log handler settings.
type LoggingConfig struct {
	Format string `yaml:"format"` // json | text
	Level  string `yaml:"level"`
}

// DerivedConfig holds values computed from the loaded config.
type DerivedConfig struct {
	Bounds           patch.Bounds
	Registry         *patch.Registry
	ForwardTimesteps int
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return Parse(data)
}

// Parse merges YAML data over the embedded defaults, validates the result
// and computes derived values. Empty data yields the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if len(data) > 0 {
		// Only overwrites fields present in data; lists are replaced whole
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		var overlay struct {
			Patches map[string]yaml.Node `yaml:"patches"`
		}
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		// Default names only describe the default patch set
		if _, ok := overlay.Patches["names"]; !ok && len(cfg.Patches.Names) != len(cfg.Patches.Cost) {
			cfg.Patches.Names = nil
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config against the schema and the cross-field rules
// and recomputes Derived. Call it again after editing fields in place.
func (c *Config) Validate() error {
	if err := c.validateSchema(); err != nil {
		return err
	}
	return c.computeDerived()
}

// Clone returns a validated deep copy of the config.
func (c *Config) Clone() (*Config, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return Parse(data)
}

// validateSchema checks the merged config against the embedded JSON schema.
// The config is round-tripped through YAML and JSON so the validator sees
// plain JSON values keyed by the YAML field names.
func (c *Config) validateSchema() error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("re-reading config: %w", err)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("converting config to json: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(js))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decoding config json: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

// computeDerived builds the registry and bounds and checks cross-field rules.
func (c *Config) computeDerived() error {
	b := patch.Bounds{
		NTimesteps: c.Model.NTimesteps,
		XCrit:      c.Model.XCrit,
		XMax:       c.Model.XMax,
	}
	if err := b.Validate(); err != nil {
		return err
	}

	p := c.Patches
	reg, err := patch.FromLists(p.Cost, p.ProbPred, p.ProbFood, p.StateIncrement)
	if err != nil {
		return err
	}
	if len(p.Names) > 0 {
		if len(p.Names) != reg.Len() {
			return fmt.Errorf("%w: names=%d patches=%d", patch.ErrLengthMismatch, len(p.Names), reg.Len())
		}
		patches := reg.Patches()
		for i := range patches {
			patches[i].Name = p.Names[i]
		}
		if reg, err = patch.NewRegistry(patches); err != nil {
			return err
		}
	}

	fwdSteps := c.Forward.NTimesteps
	if fwdSteps == 0 {
		fwdSteps = b.NTimesteps
	}
	if fwdSteps > b.NTimesteps {
		return fmt.Errorf("%w: n_timesteps %d exceeds model horizon %d", ErrForward, fwdSteps, b.NTimesteps)
	}
	init := c.Forward.InitState
	if c.Forward.NOrganisms > 0 && (!b.Alive(init) || init > b.XMax) {
		return fmt.Errorf("%w: init_state %d outside (%d, %d]", ErrForward, c.Forward.InitState, b.XCrit, b.XMax)
	}

	c.Derived.Bounds = b
	c.Derived.Registry = reg
	c.Derived.ForwardTimesteps = fwdSteps
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
