// Package config loads provify.yaml (YAML or JSON), applies defaults and
// PROVIFY_* environment overrides, and validates the result.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "provify.yaml"

// Duration is a time.Duration that reads "90s" style strings from YAML and
// JSON.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	return d.set(s)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"90s\": %w", err)
	}
	return d.set(s)
}

func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

func (d *Duration) set(s string) error {
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config is the full runtime configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" json:"store"`
	Targets TargetsConfig `yaml:"targets" json:"targets"`
	Agent   AgentConfig   `yaml:"agent" json:"agent"`
	// Packages maps app names to package identifiers for bugs submitted
	// without one.
	Packages      map[string]string   `yaml:"packages" json:"packages"`
	Orchestrator  OrchestratorConfig  `yaml:"orchestrator" json:"orchestrator"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" json:"driver"` // sqlite | postgres | memory
	DSN    string `yaml:"dsn" json:"dsn"`
}

type TargetsConfig struct {
	Source   string         `yaml:"source" json:"source"` // adb | static
	ADBPath  string         `yaml:"adb_path" json:"adb_path"`
	Static   []StaticTarget `yaml:"static" json:"static"`
	LockFile string         `yaml:"lock_file" json:"lock_file"`
}

type StaticTarget struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

type AgentConfig struct {
	Mode    string   `yaml:"mode" json:"mode"` // mcp | command
	Command string   `yaml:"command" json:"command"`
	Args    []string `yaml:"args" json:"args"`
	Env     []string `yaml:"env" json:"env"`
	Timeout Duration `yaml:"timeout" json:"timeout"`
}

type OrchestratorConfig struct {
	MaxParallelTargets int  `yaml:"max_parallel_targets" json:"max_parallel_targets"`
	HeuristicPackages  bool `yaml:"heuristic_packages" json:"heuristic_packages"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type ObservabilityConfig struct {
	TraceExporter string `yaml:"trace_exporter" json:"trace_exporter"` // none | stdout
	MetricsAddr   string `yaml:"metrics_addr" json:"metrics_addr"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Store:   StoreConfig{Driver: "sqlite", DSN: ".provify/provify.db"},
		Targets: TargetsConfig{Source: "adb", ADBPath: "adb", LockFile: ".provify/devices.lock"},
		Agent:   AgentConfig{Mode: "mcp", Timeout: Duration{120 * time.Second}},
		Orchestrator: OrchestratorConfig{
			HeuristicPackages: true,
		},
		Logging:       LoggingConfig{Level: "info", Format: "text"},
		Observability: ObservabilityConfig{TraceExporter: "none"},
	}
}

// LoadFromPath reads path over the defaults. A missing file at DefaultPath
// is not an error; any other missing path is.
func LoadFromPath(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			cfg := Default()
			if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
				return Config{}, err
			}
			return cfg, cfg.Validate()
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Load(data, filepath.Ext(path))
	if err != nil {
		return Config{}, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Load parses config bytes over the defaults. ext is a format hint (".json",
// ".yaml"); empty means detect from content.
func Load(data []byte, ext string) (Config, error) {
	cfg := Default()
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" && strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		ext = ".json"
	}
	if ext == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config json: %w", err)
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config yaml: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from PROVIFY_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PROVIFY_STORE_DRIVER", &c.Store.Driver)
	str("PROVIFY_STORE_DSN", &c.Store.DSN)
	str("PROVIFY_TARGETS_SOURCE", &c.Targets.Source)
	str("PROVIFY_ADB_PATH", &c.Targets.ADBPath)
	str("PROVIFY_LOCK_FILE", &c.Targets.LockFile)
	str("PROVIFY_AGENT_MODE", &c.Agent.Mode)
	str("PROVIFY_AGENT_COMMAND", &c.Agent.Command)
	str("PROVIFY_LOG_LEVEL", &c.Logging.Level)
	str("PROVIFY_LOG_FORMAT", &c.Logging.Format)
	str("PROVIFY_TRACE_EXPORTER", &c.Observability.TraceExporter)
	str("PROVIFY_METRICS_ADDR", &c.Observability.MetricsAddr)

	if v, ok := lookup("PROVIFY_AGENT_TIMEOUT"); ok && v != "" {
		if err := c.Agent.Timeout.set(v); err != nil {
			return fmt.Errorf("PROVIFY_AGENT_TIMEOUT: %w", err)
		}
	}
	if v, ok := lookup("PROVIFY_MAX_PARALLEL_TARGETS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PROVIFY_MAX_PARALLEL_TARGETS: %w", err)
		}
		c.Orchestrator.MaxParallelTargets = n
	}
	if v, ok := lookup("PROVIFY_TARGETS"); ok && v != "" {
		c.Targets.Source = "static"
		c.Targets.Static = nil
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				c.Targets.Static = append(c.Targets.Static, StaticTarget{ID: id})
			}
		}
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("store.driver %q: want sqlite, postgres or memory", c.Store.Driver)
	}
	switch c.Targets.Source {
	case "adb":
	case "static":
		if len(c.Targets.Static) == 0 {
			return errors.New("targets.static is empty")
		}
		for i, t := range c.Targets.Static {
			if t.ID == "" {
				return fmt.Errorf("targets.static[%d]: id is required", i)
			}
		}
	default:
		return fmt.Errorf("targets.source %q: want adb or static", c.Targets.Source)
	}
	switch c.Agent.Mode {
	case "mcp":
	case "command":
		if c.Agent.Command == "" {
			return errors.New("agent.command is required in command mode")
		}
	default:
		return fmt.Errorf("agent.mode %q: want mcp or command", c.Agent.Mode)
	}
	if c.Agent.Timeout.Duration <= 0 {
		return errors.New("agent.timeout must be positive")
	}
	if c.Orchestrator.MaxParallelTargets < 0 {
		return errors.New("orchestrator.max_parallel_targets must not be negative")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q: want text or json", c.Logging.Format)
	}
	return nil
}
