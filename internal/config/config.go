// Package config loads the assistant configuration from a YAML file.
// Environment variables referenced as ${VAR} are expanded before parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the assistant.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	LLM       LLMConfig       `yaml:"llm"`
	Memory    MemoryConfig    `yaml:"memory"`
	Workflows WorkflowsConfig `yaml:"workflows"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AgentConfig controls the turn loop.
type AgentConfig struct {
	Persona       string `yaml:"persona"`
	MaxIterations int    `yaml:"max_iterations"`
}

type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
}

// MemoryConfig controls persistence, compaction, and semantic indexing.
type MemoryConfig struct {
	DatabasePath        string `yaml:"database_path"`
	RecentWindow        int    `yaml:"recent_window"`
	CompactionThreshold int    `yaml:"compaction_threshold"`
	KeepRecent          int    `yaml:"keep_recent"`
	QueueCapacity       int    `yaml:"queue_capacity"`
	EmbeddingModel      string `yaml:"embedding_model"`
}

// WorkflowsConfig declares scheduled plans.
type WorkflowsConfig struct {
	Entries []WorkflowConfig `yaml:"entries"`
}

type WorkflowConfig struct {
	Name     string     `yaml:"name"`
	Schedule string     `yaml:"schedule"`
	Steps    []StepSpec `yaml:"steps"`
}

// StepSpec mirrors a plan step in configuration form.
type StepSpec struct {
	Subagent string         `yaml:"subagent"`
	Action   string         `yaml:"action"`
	Input    map[string]any `yaml:"input"`
	Parallel bool           `yaml:"parallel"`
	Confirm  bool           `yaml:"confirm"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// Default returns a configuration with every default applied, suitable for
// running without a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Agent.Persona == "" {
		cfg.Agent.Persona = "You are Steward, a capable personal assistant. Be concise and direct."
	}
	if cfg.Agent.MaxIterations == 0 {
		cfg.Agent.MaxIterations = 10
	}
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}
	if cfg.Memory.DatabasePath == "" {
		cfg.Memory.DatabasePath = "steward.db"
	}
	if cfg.Memory.RecentWindow == 0 {
		cfg.Memory.RecentWindow = 25
	}
	if cfg.Memory.CompactionThreshold == 0 {
		cfg.Memory.CompactionThreshold = 30
	}
	if cfg.Memory.KeepRecent == 0 {
		cfg.Memory.KeepRecent = 20
	}
	if cfg.Memory.QueueCapacity == 0 {
		cfg.Memory.QueueCapacity = 64
	}
	if cfg.Memory.EmbeddingModel == "" {
		cfg.Memory.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks cross-field constraints that defaults cannot fix.
func (c *Config) Validate() error {
	if c.Memory.KeepRecent >= c.Memory.CompactionThreshold {
		return fmt.Errorf("memory.keep_recent (%d) must be below memory.compaction_threshold (%d)",
			c.Memory.KeepRecent, c.Memory.CompactionThreshold)
	}
	for _, wf := range c.Workflows.Entries {
		if wf.Name == "" {
			return fmt.Errorf("workflow entries require a name")
		}
		if wf.Schedule == "" {
			return fmt.Errorf("workflow %s requires a schedule", wf.Name)
		}
		if len(wf.Steps) == 0 {
			return fmt.Errorf("workflow %s requires at least one step", wf.Name)
		}
	}
	return nil
}

// timeouts used across the assistant; kept here so callers share one source.
const (
	// DefaultToolTimeout bounds one capability execution.
	DefaultToolTimeout = 60 * time.Second
	// DefaultLLMTimeout bounds one model call.
	DefaultLLMTimeout = 120 * time.Second
)
