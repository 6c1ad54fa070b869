// Package config loads and merges linktune configuration from defaults, an
// optional YAML file, LINKTUNE_* environment variables, and command-line
// flags, in that order of increasing precedence.
package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/linktune/linktune/pkg/probe"
)

// Global Koanf instance, initialized once at startup.
var (
	k    *koanf.Koanf
	once sync.Once
)

// InitGlobalConfig initializes the global Koanf instance.
// This should be called early in the application lifecycle, before Load.
func InitGlobalConfig() {
	once.Do(func() {
		k = koanf.New(".")
	})
}

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex // To protect currentConfig during runtime updates
}

// NewManager creates a new Manager backed by the global Koanf instance,
// initializing it if needed.
func NewManager() *Manager {
	InitGlobalConfig()
	return &Manager{
		koanfInstance: k,
	}
}

// DefaultConfig returns a Config populated with the baseline values used
// when no other source overrides them.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
		Probe: ProbeConfig{
			TimeoutMS:   int(probe.DefaultTimeout.Milliseconds()),
			Concurrency: probe.DefaultConcurrency,
		},
		Rank: RankConfig{
			Top:        10,
			OutputFile: "optimized_nodes.txt",
		},
		Storage: StorageConfig{
			WorkspaceDir: "",
		},
	}
}

// Load loads configuration from the default source stack.
//
// Configuration precedence (highest to lowest):
//  1. Command-line flags (--probe.timeout_ms=500)
//  2. Environment variables (LINKTUNE_PROBE_TIMEOUT_MS=500)
//  3. Config file (YAML)
//  4. Default values
func (m *Manager) Load(flags *pflag.FlagSet, customConfigFilePath string) error {
	return m.LoadWithSources(DefaultSources(customConfigFilePath, flags))
}

// LoadWithSources loads configuration from the provided sources in priority
// order. Sources with lower priority values load first; higher priority
// sources override their values.
func (m *Manager) LoadWithSources(sources []ConfigSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Priority() < sources[j].Priority()
	})

	for _, src := range sources {
		if err := src.Load(m.koanfInstance); err != nil {
			return fmt.Errorf("error loading config from %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	m.currentConfig = newCfg

	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfgCopy := m.currentConfig
	return cfgCopy
}

// GetValue retrieves a configuration value by key path.
// Example: GetValue("probe.concurrency")
// Returns nil if the key doesn't exist.
func (m *Manager) GetValue(key string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.koanfInstance.Get(key)
}

// DefaultConfigAsMap converts DefaultConfig to a flat map for Koanf's
// confmap provider, so every known key exists before overrides apply.
func DefaultConfigAsMap() map[string]any {
	def := DefaultConfig()
	return map[string]any{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		"probe.timeout_ms":  def.Probe.TimeoutMS,
		"probe.concurrency": def.Probe.Concurrency,

		"rank.top":         def.Rank.Top,
		"rank.output_file": def.Rank.OutputFile,

		"storage.workspace_dir": def.Storage.WorkspaceDir,
	}
}

// BindFlags defines command-line flags corresponding to configuration
// settings so they can override file and environment values.
func BindFlags(flags *pflag.FlagSet) {
	defaults := DefaultConfig()

	flags.String("log.level", defaults.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("log.format", defaults.Log.Format, "Log format (text, json)")
	flags.Int("probe.timeout_ms", defaults.Probe.TimeoutMS, "Per-attempt connection timeout in milliseconds")
	flags.Int("probe.concurrency", defaults.Probe.Concurrency, "Maximum simultaneous connection attempts")
	flags.Int("rank.top", defaults.Rank.Top, "How many lowest-latency links to keep")
	flags.String("rank.output_file", defaults.Rank.OutputFile, "Path of the rewritten links artifact")
}
