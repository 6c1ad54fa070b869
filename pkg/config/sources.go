package config

import (
	"fmt"
	"os"
	"strings"

	yamlparser "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigSource is one layer of the configuration stack. Sources with lower
// Priority load first; later loads override earlier keys.
type ConfigSource interface {
	Name() string
	Priority() int
	Load(k *koanf.Koanf) error
}

// Source priorities. Leave gaps so callers can slot custom sources between
// the built-in layers.
const (
	PriorityDefaults = 10
	PriorityFile     = 20
	PriorityEnv      = 30
	PriorityFlags    = 40
)

// envPrefix is the environment variable namespace, e.g. LINKTUNE_LOG_LEVEL.
const envPrefix = "LINKTUNE_"

// DefaultSources returns the standard source stack:
// defaults < config file < environment < flags.
func DefaultSources(configFilePath string, flags *pflag.FlagSet) []ConfigSource {
	sources := []ConfigSource{
		defaultsSource{},
		fileSource{path: configFilePath},
		envSource{},
	}
	if flags != nil {
		sources = append(sources, flagSource{flags: flags})
	}
	return sources
}

type defaultsSource struct{}

func (defaultsSource) Name() string  { return "defaults" }
func (defaultsSource) Priority() int { return PriorityDefaults }

func (defaultsSource) Load(k *koanf.Koanf) error {
	return k.Load(confmap.Provider(DefaultConfigAsMap(), "."), nil)
}

type fileSource struct {
	path string
}

func (s fileSource) Name() string  { return "file" }
func (s fileSource) Priority() int { return PriorityFile }

func (s fileSource) Load(k *koanf.Koanf) error {
	if s.path == "" {
		return nil
	}
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("config file %q: %w", s.path, err)
	}
	return k.Load(file.Provider(s.path), yamlparser.Parser())
}

type envSource struct{}

func (envSource) Name() string  { return "env" }
func (envSource) Priority() int { return PriorityEnv }

func (envSource) Load(k *koanf.Koanf) error {
	// LINKTUNE_PROBE_TIMEOUT_MS -> probe.timeout_ms. Only the first
	// underscore becomes a delimiter; the rest stay part of the key.
	return k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.Replace(key, "_", ".", 1)
	}), nil)
}

type flagSource struct {
	flags *pflag.FlagSet
}

func (flagSource) Name() string  { return "flags" }
func (flagSource) Priority() int { return PriorityFlags }

func (s flagSource) Load(k *koanf.Koanf) error {
	return k.Load(posflag.Provider(s.flags, ".", k), nil)
}
