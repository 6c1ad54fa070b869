package config

// Config is the merged application configuration.
type Config struct {
	Log     LogConfig     `koanf:"log"`
	Probe   ProbeConfig   `koanf:"probe"`
	Rank    RankConfig    `koanf:"rank"`
	Storage StorageConfig `koanf:"storage"`
}

// LogConfig controls zerolog behavior.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is "text" or "json".
	Format string `koanf:"format"`
	// File is an optional log file path; empty means stderr.
	File string `koanf:"file"`
}

// ProbeConfig carries the latency engine defaults.
type ProbeConfig struct {
	// TimeoutMS bounds each connection attempt, in milliseconds.
	TimeoutMS int `koanf:"timeout_ms"`
	// Concurrency caps simultaneous connection attempts.
	Concurrency int `koanf:"concurrency"`
}

// RankConfig controls result selection and the output artifact.
type RankConfig struct {
	// Top is how many lowest-latency links are kept.
	Top int `koanf:"top"`
	// OutputFile is where the rewritten links are written.
	OutputFile string `koanf:"output_file"`
}

// StorageConfig controls run persistence.
type StorageConfig struct {
	// WorkspaceDir overrides the default workspace root.
	WorkspaceDir string `koanf:"workspace_dir"`
}
