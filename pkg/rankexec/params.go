package rankexec

import "time"

// DefaultTop is how many lowest-latency links a run keeps unless told
// otherwise.
const DefaultTop = 10

// Params defines the input required to initiate an optimization run.
type Params struct {
	// Link is the raw node link whose host gets substituted.
	Link string

	// AddressFile is the path of the newline-separated candidate list.
	AddressFile string

	// Timeout bounds each connection attempt. Zero means the probe
	// engine default.
	Timeout time.Duration

	// Concurrency caps simultaneous connection attempts. Zero means the
	// probe engine default.
	Concurrency int

	// Top is how many ranked links to keep. Values below 1 fall back to
	// DefaultTop.
	Top int

	// OutputFile is where the ranked links artifact is written. Empty
	// skips the caller-facing artifact (the storage copy is unaffected).
	OutputFile string

	// OutputFormat selects the rendering of the final result summary:
	// text, json, or yaml.
	OutputFormat string

	// EnablePing turns on the ICMP prefilter that probes echo
	// responders first.
	EnablePing bool

	// RawInputs carries loosely-typed overrides (e.g. from config maps);
	// recognized keys: timeout_ms, concurrency, top.
	RawInputs map[string]any
}

// RankedLink is one surviving candidate with its rewritten link.
type RankedLink struct {
	Link    string        `json:"link" yaml:"link"`
	Addr    string        `json:"addr" yaml:"addr"`
	Latency time.Duration `json:"latency_ns" yaml:"latency_ns"`
}

// Result is the structured outcome of a run.
type Result struct {
	RunID          string       `json:"run_id" yaml:"run_id"`
	StartTime      string       `json:"start_time" yaml:"start_time"`
	EndTime        string       `json:"end_time" yaml:"end_time"`
	Status         string       `json:"status" yaml:"status"`
	CandidateCount int          `json:"candidate_count" yaml:"candidate_count"`
	ReachableCount int          `json:"reachable_count" yaml:"reachable_count"`
	Entries        []RankedLink `json:"entries" yaml:"entries"`
	OutputPath     string       `json:"output_path,omitempty" yaml:"output_path,omitempty"`
}
