// Package probe implements the concurrent TCP latency probing engine. Given
// a set of candidate IP addresses and a port, it dials every candidate under
// a per-attempt timeout, keeps only the attempts that connected, and returns
// them ordered by ascending connection-establishment latency.
package probe

import (
	"context"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout bounds a single connection attempt.
	DefaultTimeout = 3 * time.Second

	// DefaultConcurrency bounds the number of in-flight dials.
	DefaultConcurrency = 50
)

// Outcome pairs a candidate address with its measured connection latency.
// Outcomes exist only for candidates that connected within the timeout;
// failures of any kind (refused, unreachable, timed out) leave no trace in
// the result set.
type Outcome struct {
	Addr    string        `json:"addr"`
	Latency time.Duration `json:"latency"`
}

// Config controls a Prober.
type Config struct {
	// Port is the TCP port dialed on every candidate.
	Port int

	// Timeout bounds each individual connection attempt. There is no
	// global deadline across the batch; total wall-clock time is roughly
	// Timeout once the worker pool has absorbed all candidates.
	Timeout time.Duration

	// Concurrency caps the number of simultaneous dials. Values below 1
	// fall back to DefaultConcurrency.
	Concurrency int
}

// dialFunc matches net.Dialer.DialContext and exists so tests can substitute
// a deterministic dialer.
type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Prober fans connection attempts out over a bounded worker pool and ranks
// the survivors by latency.
type Prober struct {
	config Config
	dial   dialFunc
	logger zerolog.Logger
}

// New builds a Prober, normalizing zero-value config fields to defaults.
func New(cfg Config) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConcurrency
	}

	p := &Prober{
		config: cfg,
		logger: log.With().Str("component", "probe").Int("port", cfg.Port).Logger(),
	}
	p.dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		d := &net.Dialer{Timeout: cfg.Timeout}
		return d.DialContext(ctx, network, address)
	}
	return p
}

// Config returns the normalized configuration the Prober runs with.
func (p *Prober) Config() Config {
	return p.config
}

// Probe dials every candidate address on the configured port and returns the
// outcomes of the successful attempts, sorted by ascending latency (equal
// latencies break ties on the address string). The result is always a subset
// of addrs; callers that only want the best N truncate it themselves.
//
// Every candidate gets exactly one independent attempt. Once dispatched, a
// batch runs to completion: context cancellation stops attempts that have
// not started and aborts in-flight dials, but results already collected are
// still returned.
func (p *Prober) Probe(ctx context.Context, addrs []string) []Outcome {
	if len(addrs) == 0 {
		return nil
	}

	p.logger.Debug().
		Int("candidates", len(addrs)).
		Dur("timeout", p.config.Timeout).
		Int("concurrency", p.config.Concurrency).
		Msg("starting probe batch")

	var wg sync.WaitGroup
	sem := make(chan struct{}, p.config.Concurrency)
	results := make(chan Outcome, len(addrs))

	for _, addr := range addrs {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(candidate string) {
			defer wg.Done()
			defer func() { <-sem }()

			if latency, ok := p.attempt(ctx, candidate); ok {
				results <- Outcome{Addr: candidate, Latency: latency}
			}
		}(addr)
	}

	wg.Wait()
	close(results)

	outcomes := make([]Outcome, 0, len(addrs))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}

	sort.Slice(outcomes, func(i, j int) bool {
		if outcomes[i].Latency != outcomes[j].Latency {
			return outcomes[i].Latency < outcomes[j].Latency
		}
		return outcomes[i].Addr < outcomes[j].Addr
	})

	p.logger.Debug().
		Int("reachable", len(outcomes)).
		Int("dropped", len(addrs)-len(outcomes)).
		Msg("probe batch complete")

	return outcomes
}

// attempt dials one candidate and reports its connection latency. All
// failures collapse into ok=false; individual dial errors are diagnostics,
// not results.
func (p *Prober) attempt(ctx context.Context, addr string) (time.Duration, bool) {
	address := net.JoinHostPort(addr, strconv.Itoa(p.config.Port))

	dialCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dial(dialCtx, "tcp", address)
	if err != nil {
		p.logger.Trace().Str("addr", addr).Err(err).Msg("candidate unreachable")
		return 0, false
	}
	latency := time.Since(start)
	_ = conn.Close()

	return latency, true
}

// Top returns at most n outcomes from the front of a ranked slice without
// copying. n below zero means no limit.
func Top(outcomes []Outcome, n int) []Outcome {
	if n < 0 || n >= len(outcomes) {
		return outcomes
	}
	return outcomes[:n]
}
