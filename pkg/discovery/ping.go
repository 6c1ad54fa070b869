// Package discovery provides an optional ICMP reachability prefilter for
// candidate addresses. The prefilter only reorders candidates - echo
// responders move to the front so the most promising addresses are probed
// first - and never drops anything: TCP reachability is the authority on
// what survives.
package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/go-ping/ping"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultPingTimeout     = 1 * time.Second
	defaultPingCount       = 1
	defaultPingConcurrency = 50
)

// PingConfig holds configuration for the ICMP prefilter.
type PingConfig struct {
	// Timeout bounds the whole echo exchange for one address.
	Timeout time.Duration
	// Count is the number of echo requests per address.
	Count int
	// Privileged selects raw-socket ICMP (needs root); the default is
	// unprivileged UDP mode.
	Privileged bool
	// Concurrency caps simultaneous pings.
	Concurrency int
}

// Pinger is the subset of the ping library the prefilter uses.
type Pinger interface {
	Run() error
	Statistics() *ping.Statistics
	SetPrivileged(bool)
}

type pingerFactoryFunc func(addr string) (Pinger, error)

// PingPrefilter reorders candidates by ICMP echo responsiveness.
type PingPrefilter struct {
	config        PingConfig
	pingerFactory pingerFactoryFunc
	logger        zerolog.Logger
}

// NewPingPrefilter builds a prefilter, normalizing zero-value config fields.
func NewPingPrefilter(cfg PingConfig) *PingPrefilter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPingTimeout
	}
	if cfg.Count < 1 {
		cfg.Count = defaultPingCount
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = defaultPingConcurrency
	}

	return &PingPrefilter{
		config: cfg,
		logger: log.With().Str("component", "ping-prefilter").Logger(),
		pingerFactory: func(addr string) (Pinger, error) {
			p, err := ping.NewPinger(addr)
			if err != nil {
				return nil, err
			}
			p.Count = cfg.Count
			p.Timeout = cfg.Timeout
			return p, nil
		},
	}
}

// Order returns addrs with ICMP echo responders first. Relative order within
// the responder and non-responder groups is preserved. Ping failures of any
// kind simply leave an address in the non-responder group.
func (p *PingPrefilter) Order(ctx context.Context, addrs []string) []string {
	if len(addrs) < 2 {
		return addrs
	}

	responsive := make([]bool, len(addrs))

	var wg sync.WaitGroup
	sem := make(chan struct{}, p.config.Concurrency)

	for i, addr := range addrs {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, candidate string) {
			defer wg.Done()
			defer func() { <-sem }()

			responsive[idx] = p.echo(candidate)
		}(i, addr)
	}
	wg.Wait()

	ordered := make([]string, 0, len(addrs))
	for i, addr := range addrs {
		if responsive[i] {
			ordered = append(ordered, addr)
		}
	}
	responders := len(ordered)
	for i, addr := range addrs {
		if !responsive[i] {
			ordered = append(ordered, addr)
		}
	}

	p.logger.Debug().
		Int("candidates", len(addrs)).
		Int("responders", responders).
		Msg("icmp prefilter complete")

	return ordered
}

// echo sends the configured echo requests to one address and reports
// whether any reply came back.
func (p *PingPrefilter) echo(addr string) bool {
	pinger, err := p.pingerFactory(addr)
	if err != nil {
		p.logger.Trace().Str("addr", addr).Err(err).Msg("pinger setup failed")
		return false
	}
	pinger.SetPrivileged(p.config.Privileged)

	if err := pinger.Run(); err != nil {
		p.logger.Trace().Str("addr", addr).Err(err).Msg("ping failed")
		return false
	}

	stats := pinger.Statistics()
	return stats != nil && stats.PacketsRecv > 0
}
