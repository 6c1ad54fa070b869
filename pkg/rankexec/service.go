// Package rankexec orchestrates one optimization run: parse the node link,
// load candidates, probe them concurrently, rank by latency, rewrite the
// link per surviving candidate, and persist the result.
package rankexec

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	"github.com/linktune/linktune/pkg/discovery"
	"github.com/linktune/linktune/pkg/netutil"
	"github.com/linktune/linktune/pkg/nodelink"
	"github.com/linktune/linktune/pkg/output"
	"github.com/linktune/linktune/pkg/probe"
	"github.com/linktune/linktune/pkg/storage"
)

// prober is the slice of the probe engine the service needs.
type prober interface {
	Probe(ctx context.Context, addrs []string) []probe.Outcome
}

// prefilter reorders candidates before probing.
type prefilter interface {
	Order(ctx context.Context, addrs []string) []string
}

// ProgressSink receives run lifecycle notifications.
type ProgressSink interface {
	OnEvent(ProgressEvent)
}

// ProgressEvent describes one step of a run.
type ProgressEvent struct {
	Phase     string
	Status    string
	Message   string
	Timestamp time.Time
}

// Service executes optimization runs.
type Service struct {
	proberFactory    func(cfg probe.Config) prober
	prefilterFactory func() prefilter
	progressSink     ProgressSink
	storage          storage.Backend
}

// NewService builds a Service with default dependencies.
func NewService() *Service {
	return &Service{
		proberFactory: func(cfg probe.Config) prober {
			return probe.New(cfg)
		},
		prefilterFactory: func() prefilter {
			return discovery.NewPingPrefilter(discovery.PingConfig{})
		},
	}
}

// WithProgressSink attaches a sink to receive progress notifications.
func (s *Service) WithProgressSink(sink ProgressSink) *Service {
	s.progressSink = sink
	return s
}

// WithStorage attaches a storage backend for persisting runs.
func (s *Service) WithStorage(backend storage.Backend) *Service {
	s.storage = backend
	return s
}

// WithProberFactory overrides prober construction for testing.
func (s *Service) WithProberFactory(factory func(cfg probe.Config) prober) *Service {
	s.proberFactory = factory
	return s
}

// WithPrefilterFactory overrides prefilter construction for testing.
func (s *Service) WithPrefilterFactory(factory func() prefilter) *Service {
	s.prefilterFactory = factory
	return s
}

// Run executes one optimization run. Only configuration-level failures
// return an error; zero reachable candidates is a normal, empty result.
func (s *Service) Run(ctx context.Context, params Params) (*Result, error) {
	applyRawInputs(&params)

	if strings.TrimSpace(params.Link) == "" {
		return nil, ErrNoLink
	}
	if params.Top < 1 {
		params.Top = DefaultTop
	}

	link, err := nodelink.Parse(params.Link)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadLink, err)
	}

	runID := uuid.New().String()
	startTime := time.Now()
	logger := log.With().Str("component", "rankexec").Str("run_id", runID).Logger()

	s.createRunMetadata(ctx, runID, link, startTime)

	addrs, err := netutil.ReadAddressFile(params.AddressFile)
	if err != nil {
		s.updateRunStatus(ctx, runID, "failed", err.Error(), startTime, 0, 0)
		return nil, fmt.Errorf("%w: %v", ErrNoAddressFile, err)
	}

	logger.Info().
		Int("candidates", len(addrs)).
		Str("link", link.Redacted()).
		Msg("starting optimization run")
	s.emit("probe", "start", fmt.Sprintf("candidates=%d", len(addrs)))

	if out, ok := ctx.Value(output.OutputKey).(output.Output); ok {
		out.Info(fmt.Sprintf("Probing %d candidate addresses on port %d...", len(addrs), link.Port))
	}

	if params.EnablePing && len(addrs) > 1 {
		addrs = s.prefilterFactory().Order(ctx, addrs)
	}

	p := s.proberFactory(probe.Config{
		Port:        link.Port,
		Timeout:     params.Timeout,
		Concurrency: params.Concurrency,
	})
	outcomes := p.Probe(ctx, addrs)
	s.emit("probe", "completed", fmt.Sprintf("reachable=%d", len(outcomes)))

	ranked := probe.Top(outcomes, params.Top)
	entries := make([]RankedLink, 0, len(ranked))
	for _, outcome := range ranked {
		entries = append(entries, RankedLink{
			Link:    link.Rewrite(outcome.Addr),
			Addr:    outcome.Addr,
			Latency: outcome.Latency,
		})
	}

	outputPath, artifactErr := s.persistArtifact(ctx, runID, params, entries)
	status := "completed"
	errorMsg := ""
	if artifactErr != nil {
		status = "failed"
		errorMsg = artifactErr.Error()
	}
	s.updateRunStatus(ctx, runID, status, errorMsg, startTime, len(addrs), len(outcomes))

	result := &Result{
		RunID:          runID,
		StartTime:      startTime.Format(time.RFC3339),
		EndTime:        time.Now().Format(time.RFC3339),
		Status:         status,
		CandidateCount: len(addrs),
		ReachableCount: len(outcomes),
		Entries:        entries,
		OutputPath:     outputPath,
	}

	if artifactErr != nil {
		return result, artifactErr
	}

	logger.Info().
		Int("reachable", len(outcomes)).
		Int("kept", len(entries)).
		Msg("optimization run complete")

	return result, nil
}

// applyRawInputs folds loosely-typed overrides into params.
func applyRawInputs(params *Params) {
	if params.RawInputs == nil {
		return
	}
	if v, ok := params.RawInputs["timeout_ms"]; ok {
		if ms := cast.ToInt(v); ms > 0 {
			params.Timeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v, ok := params.RawInputs["concurrency"]; ok {
		if c := cast.ToInt(v); c > 0 {
			params.Concurrency = c
		}
	}
	if v, ok := params.RawInputs["top"]; ok {
		if n := cast.ToInt(v); n > 0 {
			params.Top = n
		}
	}
}

// FormatArtifact renders the ranked entries in the persisted line format:
// one rewritten link per line with its measured latency.
func FormatArtifact(entries []RankedLink) []byte {
	var b strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&b, "%s (Latency: %s)\n", entry.Link, entry.Latency)
	}
	return []byte(b.String())
}

// persistArtifact writes the ranked-links file to the caller's output path
// and, when storage is attached, into the run directory.
func (s *Service) persistArtifact(ctx context.Context, runID string, params Params, entries []RankedLink) (string, error) {
	data := FormatArtifact(entries)

	if s.storage != nil {
		if err := s.storage.Runs().WriteArtifact(ctx, runID, "optimized_nodes.txt", data); err != nil {
			log.Warn().
				Str("component", "rankexec").
				Str("run_id", runID).
				Err(err).
				Msg("failed to persist artifact to storage, continuing")
		}
	}

	if params.OutputFile == "" {
		return "", nil
	}
	if err := os.WriteFile(params.OutputFile, data, 0o644); err != nil {
		return "", fmt.Errorf("write output file %q: %w", params.OutputFile, err)
	}
	return params.OutputFile, nil
}

func (s *Service) emit(phase, status, msg string) {
	if s.progressSink == nil {
		return
	}
	s.progressSink.OnEvent(ProgressEvent{
		Phase:     phase,
		Status:    status,
		Message:   msg,
		Timestamp: time.Now(),
	})
}

// createRunMetadata records the run start when storage is attached.
func (s *Service) createRunMetadata(ctx context.Context, runID string, link *nodelink.NodeLink, startTime time.Time) {
	if s.storage == nil {
		return
	}

	meta := &storage.RunMetadata{
		ID:        runID,
		Link:      link.Redacted(),
		Status:    "running",
		StartedAt: startTime.UTC(),
	}
	if err := s.storage.Runs().Create(ctx, meta); err != nil {
		log.Warn().
			Str("component", "rankexec").
			Str("run_id", runID).
			Err(err).
			Msg("failed to create run metadata in storage, continuing without persistence")
	}
}

// updateRunStatus updates run status and statistics when storage is attached.
func (s *Service) updateRunStatus(ctx context.Context, runID, status, errorMsg string, startTime time.Time, candidates, reachable int) {
	if s.storage == nil {
		return
	}

	completedAt := time.Now()
	duration := int(completedAt.Sub(startTime).Seconds())
	updates := storage.RunUpdates{
		Status:         &status,
		CompletedAt:    &completedAt,
		Duration:       &duration,
		CandidateCount: &candidates,
		ReachableCount: &reachable,
	}
	if errorMsg != "" {
		updates.ErrorMessage = &errorMsg
	}

	if err := s.storage.Runs().Update(ctx, runID, updates); err != nil {
		log.Warn().
			Str("component", "rankexec").
			Str("run_id", runID).
			Err(err).
			Msg("failed to update run status in storage")
	}
}
