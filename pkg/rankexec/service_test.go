package rankexec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linktune/linktune/pkg/probe"
	"github.com/linktune/linktune/pkg/storage"
)

type fakeProber struct {
	gotAddrs []string
	outcomes []probe.Outcome
}

func (f *fakeProber) Probe(ctx context.Context, addrs []string) []probe.Outcome {
	f.gotAddrs = addrs
	return f.outcomes
}

type recordingSink struct {
	events []ProgressEvent
}

func (r *recordingSink) OnEvent(ev ProgressEvent) {
	r.events = append(r.events, ev)
}

// writeAddressFile creates a candidate list file in a temp dir.
func writeAddressFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ips.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func serviceWithOutcomes(outcomes []probe.Outcome) (*Service, *fakeProber) {
	fake := &fakeProber{outcomes: outcomes}
	svc := NewService().WithProberFactory(func(cfg probe.Config) prober {
		return fake
	})
	return svc, fake
}

func TestRun_NoLink(t *testing.T) {
	svc := NewService()

	_, err := svc.Run(context.Background(), Params{Link: "   "})
	require.ErrorIs(t, err, ErrNoLink)
}

func TestRun_BadLink(t *testing.T) {
	svc := NewService()

	_, err := svc.Run(context.Background(), Params{Link: "not a link at all"})
	require.ErrorIs(t, err, ErrBadLink)
}

func TestRun_MissingAddressFile(t *testing.T) {
	svc, _ := serviceWithOutcomes(nil)

	_, err := svc.Run(context.Background(), Params{
		Link:        "vmess://secret@1.2.3.4:443#node",
		AddressFile: filepath.Join(t.TempDir(), "does-not-exist.txt"),
	})
	require.ErrorIs(t, err, ErrNoAddressFile)
}

func TestRun_RanksAndRewrites(t *testing.T) {
	svc, fake := serviceWithOutcomes([]probe.Outcome{
		{Addr: "10.0.0.3", Latency: 20 * time.Millisecond},
		{Addr: "10.0.0.1", Latency: 45 * time.Millisecond},
	})
	outFile := filepath.Join(t.TempDir(), "optimized_nodes.txt")

	result, err := svc.Run(context.Background(), Params{
		Link:        "trojan://key@origin.example.com:443?sni=example.com#relay",
		AddressFile: writeAddressFile(t, "10.0.0.1", "10.0.0.2", "10.0.0.3"),
		OutputFile:  outFile,
	})
	require.NoError(t, err)

	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, 3, result.CandidateCount)
	assert.Equal(t, 2, result.ReachableCount)
	assert.Len(t, fake.gotAddrs, 3)

	require.Len(t, result.Entries, 2)
	assert.Equal(t, "10.0.0.3", result.Entries[0].Addr)
	assert.Contains(t, result.Entries[0].Link, "trojan://key@10.0.0.3:443")
	assert.Contains(t, result.Entries[0].Link, "#relay")
	assert.Equal(t, "10.0.0.1", result.Entries[1].Addr)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "10.0.0.3")
	assert.Contains(t, lines[0], "(Latency: 20ms)")
	assert.Equal(t, outFile, result.OutputPath)
}

func TestRun_EmptyResultIsSuccess(t *testing.T) {
	svc, _ := serviceWithOutcomes(nil)
	outFile := filepath.Join(t.TempDir(), "optimized_nodes.txt")

	result, err := svc.Run(context.Background(), Params{
		Link:        "vless://id@host.example.com:8443#x",
		AddressFile: writeAddressFile(t, "203.0.113.1"),
		OutputFile:  outFile,
	})
	require.NoError(t, err)

	assert.Equal(t, "completed", result.Status)
	assert.Empty(t, result.Entries)
	assert.Equal(t, 0, result.ReachableCount)

	// The artifact is still written, just empty.
	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestRun_TopTruncation(t *testing.T) {
	outcomes := make([]probe.Outcome, 0, 15)
	for i := 0; i < 15; i++ {
		outcomes = append(outcomes, probe.Outcome{
			Addr:    writeOctet(i),
			Latency: time.Duration(i+1) * time.Millisecond,
		})
	}
	svc, _ := serviceWithOutcomes(outcomes)

	addrs := make([]string, 0, 15)
	for i := 0; i < 15; i++ {
		addrs = append(addrs, writeOctet(i))
	}

	result, err := svc.Run(context.Background(), Params{
		Link:        "ss://pw@a.b.c:9000#n",
		AddressFile: writeAddressFile(t, addrs...),
	})
	require.NoError(t, err)

	assert.Equal(t, 15, result.ReachableCount)
	assert.Len(t, result.Entries, DefaultTop)
	assert.Equal(t, writeOctet(0), result.Entries[0].Addr)
}

func writeOctet(i int) string {
	return "10.0.1." + strconv.Itoa(i+1)
}

func TestRun_RawInputsOverrideParams(t *testing.T) {
	var gotCfg probe.Config
	fake := &fakeProber{}
	svc := NewService().WithProberFactory(func(cfg probe.Config) prober {
		gotCfg = cfg
		return fake
	})

	_, err := svc.Run(context.Background(), Params{
		Link:        "vmess://u@h.example:443#n",
		AddressFile: writeAddressFile(t, "192.0.2.1"),
		Timeout:     9 * time.Second,
		RawInputs: map[string]any{
			"timeout_ms":  "1500",
			"concurrency": 7,
			"top":         3,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1500*time.Millisecond, gotCfg.Timeout)
	assert.Equal(t, 7, gotCfg.Concurrency)
	assert.Equal(t, 443, gotCfg.Port)
}

func TestRun_PersistsRunMetadata(t *testing.T) {
	ctx := context.Background()
	backend, err := storage.NewBackend(ctx, &storage.Config{WorkspaceRoot: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, backend.Initialize(ctx))
	defer backend.Close()

	svc, _ := serviceWithOutcomes([]probe.Outcome{
		{Addr: "10.0.0.1", Latency: 5 * time.Millisecond},
	})
	svc.WithStorage(backend)

	result, err := svc.Run(ctx, Params{
		Link:        "trojan://key@host.example:443#n",
		AddressFile: writeAddressFile(t, "10.0.0.1", "10.0.0.2"),
	})
	require.NoError(t, err)

	meta, err := backend.Runs().Get(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, "completed", meta.Status)
	assert.Equal(t, 2, meta.CandidateCount)
	assert.Equal(t, 1, meta.ReachableCount)
	assert.NotContains(t, meta.Link, "key", "credentials must not be persisted")

	artifact := backend.Runs().ArtifactPath(result.RunID, "optimized_nodes.txt")
	assert.FileExists(t, artifact)
}

func TestRun_EmitsProgress(t *testing.T) {
	svc, _ := serviceWithOutcomes(nil)
	sink := &recordingSink{}
	svc.WithProgressSink(sink)

	_, err := svc.Run(context.Background(), Params{
		Link:        "vless://id@h.example:443#n",
		AddressFile: writeAddressFile(t, "192.0.2.9"),
	})
	require.NoError(t, err)

	require.Len(t, sink.events, 2)
	assert.Equal(t, "start", sink.events[0].Status)
	assert.Equal(t, "completed", sink.events[1].Status)
}

func TestFormatArtifact(t *testing.T) {
	entries := []RankedLink{
		{Link: "ss://pw@10.0.0.1:443#a", Latency: 12 * time.Millisecond},
		{Link: "ss://pw@10.0.0.2:443#a", Latency: 30 * time.Millisecond},
	}

	got := string(FormatArtifact(entries))
	want := "ss://pw@10.0.0.1:443#a (Latency: 12ms)\nss://pw@10.0.0.2:443#a (Latency: 30ms)\n"
	assert.Equal(t, want, got)

	assert.Empty(t, FormatArtifact(nil))
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "no link", err: ErrNoLink, want: 2},
		{name: "bad link wrapped", err: errors.Join(ErrBadLink, errors.New("detail")), want: 2},
		{name: "no address file", err: ErrNoAddressFile, want: 2},
		{name: "bad timeout", err: ErrBadTimeout, want: 2},
		{name: "other", err: errors.New("disk full"), want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}
