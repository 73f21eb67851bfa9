package hwaccel

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProber replays a fixed outcome sequence and records every
// invocation's argument list.
type scriptedProber struct {
	mu       sync.Mutex
	outcomes []ProbeOutcome
	calls    [][]string
}

func (p *scriptedProber) Probe(_ context.Context, args []string) ProbeOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, args)
	if len(p.outcomes) == 0 {
		return ProbeOutcome{Kind: OutcomeNonZeroExit, ExitCode: 1}
	}
	o := p.outcomes[0]
	p.outcomes = p.outcomes[1:]
	return o
}

func (p *scriptedProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func staticCandidates(profiles ...EncoderProfile) func(PlatformIdentity) []EncoderProfile {
	return func(PlatformIdentity) []EncoderProfile { return profiles }
}

func simpleProfile(name string) EncoderProfile {
	return EncoderProfile{
		Name:      name,
		Args:      []string{"-c:v", name},
		Platforms: []PlatformIdentity{PlatformGeneric},
	}
}

func TestSelectStopsAtFirstSuccess(t *testing.T) {
	inspector, _ := testTree(t)
	prober := &scriptedProber{outcomes: []ProbeOutcome{
		{Kind: OutcomeNonZeroExit, ExitCode: 1, Stderr: "no device"},
		{Kind: OutcomeSuccess},
		{Kind: OutcomeSuccess},
	}}
	s := NewSelector(SelectorConfig{
		Inspector:  inspector,
		Prober:     prober,
		Candidates: staticCandidates(simpleProfile("a"), simpleProfile("b"), simpleProfile("c")),
	})

	report := s.Select(context.Background())

	require.True(t, report.Accelerated)
	assert.Equal(t, "b", report.Encoder)
	// First success wins: the third candidate is never probed.
	assert.Equal(t, 2, prober.callCount())
}

func TestSelectTimeoutDisqualifiesWithoutRetry(t *testing.T) {
	inspector, _ := testTree(t)
	prober := &scriptedProber{outcomes: []ProbeOutcome{
		{Kind: OutcomeTimedOut},
	}}
	s := NewSelector(SelectorConfig{
		Inspector:  inspector,
		Prober:     prober,
		Candidates: staticCandidates(simpleProfile("only")),
	})

	report := s.Select(context.Background())

	assert.False(t, report.Accelerated)
	assert.Nil(t, report.Profile)
	assert.Equal(t, 1, prober.callCount())
	assert.Contains(t, report.Summary, "timed out")
}

func TestSelectEmptyCandidateListIsExhausted(t *testing.T) {
	inspector, _ := testTree(t)
	prober := &scriptedProber{}
	s := NewSelector(SelectorConfig{
		Inspector:  inspector,
		Prober:     prober,
		Candidates: staticCandidates(),
	})

	report := s.Select(context.Background())

	assert.False(t, report.Accelerated)
	assert.Empty(t, report.Encoder)
	assert.Equal(t, 0, prober.callCount())
}

func TestSelectSkipsDeviceRequiringCandidateWithoutProbing(t *testing.T) {
	inspector, _ := testTree(t) // no render node in the temp tree
	needsDevice := EncoderProfile{
		Name:                 "h264_vaapi",
		Args:                 []string{"-vaapi_device", DevicePlaceholder, "-c:v", "h264_vaapi"},
		Platforms:            []PlatformIdentity{PlatformGeneric},
		RequiresRenderDevice: true,
	}
	prober := &scriptedProber{}
	s := NewSelector(SelectorConfig{
		Inspector:  inspector,
		Prober:     prober,
		Candidates: staticCandidates(needsDevice),
	})

	report := s.Select(context.Background())

	// Skipped entirely: not even a LaunchFailed attempt.
	assert.Equal(t, 0, prober.callCount())
	assert.False(t, report.Accelerated)
	assert.Contains(t, report.Summary, "no render device")
}

func TestSelectSkipsEncodersMissingFromBuild(t *testing.T) {
	inspector, _ := testTree(t)
	prober := &scriptedProber{outcomes: []ProbeOutcome{{Kind: OutcomeSuccess}}}
	s := NewSelector(SelectorConfig{
		Inspector:  inspector,
		Prober:     prober,
		Candidates: staticCandidates(simpleProfile("a"), simpleProfile("b")),
		ListEncoders: func(context.Context) (map[string]bool, error) {
			return map[string]bool{"b": true}, nil
		},
	})

	report := s.Select(context.Background())

	require.True(t, report.Accelerated)
	assert.Equal(t, "b", report.Encoder)
	require.Equal(t, 1, prober.callCount())
	assert.Contains(t, prober.calls[0], "b")
}

func TestSelectMemoizesReport(t *testing.T) {
	inspector, _ := testTree(t)
	prober := &scriptedProber{outcomes: []ProbeOutcome{{Kind: OutcomeSuccess}}}
	s := NewSelector(SelectorConfig{
		Inspector:  inspector,
		Prober:     prober,
		Candidates: staticCandidates(simpleProfile("a")),
	})

	first := s.Select(context.Background())
	second := s.Select(context.Background())

	assert.Same(t, first, second)
	assert.Equal(t, 1, prober.callCount())
}

func TestSelectConcurrentFirstCallRunsOnce(t *testing.T) {
	inspector, _ := testTree(t)
	prober := &scriptedProber{outcomes: []ProbeOutcome{{Kind: OutcomeSuccess}}}
	s := NewSelector(SelectorConfig{
		Inspector:  inspector,
		Prober:     prober,
		Candidates: staticCandidates(simpleProfile("a")),
	})

	var wg sync.WaitGroup
	reports := make([]*CapabilityReport, 8)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i] = s.Select(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, prober.callCount())
	for _, r := range reports[1:] {
		assert.Same(t, reports[0], r)
	}
}

func TestReportBeforeSelectPanics(t *testing.T) {
	inspector, _ := testTree(t)
	s := NewSelector(SelectorConfig{
		Inspector: inspector,
		Prober:    &scriptedProber{},
	})

	assert.Panics(t, func() { s.Report() })
}

func TestRefreshReprobes(t *testing.T) {
	inspector, _ := testTree(t)
	prober := &scriptedProber{outcomes: []ProbeOutcome{
		{Kind: OutcomeNonZeroExit, ExitCode: 1},
		{Kind: OutcomeSuccess},
	}}
	s := NewSelector(SelectorConfig{
		Inspector:  inspector,
		Prober:     prober,
		Candidates: staticCandidates(simpleProfile("a")),
	})

	first := s.Select(context.Background())
	assert.False(t, first.Accelerated)

	second := s.Refresh(context.Background())
	assert.True(t, second.Accelerated)
	assert.Equal(t, 2, prober.callCount())

	// The refreshed report is the new memoized value.
	assert.Same(t, second, s.Report())
}

// Intel machine, VA-API fails, QSV succeeds: the second candidate is
// selected and carries the first discovered render node.
func TestSelectIntelFallsThroughToQSV(t *testing.T) {
	inspector, dir := testTree(t)
	writeVendorFile(t, dir, "card0", "0x8086")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dri", "renderD128"), nil, 0o644))

	prober := &scriptedProber{outcomes: []ProbeOutcome{
		{Kind: OutcomeNonZeroExit, ExitCode: 1, Stderr: "vaapi init failed"},
		{Kind: OutcomeSuccess},
	}}
	s := NewSelector(SelectorConfig{
		Inspector: inspector,
		Prober:    prober,
	})

	report := s.Select(context.Background())

	require.True(t, report.Accelerated)
	assert.Equal(t, PlatformIntel, report.Platform)
	assert.Equal(t, "intel", report.GPUVendor)
	assert.Equal(t, "h264_qsv", report.Encoder)
	assert.Equal(t, filepath.Join(dir, "dri", "renderD128"), report.RenderDevice)

	// The probed QSV args carry the expanded device inside a single token.
	require.Equal(t, 2, prober.callCount())
	assert.Contains(t, prober.calls[1], "qsv=hw,child_device="+report.RenderDevice)
}

func TestSelectedReportSatisfiesInvariants(t *testing.T) {
	inspector, dir := testTree(t)
	writeVendorFile(t, dir, "card0", "0x1002")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dri", "renderD128"), nil, 0o644))

	prober := &scriptedProber{outcomes: []ProbeOutcome{{Kind: OutcomeSuccess}}}
	s := NewSelector(SelectorConfig{Inspector: inspector, Prober: prober})

	report := s.Select(context.Background())

	require.NotNil(t, report.Profile)
	assert.True(t, report.Profile.AppliesTo(report.Platform))
	if report.Profile.RequiresRenderDevice {
		assert.NotEmpty(t, report.RenderDevice)
	}
}
