package hwaccel

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// maxSummaryLen bounds the failure summary exposed to the diagnostics UI.
const maxSummaryLen = 240

// SelectorConfig wires a Selector. Inspector and Prober are required;
// Candidates and ListEncoders default to the static registry and to no
// pre-filtering respectively.
type SelectorConfig struct {
	Inspector *Inspector
	Prober    ProbeRunner

	// Candidates overrides the registry lookup (tests).
	Candidates func(PlatformIdentity) []EncoderProfile

	// ListEncoders, when set, supplies the encoder names the local ffmpeg
	// build advertises; candidates not in the set are skipped without
	// probing. A nil map or an error means "no evidence" and every
	// candidate is probed.
	ListEncoders func(ctx context.Context) (map[string]bool, error)
}

// Selector drives Inspector → registry → ProbeRunner over the ordered
// candidate list until one succeeds or the list is exhausted. The final
// CapabilityReport is memoized for the process lifetime; only Refresh
// discards it.
//
// Probes run strictly sequentially: candidates compete for the same
// exclusive hardware device, and concurrent probes risk device-busy false
// negatives.
type Selector struct {
	inspector    *Inspector
	prober       ProbeRunner
	candidates   func(PlatformIdentity) []EncoderProfile
	listEncoders func(ctx context.Context) (map[string]bool, error)

	group  singleflight.Group
	mu     sync.RWMutex
	report *CapabilityReport
}

// NewSelector creates a Selector from cfg. Panics if Inspector or Prober
// is missing: that is a wiring bug, not a runtime condition.
func NewSelector(cfg SelectorConfig) *Selector {
	if cfg.Inspector == nil || cfg.Prober == nil {
		panic("hwaccel: SelectorConfig requires Inspector and Prober")
	}
	candidates := cfg.Candidates
	if candidates == nil {
		candidates = CandidatesFor
	}
	return &Selector{
		inspector:    cfg.Inspector,
		prober:       cfg.Prober,
		candidates:   candidates,
		listEncoders: cfg.ListEncoders,
	}
}

// Select returns the memoized CapabilityReport, computing it on first
// call. Concurrent first calls share a single selection run; later calls
// never re-probe. Select never fails: total exhaustion yields a report
// with Accelerated=false, and the caller's software fallback is always
// assumed available.
func (s *Selector) Select(ctx context.Context) *CapabilityReport {
	s.mu.RLock()
	cached := s.report
	s.mu.RUnlock()
	if cached != nil {
		return cached
	}

	v, _, _ := s.group.Do("select", func() (interface{}, error) {
		s.mu.RLock()
		cached := s.report
		s.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		report := s.run(ctx)

		s.mu.Lock()
		s.report = report
		s.mu.Unlock()
		return report, nil
	})
	return v.(*CapabilityReport)
}

// Report returns the memoized report. Calling it before any Select has
// completed is a contract violation and panics.
func (s *Selector) Report() *CapabilityReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.report == nil {
		panic("hwaccel: Report called before Select")
	}
	return s.report
}

// Refresh discards the memoized identity and report, then runs a fresh
// selection. Intended for explicit operator-driven re-detection; live
// hardware hot-swap is otherwise out of scope.
func (s *Selector) Refresh(ctx context.Context) *CapabilityReport {
	s.mu.Lock()
	s.report = nil
	s.inspector.Reset()
	s.mu.Unlock()
	return s.Select(ctx)
}

// run executes one full selection: Identifying → CandidateTesting* →
// Selected | Exhausted.
func (s *Selector) run(ctx context.Context) *CapabilityReport {
	identity := s.inspector.Identify()
	renderDevice := s.inspector.RenderDevice()
	log.Printf("hwaccel: platform %s, render device %q", identity, renderDevice)

	available := s.availableEncoders(ctx)

	var failures []string
	for _, profile := range s.candidates(identity) {
		if profile.RequiresRenderDevice && renderDevice == "" {
			log.Printf("hwaccel: skipping %s: no render device", profile.Name)
			failures = append(failures, profile.Name+": no render device")
			continue
		}
		if available != nil && !available[profile.Name] {
			log.Printf("hwaccel: skipping %s: not in this ffmpeg build", profile.Name)
			failures = append(failures, profile.Name+": not built into ffmpeg")
			continue
		}

		log.Printf("hwaccel: probing %s", profile.Name)
		outcome := s.prober.Probe(ctx, profile.ExpandArgs(renderDevice))
		if outcome.Kind == OutcomeSuccess {
			log.Printf("hwaccel: selected %s", profile.Name)
			return s.selected(identity, renderDevice, profile)
		}

		// A failure, including a timeout, permanently disqualifies the
		// candidate for this run. No retries.
		log.Printf("hwaccel: %s failed: %s", profile.Name, outcome)
		failures = append(failures, profile.Name+": "+outcome.String())
	}

	return s.exhausted(identity, renderDevice, failures)
}

func (s *Selector) selected(identity PlatformIdentity, renderDevice string, profile EncoderProfile) *CapabilityReport {
	summary := fmt.Sprintf("hardware encoder %s selected", profile.Name)
	if profile.RequiresRenderDevice {
		summary += " via " + renderDevice
	}
	p := profile
	return &CapabilityReport{
		Platform:     identity,
		GPUVendor:    identity.GPUVendor(),
		RenderDevice: renderDevice,
		Encoder:      profile.Name,
		Accelerated:  true,
		Summary:      summary,
		Profile:      &p,
	}
}

func (s *Selector) exhausted(identity PlatformIdentity, renderDevice string, failures []string) *CapabilityReport {
	summary := "no hardware encoder available"
	if len(failures) > 0 {
		summary += ": " + strings.Join(failures, "; ")
	}
	if len(summary) > maxSummaryLen {
		summary = summary[:maxSummaryLen]
	}
	log.Printf("hwaccel: %s, falling back to software encoding", summary)
	return &CapabilityReport{
		Platform:     identity,
		GPUVendor:    identity.GPUVendor(),
		RenderDevice: renderDevice,
		Accelerated:  false,
		Summary:      summary,
	}
}

// availableEncoders asks ffmpeg which encoders it was built with. Any
// failure degrades to probing every candidate.
func (s *Selector) availableEncoders(ctx context.Context) map[string]bool {
	if s.listEncoders == nil {
		return nil
	}
	encoders, err := s.listEncoders(ctx)
	if err != nil {
		log.Printf("hwaccel: encoder listing unavailable: %v", err)
		return nil
	}
	return encoders
}
