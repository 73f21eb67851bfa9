package ffmpeg

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/print-stream/go-webcam-stream/pkg/hwaccel"
)

const (
	// DefaultProbeTimeout bounds one test encode end to end.
	DefaultProbeTimeout = 10 * time.Second

	// probeKillGrace is how long Wait may linger on pipe teardown after
	// the child has been killed on timeout.
	probeKillGrace = 3 * time.Second

	// probeClipSeconds caps the encoded output duration so a working
	// encoder finishes well inside the timeout.
	probeClipSeconds = "2"

	// maxStderrCapture bounds the diagnostic prefix kept from a noisy
	// encoder. Anything past this is discarded, not buffered.
	maxStderrCapture = 2048
)

// Prober runs bounded test encodes to verify that a hardware encoder
// actually works on this machine. It implements hwaccel.ProbeRunner.
type Prober struct {
	// Binary is the ffmpeg executable to spawn.
	Binary string

	// ReferenceClip is the bundled short test clip. When empty, a
	// synthetic lavfi test source is generated instead, so probing works
	// on installs that ship without the clip.
	ReferenceClip string

	// Timeout bounds each probe; DefaultProbeTimeout when zero.
	Timeout time.Duration
}

// NewProber returns a Prober using f's resolved binary.
func NewProber(f *FFmpeg) *Prober {
	return &Prober{Binary: f.BinaryPath()}
}

// Probe spawns one test encode with the given already-expanded encoder
// arguments, discarding output and keeping only the exit status and a
// bounded stderr prefix. It classifies the result and never returns an
// error: a misbehaving encoder can only fail its own candidate.
func (p *Prober) Probe(ctx context.Context, encoderArgs []string) hwaccel.ProbeOutcome {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(pctx, p.Binary, p.buildArgs(encoderArgs)...)
	cmd.WaitDelay = probeKillGrace

	stderr := &boundedBuffer{max: maxStderrCapture}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return hwaccel.ProbeOutcome{Kind: hwaccel.OutcomeLaunchFailed, Err: err}
	}

	err := cmd.Wait()
	if pctx.Err() == context.DeadlineExceeded {
		// CommandContext already killed the child; a hung encoder is a
		// definitive failure for this candidate, not a transient one.
		return hwaccel.ProbeOutcome{Kind: hwaccel.OutcomeTimedOut, Stderr: stderr.String()}
	}
	if err == nil {
		return hwaccel.ProbeOutcome{Kind: hwaccel.OutcomeSuccess}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return hwaccel.ProbeOutcome{
			Kind:     hwaccel.OutcomeNonZeroExit,
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr.String(),
		}
	}
	return hwaccel.ProbeOutcome{Kind: hwaccel.OutcomeLaunchFailed, Err: err}
}

// buildArgs wraps the encoder arguments with the probe input and a null
// sink. The encoder arguments are spliced in as-is.
func (p *Prober) buildArgs(encoderArgs []string) []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error"}

	if p.ReferenceClip != "" {
		args = append(args, "-i", p.ReferenceClip)
	} else {
		args = append(args, "-f", "lavfi", "-i", "testsrc2=size=640x360:rate=30")
	}

	args = append(args, encoderArgs...)
	args = append(args, "-t", probeClipSeconds, "-an", "-f", "null", "-")
	return args
}

// boundedBuffer keeps at most max bytes and silently drops the rest.
type boundedBuffer struct {
	buf []byte
	max int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if room := b.max - len(b.buf); room > 0 {
		if len(p) > room {
			b.buf = append(b.buf, p[:room]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	// Report full consumption so the child never blocks on stderr.
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	return string(b.buf)
}
