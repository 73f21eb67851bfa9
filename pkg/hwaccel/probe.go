package hwaccel

import (
	"context"
	"fmt"
)

// OutcomeKind tags a ProbeOutcome. The set is closed: every probe attempt
// ends in exactly one of these.
type OutcomeKind int

const (
	OutcomeSuccess      OutcomeKind = iota // Test encode exited 0 within the timeout.
	OutcomeNonZeroExit                     // Encoder ran but exited nonzero.
	OutcomeTimedOut                        // No exit within the timeout; child was killed.
	OutcomeLaunchFailed                    // Child process could not be started.
)

// ProbeOutcome is the result of one bounded test encode. Produced fresh per
// attempt; never cached individually.
type ProbeOutcome struct {
	Kind     OutcomeKind
	ExitCode int    // Valid when Kind is OutcomeNonZeroExit.
	Stderr   string // Truncated diagnostic output for NonZeroExit/TimedOut.
	Err      error  // Launch failure reason when Kind is OutcomeLaunchFailed.
}

// String renders a short single-line description suitable for logging and
// for the capability report's summary. It never includes more than the
// already-truncated stderr prefix.
func (o ProbeOutcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return "success"
	case OutcomeNonZeroExit:
		if o.Stderr != "" {
			return fmt.Sprintf("exit status %d: %s", o.ExitCode, firstLine(o.Stderr))
		}
		return fmt.Sprintf("exit status %d", o.ExitCode)
	case OutcomeTimedOut:
		return "timed out"
	case OutcomeLaunchFailed:
		return fmt.Sprintf("launch failed: %v", o.Err)
	default:
		return "unknown outcome"
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

// ProbeRunner runs a single bounded-time test encode with the given
// already-expanded encoder arguments. Implemented by the ffmpeg prober;
// tests substitute scripted fakes.
type ProbeRunner interface {
	Probe(ctx context.Context, encoderArgs []string) ProbeOutcome
}
