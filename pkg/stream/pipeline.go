package stream

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os/exec"
	"sync"

	"github.com/print-stream/go-webcam-stream/pkg/hwaccel"
)

// softwareArgs is the CPU-only fallback path, always assumed available.
var softwareArgs = []string{
	"-c:v", "libx264",
	"-preset", "ultrafast",
	"-tune", "zerolatency",
	"-pix_fmt", "yuv420p",
}

// Pipeline runs the long-lived ffmpeg streaming process using the encoder
// chosen by one selection run. The selected profile's argument template is
// spliced into the command verbatim: the tokens are never joined or
// re-split, because filter-chain values carry embedded commas and equals
// signs.
type Pipeline struct {
	binary string
	cfg    StreamConfig
	report *hwaccel.CapabilityReport

	mu      sync.Mutex
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	done    chan error
	running bool
}

// Status describes the pipeline for the diagnostics API
type Status struct {
	Running  bool   `json:"running"`
	Encoder  string `json:"encoder"`
	Input    string `json:"input,omitempty"`
	Output   string `json:"output,omitempty"`
	Hardware bool   `json:"hardware_acceleration"`
}

// NewPipeline creates a pipeline for the given stream config and
// capability report.
func NewPipeline(binary string, cfg StreamConfig, report *hwaccel.CapabilityReport) *Pipeline {
	return &Pipeline{
		binary: binary,
		cfg:    cfg,
		report: report,
	}
}

// BuildArgs constructs the full ffmpeg argument slice. Exported for
// testing without spawning ffmpeg.
func (p *Pipeline) BuildArgs() []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error"}

	if p.cfg.InputFormat != "" {
		args = append(args, "-f", p.cfg.InputFormat)
	}
	if p.cfg.Resolution != "" {
		args = append(args, "-s", p.cfg.Resolution)
	}
	if p.cfg.Framerate > 0 {
		args = append(args, "-r", fmt.Sprintf("%d", p.cfg.Framerate))
	}
	args = append(args, "-i", p.cfg.Input)

	if p.report.Accelerated && p.report.Profile != nil {
		args = append(args, p.report.Profile.ExpandArgs(p.report.RenderDevice)...)
	} else {
		args = append(args, softwareArgs...)
	}

	if p.cfg.Bitrate > 0 {
		args = append(args, "-b:v", fmt.Sprintf("%dk", p.cfg.Bitrate))
	}
	args = append(args, "-an", "-f", p.cfg.OutputFormat, p.cfg.OutputURL)
	return args
}

// Encoder returns the encoder name the pipeline will use.
func (p *Pipeline) Encoder() string {
	if p.report.Accelerated && p.report.Profile != nil {
		return p.report.Profile.Name
	}
	return "libx264"
}

// Start spawns the streaming process
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("pipeline already running")
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.cmd = exec.CommandContext(ctx, p.binary, p.BuildArgs()...)

	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("get stderr pipe: %w", err)
	}

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	log.Printf("stream: ffmpeg started with encoder %s (pid %d)", p.Encoder(), p.cmd.Process.Pid)

	// Log encoder stderr lines as they arrive
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Printf("stream: ffmpeg: %s", scanner.Text())
		}
	}()

	p.done = make(chan error, 1)
	p.running = true
	go func() {
		err := p.cmd.Wait()
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		p.done <- err
	}()

	return nil
}

// Stop terminates the streaming process and waits for it to exit
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if done != nil {
		return <-done
	}
	return nil
}

// Done returns a channel receiving the process exit error, or nil if the
// pipeline was never started.
func (p *Pipeline) Done() <-chan error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Status reports the pipeline state for diagnostics
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Running:  p.running,
		Encoder:  p.Encoder(),
		Input:    p.cfg.Input,
		Output:   p.cfg.OutputURL,
		Hardware: p.report.Accelerated,
	}
}
