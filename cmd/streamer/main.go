package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/print-stream/go-webcam-stream/internal/ffmpeg"
	"github.com/print-stream/go-webcam-stream/pkg/api"
	"github.com/print-stream/go-webcam-stream/pkg/hwaccel"
	"github.com/print-stream/go-webcam-stream/pkg/stream"
)

const version = "1.0.0"

// agent ties the selector and pipeline together for the API server
type agent struct {
	selector *hwaccel.Selector
	pipeline *stream.Pipeline
}

func (a *agent) Capabilities() *hwaccel.CapabilityReport {
	return a.selector.Report()
}

func (a *agent) RefreshCapabilities(ctx context.Context) *hwaccel.CapabilityReport {
	return a.selector.Refresh(ctx)
}

func (a *agent) Status() interface{} {
	if a.pipeline == nil {
		return stream.Status{Running: false}
	}
	return a.pipeline.Status()
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	log.Printf("go-webcam-stream %s", version)

	// Load configuration
	cfg, err := stream.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Locate ffmpeg
	ff, err := ffmpeg.New()
	if err != nil {
		log.Fatalf("Failed to init ffmpeg: %v", err)
	}
	if v, err := ff.Version(context.Background()); err == nil {
		log.Printf("FFmpeg: %s", v)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutdown signal received...")
		cancel()
	}()

	// Build the selection core from config
	inspector := &hwaccel.Inspector{
		DeviceTreePath: cfg.HWAccel.DeviceTreePath,
		DRMClassDir:    cfg.HWAccel.DRMClassDir,
		DRIDevDir:      cfg.HWAccel.DRIDevDir,
		LspciTimeout:   cfg.HWAccel.LspciTimeout,
	}
	prober := ffmpeg.NewProber(ff)
	prober.ReferenceClip = cfg.HWAccel.ReferenceClip
	prober.Timeout = cfg.HWAccel.ProbeTimeout

	selector := hwaccel.NewSelector(hwaccel.SelectorConfig{
		Inspector:    inspector,
		Prober:       prober,
		ListEncoders: ff.Encoders,
	})

	// One selection run per pipeline start
	report := selector.Select(ctx)
	log.Printf("Capabilities: %s", report.Summary)

	a := &agent{selector: selector}

	// Start the streaming pipeline if an input is configured
	if cfg.Stream.Input != "" {
		a.pipeline = stream.NewPipeline(ff.BinaryPath(), cfg.Stream, report)
		if err := a.pipeline.Start(ctx); err != nil {
			log.Fatalf("Failed to start pipeline: %v", err)
		}
		defer a.pipeline.Stop()
	} else {
		log.Println("No stream input configured; running diagnostics only")
	}

	// Start the diagnostics API server
	server := api.NewServer(api.ServerConfig{
		Host:   cfg.API.Host,
		Port:   cfg.API.Port,
		Engine: a,
	})
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Printf("API server stopped: %v", err)
		}
	}()
	defer server.Stop()

	<-ctx.Done()
	log.Println("Shutting down...")
}
