package stream

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all agent configuration
type Config struct {
	Stream  StreamConfig  `yaml:"stream"`
	HWAccel HWAccelConfig `yaml:"hwaccel"`
	API     APIConfig     `yaml:"api"`
}

// StreamConfig configures the webcam input and stream output
type StreamConfig struct {
	Input        string `yaml:"input"`         // /dev/video0, an MJPEG URL, or a file
	InputFormat  string `yaml:"input_format"`  // v4l2, mjpeg (empty = autodetect)
	Resolution   string `yaml:"resolution"`    // 640x480, 1280x720
	Framerate    int    `yaml:"framerate"`     // Input framerate hint
	Bitrate      int    `yaml:"bitrate"`       // Target bitrate in kbps
	OutputURL    string `yaml:"output_url"`    // Passed to ffmpeg verbatim
	OutputFormat string `yaml:"output_format"` // rtp, mpegts
}

// HWAccelConfig configures hardware-encoder detection and probing
type HWAccelConfig struct {
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`  // Per-candidate probe bound (10s)
	ReferenceClip string        `yaml:"reference_clip"` // Bundled test clip; empty = synthetic source

	// Inspection path overrides; defaults match the host system trees.
	DeviceTreePath string        `yaml:"device_tree_path"`
	DRMClassDir    string        `yaml:"drm_class_dir"`
	DRIDevDir      string        `yaml:"dri_dev_dir"`
	LspciTimeout   time.Duration `yaml:"lspci_timeout"`
}

// APIConfig configures the diagnostics HTTP server
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in zero-valued fields
func (c *Config) ApplyDefaults() {
	if c.Stream.Bitrate == 0 {
		c.Stream.Bitrate = 2000
	}
	if c.Stream.Framerate == 0 {
		c.Stream.Framerate = 25
	}
	if c.Stream.OutputFormat == "" {
		c.Stream.OutputFormat = "rtp"
	}
	if c.HWAccel.ProbeTimeout == 0 {
		c.HWAccel.ProbeTimeout = 10 * time.Second
	}
	if c.HWAccel.LspciTimeout == 0 {
		c.HWAccel.LspciTimeout = 5 * time.Second
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
}
