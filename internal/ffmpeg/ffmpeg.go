package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// FFmpeg wraps FFmpeg binary execution
type FFmpeg struct {
	binaryPath string
}

// New creates a new FFmpeg wrapper
func New() (*FFmpeg, error) {
	path, err := findBinary("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	return &FFmpeg{binaryPath: path}, nil
}

// BinaryPath returns the resolved ffmpeg binary path
func (f *FFmpeg) BinaryPath() string {
	return f.binaryPath
}

// findBinary locates a binary in PATH or common locations
func findBinary(name string) (string, error) {
	// Try PATH first
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	// Common locations by OS
	var paths []string
	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/opt/homebrew/bin/" + name,
			"/usr/local/bin/" + name,
		}
	case "linux":
		paths = []string{
			"/usr/bin/" + name,
			"/usr/local/bin/" + name,
		}
	case "windows":
		paths = []string{
			"C:\\ffmpeg\\bin\\" + name + ".exe",
			"C:\\Program Files\\ffmpeg\\bin\\" + name + ".exe",
		}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%s not found in PATH or common locations", name)
}

// Version returns the FFmpeg version string
func (f *FFmpeg) Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, f.binaryPath, "-version")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0]), nil
	}
	return "", fmt.Errorf("no version output")
}

// Encoders returns the set of encoder names this ffmpeg build advertises,
// parsed from `ffmpeg -encoders` output
func (f *FFmpeg) Encoders(ctx context.Context) (map[string]bool, error) {
	cmd := exec.CommandContext(ctx, f.binaryPath, "-hide_banner", "-encoders")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("list encoders: %w", err)
	}
	return parseEncoders(output), nil
}

// parseEncoders extracts encoder names from -encoders output. Each entry
// line looks like " V....D h264_vaapi  H.264 (VAAPI)"; the header block
// above the "------" separator is ignored.
func parseEncoders(output []byte) map[string]bool {
	encoders := make(map[string]bool)
	inList := false

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if !inList {
			if strings.Contains(line, "-----") {
				inList = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			encoders[fields[1]] = true
		}
	}
	return encoders
}
