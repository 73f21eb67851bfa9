package hwaccel

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Default inspection paths. Overridable on Inspector for testing and for
// containers that mount the host trees elsewhere.
const (
	DefaultDeviceTreePath = "/proc/device-tree/model"
	DefaultDRMClassDir    = "/sys/class/drm"
	DefaultDRIDevDir      = "/dev/dri"
	DefaultLspciTimeout   = 5 * time.Second
)

// PCI vendor ids as they appear in /sys/class/drm/cardN/device/vendor.
var pciVendorIDs = map[string]PlatformIdentity{
	"0x8086": PlatformIntel,
	"0x1002": PlatformAMD,
	"0x10de": PlatformNVIDIA,
}

// SBC model substrings matched case-insensitively against the device-tree
// model string. A match short-circuits all GPU probing.
var sbcModelStrings = []string{"raspberry pi"}

// Inspector classifies the host machine. Identification and render-device
// resolution are memoized for the lifetime of the Inspector; a process
// restart (or Reset) is required to re-inspect after a driver change.
//
// Every filesystem or subprocess failure during inspection is treated as
// "no evidence from this source" and never propagated.
type Inspector struct {
	DeviceTreePath string
	DRMClassDir    string
	DRIDevDir      string
	LspciTimeout   time.Duration

	// RunLspci overrides the PCI-listing command invocation (tests).
	RunLspci func(ctx context.Context) ([]byte, error)

	mu             sync.Mutex
	identified     bool
	identity       PlatformIdentity
	renderResolved bool
	renderDevice   string
}

// NewInspector returns an Inspector using the default system paths.
func NewInspector() *Inspector {
	return &Inspector{}
}

// Identify returns the platform identity, computing it on first call and
// returning the memoized value thereafter. It never fails: absent evidence
// degrades to PlatformGeneric.
func (in *Inspector) Identify() PlatformIdentity {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.identified {
		in.identity = in.classify()
		in.identified = true
	}
	return in.identity
}

// RenderDevice returns the canonical render node path (lexicographically
// first renderD* entry under the DRI device directory), or "" when none
// exists. Memoized like Identify.
func (in *Inspector) RenderDevice() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.renderResolved {
		in.renderDevice = in.findRenderNode()
		in.renderResolved = true
	}
	return in.renderDevice
}

// Reset clears memoized state so the next Identify/RenderDevice call
// re-inspects. Used by Selector.Refresh.
func (in *Inspector) Reset() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.identified = false
	in.renderResolved = false
}

// classify applies the detection sources in strict priority order:
// device-tree model, PCI listing, DRM sysfs vendor ids.
func (in *Inspector) classify() PlatformIdentity {
	if model, err := os.ReadFile(in.deviceTreePath()); err == nil {
		lower := strings.ToLower(string(model))
		for _, s := range sbcModelStrings {
			if strings.Contains(lower, s) {
				return PlatformRaspberryPi
			}
		}
	}

	if id := in.vendorFromPCIList(); id != PlatformGeneric {
		return id
	}
	if id := in.vendorFromSysfs(); id != PlatformGeneric {
		return id
	}
	return PlatformGeneric
}

// vendorFromPCIList invokes lspci under a bounded timeout and scans its
// output for a GPU vendor keyword on a display-class line. The class
// keywords distinguish a GPU entry from other PCI devices of the same
// vendor (e.g. Intel audio controllers).
func (in *Inspector) vendorFromPCIList() PlatformIdentity {
	ctx, cancel := context.WithTimeout(context.Background(), in.lspciTimeout())
	defer cancel()

	run := in.RunLspci
	if run == nil {
		run = func(ctx context.Context) ([]byte, error) {
			return exec.CommandContext(ctx, "lspci").Output()
		}
	}

	out, err := run(ctx)
	if err != nil {
		// Missing binary, nonzero exit, or timeout: soft failure.
		return PlatformGeneric
	}

	for _, line := range strings.Split(string(out), "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "vga") &&
			!strings.Contains(lower, "display") &&
			!strings.Contains(lower, "3d") {
			continue
		}
		switch {
		case strings.Contains(lower, "intel"):
			return PlatformIntel
		case strings.Contains(lower, "nvidia"):
			return PlatformNVIDIA
		case strings.Contains(lower, "amd"), strings.Contains(lower, "ati"):
			return PlatformAMD
		}
	}
	return PlatformGeneric
}

// vendorFromSysfs enumerates DRM card entries and maps their PCI vendor-id
// files to known GPU vendors. Connector entries (card0-HDMI-A-1) carry a
// dash and are skipped.
func (in *Inspector) vendorFromSysfs() PlatformIdentity {
	entries, err := os.ReadDir(in.drmClassDir())
	if err != nil {
		return PlatformGeneric
	}

	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "card") || strings.Contains(name, "-") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(in.drmClassDir(), name, "device", "vendor"))
		if err != nil {
			continue
		}
		if id, ok := pciVendorIDs[strings.TrimSpace(string(data))]; ok {
			return id
		}
	}
	return PlatformGeneric
}

// findRenderNode picks the first render node under the DRI device
// directory. os.ReadDir returns entries sorted by name, so the first
// renderD* match is the lexicographically smallest.
func (in *Inspector) findRenderNode() string {
	entries, err := os.ReadDir(in.driDevDir())
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "renderD") {
			return filepath.Join(in.driDevDir(), e.Name())
		}
	}
	return ""
}

func (in *Inspector) deviceTreePath() string {
	if in.DeviceTreePath != "" {
		return in.DeviceTreePath
	}
	return DefaultDeviceTreePath
}

func (in *Inspector) drmClassDir() string {
	if in.DRMClassDir != "" {
		return in.DRMClassDir
	}
	return DefaultDRMClassDir
}

func (in *Inspector) driDevDir() string {
	if in.DRIDevDir != "" {
		return in.DRIDevDir
	}
	return DefaultDRIDevDir
}

func (in *Inspector) lspciTimeout() time.Duration {
	if in.LspciTimeout > 0 {
		return in.LspciTimeout
	}
	return DefaultLspciTimeout
}
