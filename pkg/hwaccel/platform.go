package hwaccel

// PlatformIdentity classifies the host machine's acceleration capability.
// It is derived from device-tree, PCI, and sysfs evidence, never user-set.
type PlatformIdentity string

const (
	PlatformRaspberryPi PlatformIdentity = "rpi"     // Raspberry-Pi-class SBC (device-tree match).
	PlatformIntel       PlatformIdentity = "intel"   // Intel GPU (VA-API / QSV).
	PlatformAMD         PlatformIdentity = "amd"     // AMD GPU (VA-API).
	PlatformNVIDIA      PlatformIdentity = "nvidia"  // NVIDIA GPU (NVENC).
	PlatformGeneric     PlatformIdentity = "generic" // No recognized acceleration hardware.
)

// GPUVendor returns the discrete GPU vendor name for GPU platforms, or ""
// for SBC and generic identities.
func (p PlatformIdentity) GPUVendor() string {
	switch p {
	case PlatformIntel, PlatformAMD, PlatformNVIDIA:
		return string(p)
	default:
		return ""
	}
}
