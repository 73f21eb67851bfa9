package hwaccel

// CapabilityReport is the immutable outcome of one selection run. The
// streaming pipeline consumes Profile's argument template verbatim; the
// diagnostics API serializes the exported fields for the operator.
//
// Invariant: Profile != nil implies Accelerated, implies RenderDevice != ""
// whenever the profile requires one, and implies Platform is in the
// profile's applicable set.
type CapabilityReport struct {
	Platform     PlatformIdentity `json:"platform"`
	GPUVendor    string           `json:"gpu_vendor,omitempty"`
	RenderDevice string           `json:"render_device,omitempty"`
	Encoder      string           `json:"encoder,omitempty"`
	Accelerated  bool             `json:"hardware_acceleration"`

	// Summary is a short human-readable account of the selection run.
	// Raw probe diagnostics are never exposed beyond this string.
	Summary string `json:"summary"`

	// Profile is the selected encoder profile, nil when no candidate
	// succeeded. Not serialized; the pipeline reads it directly.
	Profile *EncoderProfile `json:"-"`
}
