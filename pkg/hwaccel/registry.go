package hwaccel

import "strings"

// DevicePlaceholder marks where the resolved render-device path is
// substituted into a profile's argument list. It may appear embedded
// inside a larger token (e.g. "qsv=hw,child_device={render_device}").
const DevicePlaceholder = "{render_device}"

// EncoderProfile describes one hardware-accelerated encoding path: the
// encoder name as ffmpeg knows it, the pre-tokenized output-side argument
// sequence, and the platforms it applies to. Profiles are defined at build
// time and never mutated.
//
// Args is an ordered token sequence, never a single string: filter-chain
// values carry embedded commas and equals signs that must not be
// re-tokenized by whitespace splitting.
type EncoderProfile struct {
	Name                 string
	Args                 []string
	Platforms            []PlatformIdentity
	RequiresRenderDevice bool
}

// AppliesTo reports whether the profile is applicable to the identity.
func (p EncoderProfile) AppliesTo(id PlatformIdentity) bool {
	for _, pid := range p.Platforms {
		if pid == id {
			return true
		}
	}
	return false
}

// ExpandArgs returns a copy of Args with every occurrence of
// DevicePlaceholder replaced by renderDevice. The token boundaries are
// preserved exactly; no splitting or joining takes place.
func (p EncoderProfile) ExpandArgs(renderDevice string) []string {
	out := make([]string, len(p.Args))
	for i, a := range p.Args {
		out[i] = strings.ReplaceAll(a, DevicePlaceholder, renderDevice)
	}
	return out
}

var (
	profileV4L2M2M = EncoderProfile{
		Name:      "h264_v4l2m2m",
		Args:      []string{"-c:v", "h264_v4l2m2m", "-pix_fmt", "yuv420p"},
		Platforms: []PlatformIdentity{PlatformRaspberryPi},
	}

	// Legacy Pi encoder, removed from 64-bit firmware builds; kept as the
	// second candidate for older 32-bit images.
	profileOMX = EncoderProfile{
		Name:      "h264_omx",
		Args:      []string{"-c:v", "h264_omx"},
		Platforms: []PlatformIdentity{PlatformRaspberryPi},
	}

	profileVAAPI = EncoderProfile{
		Name: "h264_vaapi",
		Args: []string{
			"-vaapi_device", DevicePlaceholder,
			"-vf", "format=nv12,hwupload",
			"-c:v", "h264_vaapi",
		},
		Platforms:            []PlatformIdentity{PlatformIntel, PlatformAMD, PlatformGeneric},
		RequiresRenderDevice: true,
	}

	// QSV is modeled as its own profile with its own device-initialization
	// arguments rather than a VA-API variant; the ordered candidate list
	// decides between them on Intel.
	profileQSV = EncoderProfile{
		Name: "h264_qsv",
		Args: []string{
			"-init_hw_device", "qsv=hw,child_device=" + DevicePlaceholder,
			"-filter_hw_device", "hw",
			"-vf", "hwupload=extra_hw_frames=64,format=qsv",
			"-c:v", "h264_qsv",
		},
		Platforms:            []PlatformIdentity{PlatformIntel},
		RequiresRenderDevice: true,
	}

	profileNVENC = EncoderProfile{
		Name:      "h264_nvenc",
		Args:      []string{"-c:v", "h264_nvenc", "-preset", "p4"},
		Platforms: []PlatformIdentity{PlatformNVIDIA},
	}
)

// candidateLists orders profiles by preference per platform. The Selector
// preserves this order when probing: first success wins.
var candidateLists = map[PlatformIdentity][]EncoderProfile{
	PlatformRaspberryPi: {profileV4L2M2M, profileOMX},
	PlatformIntel:       {profileVAAPI, profileQSV},
	PlatformAMD:         {profileVAAPI},
	PlatformNVIDIA:      {profileNVENC},
	PlatformGeneric:     {profileVAAPI},
}

// CandidatesFor returns the ordered candidate profiles for the identity.
// Unknown identities fall back to the Generic default rather than erroring.
// The returned slice is a copy; callers may not mutate registry state.
func CandidatesFor(id PlatformIdentity) []EncoderProfile {
	list, ok := candidateLists[id]
	if !ok {
		list = candidateLists[PlatformGeneric]
	}
	out := make([]EncoderProfile, len(list))
	copy(out, list)
	return out
}
