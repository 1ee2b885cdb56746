package codec

// Engine property names and values of the remap link.
const (
	PropTimeMap   = "time_map"
	PropPitch     = "pitch"
	PropImageMode = "image_mode"

	ImageModeBlend   = "blend"
	ImageModeNearest = "nearest"
)

// Flags are the two passthrough switches of the remap link. The engine does
// the pitch shifting and frame blending; they are only forwarded.
type Flags struct {
	PitchCompensate bool `json:"pitch_compensate" yaml:"pitch_compensate"`
	FrameBlend      bool `json:"frame_blend" yaml:"frame_blend"`
}

// DefaultFlags matches a freshly created remap link: no pitch compensation,
// blended frames.
func DefaultFlags() Flags {
	return Flags{FrameBlend: true}
}

// Properties renders the flags and the encoded map as engine properties.
func (f Flags) Properties(timeMap string) map[string]string {
	pitch := "0"
	if f.PitchCompensate {
		pitch = "1"
	}
	mode := ImageModeNearest
	if f.FrameBlend {
		mode = ImageModeBlend
	}
	return map[string]string{
		PropTimeMap:   timeMap,
		PropPitch:     pitch,
		PropImageMode: mode,
	}
}

// FlagsFromProperties reads flags back from engine properties. An absent
// image_mode means blending.
func FlagsFromProperties(props map[string]string) Flags {
	return Flags{
		PitchCompensate: props[PropPitch] == "1",
		FrameBlend:      props[PropImageMode] != ImageModeNearest,
	}
}
