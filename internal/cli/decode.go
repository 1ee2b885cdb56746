package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/timeremap/internal/timemap"
)

// DecodeOptions holds flags for the decode command.
type DecodeOptions struct {
	*RootOptions
	codecFlags
	SourceIn int
}

// KeyframeInfo describes one keyframe and the speeds of its segments in
// percent. A nil speed means there is no segment on that side.
type KeyframeInfo struct {
	Source      int      `json:"source"`
	Output      int      `json:"output"`
	SpeedBefore *float64 `json:"speed_before,omitempty"`
	SpeedAfter  *float64 `json:"speed_after,omitempty"`
}

func (k KeyframeInfo) String() string {
	return fmt.Sprintf("%s before=%s after=%s",
		timemap.Entry{Source: k.Source, Output: k.Output}, formatSpeed(k.SpeedBefore), formatSpeed(k.SpeedAfter))
}

// DecodeResult is the output of the decode command.
type DecodeResult struct {
	Keyframes     []KeyframeInfo `json:"keyframes"`
	RemapDuration int            `json:"remap_duration"`
	Monotonic     bool           `json:"monotonic"`
}

func (r DecodeResult) String() string {
	var buf strings.Builder
	for _, k := range r.Keyframes {
		fmt.Fprintln(&buf, k)
	}
	fmt.Fprintf(&buf, "remap duration: %d frames", r.RemapDuration)
	if !r.Monotonic {
		buf.WriteString(" (non-monotonic)")
	}
	return buf.String()
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decode <time_map>",
		Short: "Decode time_map text into keyframes",
		Long: `Decode the engine's time_map text and list each keyframe with the
speed of the segments around it.

Examples:
  timeremap decode --fps 25 "00:00:00.000=0;00:00:02.040=1"
  timeremap decode --fps 25 --format json "$(timeremap encode 0:0 25:50)"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd, opts, args[0])
		},
	}

	opts.register(cmd)
	cmd.Flags().IntVar(&opts.SourceIn, "source-in", 0, "first valid source frame")

	return cmd
}

func runDecode(cmd *cobra.Command, opts *DecodeOptions, text string) error {
	out := opts.formatter(cmd)

	c, err := opts.codec(cmd, opts.settings())
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInvalidArgs, "invalid frame rate", err)
	}
	m, err := c.Decode(text, opts.SourceIn)
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeMalformed, "time_map does not decode", err)
	}

	keyframes, err := describeKeyframes(m)
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeGeneric, "failed to compute speeds", err)
	}
	return out.Success(DecodeResult{
		Keyframes:     keyframes,
		RemapDuration: m.RemapDuration(),
		Monotonic:     m.Monotonic(),
	})
}

func describeKeyframes(m *timemap.Map) ([]KeyframeInfo, error) {
	keyframes := make([]KeyframeInfo, 0, m.Len())
	for _, e := range m.Entries() {
		speeds, err := timemap.SegmentSpeed(m, e.Source)
		if err != nil {
			return nil, err
		}
		info := KeyframeInfo{Source: e.Source, Output: e.Output}
		if speeds.HasBefore {
			info.SpeedBefore = &speeds.Before
		}
		if speeds.HasAfter {
			info.SpeedAfter = &speeds.After
		}
		keyframes = append(keyframes, info)
	}
	return keyframes, nil
}

func formatSpeed(p *float64) string {
	if p == nil {
		return "-"
	}
	return formatFloat(*p)
}

// formatFloat renders a position without trailing zeros.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
