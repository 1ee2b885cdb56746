package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/timeremap/internal/timemap"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	codecFlags
	SourceIn int
	Duration int
	Sources  []int
	Outputs  []int
}

// Query is one position lookup through the map.
type Query struct {
	From   string  `json:"from"` // axis of the given position
	At     int     `json:"at"`
	Result float64 `json:"result"`
	Frame  int     `json:"frame"` // Result rounded to the nearest frame
}

func (q Query) String() string {
	to := timemap.AxisOutput
	if q.From == timemap.AxisOutput.String() {
		to = timemap.AxisSource
	}
	return fmt.Sprintf("%s %d -> %s %s (frame %d)", q.From, q.At, to, formatFloat(q.Result), q.Frame)
}

// InspectResult is the output of the inspect command.
type InspectResult struct {
	Keyframes      int     `json:"keyframes"`
	NativeDuration int     `json:"native_duration"`
	RemapDuration  int     `json:"remap_duration"`
	Monotonic      bool    `json:"monotonic"`
	Queries        []Query `json:"queries"`
}

func (r InspectResult) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "keyframes: %d\n", r.Keyframes)
	fmt.Fprintf(&buf, "native duration: %d\n", r.NativeDuration)
	fmt.Fprintf(&buf, "remap duration: %d\n", r.RemapDuration)
	fmt.Fprintf(&buf, "monotonic: %t", r.Monotonic)
	for _, q := range r.Queries {
		fmt.Fprintf(&buf, "\n%s", q)
	}
	return buf.String()
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <time_map>",
		Short: "Query positions through a time map",
		Long: `Decode time_map text and map positions between the source and
output axes. Positions past the last keyframe extrapolate over the
native duration, which defaults to the span the keyframes cover.

Examples:
  timeremap inspect --fps 25 "00:00:00.000=0;00:00:05.000=4.96" --source 10
  timeremap inspect --fps 25 --duration 150 "<map>" --output 140`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, opts, args[0])
		},
	}

	opts.register(cmd)
	cmd.Flags().IntVar(&opts.SourceIn, "source-in", 0, "first valid source frame")
	cmd.Flags().IntVar(&opts.Duration, "duration", 0, "native duration in frames (default: keyframe span)")
	cmd.Flags().IntSliceVar(&opts.Sources, "source", nil, "source positions to map to output")
	cmd.Flags().IntSliceVar(&opts.Outputs, "output", nil, "output positions to map to source")

	return cmd
}

func runInspect(cmd *cobra.Command, opts *InspectOptions, text string) error {
	out := opts.formatter(cmd)

	c, err := opts.codec(cmd, opts.settings())
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInvalidArgs, "invalid frame rate", err)
	}
	m, err := c.Decode(text, opts.SourceIn)
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeMalformed, "time_map does not decode", err)
	}
	if opts.Duration > 0 {
		m.SetNativeDuration(opts.Duration)
	}

	result := InspectResult{
		Keyframes:      m.Len(),
		NativeDuration: m.NativeDuration(),
		RemapDuration:  m.RemapDuration(),
		Monotonic:      m.Monotonic(),
		Queries:        []Query{},
	}
	lookups := []struct {
		axis      timemap.Axis
		positions []int
		fn        func(*timemap.Map, float64) (float64, error)
	}{
		{timemap.AxisSource, opts.Sources, timemap.SourceToOutput},
		{timemap.AxisOutput, opts.Outputs, timemap.OutputToSource},
	}
	for _, l := range lookups {
		for _, pos := range l.positions {
			v, err := l.fn(m, float64(pos))
			if err != nil {
				return out.Fail(ExitFailure, ErrCodeInvalidArgs, fmt.Sprintf("cannot map %s %d", l.axis, pos), err)
			}
			result.Queries = append(result.Queries, Query{
				From:   l.axis.String(),
				At:     pos,
				Result: v,
				Frame:  timemap.Round(v),
			})
		}
	}
	return out.Success(result)
}
