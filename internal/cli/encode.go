package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/timeremap/internal/timemap"
)

// EncodeOptions holds flags for the encode command.
type EncodeOptions struct {
	*RootOptions
	codecFlags
	SourceIn int
}

// EncodeResult is the output of the encode command.
type EncodeResult struct {
	TimeMap   string `json:"time_map"`
	Keyframes int    `json:"keyframes"`
}

func (r EncodeResult) String() string { return r.TimeMap }

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EncodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "encode <source:output>...",
		Short: "Encode keyframes as time_map text",
		Long: `Encode keyframes given as source:output frame pairs into the
engine's time_map text.

Examples:
  timeremap encode --fps 25 0:0 25:50
  timeremap encode --fps 25 --pad-last-frame=false 0:0 62:62 124:93`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(cmd, opts, args)
		},
	}

	opts.register(cmd)
	cmd.Flags().IntVar(&opts.SourceIn, "source-in", 0, "first valid source frame")

	return cmd
}

func runEncode(cmd *cobra.Command, opts *EncodeOptions, args []string) error {
	out := opts.formatter(cmd)

	c, err := opts.codec(cmd, opts.settings())
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInvalidArgs, "invalid frame rate", err)
	}

	entries := make([]timemap.Entry, 0, len(args))
	for _, arg := range args {
		e, err := parsePair(arg)
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeInvalidArgs, "invalid keyframe", err)
		}
		entries = append(entries, e)
	}

	m, err := timemap.FromEntries(opts.SourceIn, 0, entries)
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeRejected, "keyframes violate the map invariants", err)
	}
	if !m.Monotonic() {
		opts.log().Warn("encoding non-monotonic map", "keyframes", m.String())
	}

	return out.Success(EncodeResult{TimeMap: c.Encode(m), Keyframes: m.Len()})
}

// parsePair parses "source:output" frame numbers.
func parsePair(s string) (timemap.Entry, error) {
	src, dst, ok := strings.Cut(s, ":")
	if !ok {
		return timemap.Entry{}, fmt.Errorf("%q: want source:output", s)
	}
	source, err := strconv.Atoi(strings.TrimSpace(src))
	if err != nil {
		return timemap.Entry{}, fmt.Errorf("%q: bad source: %w", s, err)
	}
	output, err := strconv.Atoi(strings.TrimSpace(dst))
	if err != nil {
		return timemap.Entry{}, fmt.Errorf("%q: bad output: %w", s, err)
	}
	return timemap.Entry{Source: source, Output: output}, nil
}
