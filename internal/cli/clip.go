package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/timeremap/internal/codec"
	"github.com/roach88/timeremap/internal/edit"
	"github.com/roach88/timeremap/internal/session"
	"github.com/roach88/timeremap/internal/store"
	"github.com/roach88/timeremap/internal/timemap"
)

// ClipOptions holds flags shared by the clip subcommands.
type ClipOptions struct {
	*RootOptions
	DBPath string
}

// NewClipCommand creates the clip command group.
func NewClipCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClipOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clip",
		Short: "Manage stored clip remap state",
		Long: `Create, show and edit clips persisted in a SQLite database.

Every committed edit is appended to the clip's commit log.

Examples:
  timeremap clip create intro --db remap.db --fps 25 --duration 125
  timeremap clip retime intro --db remap.db --key 62 --side after --percent 200
  timeremap clip history intro --db remap.db`,
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to SQLite database (default from config)")

	cmd.AddCommand(newClipCreateCommand(opts))
	cmd.AddCommand(newClipShowCommand(opts))
	cmd.AddCommand(newClipListCommand(opts))
	cmd.AddCommand(newClipHistoryCommand(opts))
	cmd.AddCommand(newClipRetimeCommand(opts))
	cmd.AddCommand(newClipDeleteCommand(opts))

	return cmd
}

// openStore opens the database named by --db or the config.
func (o *ClipOptions) openStore(out *OutputFormatter) (*store.Store, error) {
	path := o.DBPath
	if path == "" {
		path = o.settings().Database
	}
	if path == "" {
		return nil, out.Fail(ExitCommandError, ErrCodeInvalidArgs, "no database: pass --db or set database in the config", nil)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	return st, nil
}

func (o *ClipOptions) storeError(out *OutputFormatter, clipID string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("clip %s not found", clipID), err)
	}
	return out.Fail(ExitCommandError, ErrCodeStore, "database error", err)
}

// ClipView is a stored clip as printed by the clip commands.
type ClipView struct {
	store.Clip
}

func (v ClipView) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "id: %s\n", v.ID)
	if v.Name != "" {
		fmt.Fprintf(&buf, "name: %s\n", v.Name)
	}
	fmt.Fprintf(&buf, "fps: %s\n", formatFloat(v.FPS))
	fmt.Fprintf(&buf, "source in: %d\n", v.SourceIn)
	fmt.Fprintf(&buf, "duration: %d\n", v.Duration)
	fmt.Fprintf(&buf, "pitch compensate: %t\n", v.Flags.PitchCompensate)
	fmt.Fprintf(&buf, "frame blend: %t\n", v.Flags.FrameBlend)
	fmt.Fprintf(&buf, "head seq: %d\n", v.HeadSeq)
	fmt.Fprintf(&buf, "time_map: %s", v.TimeMap)
	return buf.String()
}

type clipCreateOptions struct {
	*ClipOptions
	codecFlags
	Name     string
	SourceIn int
	Duration int
	TimeMap  string
	Pitch    bool
	Nearest  bool
}

func newClipCreateCommand(parent *ClipOptions) *cobra.Command {
	opts := &clipCreateOptions{ClipOptions: parent}

	cmd := &cobra.Command{
		Use:           "create <id>",
		Short:         "Store a clip in remap mode",
		Long:          "Store a clip. Without --time-map the clip starts from the identity map over its duration.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClipCreate(cmd, opts, args[0])
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().IntVar(&opts.SourceIn, "source-in", 0, "first valid source frame")
	cmd.Flags().IntVar(&opts.Duration, "duration", 0, "clip duration in frames (required)")
	cmd.Flags().StringVar(&opts.TimeMap, "time-map", "", "initial time_map text")
	cmd.Flags().BoolVar(&opts.Pitch, "pitch-compensate", false, "enable pitch compensation")
	cmd.Flags().BoolVar(&opts.Nearest, "nearest", false, "use nearest frames instead of blending")
	_ = cmd.MarkFlagRequired("duration")

	return cmd
}

func runClipCreate(cmd *cobra.Command, opts *clipCreateOptions, id string) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	if opts.Duration <= 0 {
		return out.Fail(ExitCommandError, ErrCodeInvalidArgs, "duration must be positive", nil)
	}
	c, err := opts.codec(cmd, opts.settings())
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInvalidArgs, "invalid frame rate", err)
	}

	timeMap := opts.TimeMap
	if timeMap == "" {
		timeMap = c.Encode(timemap.Identity(opts.SourceIn, opts.Duration))
	} else if _, err := c.Decode(timeMap, opts.SourceIn); err != nil {
		return out.Fail(ExitFailure, ErrCodeMalformed, "time_map does not decode", err)
	}

	st, err := opts.openStore(out)
	if err != nil {
		return err
	}
	defer st.Close()

	clip := store.Clip{
		ID:       id,
		Name:     opts.Name,
		FPS:      c.FPS(),
		SourceIn: opts.SourceIn,
		Duration: opts.Duration,
		TimeMap:  timeMap,
		Flags:    codec.Flags{PitchCompensate: opts.Pitch, FrameBlend: !opts.Nearest},
	}
	if err := st.PutClip(ctx, clip); err != nil {
		return opts.storeError(out, id, err)
	}
	stored, err := st.GetClip(ctx, id)
	if err != nil {
		return opts.storeError(out, id, err)
	}
	opts.log().Info("clip stored", "clip", id, "time_map", stored.TimeMap)
	return out.Success(ClipView{stored})
}

func newClipShowCommand(opts *ClipOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <id>",
		Short:         "Show a stored clip",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			st, err := opts.openStore(out)
			if err != nil {
				return err
			}
			defer st.Close()

			clip, err := st.GetClip(cmd.Context(), args[0])
			if err != nil {
				return opts.storeError(out, args[0], err)
			}
			return out.Success(ClipView{clip})
		},
	}
}

// ClipList is the output of clip list.
type ClipList struct {
	Clips []store.Clip `json:"clips"`
}

func (l ClipList) String() string {
	if len(l.Clips) == 0 {
		return "No clips."
	}
	lines := make([]string, len(l.Clips))
	for i, c := range l.Clips {
		lines[i] = fmt.Sprintf("%s\t%s fps\t%d frames\tseq %d", c.ID, formatFloat(c.FPS), c.Duration, c.HeadSeq)
	}
	return strings.Join(lines, "\n")
}

func newClipListCommand(opts *ClipOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored clips",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			st, err := opts.openStore(out)
			if err != nil {
				return err
			}
			defer st.Close()

			clips, err := st.ListClips(cmd.Context())
			if err != nil {
				return opts.storeError(out, "", err)
			}
			return out.Success(ClipList{Clips: clips})
		},
	}
}

// History is the commit log of one clip.
type History struct {
	ClipID  string               `json:"clip_id"`
	Commits []store.CommitRecord `json:"commits"`
}

func (h History) String() string {
	if len(h.Commits) == 0 {
		return fmt.Sprintf("No commits for %s.", h.ClipID)
	}
	lines := make([]string, len(h.Commits))
	for i, c := range h.Commits {
		lines[i] = fmt.Sprintf("%d\t%s\t%s\t%s", c.Seq, c.Reason, shortHash(c.Hash), c.TimeMap)
	}
	return strings.Join(lines, "\n")
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func newClipHistoryCommand(opts *ClipOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "history <id>",
		Short:         "List the commit log of a clip",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := opts.formatter(cmd)
			st, err := opts.openStore(out)
			if err != nil {
				return err
			}
			defer st.Close()

			if _, err := st.GetClip(ctx, args[0]); err != nil {
				return opts.storeError(out, args[0], err)
			}
			commits, err := st.ListCommits(ctx, args[0])
			if err != nil {
				return opts.storeError(out, args[0], err)
			}
			return out.Success(History{ClipID: args[0], Commits: commits})
		},
	}
}

type clipRetimeOptions struct {
	*ClipOptions
	Key       int
	Side      string
	Percent   float64
	NoCascade bool
}

func newClipRetimeCommand(parent *ClipOptions) *cobra.Command {
	opts := &clipRetimeOptions{ClipOptions: parent}

	cmd := &cobra.Command{
		Use:   "retime <id>",
		Short: "Set the speed of a segment next to a keyframe",
		Long: `Open a session on a stored clip, set the speed of the segment before
or after the keyframe at --key, and commit the result.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClipRetime(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Key, "key", 0, "source frame of the keyframe")
	cmd.Flags().StringVar(&opts.Side, "side", "after", "segment side (before|after)")
	cmd.Flags().Float64Var(&opts.Percent, "percent", 100, "speed in percent")
	cmd.Flags().BoolVar(&opts.NoCascade, "no-cascade", false, "do not shift later keyframes")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

func runClipRetime(cmd *cobra.Command, opts *clipRetimeOptions, id string) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	var side edit.Side
	switch opts.Side {
	case "before":
		side = edit.SideBefore
	case "after":
		side = edit.SideAfter
	default:
		return out.Fail(ExitCommandError, ErrCodeInvalidArgs, fmt.Sprintf("side must be before or after, got %q", opts.Side), nil)
	}

	st, err := opts.openStore(out)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.GetClip(ctx, id)
	if err != nil {
		return opts.storeError(out, id, err)
	}
	c, err := codec.New(rec.FPS, codec.WithPadLastFrame(opts.settings().PadLastFrame))
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInvalidArgs, "invalid frame rate", err)
	}

	cascade := opts.settings().Cascade && !opts.NoCascade
	clip, err := session.OpenStored(ctx, st, id, c, session.UUIDv7Generator{},
		session.WithCascade(cascade),
		session.WithLogger(opts.log()),
	)
	if err != nil {
		return opts.storeError(out, id, err)
	}
	if err := retime(ctx, clip, opts.Key, side, opts.Percent); err != nil {
		return out.Fail(ExitFailure, ErrCodeRejected, "retime rejected", err)
	}

	stored, err := st.GetClip(ctx, id)
	if err != nil {
		return opts.storeError(out, id, err)
	}
	return out.Success(ClipView{stored})
}

func retime(ctx context.Context, clip *session.Clip, key int, side edit.Side, percent float64) error {
	if err := clip.SelectKeyframes(key); err != nil {
		return err
	}
	if err := clip.SetSegmentSpeed(side, percent); err != nil {
		return err
	}
	return clip.Close(ctx)
}

func newClipDeleteCommand(opts *ClipOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a clip and its commit log",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			st, err := opts.openStore(out)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.DeleteClip(cmd.Context(), args[0]); err != nil {
				return opts.storeError(out, args[0], err)
			}
			return out.Success(fmt.Sprintf("deleted %s", args[0]))
		},
	}
}
