package cli

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/timeremap/internal/codec"
	"github.com/roach88/timeremap/internal/reconcile"
	"github.com/roach88/timeremap/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	DBPath string
	Jobs   int
}

// ClipCheck is the verification outcome of one clip.
type ClipCheck struct {
	ID        string   `json:"id"`
	OK        bool     `json:"ok"`
	Keyframes int      `json:"keyframes"`
	Commits   int      `json:"commits"`
	Problems  []string `json:"problems"`
}

// VerifyResult is the output of the verify command.
type VerifyResult struct {
	Clips  []ClipCheck `json:"clips"`
	Passed int         `json:"passed"`
	Failed int         `json:"failed"`
}

func (r VerifyResult) String() string {
	var buf strings.Builder
	for _, c := range r.Clips {
		if c.OK {
			fmt.Fprintf(&buf, "✓ %s (%d keyframes, %d commits)\n", c.ID, c.Keyframes, c.Commits)
			continue
		}
		fmt.Fprintf(&buf, "✗ %s\n", c.ID)
		for _, p := range c.Problems {
			fmt.Fprintf(&buf, "  %s\n", p)
		}
	}
	fmt.Fprintf(&buf, "%d passed, %d failed", r.Passed, r.Failed)
	return buf.String()
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check every stored clip",
		Long: `Decode every stored clip's time_map and check it against the map
invariants and the clip's commit log. Clips are checked in parallel.

Exit codes:
  0 - All clips verified
  1 - One or more clips failed
  2 - Command error (database not found, etc.)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().IntVar(&opts.Jobs, "jobs", runtime.NumCPU(), "clips checked in parallel")

	return cmd
}

func runVerify(cmd *cobra.Command, opts *VerifyOptions) error {
	out := opts.formatter(cmd)
	cfg := opts.settings()

	if opts.Jobs < 1 {
		return out.Fail(ExitCommandError, ErrCodeInvalidArgs, "jobs must be at least 1", nil)
	}
	path := opts.DBPath
	if path == "" {
		path = cfg.Database
	}
	if path == "" {
		return out.Fail(ExitCommandError, ErrCodeInvalidArgs, "no database: pass --db or set database in the config", nil)
	}
	st, err := store.Open(path)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	clips, err := st.ListClips(cmd.Context())
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeStore, "failed to list clips", err)
	}

	out.VerboseLog("verifying %d clip(s) with %d job(s)", len(clips), opts.Jobs)
	checks := make([]ClipCheck, len(clips))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(opts.Jobs)
	for i, clip := range clips {
		i, clip := i, clip
		g.Go(func() error {
			check, err := verifyClip(ctx, st, clip, cfg.PadLastFrame)
			if err != nil {
				return err
			}
			checks[i] = check
			opts.log().Debug("clip verified", "clip", clip.ID, "ok", check.OK)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out.Fail(ExitCommandError, ErrCodeStore, "verification aborted", err)
	}

	result := VerifyResult{Clips: checks}
	for _, c := range checks {
		if c.OK {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	if err := out.Success(result); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d clips failed verification", result.Failed, len(checks)))
	}
	return nil
}

// verifyClip checks one clip. Problems with the clip's data are reported in
// the check; only store failures return an error.
func verifyClip(ctx context.Context, st *store.Store, clip store.Clip, pad bool) (ClipCheck, error) {
	check := ClipCheck{ID: clip.ID, Problems: []string{}}
	problem := func(format string, args ...any) {
		check.Problems = append(check.Problems, fmt.Sprintf(format, args...))
	}

	c, err := codec.New(clip.FPS, codec.WithPadLastFrame(pad))
	if err != nil {
		problem("fps: %v", err)
	} else if m, err := c.Decode(clip.TimeMap, clip.SourceIn); err != nil {
		problem("time_map: %v", err)
	} else {
		check.Keyframes = m.Len()
		if err := m.CheckMonotonic(); err != nil {
			problem("time_map not monotonic: %v", err)
		}
	}

	commits, err := st.ListCommits(ctx, clip.ID)
	if err != nil {
		return ClipCheck{}, fmt.Errorf("clip %s: %w", clip.ID, err)
	}
	check.Commits = len(commits)

	headFound := clip.HeadSeq == 0
	for _, rec := range commits {
		hash, err := reconcile.Commit{TimeMap: rec.TimeMap, Flags: rec.Flags, Duration: rec.Duration}.Hash()
		if err != nil {
			return ClipCheck{}, fmt.Errorf("clip %s: %w", clip.ID, err)
		}
		if hash != rec.Hash {
			problem("commit %d: hash mismatch", rec.Seq)
		}
		if rec.Seq == clip.HeadSeq {
			headFound = true
			if rec.TimeMap != clip.TimeMap {
				problem("commit %d: time_map differs from clip head", rec.Seq)
			}
		}
	}
	if !headFound {
		problem("head seq %d has no commit", clip.HeadSeq)
	}

	check.OK = len(check.Problems) == 0
	return check, nil
}
