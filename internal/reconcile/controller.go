package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/timeremap/internal/codec"
	"github.com/roach88/timeremap/internal/edit"
	"github.com/roach88/timeremap/internal/timemap"
)

// DefaultWindow is the debounce window in milliseconds.
const DefaultWindow int64 = 500

// State is the controller's commit state.
type State int

const (
	// StateIdle means nothing is waiting to be committed.
	StateIdle State = iota
	// StatePendingCommit means a mutation is waiting for the window to expire.
	StatePendingCommit
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePendingCommit:
		return "pending_commit"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Snapshot is the clip state a commit is built from.
type Snapshot struct {
	Map   *timemap.Map
	Flags codec.Flags
}

// Controller coalesces bursts of edits into one commit per quiet window and
// applies external duration changes immediately.
//
// At most one commit is pending at any time. A newer Touch replaces the
// pending snapshot and restarts the window.
type Controller struct {
	mu sync.Mutex

	codec     *codec.Codec
	committer Committer
	clock     Clock
	seq       *Sequence
	window    int64
	logger    *slog.Logger

	state    State
	deadline int64
	pending  Snapshot
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the logical clock. Default: a ManualClock at 0.
func WithClock(c Clock) Option {
	return func(ctl *Controller) {
		ctl.clock = c
	}
}

// WithWindow sets the debounce window in milliseconds.
//
// Default: 500 (DefaultWindow)
func WithWindow(ms int64) Option {
	return func(ctl *Controller) {
		ctl.window = ms
	}
}

// WithSequence sets the commit sequence, e.g. resumed from the store.
func WithSequence(s *Sequence) Option {
	return func(ctl *Controller) {
		ctl.seq = s
	}
}

// WithLogger sets the logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) {
		ctl.logger = l
	}
}

// NewController creates an idle controller that encodes with c and delivers
// to committer.
func NewController(c *codec.Codec, committer Committer, opts ...Option) *Controller {
	ctl := &Controller{
		codec:     c,
		committer: committer,
		clock:     NewManualClock(),
		seq:       NewSequence(),
		window:    DefaultWindow,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(ctl)
	}
	return ctl
}

// Touch records a mutation: the controller becomes PendingCommit with snap
// as the state to commit, and the window restarts from now.
func (c *Controller) Touch(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = Snapshot{Map: snap.Map.Clone(), Flags: snap.Flags}
	c.deadline = c.clock.Now() + c.window
	if c.state != StatePendingCommit {
		c.logger.Debug("commit pending", "deadline", c.deadline)
	}
	c.state = StatePendingCommit
}

// Tick checks the window against the clock and commits if it has expired.
// Reports whether a commit was emitted.
func (c *Controller) Tick(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePendingCommit || c.clock.Now() < c.deadline {
		return false, nil
	}
	return true, c.commitLocked(ctx, ReasonDebounce)
}

// Flush commits the pending snapshot without waiting for the window.
// Reports whether anything was pending.
func (c *Controller) Flush(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePendingCommit {
		return false, nil
	}
	return true, c.commitLocked(ctx, ReasonFlush)
}

// Expire commits the pending snapshot as if the window had run out. Used
// by drivers that keep their own timer.
func (c *Controller) Expire(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePendingCommit {
		return false, nil
	}
	return true, c.commitLocked(ctx, ReasonDebounce)
}

// Resize fits m to an external duration change and commits the result at
// once, superseding any pending commit. Selection is not consulted.
func (c *Controller) Resize(ctx context.Context, m *timemap.Map, newNativeDuration int, flags codec.Flags) (*timemap.Map, error) {
	next, err := edit.ReconcileDuration(m, newNativeDuration)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StatePendingCommit {
		c.logger.Debug("pending commit superseded by resize")
	}
	c.pending = Snapshot{Map: next.Clone(), Flags: flags}
	if err := c.commitLocked(ctx, ReasonResize); err != nil {
		return nil, err
	}
	return next, nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Deadline returns when the pending commit fires, if one is pending.
func (c *Controller) Deadline() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline, c.state == StatePendingCommit
}

// LastSeq returns the sequence number of the last emitted commit.
func (c *Controller) LastSeq() int64 {
	return c.seq.Current()
}

// commitLocked emits the pending snapshot and returns to Idle. A failed
// delivery is not retried. Caller must hold c.mu.
func (c *Controller) commitLocked(ctx context.Context, reason Reason) error {
	snap := c.pending
	c.state = StateIdle
	c.pending = Snapshot{}

	commit := Commit{
		Seq:      c.seq.Next(),
		Reason:   reason,
		TimeMap:  c.codec.Encode(snap.Map),
		Flags:    snap.Flags,
		Duration: snap.Map.RemapDuration(),
		At:       c.clock.Now(),
	}
	if err := c.committer.Commit(ctx, commit); err != nil {
		c.logger.Warn("commit failed",
			"seq", commit.Seq,
			"reason", reason,
			"error", err,
		)
		return fmt.Errorf("commit %d: %w", commit.Seq, err)
	}

	c.logger.Info("commit emitted",
		"seq", commit.Seq,
		"reason", reason,
		"keyframes", snap.Map.Len(),
	)
	return nil
}
