package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/timeremap/internal/codec"
	"github.com/roach88/timeremap/internal/edit"
	"github.com/roach88/timeremap/internal/reconcile"
	"github.com/roach88/timeremap/internal/timemap"
)

var (
	// ErrNoCurrentKeyframe is returned by edits that act on the current
	// keyframe when none is selected.
	ErrNoCurrentKeyframe = errors.New("no current keyframe")

	// ErrNothingToUndo is returned by Undo with an empty history.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo is returned by Redo with an empty redo stack.
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Params describes the clip a session is opened on.
type Params struct {
	ID       string
	Name     string
	SourceIn int
	Duration int    // hosting clip's output length in frames
	TimeMap  string // persisted engine string; empty seeds identity keyframes
	Flags    codec.Flags
}

// Option configures a Clip.
type Option func(*options)

type options struct {
	listener Listener
	sink     reconcile.Committer
	window   int64
	wall     time.Duration
	cascade  bool
	resume   int64
	logger   *slog.Logger
}

// WithListener sets the notification receiver. Default: NopListener.
func WithListener(l Listener) Option {
	return func(o *options) { o.listener = l }
}

// WithSink sets where commits are delivered before MapChanged fires, e.g. a
// StoreSink.
func WithSink(c reconcile.Committer) Option {
	return func(o *options) { o.sink = c }
}

// WithWindow sets the logical debounce window in milliseconds.
func WithWindow(ms int64) Option {
	return func(o *options) { o.window = ms }
}

// WithWallDebounce drives commits from a wall-clock timer instead of
// Advance. Intended for hosts without a tick source.
func WithWallDebounce(d time.Duration) Option {
	return func(o *options) { o.wall = d }
}

// WithCascade sets the initial cascade ("move following keyframes") mode.
// Default: true.
func WithCascade(on bool) Option {
	return func(o *options) { o.cascade = on }
}

// WithResumeSeq continues commit numbering after seq.
func WithResumeSeq(seq int64) Option {
	return func(o *options) { o.resume = seq }
}

// WithLogger sets the logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

type snapshot struct {
	m     *timemap.Map
	flags codec.Flags
}

type change struct {
	label  string
	before snapshot
	after  snapshot
}

// Clip is the remap session of one clip: the map, the transient selection
// and cursors, the undo history, and the commit controller.
//
// All methods are serialized by a per-clip mutex. Listener callbacks run
// under that lock.
type Clip struct {
	mu sync.Mutex

	id    string
	name  string
	codec *codec.Codec

	m       *timemap.Map
	flags   codec.Flags
	sel     edit.Selection
	view    edit.ViewState
	current timemap.Entry
	hasCur  bool
	cascade bool
	lastCur Current
	lastDur int

	undo []change
	redo []change

	clock    *reconcile.ManualClock
	ctl      *reconcile.Controller
	wall     *reconcile.WallDebouncer
	listener Listener
	logger   *slog.Logger

	recovered error
}

// Open starts a remap session. A malformed TimeMap falls back to identity
// keyframes over Duration; the decode error is kept in Recovered.
func Open(p Params, c *codec.Codec, opts ...Option) (*Clip, error) {
	if p.Duration <= 0 {
		return nil, &timemap.RangeError{Axis: timemap.AxisOutput, Value: p.Duration, Min: 1}
	}
	o := options{
		listener: NopListener{},
		window:   reconcile.DefaultWindow,
		cascade:  true,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	m, err := c.DecodeOrIdentity(p.TimeMap, p.SourceIn, p.Duration)
	if err != nil {
		o.logger.Warn("time_map rejected, using identity",
			"clip", p.ID,
			"error", err,
		)
	}

	cl := &Clip{
		id:        p.ID,
		name:      p.Name,
		codec:     c,
		m:         m,
		flags:     p.Flags,
		sel:       edit.NewSelection(),
		view:      edit.ViewState{Output: p.SourceIn, Source: p.SourceIn},
		cascade:   o.cascade,
		clock:     reconcile.NewManualClock(),
		listener:  o.listener,
		logger:    o.logger.With("clip", p.ID),
		recovered: err,
		lastDur:   m.RemapDuration(),
	}

	sink := o.sink
	committer := reconcile.CommitterFunc(func(ctx context.Context, commit reconcile.Commit) error {
		if sink != nil {
			if err := sink.Commit(ctx, commit); err != nil {
				return err
			}
		}
		cl.listener.MapChanged(commit.TimeMap)
		return nil
	})
	cl.ctl = reconcile.NewController(c, committer,
		reconcile.WithClock(cl.clock),
		reconcile.WithWindow(o.window),
		reconcile.WithSequence(reconcile.NewSequenceAt(o.resume)),
		reconcile.WithLogger(cl.logger),
	)
	if o.wall > 0 {
		cl.wall = reconcile.NewWallDebouncer(context.Background(), cl.ctl, o.wall, &cl.mu, func(err error) {
			cl.logger.Warn("wall-clock commit failed", "error", err)
		})
	}

	if k, ok := m.First(); ok && k.Source == p.SourceIn {
		cl.current, cl.hasCur = k, true
		cl.sel = edit.NewSelection(k.Source)
	}
	cl.lastCur = cl.describeLocked()
	return cl, nil
}

// ID returns the clip ID.
func (c *Clip) ID() string { return c.id }

// Name returns the clip name.
func (c *Clip) Name() string { return c.name }

// Recovered returns the decode error if Open fell back to identity.
func (c *Clip) Recovered() error { return c.recovered }

// Map returns a copy of the current map.
func (c *Clip) Map() *timemap.Map {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m.Clone()
}

// Serialized returns the current map as the engine string.
func (c *Clip) Serialized() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codec.Encode(c.m)
}

// Flags returns the passthrough flags.
func (c *Clip) Flags() codec.Flags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

// Selection returns the current selection.
func (c *Clip) Selection() edit.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel
}

// View returns the cursor positions.
func (c *Clip) View() edit.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Current returns the current keyframe and its speeds.
func (c *Clip) Current() Current {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.describeLocked()
}

// Cascade reports whether edits carry following keyframes along.
func (c *Clip) Cascade() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cascade
}

// SetCascade switches cascade mode.
func (c *Clip) SetCascade(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cascade = on
}

// State returns the commit controller state.
func (c *Clip) State() reconcile.State {
	return c.ctl.State()
}

// CanUndo reports whether Undo has anything to restore.
func (c *Clip) CanUndo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.undo) > 0
}

// CanRedo reports whether Redo has anything to restore.
func (c *Clip) CanRedo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.redo) > 0
}

// Seek moves the output playhead. The source cursor follows through the
// map. Landing exactly on a keyframe makes it current.
func (c *Clip) Seek(output int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	src, err := timemap.OutputToSource(c.m, float64(output))
	if err != nil {
		return fmt.Errorf("seek %d: %w", output, err)
	}
	c.view = edit.ViewState{Output: output, Source: timemap.Round(src)}
	if out, ok := c.m.Get(c.view.Source); ok && out == output {
		c.setCurrentLocked(timemap.Entry{Source: c.view.Source, Output: out})
	}
	c.notifyLocked()
	return nil
}

// SeekSource moves the source cursor only.
func (c *Clip) SeekSource(source int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.Source = source
}

// ToggleKeyframe adds a keyframe at the source cursor, or removes the one
// that is there.
func (c *Clip) ToggleKeyframe() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := edit.Toggle(c.m, c.view.Source)
	if err != nil {
		return err
	}
	c.applyLocked("toggle", res)
	if !res.HasCurrent {
		c.hasCur = false
	}
	c.notifyLocked()
	return nil
}

// SelectKeyframes replaces the selection. The first key becomes current.
// Fails with ErrNotKeyframe, changing nothing, if any key is not a keyframe.
func (c *Clip) SelectKeyframes(keys ...int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		if !c.m.Contains(k) {
			return fmt.Errorf("select %d: %w", k, timemap.ErrNotKeyframe)
		}
	}
	c.sel = edit.NewSelection(keys...)
	if len(keys) > 0 {
		out, _ := c.m.Get(keys[0])
		c.setCurrentLocked(timemap.Entry{Source: keys[0], Output: out})
	}
	c.notifyLocked()
	return nil
}

// ClearSelection empties the selection and clears the current keyframe.
func (c *Clip) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sel = edit.NewSelection()
	c.hasCur = false
	c.notifyLocked()
}

// MoveKeyframe moves the current keyframe (and the selection it belongs to)
// to v on the given axis.
func (c *Clip) MoveKeyframe(axis timemap.Axis, v int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasCur {
		return ErrNoCurrentKeyframe
	}
	var (
		res edit.Result
		err error
	)
	switch axis {
	case timemap.AxisSource:
		res, err = edit.MoveSource(c.m, c.current.Source, v, c.sel)
	case timemap.AxisOutput:
		res, err = edit.MoveOutput(c.m, c.current.Source, v, c.sel, c.cascade)
	default:
		return fmt.Errorf("move keyframe: unknown axis %v", axis)
	}
	if err != nil {
		c.logger.Debug("move rejected", "axis", axis, "value", v, "error", err)
		return err
	}
	c.applyLocked("move "+axis.String(), res)
	c.notifyLocked()
	return nil
}

// SetSegmentSpeed sets the speed of the segment on one side of the current
// keyframe, in percent of real time.
func (c *Clip) SetSegmentSpeed(side edit.Side, percent float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasCur {
		return ErrNoCurrentKeyframe
	}
	res, err := edit.Retime(c.m, c.current.Source, side, percent, c.cascade)
	if err != nil {
		return err
	}
	c.applyLocked("speed "+side.String(), res)
	c.notifyLocked()
	return nil
}

// CenterKeyframe moves the current keyframe onto the cursor of the given
// axis.
func (c *Clip) CenterKeyframe(axis timemap.Axis) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasCur {
		return ErrNoCurrentKeyframe
	}
	cursor := c.view.Source
	if axis == timemap.AxisOutput {
		cursor = c.view.Output
	}
	res, err := edit.CenterKeyframe(c.m, c.current.Source, axis, cursor, c.cascade)
	if err != nil {
		return err
	}
	c.applyLocked("center "+axis.String(), res)
	c.notifyLocked()
	return nil
}

// GoNext makes the keyframe after the current position current and moves
// both cursors onto it. Reports false at the last keyframe.
func (c *Clip) GoNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	kf, ok := edit.Next(c.m, c.positionLocked())
	if ok {
		c.jumpLocked(kf)
	}
	return ok
}

// GoPrev makes the keyframe before the current position current, or the
// first keyframe when already at or before it.
func (c *Clip) GoPrev() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	kf, ok := edit.Prev(c.m, c.positionLocked())
	if ok {
		c.jumpLocked(kf)
	}
	return ok
}

// SetFlags changes the passthrough flags. Schedules a commit like an edit.
func (c *Clip) SetFlags(f codec.Flags) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f == c.flags {
		return
	}
	before := snapshot{m: c.m, flags: c.flags}
	c.flags = f
	c.recordLocked("flags", before)
	c.touchLocked()
}

// ResizeDuration fits the map to a new hosting clip length and commits
// immediately. The undo history is dropped since it refers to the old
// length.
func (c *Clip) ResizeDuration(ctx context.Context, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.ctl.Resize(ctx, c.m, n, c.flags)
	if err != nil {
		return err
	}
	c.m = next
	c.undo, c.redo = nil, nil
	c.revalidateLocked()
	c.notifyLocked()
	return nil
}

// Undo restores the state before the last edit and schedules a commit.
func (c *Clip) Undo() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.undo) == 0 {
		return ErrNothingToUndo
	}
	ch := c.undo[len(c.undo)-1]
	c.undo = c.undo[:len(c.undo)-1]
	c.redo = append(c.redo, ch)
	c.restoreLocked(ch.before)
	c.logger.Debug("undo", "edit", ch.label)
	return nil
}

// Redo reapplies the last undone edit and schedules a commit.
func (c *Clip) Redo() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.redo) == 0 {
		return ErrNothingToRedo
	}
	ch := c.redo[len(c.redo)-1]
	c.redo = c.redo[:len(c.redo)-1]
	c.undo = append(c.undo, ch)
	c.restoreLocked(ch.after)
	c.logger.Debug("redo", "edit", ch.label)
	return nil
}

// Advance moves the logical clock by ms and fires the pending commit if its
// window expired. Reports whether a commit was emitted.
func (c *Clip) Advance(ctx context.Context, ms int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clock.Advance(ms)
	return c.ctl.Tick(ctx)
}

// Flush commits any pending change now.
func (c *Clip) Flush(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctl.Flush(ctx)
}

// Close flushes pending changes. The session must not be used afterwards.
func (c *Clip) Close(ctx context.Context) error {
	_, err := c.Flush(ctx)
	return err
}

func (c *Clip) applyLocked(label string, res edit.Result) {
	before := snapshot{m: c.m, flags: c.flags}
	next := res.Map
	if rm := next.RemapMax(); rm > next.NativeDuration() {
		next.SetNativeDuration(rm)
	}
	c.m = next
	c.sel = res.Selection
	if res.HasCurrent {
		c.setCurrentLocked(res.Current)
		c.view = edit.ViewState{Output: res.Current.Output, Source: res.Current.Source}
	}
	c.recordLocked(label, before)
	c.touchLocked()
}

func (c *Clip) recordLocked(label string, before snapshot) {
	c.undo = append(c.undo, change{
		label:  label,
		before: before,
		after:  snapshot{m: c.m, flags: c.flags},
	})
	c.redo = nil
}

func (c *Clip) restoreLocked(s snapshot) {
	c.m = s.m.Clone()
	c.flags = s.flags
	c.sel = edit.NewSelection()
	c.revalidateLocked()
	c.touchLocked()
	c.notifyLocked()
}

func (c *Clip) touchLocked() {
	snap := reconcile.Snapshot{Map: c.m, Flags: c.flags}
	if c.wall != nil {
		c.wall.Touch(snap)
		return
	}
	c.ctl.Touch(snap)
}

func (c *Clip) jumpLocked(kf timemap.Entry) {
	c.setCurrentLocked(kf)
	c.sel = edit.NewSelection(kf.Source)
	c.view = edit.ViewState{Output: kf.Output, Source: kf.Source}
	c.notifyLocked()
}

func (c *Clip) setCurrentLocked(kf timemap.Entry) {
	c.current, c.hasCur = kf, true
}

// revalidateLocked drops or refreshes the current keyframe after the map
// was replaced wholesale.
func (c *Clip) revalidateLocked() {
	if !c.hasCur {
		return
	}
	out, ok := c.m.Get(c.current.Source)
	if !ok {
		c.hasCur = false
		return
	}
	c.current.Output = out
}

func (c *Clip) positionLocked() int {
	if c.hasCur {
		return c.current.Source
	}
	return c.view.Source
}

func (c *Clip) describeLocked() Current {
	if !c.hasCur {
		return Current{}
	}
	cur := Current{Keyframe: c.current, Valid: true}
	if s, err := timemap.SegmentSpeed(c.m, c.current.Source); err == nil {
		cur.Speeds = s
	}
	cur.AtStart = !cur.Speeds.HasBefore
	cur.AtEnd = !cur.Speeds.HasAfter
	return cur
}

// notifyLocked emits DurationChanged and CurrentKeyframeChanged for
// whatever changed since the last notification.
func (c *Clip) notifyLocked() {
	if d := c.m.RemapDuration(); d != c.lastDur {
		c.lastDur = d
		c.listener.DurationChanged(d)
	}
	if cur := c.describeLocked(); cur != c.lastCur {
		c.lastCur = cur
		c.listener.CurrentKeyframeChanged(cur)
	}
}
