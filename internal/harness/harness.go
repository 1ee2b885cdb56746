package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/timeremap/internal/codec"
	"github.com/roach88/timeremap/internal/edit"
	"github.com/roach88/timeremap/internal/reconcile"
	"github.com/roach88/timeremap/internal/session"
	"github.com/roach88/timeremap/internal/store"
	"github.com/roach88/timeremap/internal/timemap"
)

// Harness executes one scenario against a live session.
type Harness struct {
	store  *store.Store
	clip   *session.Clip
	seq    *reconcile.Sequence
	result *Result
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Execution flow:
//  1. store the clip described by the scenario
//  2. open a session on it with a store sink
//  3. execute the flow, checking each step's expectations
//  4. flush, then evaluate assertions against the map, store and trace
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	setup := scenario.Clip
	flags := codec.DefaultFlags()
	if setup.Flags != nil {
		flags = *setup.Flags
	}
	if err := st.PutClip(ctx, store.Clip{
		ID:       scenario.Name,
		Name:     scenario.Name,
		FPS:      setup.FPS,
		SourceIn: setup.SourceIn,
		Duration: setup.Duration,
		TimeMap:  setup.TimeMap,
		Flags:    flags,
	}); err != nil {
		return nil, fmt.Errorf("failed to store clip: %w", err)
	}

	var codecOpts []codec.Option
	if setup.PadLastFrame != nil {
		codecOpts = append(codecOpts, codec.WithPadLastFrame(*setup.PadLastFrame))
	}
	c, err := codec.New(setup.FPS, codecOpts...)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store:  st,
		seq:    reconcile.NewSequence(),
		result: NewResult(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	opts := []session.Option{
		session.WithListener(h),
		session.WithLogger(h.logger),
	}
	if setup.Cascade != nil {
		opts = append(opts, session.WithCascade(*setup.Cascade))
	}
	if setup.WindowMs > 0 {
		opts = append(opts, session.WithWindow(setup.WindowMs))
	}
	h.clip, err = session.OpenStored(ctx, st, scenario.Name, c, session.NewSequentialGenerator("commit"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	for i, step := range scenario.Flow {
		h.execute(ctx, i, step)
	}
	if _, err := h.clip.Flush(ctx); err != nil {
		h.result.AddError(fmt.Sprintf("final flush: %v", err))
	}

	final := h.clip.Map()
	h.result.Final = final.String()
	h.result.Serialized = h.clip.Serialized()

	actx := &AssertionContext{
		Ctx:    ctx,
		Store:  st,
		ClipID: scenario.Name,
		Map:    final,
	}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// execute runs one step, records it, and checks its expectations.
func (h *Harness) execute(ctx context.Context, i int, step Step) {
	args, fired, err := h.apply(ctx, step)

	ev := TraceEvent{
		Seq:       h.seq.Next(),
		Type:      EventStep,
		Op:        step.Op,
		Args:      args,
		Outcome:   ErrorCode(err),
		Fired:     fired,
		Keyframes: h.clip.Map().String(),
	}
	h.result.Trace = append(h.result.Trace, ev)

	h.logger.Debug("step executed",
		"step", i,
		"op", step.Op,
		"outcome", ev.Outcome,
	)

	want := ""
	if step.Expect != nil {
		want = step.Expect.Error
	}
	if ev.Outcome != codeOK && want != ev.Outcome {
		h.result.AddError(fmt.Sprintf("flow[%d] %s: unexpected error: %v", i, step.Op, err))
		return
	}
	if want != "" && ev.Outcome != want {
		h.result.AddError(fmt.Sprintf("flow[%d] %s: expected error %s, got %s", i, step.Op, want, ev.Outcome))
	}
	if step.Expect != nil {
		h.checkExpect(i, step, fired)
	}
}

func (h *Harness) checkExpect(i int, step Step, fired *bool) {
	exp := step.Expect
	if exp.Keyframes != nil {
		want := pairsToString(exp.Keyframes)
		if got := h.clip.Map().String(); got != want {
			h.result.AddError(fmt.Sprintf("flow[%d] %s: keyframes = %s, want %s", i, step.Op, got, want))
		}
	}
	if exp.Current != nil {
		want := timemap.Entry{Source: exp.Current[0], Output: exp.Current[1]}
		cur := h.clip.Current()
		if !cur.Valid || cur.Keyframe != want {
			h.result.AddError(fmt.Sprintf("flow[%d] %s: current = %s, want %s", i, step.Op, formatCurrent(cur), want))
		}
	}
	if exp.Fired != nil {
		if fired == nil || *fired != *exp.Fired {
			h.result.AddError(fmt.Sprintf("flow[%d] %s: fired = %v, want %v", i, step.Op, fired != nil && *fired, *exp.Fired))
		}
	}
}

// apply maps a step onto the session. It returns the canonical args for the
// trace and, for boolean-result ops, the result.
func (h *Harness) apply(ctx context.Context, step Step) (map[string]any, *bool, error) {
	cl := h.clip
	var (
		args  = map[string]any{}
		fired *bool
		err   error
	)
	report := func(b bool) { fired = &b }

	switch step.Op {
	case OpSeek:
		args["value"] = step.Value
		err = cl.Seek(step.Value)
	case OpSeekSource:
		args["value"] = step.Value
		cl.SeekSource(step.Value)
	case OpToggle:
		err = cl.ToggleKeyframe()
	case OpSelect:
		args["keys"] = step.Keys
		err = cl.SelectKeyframes(step.Keys...)
	case OpClearSelection:
		cl.ClearSelection()
	case OpMove:
		axis, _ := parseAxis(step.Axis)
		args["axis"], args["value"] = step.Axis, step.Value
		err = cl.MoveKeyframe(axis, step.Value)
	case OpSpeed:
		side, _ := parseSide(step.Side)
		args["side"], args["percent"] = step.Side, formatPercent(step.Percent)
		err = cl.SetSegmentSpeed(side, step.Percent)
	case OpCenter:
		axis, _ := parseAxis(step.Axis)
		args["axis"] = step.Axis
		err = cl.CenterKeyframe(axis)
	case OpNext:
		report(cl.GoNext())
	case OpPrev:
		report(cl.GoPrev())
	case OpResize:
		args["value"] = step.Value
		err = cl.ResizeDuration(ctx, step.Value)
	case OpFlags:
		args["pitch_compensate"] = step.Flags.PitchCompensate
		args["frame_blend"] = step.Flags.FrameBlend
		cl.SetFlags(*step.Flags)
	case OpCascade:
		args["on"] = *step.On
		cl.SetCascade(*step.On)
	case OpUndo:
		err = cl.Undo()
	case OpRedo:
		err = cl.Redo()
	case OpAdvance:
		args["ms"] = step.Ms
		var ok bool
		ok, err = cl.Advance(ctx, step.Ms)
		report(ok)
	case OpFlush:
		var ok bool
		ok, err = cl.Flush(ctx)
		report(ok)
	}
	return args, fired, err
}

// MapChanged implements session.Listener.
func (h *Harness) MapChanged(serialized string) {
	h.notify(EventMapChanged, serialized)
}

// DurationChanged implements session.Listener.
func (h *Harness) DurationChanged(frames int) {
	h.notify(EventDurationChanged, fmt.Sprint(frames))
}

// CurrentKeyframeChanged implements session.Listener.
func (h *Harness) CurrentKeyframeChanged(cur session.Current) {
	h.notify(EventCurrentChanged, formatCurrent(cur))
}

func (h *Harness) notify(typ, value string) {
	h.result.Trace = append(h.result.Trace, TraceEvent{
		Seq:   h.seq.Next(),
		Type:  typ,
		Value: value,
	})
}

const codeOK = "ok"

// ErrorCode names the error kind of err for traces and expectations.
// Returns "ok" for nil.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return codeOK
	case codec.IsMalformed(err):
		return codec.ErrCodeMalformedSerialization
	case timemap.IsCollision(err):
		return string(timemap.ErrCodeCollision)
	case timemap.IsOutOfRange(err):
		return string(timemap.ErrCodeOutOfRange)
	case errors.Is(err, edit.ErrInvalidSpeed):
		return "INVALID_SPEED"
	case errors.Is(err, edit.ErrNoSegment):
		return "NO_SEGMENT"
	case errors.Is(err, timemap.ErrNotKeyframe):
		return "NOT_KEYFRAME"
	case errors.Is(err, timemap.ErrDegenerateMap):
		return "DEGENERATE_MAP"
	case errors.Is(err, timemap.ErrDurationUnset):
		return "DURATION_UNSET"
	case errors.Is(err, session.ErrNoCurrentKeyframe):
		return "NO_CURRENT_KEYFRAME"
	case errors.Is(err, session.ErrNothingToUndo):
		return "NOTHING_TO_UNDO"
	case errors.Is(err, session.ErrNothingToRedo):
		return "NOTHING_TO_REDO"
	default:
		return "ERROR"
	}
}

func parseAxis(s string) (timemap.Axis, error) {
	switch s {
	case "source":
		return timemap.AxisSource, nil
	case "output":
		return timemap.AxisOutput, nil
	default:
		return 0, fmt.Errorf("axis must be source or output, got %q", s)
	}
}

func parseSide(s string) (edit.Side, error) {
	switch s {
	case "before":
		return edit.SideBefore, nil
	case "after":
		return edit.SideAfter, nil
	default:
		return 0, fmt.Errorf("side must be before or after, got %q", s)
	}
}

// formatCurrent renders a current keyframe as "(s,o) before=x after=y",
// with "-" for a missing side, or "none".
func formatCurrent(cur session.Current) string {
	if !cur.Valid {
		return "none"
	}
	before, after := "-", "-"
	if cur.Speeds.HasBefore {
		before = formatPercent(cur.Speeds.Before)
	}
	if cur.Speeds.HasAfter {
		after = formatPercent(cur.Speeds.After)
	}
	return fmt.Sprintf("%s before=%s after=%s", cur.Keyframe, before, after)
}

func pairsToString(pairs [][]int) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = timemap.Entry{Source: p[0], Output: p[1]}.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}
