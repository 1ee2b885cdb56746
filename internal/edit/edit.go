package edit

import (
	"errors"
	"fmt"
	"math"

	"github.com/roach88/timeremap/internal/timemap"
)

// Side selects the segment before or after a keyframe.
type Side int

const (
	// SideBefore is the segment ending at the keyframe.
	SideBefore Side = iota + 1
	// SideAfter is the segment starting at the keyframe.
	SideAfter
)

func (s Side) String() string {
	switch s {
	case SideBefore:
		return "before"
	case SideAfter:
		return "after"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

var (
	// ErrInvalidSpeed is returned for a speed that is not a positive, finite percentage.
	ErrInvalidSpeed = errors.New("speed must be a positive percentage")

	// ErrNoSegment is returned when a keyframe has no neighbour on the requested side.
	ErrNoSegment = errors.New("keyframe has no segment on that side")
)

// Result is the outcome of a successful edit: the new map, the keyframe the
// edit made current, and the selection that follows it.
type Result struct {
	Map        *timemap.Map
	Current    timemap.Entry
	HasCurrent bool
	Selection  Selection
}

// Toggle is the single add/remove affordance. If a keyframe exists at
// cursor it is removed; otherwise one is inserted at the output position the
// mapper interpolates for cursor.
func Toggle(m *timemap.Map, cursor int) (Result, error) {
	next := m.Clone()
	if _, ok := next.Remove(cursor); ok {
		return Result{Map: next, Selection: NewSelection()}, nil
	}

	pos, err := timemap.SourceToOutput(m, float64(cursor))
	if err != nil {
		return Result{}, fmt.Errorf("toggle keyframe at %d: %w", cursor, err)
	}
	kf := timemap.Entry{Source: cursor, Output: timemap.Round(pos)}
	if err := next.Insert(kf.Source, kf.Output); err != nil {
		return Result{}, err
	}
	if err := keepOrder(m, next, timemap.AxisOutput, kf.Output); err != nil {
		return Result{}, err
	}
	return Result{Map: next, Current: kf, HasCurrent: true, Selection: NewSelection(kf.Source)}, nil
}

// MoveSource moves the keyframe at key to newSource. When key is part of
// sel every selected keyframe moves by the same delta; otherwise only key
// moves. Fails without mutation if a moved key lands on a non-moved key or a
// move would reorder keyframes.
func MoveSource(m *timemap.Map, key, newSource int, sel Selection) (Result, error) {
	out, ok := m.Get(key)
	if !ok {
		return Result{}, fmt.Errorf("move source %d: %w", key, timemap.ErrNotKeyframe)
	}
	targets := targetsFor(m, key, sel)
	delta := newSource - key

	next, err := shift(m, timemap.AxisSource, delta, newSource, func(e timemap.Entry) bool {
		return targets.Contains(e.Source)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Map:        next,
		Current:    timemap.Entry{Source: newSource, Output: out},
		HasCurrent: true,
		Selection:  targets.Shift(delta),
	}, nil
}

// MoveOutput moves the keyframe at key to newOutput on the output axis.
//
// With cascade set and a single target, every other keyframe whose output
// is greater than the moved keyframe's original output shifts by the same
// delta, keeping the speeds of all later segments.
func MoveOutput(m *timemap.Map, key, newOutput int, sel Selection, cascade bool) (Result, error) {
	orig, ok := m.Get(key)
	if !ok {
		return Result{}, fmt.Errorf("move output of %d: %w", key, timemap.ErrNotKeyframe)
	}
	targets := targetsFor(m, key, sel)
	cascade = cascade && targets.Len() == 1
	delta := newOutput - orig

	next, err := shift(m, timemap.AxisOutput, delta, newOutput, func(e timemap.Entry) bool {
		return targets.Contains(e.Source) || (cascade && e.Output > orig)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Map:        next,
		Current:    timemap.Entry{Source: key, Output: newOutput},
		HasCurrent: true,
		Selection:  targets,
	}, nil
}

// RetimeBefore sets the speed of the segment ending at key by moving key's
// output to prev.Output + Δsource*100/speed. With cascade set all later
// keyframes shift by the same delta.
func RetimeBefore(m *timemap.Map, key int, speedPercent float64, cascade bool) (Result, error) {
	if err := checkSpeed(speedPercent); err != nil {
		return Result{}, err
	}
	orig, ok := m.Get(key)
	if !ok {
		return Result{}, fmt.Errorf("retime before %d: %w", key, timemap.ErrNotKeyframe)
	}
	nb := m.Neighbors(key)
	if !nb.HasPrev {
		return Result{}, fmt.Errorf("retime before %d: %w", key, ErrNoSegment)
	}

	newOut := nb.Prev.Output + segmentLength(key-nb.Prev.Source, speedPercent)
	next, err := shift(m, timemap.AxisOutput, newOut-orig, newOut, func(e timemap.Entry) bool {
		return e.Source == key || (cascade && e.Output > orig)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Map:        next,
		Current:    timemap.Entry{Source: key, Output: newOut},
		HasCurrent: true,
		Selection:  NewSelection(key),
	}, nil
}

// RetimeAfter sets the speed of the segment starting at key by moving the
// next keyframe's output. It never touches keyframes past the next one.
func RetimeAfter(m *timemap.Map, key int, speedPercent float64) (Result, error) {
	if err := checkSpeed(speedPercent); err != nil {
		return Result{}, err
	}
	out, ok := m.Get(key)
	if !ok {
		return Result{}, fmt.Errorf("retime after %d: %w", key, timemap.ErrNotKeyframe)
	}
	nb := m.Neighbors(key)
	if !nb.HasNext {
		return Result{}, fmt.Errorf("retime after %d: %w", key, ErrNoSegment)
	}

	newNext := out + segmentLength(nb.Next.Source-key, speedPercent)
	next, err := shift(m, timemap.AxisOutput, newNext-nb.Next.Output, newNext, func(e timemap.Entry) bool {
		return e.Source == nb.Next.Source
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Map:        next,
		Current:    timemap.Entry{Source: key, Output: out},
		HasCurrent: true,
		Selection:  NewSelection(key),
	}, nil
}

// Retime dispatches to RetimeBefore or RetimeAfter.
func Retime(m *timemap.Map, key int, side Side, speedPercent float64, cascade bool) (Result, error) {
	switch side {
	case SideBefore:
		return RetimeBefore(m, key, speedPercent, cascade)
	case SideAfter:
		return RetimeAfter(m, key, speedPercent)
	default:
		return Result{}, fmt.Errorf("retime: unknown side %v", side)
	}
}

// shift applies delta on axis to the subset of keyframes matching moved.
// It is a pure transform: the input map is never modified.
func shift(m *timemap.Map, axis timemap.Axis, delta, attempted int, moved func(timemap.Entry) bool) (*timemap.Map, error) {
	entries := m.Entries()
	fixed := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		if !moved(e) {
			fixed[position(e, axis)] = struct{}{}
		}
	}

	updated := make([]timemap.Entry, len(entries))
	for i, e := range entries {
		if moved(e) {
			if axis == timemap.AxisSource {
				e.Source += delta
			} else {
				e.Output += delta
			}
			if _, clash := fixed[position(e, axis)]; clash {
				return nil, &timemap.CollisionError{Axis: axis, Value: position(e, axis), Reason: timemap.ReasonDuplicate}
			}
		}
		updated[i] = e
	}

	next, err := timemap.FromEntries(m.SourceIn(), m.NativeDuration(), updated)
	if err != nil {
		return nil, err
	}
	if err := keepOrder(m, next, axis, attempted); err != nil {
		return nil, err
	}
	return next, nil
}

// keepOrder rejects an edit that turns a monotonic map into a non-monotonic one.
func keepOrder(before, after *timemap.Map, axis timemap.Axis, attempted int) error {
	if !before.Monotonic() || after.Monotonic() {
		return nil
	}
	return &timemap.CollisionError{Axis: axis, Value: attempted, Reason: timemap.ReasonCrossing}
}

// targetsFor returns sel restricted to existing keys when it contains key,
// or just key otherwise.
func targetsFor(m *timemap.Map, key int, sel Selection) Selection {
	if !sel.Contains(key) {
		return NewSelection(key)
	}
	keys := make([]int, 0, sel.Len())
	for _, k := range sel.Keys() {
		if m.Contains(k) {
			keys = append(keys, k)
		}
	}
	return NewSelection(keys...)
}

func position(e timemap.Entry, axis timemap.Axis) int {
	if axis == timemap.AxisSource {
		return e.Source
	}
	return e.Output
}

func checkSpeed(speedPercent float64) error {
	if math.IsNaN(speedPercent) || math.IsInf(speedPercent, 0) || speedPercent <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, speedPercent)
	}
	return nil
}

// segmentLength is the output span that plays sourceSpan frames at speedPercent.
// A segment is never shorter than one frame.
func segmentLength(sourceSpan int, speedPercent float64) int {
	if sourceSpan < 0 {
		sourceSpan = -sourceSpan
	}
	return max(1, timemap.Round(float64(sourceSpan)*timemap.RealTime/speedPercent))
}
