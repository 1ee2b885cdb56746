package edit

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timeremap/internal/timemap"
)

func mustMap(t *testing.T, nativeDuration int, entries ...timemap.Entry) *timemap.Map {
	t.Helper()
	m, err := timemap.FromEntries(0, nativeDuration, entries)
	require.NoError(t, err)
	return m
}

func kf(source, output int) timemap.Entry {
	return timemap.Entry{Source: source, Output: output}
}

func TestToggle_AddsKeyframeOnIdentity(t *testing.T) {
	m := timemap.Identity(0, 125)

	res, err := Toggle(m, 62)
	require.NoError(t, err)

	assert.Equal(t, "[(0,0),(62,62),(124,124)]", res.Map.String())
	assert.True(t, res.HasCurrent)
	assert.Equal(t, kf(62, 62), res.Current)
	assert.True(t, res.Selection.Contains(62))

	speeds, err := timemap.SegmentSpeed(res.Map, 62)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, speeds.Before, 1e-9)
	assert.InDelta(t, 100.0, speeds.After, 1e-9)

	// The input map is never modified.
	assert.Equal(t, "[(0,0),(124,124)]", m.String())
}

func TestToggle_Idempotent(t *testing.T) {
	m := timemap.Identity(0, 100)

	added, err := Toggle(m, 30)
	require.NoError(t, err)
	require.True(t, added.Map.Contains(30))

	removed, err := Toggle(added.Map, 30)
	require.NoError(t, err)
	assert.False(t, removed.HasCurrent)
	assert.True(t, removed.Selection.IsEmpty())
	assert.True(t, removed.Map.Equal(m))
}

func TestToggle_InterpolatesInsideSegment(t *testing.T) {
	m := mustMap(t, 125, kf(0, 0), kf(62, 62), kf(124, 93))

	res, err := Toggle(m, 93)
	require.NoError(t, err)
	assert.Equal(t, kf(93, 78), res.Current)
	assert.True(t, res.Map.Monotonic())
}

func TestToggle_RemovesBoundaryKeyframe(t *testing.T) {
	m := timemap.Identity(0, 100)

	res, err := Toggle(m, 0)
	require.NoError(t, err)
	assert.Equal(t, "[(99,99)]", res.Map.String())
}

func TestRetimeAfter_DoublesSpeed(t *testing.T) {
	m := mustMap(t, 125, kf(0, 0), kf(62, 62), kf(124, 124))

	res, err := RetimeAfter(m, 62, 200)
	require.NoError(t, err)
	assert.Equal(t, "[(0,0),(62,62),(124,93)]", res.Map.String())

	speeds, err := timemap.SegmentSpeed(res.Map, 62)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, speeds.Before, 1e-9)
	assert.InDelta(t, 200.0, speeds.After, 1e-9)
}

func TestRetimeBefore_CascadePreservesLaterSpeeds(t *testing.T) {
	m := mustMap(t, 100, kf(0, 0), kf(50, 50), kf(99, 99))

	res, err := RetimeBefore(m, 50, 50, true)
	require.NoError(t, err)
	assert.Equal(t, "[(0,0),(50,100),(99,149)]", res.Map.String())

	speeds, err := timemap.SegmentSpeed(res.Map, 50)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, speeds.Before, 1e-9)
	assert.InDelta(t, 100.0, speeds.After, 1e-9)
}

func TestRetimeBefore_WithoutCascadeRejectsCrossing(t *testing.T) {
	m := mustMap(t, 100, kf(0, 0), kf(50, 50), kf(99, 99))

	_, err := RetimeBefore(m, 50, 50, false)
	require.Error(t, err)

	var ce *timemap.CollisionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, timemap.ReasonCrossing, ce.Reason)
	assert.Equal(t, "[(0,0),(50,50),(99,99)]", m.String())
}

func TestRetime_Errors(t *testing.T) {
	m := mustMap(t, 125, kf(0, 0), kf(62, 62), kf(124, 124))

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"zero speed", func() error { _, err := RetimeAfter(m, 62, 0); return err }, ErrInvalidSpeed},
		{"negative speed", func() error { _, err := RetimeBefore(m, 62, -50, false); return err }, ErrInvalidSpeed},
		{"NaN speed", func() error { _, err := RetimeAfter(m, 62, math.NaN()); return err }, ErrInvalidSpeed},
		{"no segment after last", func() error { _, err := RetimeAfter(m, 124, 100); return err }, ErrNoSegment},
		{"no segment before first", func() error { _, err := RetimeBefore(m, 0, 100, false); return err }, ErrNoSegment},
		{"not a keyframe", func() error { _, err := Retime(m, 10, SideAfter, 100, false); return err }, timemap.ErrNotKeyframe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.want)
		})
	}
}

func TestMoveSource_CollisionLeavesMapUnchanged(t *testing.T) {
	m := mustMap(t, 100, kf(0, 0), kf(10, 10), kf(20, 20), kf(99, 99))
	before := m.String()

	_, err := MoveSource(m, 10, 20, NewSelection())
	require.Error(t, err)
	assert.True(t, timemap.IsCollision(err))

	var ce *timemap.CollisionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, timemap.AxisSource, ce.Axis)
	assert.Equal(t, 20, ce.Value)
	assert.Equal(t, before, m.String())
}

func TestMoveSource_SelectionMovesTogether(t *testing.T) {
	m := mustMap(t, 100, kf(0, 0), kf(10, 10), kf(20, 20), kf(99, 99))

	res, err := MoveSource(m, 10, 15, NewSelection(10, 20))
	require.NoError(t, err)
	assert.Equal(t, "[(0,0),(15,10),(25,20),(99,99)]", res.Map.String())
	assert.Equal(t, []int{15, 25}, res.Selection.Keys())
	assert.Equal(t, kf(15, 10), res.Current)
}

func TestMoveSource_UnselectedKeyMovesAlone(t *testing.T) {
	m := mustMap(t, 100, kf(0, 0), kf(10, 10), kf(20, 20), kf(99, 99))

	res, err := MoveSource(m, 10, 12, NewSelection(20))
	require.NoError(t, err)
	assert.Equal(t, "[(0,0),(12,10),(20,20),(99,99)]", res.Map.String())
}

func TestMoveSource_OutOfRange(t *testing.T) {
	m := mustMap(t, 100, kf(0, 0), kf(10, 10), kf(99, 99))

	_, err := MoveSource(m, 0, -5, NewSelection())
	assert.True(t, timemap.IsOutOfRange(err))
}

func TestMoveOutput_Cascade(t *testing.T) {
	m := mustMap(t, 100, kf(0, 0), kf(50, 50), kf(99, 99))

	res, err := MoveOutput(m, 50, 60, NewSelection(), true)
	require.NoError(t, err)
	assert.Equal(t, "[(0,0),(50,60),(99,109)]", res.Map.String())

	res, err = MoveOutput(m, 50, 60, NewSelection(), false)
	require.NoError(t, err)
	assert.Equal(t, "[(0,0),(50,60),(99,99)]", res.Map.String())
}

func TestMoveOutput_CascadeIgnoredForMultiSelection(t *testing.T) {
	m := mustMap(t, 100, kf(0, 0), kf(30, 30), kf(50, 50), kf(99, 99))

	res, err := MoveOutput(m, 30, 35, NewSelection(30, 50), true)
	require.NoError(t, err)
	assert.Equal(t, "[(0,0),(30,35),(50,55),(99,99)]", res.Map.String())
}

func TestMoveOutput_Rejections(t *testing.T) {
	m := mustMap(t, 100, kf(0, 0), kf(50, 50), kf(99, 99))

	_, err := MoveOutput(m, 50, 99, NewSelection(), false)
	var ce *timemap.CollisionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, timemap.ReasonDuplicate, ce.Reason)

	_, err = MoveOutput(m, 50, 120, NewSelection(), false)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, timemap.ReasonCrossing, ce.Reason)

	_, err = MoveOutput(m, 42, 10, NewSelection(), false)
	assert.ErrorIs(t, err, timemap.ErrNotKeyframe)
}

func TestEdits_PreserveMonotonicity(t *testing.T) {
	r := rand.New(rand.NewSource(711))
	m := timemap.Identity(0, 100)

	for i := 0; i < 2000; i++ {
		before := m.String()
		keys := m.Entries()

		var (
			res Result
			err error
		)
		switch op := r.Intn(5); {
		case op == 0 || len(keys) == 0:
			res, err = Toggle(m, r.Intn(100))
		case op == 1:
			k := keys[r.Intn(len(keys))]
			res, err = MoveSource(m, k.Source, k.Source+r.Intn(21)-10, NewSelection())
		case op == 2:
			k := keys[r.Intn(len(keys))]
			res, err = MoveOutput(m, k.Source, k.Output+r.Intn(21)-10, NewSelection(), r.Intn(2) == 0)
		case op == 3:
			k := keys[r.Intn(len(keys))]
			res, err = RetimeBefore(m, k.Source, float64(25+r.Intn(300)), r.Intn(2) == 0)
		default:
			k := keys[r.Intn(len(keys))]
			res, err = RetimeAfter(m, k.Source, float64(25+r.Intn(300)))
		}

		require.Equal(t, before, m.String(), "step %d mutated its input", i)
		if err != nil {
			continue
		}
		require.True(t, res.Map.Monotonic(), "step %d produced %s", i, res.Map)
		require.NoError(t, res.Map.Validate(), "step %d", i)
		m = res.Map
	}
}

func TestReconcileDuration_Grow(t *testing.T) {
	m := timemap.Identity(0, 100)

	next, err := ReconcileDuration(m, 150)
	require.NoError(t, err)
	assert.Equal(t, "[(0,0),(149,149)]", next.String())
	assert.Equal(t, 150, next.NativeDuration())
	assert.Equal(t, 100, m.NativeDuration())
}

func TestReconcileDuration_GrowMovesLastKeyframeAtItsSpeed(t *testing.T) {
	m := mustMap(t, 100, kf(0, 0), kf(50, 25))

	next, err := ReconcileDuration(m, 200)
	require.NoError(t, err)
	assert.Equal(t, "[(0,0),(398,199)]", next.String())

	speeds, err := timemap.SegmentSpeed(next, 0)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, speeds.After, 1e-9)
}

func TestReconcileDuration_GrowAfterRetimeShortenedOutput(t *testing.T) {
	m := mustMap(t, 125, kf(0, 0), kf(62, 62), kf(124, 93))
	require.Equal(t, 94, m.RemapDuration())

	next, err := ReconcileDuration(m, 150)
	require.NoError(t, err)
	assert.Equal(t, "[(0,0),(62,62),(236,149)]", next.String())
	assert.Equal(t, 150, next.RemapDuration())

	speeds, err := timemap.SegmentSpeed(next, 62)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, speeds.After, 1e-9)
}

func TestReconcileDuration_GrowSingleKeyframe(t *testing.T) {
	m := mustMap(t, 10, kf(5, 3))

	next, err := ReconcileDuration(m, 20)
	require.NoError(t, err)
	assert.Equal(t, "[(5,3),(21,19)]", next.String())
}

func TestReconcileDuration_Shrink(t *testing.T) {
	m := mustMap(t, 125, kf(0, 0), kf(62, 62), kf(124, 93))

	next, err := ReconcileDuration(m, 80)
	require.NoError(t, err)
	assert.Equal(t, "[(0,0),(62,62),(96,79)]", next.String())
	assert.Equal(t, 80, next.NativeDuration())

	speeds, err := timemap.SegmentSpeed(next, 62)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, speeds.After, 1e-9)
}

func TestReconcileDuration_ShrinkThroughSlowSegment(t *testing.T) {
	m := mustMap(t, 101, kf(0, 0), kf(1, 100))

	next, err := ReconcileDuration(m, 31)
	require.NoError(t, err)
	assert.Equal(t, "[(0,0),(1,30)]", next.String())
	assert.Equal(t, 31, next.RemapDuration())
	assert.True(t, next.Monotonic())
}

func TestReconcileDuration_EdgeCases(t *testing.T) {
	m := mustMap(t, 125, kf(0, 0), kf(62, 62), kf(124, 93))

	same, err := ReconcileDuration(m, 94)
	require.NoError(t, err)
	assert.True(t, same.SameKeyframes(m))
	assert.Equal(t, 94, same.NativeDuration())

	_, err = ReconcileDuration(m, 0)
	assert.True(t, timemap.IsOutOfRange(err))

	empty, err := ReconcileDuration(timemap.New(0, 10), 40)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, 40, empty.NativeDuration())
}

func TestNavigation(t *testing.T) {
	m := mustMap(t, 125, kf(0, 0), kf(62, 62), kf(124, 93))

	next, ok := Next(m, 62)
	require.True(t, ok)
	assert.Equal(t, kf(124, 93), next)

	_, ok = Next(m, 124)
	assert.False(t, ok)

	prev, ok := Prev(m, 62)
	require.True(t, ok)
	assert.Equal(t, kf(0, 0), prev)

	prev, ok = Prev(m, 0)
	require.True(t, ok)
	assert.Equal(t, kf(0, 0), prev)

	closest, ok := Closest(m, 90, timemap.AxisOutput)
	require.True(t, ok)
	assert.Equal(t, kf(124, 93), closest)

	closest, ok = Closest(m, 90, timemap.AxisSource)
	require.True(t, ok)
	assert.Equal(t, kf(62, 62), closest)

	_, ok = Closest(timemap.New(0, 0), 5, timemap.AxisSource)
	assert.False(t, ok)
}

func TestCenterKeyframe(t *testing.T) {
	m := mustMap(t, 100, kf(0, 0), kf(50, 50), kf(99, 99))

	res, err := CenterKeyframe(m, 50, timemap.AxisSource, 60, true)
	require.NoError(t, err)
	assert.Equal(t, "[(0,0),(60,50),(109,99)]", res.Map.String())

	res, err = CenterKeyframe(m, 50, timemap.AxisSource, 60, false)
	require.NoError(t, err)
	assert.Equal(t, "[(0,0),(60,50),(99,99)]", res.Map.String())

	res, err = CenterKeyframe(m, 50, timemap.AxisOutput, 40, true)
	require.NoError(t, err)
	assert.Equal(t, "[(0,0),(50,40),(99,89)]", res.Map.String())
}

func TestSelection(t *testing.T) {
	s := NewSelection(3, 1, 2)
	assert.Equal(t, []int{1, 2, 3}, s.Keys())
	assert.Equal(t, []int{1, 2, 3, 9}, s.With(9).Keys())
	assert.Equal(t, []int{11, 12, 13}, s.Shift(10).Keys())
	assert.Equal(t, []int{1, 2, 3}, s.Keys())
	assert.True(t, NewSelection().IsEmpty())
}

func TestCenterFromViewState(t *testing.T) {
	m := mustMap(t, 100, kf(0, 0), kf(50, 50), kf(99, 99))
	view := ViewState{Output: 45, Source: 55}

	res, err := CenterSource(m, 50, view, false)
	require.NoError(t, err)
	assert.Equal(t, kf(55, 50), res.Current)

	res, err = CenterOutput(m, 50, view, false)
	require.NoError(t, err)
	assert.Equal(t, kf(50, 45), res.Current)
}
