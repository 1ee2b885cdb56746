package harness

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timeremap/internal/codec"
	"github.com/roach88/timeremap/internal/edit"
	"github.com/roach88/timeremap/internal/session"
	"github.com/roach88/timeremap/internal/timemap"
)

func TestRun_Scenarios(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func scenarioB() *Scenario {
	return &Scenario{
		Name: "b",
		Clip: ClipSetup{FPS: 25, Duration: 125},
		Flow: []Step{
			{Op: OpSeek, Value: 62},
			{Op: OpToggle},
			{Op: OpSpeed, Side: "after", Percent: 200},
		},
	}
}

func TestRun_RecordsTrace(t *testing.T) {
	result, err := Run(scenarioB())
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	var names []string
	for _, ev := range result.Trace {
		names = append(names, ev.Name())
	}
	// The final flush commits the pending edit after the last step.
	assert.Equal(t, []string{
		OpSeek,
		EventCurrentChanged, OpToggle,
		EventDurationChanged, EventCurrentChanged, OpSpeed,
		EventMapChanged,
	}, names)

	for i, ev := range result.Trace {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
	assert.Equal(t, "[(0,0),(62,62),(124,93)]", result.Final)
	assert.Equal(t, "00:00:00.000=0;00:00:02.480=2.48;00:00:03.760=4.96", result.Serialized)
}

func TestRun_FailedExpectations(t *testing.T) {
	fired := true
	s := scenarioB()
	s.Flow[2].Expect = &Expect{Keyframes: [][]int{{0, 0}, {62, 62}, {124, 124}}}
	s.Flow = append(s.Flow,
		// collides with the last keyframe
		Step{Op: OpMove, Axis: "source", Value: 124},
		// succeeds
		Step{Op: OpUndo, Expect: &Expect{Error: "COLLISION"}},
		// lands on (124,124)
		Step{Op: OpNext, Expect: &Expect{Fired: &fired, Current: []int{1, 1}}},
	)
	s.Assertions = []Assertion{{Type: AssertCommitCount, Count: 5}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "flow[2] speed: keyframes")
	assert.Contains(t, result.Errors[1], "flow[3] move: unexpected error")
	assert.Contains(t, result.Errors[2], "flow[4] undo: expected error COLLISION, got ok")
	assert.Contains(t, result.Errors[3], "flow[5] next: current")
	assert.Contains(t, result.Errors[4], "commit_count")
}

func TestRun_ExpectedErrorPasses(t *testing.T) {
	s := &Scenario{
		Name: "expected",
		Clip: ClipSetup{FPS: 25, Duration: 10},
		Flow: []Step{
			{Op: OpClearSelection},
			{Op: OpMove, Axis: "output", Value: 3, Expect: &Expect{Error: "NO_CURRENT_KEYFRAME"}},
			{Op: OpRedo, Expect: &Expect{Error: "NOTHING_TO_REDO"}},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "NO_CURRENT_KEYFRAME", result.Trace[len(result.Trace)-2].Outcome)
}

func TestRun_ClipOptions(t *testing.T) {
	pad := false
	cascade := false
	s := &Scenario{
		Name: "options",
		Clip: ClipSetup{
			FPS:          25,
			Duration:     100,
			Cascade:      &cascade,
			PadLastFrame: &pad,
			WindowMs:     100,
			Flags:        &codec.Flags{PitchCompensate: true},
		},
		Flow: []Step{
			{Op: OpSeek, Value: 50},
			{Op: OpToggle},
			{Op: OpMove, Axis: "output", Value: 60},
			{Op: OpAdvance, Ms: 100},
		},
		Assertions: []Assertion{
			{Type: AssertFinalKeyframes, Keyframes: [][]int{{0, 0}, {50, 60}, {99, 99}}},
			{Type: AssertLastCommit, TimeMap: "00:00:00.000=0;00:00:02.400=2;00:00:03.960=3.96", Reason: "debounce"},
			{Type: AssertStoredClip, Expect: map[string]any{"pitch_compensate": true, "frame_blend": false}},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_InvalidClip(t *testing.T) {
	_, err := Run(&Scenario{Name: "bad", Clip: ClipSetup{FPS: -1, Duration: 10}})
	assert.Error(t, err)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&timemap.CollisionError{Axis: timemap.AxisSource, Value: 1, Reason: timemap.ReasonDuplicate}, "COLLISION"},
		{fmt.Errorf("wrapped: %w", &timemap.RangeError{Axis: timemap.AxisOutput, Value: -1}), "OUT_OF_RANGE"},
		{&codec.MalformedSerializationError{Token: "x", Err: errors.New("bad")}, "MALFORMED_SERIALIZATION"},
		{fmt.Errorf("%w: 0", edit.ErrInvalidSpeed), "INVALID_SPEED"},
		{edit.ErrNoSegment, "NO_SEGMENT"},
		{timemap.ErrNotKeyframe, "NOT_KEYFRAME"},
		{timemap.ErrDegenerateMap, "DEGENERATE_MAP"},
		{timemap.ErrDurationUnset, "DURATION_UNSET"},
		{session.ErrNoCurrentKeyframe, "NO_CURRENT_KEYFRAME"},
		{session.ErrNothingToUndo, "NOTHING_TO_UNDO"},
		{session.ErrNothingToRedo, "NOTHING_TO_REDO"},
		{errors.New("disk on fire"), "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestFormatCurrent(t *testing.T) {
	assert.Equal(t, "none", formatCurrent(session.Current{}))
	assert.Equal(t, "(0,0) before=- after=62.5", formatCurrent(session.Current{
		Keyframe: timemap.Entry{Source: 0, Output: 0},
		Valid:    true,
		Speeds:   timemap.Speeds{After: 62.5, HasAfter: true},
	}))
}
