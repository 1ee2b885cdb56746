package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Type: EventStep, Op: OpSeek, Outcome: "ok"},
		{Seq: 2, Type: EventCurrentChanged, Value: "(62,62) before=100 after=100"},
		{Seq: 3, Type: EventStep, Op: OpToggle, Outcome: "ok"},
		{Seq: 4, Type: EventMapChanged, Value: "x"},
		{Seq: 5, Type: EventStep, Op: OpToggle, Outcome: "ok"},
		{Seq: 6, Type: EventMapChanged, Value: "y"},
	}
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Event: OpToggle, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Event: EventMapChanged, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Event: OpUndo, Count: 0}))

	err := assertTraceCount(trace, Assertion{Event: OpSeek, Count: 3})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceCount, ae.Type)
	assert.Equal(t, "1 occurrences", ae.Actual)
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name   string
		events []string
		ok     bool
	}{
		{"in order", []string{OpSeek, OpToggle, EventMapChanged}, true},
		{"gaps allowed", []string{OpSeek, EventMapChanged}, true},
		{"repeats consume later events", []string{OpToggle, OpToggle, EventMapChanged}, true},
		{"reversed", []string{EventMapChanged, OpSeek}, false},
		{"too many repeats", []string{OpToggle, OpToggle, OpToggle}, false},
		{"missing", []string{OpUndo}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceOrder(trace, Assertion{Events: tt.events})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAssertionError_Message(t *testing.T) {
	err := &AssertionError{
		Type:     AssertFinalKeyframes,
		Expected: "[(0,0)]",
		Actual:   "[(0,0),(1,1)]",
		Trace:    sampleTrace(),
	}
	msg := err.Error()

	assert.Contains(t, msg, "Assertion failed: final_keyframes")
	assert.Contains(t, msg, "Expected: [(0,0)]")
	assert.Contains(t, msg, "Actual: [(0,0),(1,1)]")
	assert.Contains(t, msg, "[3] toggle")
	assert.NotContains(t, msg, "current_changed")
}

func TestTraceEvent_Name(t *testing.T) {
	assert.Equal(t, OpToggle, TraceEvent{Type: EventStep, Op: OpToggle}.Name())
	assert.Equal(t, EventMapChanged, TraceEvent{Type: EventMapChanged}.Name())
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	assert.NotNil(t, r.Trace)

	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
