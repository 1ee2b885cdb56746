package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/timeremap/internal/store"
	"github.com/roach88/timeremap/internal/timemap"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Step trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nSteps:\n")
		for _, event := range e.Trace {
			if event.Type == EventStep {
				fmt.Fprintf(&buf, "  [%d] %s %v -> %s %s\n", event.Seq, event.Op, event.Args, event.Outcome, event.Keyframes)
			}
		}
	}
	return buf.String()
}

// AssertionContext provides what assertions inspect besides the trace.
type AssertionContext struct {
	Ctx    context.Context
	Store  *store.Store
	ClipID string
	Map    *timemap.Map
}

// EvaluateAssertions evaluates all assertions against the result and
// returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFinalKeyframes:
			err = assertFinalKeyframes(actx.Map, assertion, result.Trace)
		case AssertMonotonic:
			err = assertMonotonic(actx.Map, result.Trace)
		case AssertCommitCount:
			err = assertCommitCount(actx, assertion)
		case AssertLastCommit:
			err = assertLastCommit(actx, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertStoredClip:
			err = assertStoredClip(actx, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func assertFinalKeyframes(m *timemap.Map, assertion Assertion, trace []TraceEvent) error {
	want := pairsToString(assertion.Keyframes)
	if got := m.String(); got != want {
		return &AssertionError{
			Type:     AssertFinalKeyframes,
			Expected: want,
			Actual:   got,
			Trace:    trace,
		}
	}
	return nil
}

func assertMonotonic(m *timemap.Map, trace []TraceEvent) error {
	if err := m.CheckMonotonic(); err != nil {
		return &AssertionError{
			Type:     AssertMonotonic,
			Expected: "outputs strictly increasing in source order",
			Actual:   fmt.Sprintf("%s: %v", m, err),
			Trace:    trace,
		}
	}
	return nil
}

func assertCommitCount(actx *AssertionContext, assertion Assertion) error {
	commits, err := actx.Store.ListCommits(actx.Ctx, actx.ClipID)
	if err != nil {
		return fmt.Errorf("commit_count: %w", err)
	}
	if len(commits) != assertion.Count {
		return &AssertionError{
			Type:     AssertCommitCount,
			Expected: fmt.Sprintf("%d commits", assertion.Count),
			Actual:   fmt.Sprintf("%d commits", len(commits)),
		}
	}
	return nil
}

func assertLastCommit(actx *AssertionContext, assertion Assertion) error {
	commits, err := actx.Store.ListCommits(actx.Ctx, actx.ClipID)
	if err != nil {
		return fmt.Errorf("last_commit: %w", err)
	}
	if len(commits) == 0 {
		return &AssertionError{
			Type:     AssertLastCommit,
			Expected: "at least one commit",
			Actual:   "no commits",
		}
	}
	last := commits[len(commits)-1]
	if assertion.TimeMap != "" && last.TimeMap != assertion.TimeMap {
		return &AssertionError{
			Type:     AssertLastCommit,
			Expected: fmt.Sprintf("time_map %q", assertion.TimeMap),
			Actual:   fmt.Sprintf("time_map %q (seq %d)", last.TimeMap, last.Seq),
		}
	}
	if assertion.Reason != "" && last.Reason != assertion.Reason {
		return &AssertionError{
			Type:     AssertLastCommit,
			Expected: fmt.Sprintf("reason %s", assertion.Reason),
			Actual:   fmt.Sprintf("reason %s (seq %d)", last.Reason, last.Seq),
		}
	}
	return nil
}

// assertTraceCount checks that an event name appears exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Name() == assertion.Event {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that the event names appear in order. Events
// need not be consecutive, and each match must come after the previous one.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Events {
		found := false
		for pos < len(trace) {
			name := trace[pos].Name()
			pos++
			if name == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual:   fmt.Sprintf("%s not found after previous events", want),
				Trace:    trace,
			}
		}
	}
	return nil
}

var storedClipFields = map[string]func(store.Clip) any{
	"time_map":         func(c store.Clip) any { return c.TimeMap },
	"duration":         func(c store.Clip) any { return c.Duration },
	"head_seq":         func(c store.Clip) any { return c.HeadSeq },
	"pitch_compensate": func(c store.Clip) any { return c.Flags.PitchCompensate },
	"frame_blend":      func(c store.Clip) any { return c.Flags.FrameBlend },
}

// assertStoredClip compares fields of the persisted clip row (subset match).
// Values compare by their printed form, so YAML ints match int64 columns.
func assertStoredClip(actx *AssertionContext, assertion Assertion) error {
	clip, err := actx.Store.GetClip(actx.Ctx, actx.ClipID)
	if err != nil {
		return fmt.Errorf("stored_clip: %w", err)
	}

	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		field, ok := storedClipFields[key]
		if !ok {
			return fmt.Errorf("stored_clip: unknown field %q", key)
		}
		want, got := fmt.Sprint(assertion.Expect[key]), fmt.Sprint(field(clip))
		if want != got {
			return &AssertionError{
				Type:     AssertStoredClip,
				Expected: fmt.Sprintf("field %q = %s", key, want),
				Actual:   fmt.Sprintf("field %q = %s", key, got),
			}
		}
	}
	return nil
}
