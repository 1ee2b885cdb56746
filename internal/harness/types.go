package harness

import (
	"strconv"

	"github.com/roach88/timeremap/internal/canon"
)

// Trace event types.
const (
	EventStep            = "step"
	EventMapChanged      = "map_changed"
	EventDurationChanged = "duration_changed"
	EventCurrentChanged  = "current_changed"
)

// TraceEvent is one entry of a scenario trace: either an executed step or a
// notification the session emitted while executing it. Notifications come
// before the step that caused them.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`

	// Step events.
	Op        string       `json:"op,omitempty"`
	Args      canon.Object `json:"args,omitempty"`
	Outcome   string       `json:"outcome,omitempty"` // "ok" or an error code
	Fired     *bool        `json:"fired,omitempty"`   // advance, flush, next, prev
	Keyframes string       `json:"keyframes,omitempty"`

	// Notification events.
	Value string `json:"value,omitempty"`
}

// Name is the op for step events and the type for notifications.
func (e TraceEvent) Name() string {
	if e.Type == EventStep {
		return e.Op
	}
	return e.Type
}

func (e TraceEvent) canonical() canon.Object {
	obj := canon.Object{
		"seq":  e.Seq,
		"type": e.Type,
	}
	if e.Op != "" {
		obj["op"] = e.Op
	}
	if len(e.Args) > 0 {
		obj["args"] = e.Args
	}
	if e.Outcome != "" {
		obj["outcome"] = e.Outcome
	}
	if e.Fired != nil {
		obj["fired"] = *e.Fired
	}
	if e.Keyframes != "" {
		obj["keyframes"] = e.Keyframes
	}
	if e.Value != "" {
		obj["value"] = e.Value
	}
	return obj
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace lists steps and notifications in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds expectation and assertion failures. Empty if Pass.
	Errors []string `json:"errors"`

	// Final is the map after the flow, in Map.String form.
	Final string `json:"final"`

	// Serialized is the final map as the engine string.
	Serialized string `json:"serialized"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
