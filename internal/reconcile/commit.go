package reconcile

import (
	"context"

	"github.com/roach88/timeremap/internal/canon"
	"github.com/roach88/timeremap/internal/codec"
)

// Reason tells why a commit was emitted.
type Reason string

const (
	// ReasonDebounce is a commit emitted when the debounce window expired.
	ReasonDebounce Reason = "debounce"
	// ReasonFlush is a commit forced by the host before the window expired.
	ReasonFlush Reason = "flush"
	// ReasonResize is the immediate commit of an external duration change.
	ReasonResize Reason = "resize"
)

// Commit is the "apply to engine" notification.
type Commit struct {
	Seq      int64       `json:"seq"`
	Reason   Reason      `json:"reason"`
	TimeMap  string      `json:"time_map"`
	Flags    codec.Flags `json:"flags"`
	Duration int         `json:"duration"` // remap duration in frames
	At       int64       `json:"at"`       // logical clock time
}

// Properties returns the engine properties this commit sets.
func (c Commit) Properties() map[string]string {
	return c.Flags.Properties(c.TimeMap)
}

// Hash is the content hash of what the engine receives. Seq and time are
// excluded so replays of the same state hash equal.
func (c Commit) Hash() (string, error) {
	return canon.Hash(canon.DomainCommit, canon.Object{
		"time_map": c.TimeMap,
		"duration": c.Duration,
		"flags": canon.Object{
			"pitch_compensate": c.Flags.PitchCompensate,
			"frame_blend":      c.Flags.FrameBlend,
		},
	})
}

// Committer receives commits.
type Committer interface {
	Commit(ctx context.Context, c Commit) error
}

// CommitterFunc adapts a function to Committer.
type CommitterFunc func(ctx context.Context, c Commit) error

// Commit calls f.
func (f CommitterFunc) Commit(ctx context.Context, c Commit) error {
	return f(ctx, c)
}
