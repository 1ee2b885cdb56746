package timemap

import (
	"errors"
	"fmt"
)

// Axis names one of the two time axes of a Map.
type Axis int

const (
	// AxisSource is the clip's native time axis (map keys).
	AxisSource Axis = iota + 1
	// AxisOutput is the hosting timeline's axis (map values).
	AxisOutput
)

func (a Axis) String() string {
	switch a {
	case AxisSource:
		return "source"
	case AxisOutput:
		return "output"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// ErrorCode categorizes map errors.
type ErrorCode string

const (
	// ErrCodeCollision indicates a mutation would duplicate or reorder a position.
	ErrCodeCollision ErrorCode = "COLLISION"

	// ErrCodeOutOfRange indicates a position below zero or below the in-point.
	ErrCodeOutOfRange ErrorCode = "OUT_OF_RANGE"
)

// CollisionReason tells why a position was rejected.
type CollisionReason string

const (
	// ReasonDuplicate means the position is already used on that axis.
	ReasonDuplicate CollisionReason = "duplicate"

	// ReasonCrossing means the position would pass a neighbouring keyframe
	// and break output monotonicity.
	ReasonCrossing CollisionReason = "crossing"
)

// CollisionError reports a rejected mutation. The map it was computed
// against is left untouched.
type CollisionError struct {
	Axis   Axis
	Value  int
	Reason CollisionReason
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%s: %s position %d (%s)", ErrCodeCollision, e.Axis, e.Value, e.Reason)
}

// RangeError reports a position outside the valid range of an axis.
type RangeError struct {
	Axis  Axis
	Value int
	Min   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: %s position %d is below %d", ErrCodeOutOfRange, e.Axis, e.Value, e.Min)
}

var (
	// ErrDegenerateMap is returned when an operation needs at least one
	// keyframe of interpolation context and the map is empty.
	ErrDegenerateMap = errors.New("degenerate map: no keyframes")

	// ErrDurationUnset is returned when a query extrapolates past the last
	// keyframe and the native duration does not cover it.
	ErrDurationUnset = errors.New("native duration does not cover the last keyframe")

	// ErrNotKeyframe is returned when a position is required to be a keyframe.
	ErrNotKeyframe = errors.New("position is not a keyframe")
)

// IsCollision returns true if the error is a collision.
// Uses errors.As to handle wrapped errors.
func IsCollision(err error) bool {
	var ce *CollisionError
	return errors.As(err, &ce)
}

// IsOutOfRange returns true if the error is a range error.
func IsOutOfRange(err error) bool {
	var re *RangeError
	return errors.As(err, &re)
}
