package edit

import "github.com/roach88/timeremap/internal/timemap"

// Next returns the first keyframe after source.
func Next(m *timemap.Map, source int) (timemap.Entry, bool) {
	nb := m.Neighbors(source)
	return nb.Next, nb.HasNext
}

// Prev returns the last keyframe before source, or the first keyframe when
// source is at or before it.
func Prev(m *timemap.Map, source int) (timemap.Entry, bool) {
	nb := m.Neighbors(source)
	if nb.HasPrev {
		return nb.Prev, true
	}
	return m.First()
}

// Closest returns the keyframe nearest to pos on the given axis. Ties go to
// the earlier keyframe.
func Closest(m *timemap.Map, pos int, axis timemap.Axis) (timemap.Entry, bool) {
	var (
		best  timemap.Entry
		delta = -1
	)
	for _, e := range m.Entries() {
		d := position(e, axis) - pos
		if d < 0 {
			d = -d
		}
		if delta == -1 || d < delta {
			best, delta = e, d
		}
	}
	return best, delta != -1
}

// CenterKeyframe moves the keyframe at key onto the cursor. On the source
// axis cascade carries every later keyframe along; on the output axis it
// follows the MoveOutput cascade rule.
func CenterKeyframe(m *timemap.Map, key int, axis timemap.Axis, cursor int, cascade bool) (Result, error) {
	if axis == timemap.AxisOutput {
		return MoveOutput(m, key, cursor, NewSelection(key), cascade)
	}
	keys := []int{key}
	if cascade {
		for _, e := range m.Entries() {
			if e.Source > key {
				keys = append(keys, e.Source)
			}
		}
	}
	return MoveSource(m, key, cursor, NewSelection(keys...))
}

// CenterSource moves the keyframe at key to the source cursor.
func CenterSource(m *timemap.Map, key int, view ViewState, cascade bool) (Result, error) {
	return CenterKeyframe(m, key, timemap.AxisSource, view.Source, cascade)
}

// CenterOutput moves the keyframe at key to the output playhead.
func CenterOutput(m *timemap.Map, key int, view ViewState, cascade bool) (Result, error) {
	return CenterKeyframe(m, key, timemap.AxisOutput, view.Output, cascade)
}
