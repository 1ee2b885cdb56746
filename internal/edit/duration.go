package edit

import (
	"fmt"

	"github.com/roach88/timeremap/internal/timemap"
)

// ReconcileDuration fits the map to a new native (output) duration after the
// hosting clip was resized independently of remap edits.
//
// Growing keeps the last segment's speed: if the last keyframe ends the
// map's output it is moved to the new boundary, otherwise a boundary
// keyframe is appended. Shrinking drops keyframes past the new boundary
// and places a trailing keyframe on it at the position the old map
// interpolates there, at least one source frame past the last kept one.
func ReconcileDuration(m *timemap.Map, newNativeDuration int) (*timemap.Map, error) {
	if newNativeDuration <= 0 {
		return nil, &timemap.RangeError{Axis: timemap.AxisOutput, Value: newNativeDuration, Min: 1}
	}
	if m.IsEmpty() {
		next := m.Clone()
		next.SetNativeDuration(newNativeDuration)
		return next, nil
	}

	boundary := m.SourceIn() + newNativeDuration - 1
	last, _ := m.Last()

	var (
		next *timemap.Map
		err  error
	)
	switch {
	case boundary > last.Output:
		next, err = grow(m, last, boundary)
	case boundary < last.Output:
		next, err = shrink(m, boundary)
	default:
		next = m.Clone()
	}
	if err != nil {
		return nil, fmt.Errorf("reconcile duration %d: %w", newNativeDuration, err)
	}
	next.SetNativeDuration(newNativeDuration)
	return next, nil
}

func grow(m *timemap.Map, last timemap.Entry, boundary int) (*timemap.Map, error) {
	nb := m.Neighbors(last.Source)
	ratio := 1.0
	if nb.HasPrev {
		ratio = float64(last.Source-nb.Prev.Source) / float64(last.Output-nb.Prev.Output)
	}

	next := m.Clone()
	// The old boundary is where the map's output ends, which can sit below
	// the stored native duration after a retime shortened it.
	if nb.HasPrev && last.Output == m.MaxOutput() {
		src := nb.Prev.Source + timemap.Round(float64(boundary-nb.Prev.Output)*ratio)
		next.Remove(last.Source)
		if err := insertNew(next, src, boundary); err != nil {
			return nil, err
		}
		return next, nil
	}

	src := last.Source + timemap.Round(float64(boundary-last.Output)*ratio)
	if src == last.Source {
		return next, next.Insert(last.Source, boundary)
	}
	if err := insertNew(next, src, boundary); err != nil {
		return nil, err
	}
	return next, nil
}

func shrink(m *timemap.Map, boundary int) (*timemap.Map, error) {
	kept := make([]timemap.Entry, 0, m.Len())
	onBoundary := false
	for _, e := range m.Entries() {
		if e.Output > boundary {
			continue
		}
		onBoundary = onBoundary || e.Output == boundary
		kept = append(kept, e)
	}
	if !onBoundary {
		pos, err := timemap.OutputToSource(m, float64(boundary))
		if err != nil {
			return nil, err
		}
		src := timemap.Round(pos)
		if n := len(kept); n > 0 && src <= kept[n-1].Source {
			// The cut segment is slower than one source frame per output
			// frame over this span.
			src = kept[n-1].Source + 1
		}
		for _, e := range kept {
			if e.Source == src {
				return nil, &timemap.CollisionError{Axis: timemap.AxisSource, Value: src, Reason: timemap.ReasonDuplicate}
			}
		}
		kept = append(kept, timemap.Entry{Source: src, Output: boundary})
	}
	return timemap.FromEntries(m.SourceIn(), m.NativeDuration(), kept)
}

func insertNew(m *timemap.Map, source, output int) error {
	if m.Contains(source) {
		return &timemap.CollisionError{Axis: timemap.AxisSource, Value: source, Reason: timemap.ReasonDuplicate}
	}
	return m.Insert(source, output)
}
