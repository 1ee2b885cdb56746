package timemap

import (
	"math"
	"sort"
)

// RealTime is the speed of a segment whose source and output spans match.
const RealTime = 100.0

// Segment is the interval between two adjacent keyframes.
type Segment struct {
	Start Entry
	End   Entry
}

// Speed returns |Δsource| / |Δoutput| as a percentage of real time.
func (s Segment) Speed() float64 {
	return speed(s.Start, s.End)
}

// Speeds holds the speeds of the segments on either side of a keyframe.
// HasBefore/HasAfter are false at map boundaries.
type Speeds struct {
	Before    float64
	After     float64
	HasBefore bool
	HasAfter  bool
}

// SegmentAt returns the segment bracketing source, with
// Start.Source <= source < End.Source. Returns false outside the keyframe range.
func SegmentAt(m *Map, source int) (Segment, bool) {
	n := len(m.entries)
	if n < 2 {
		return Segment{}, false
	}
	i := sort.Search(n, func(i int) bool { return m.entries[i].Source > source })
	if i == 0 || i == n {
		return Segment{}, false
	}
	return Segment{Start: m.entries[i-1], End: m.entries[i]}, true
}

// SourceToOutput maps a source position to the output axis.
//
// Between two keyframes the result is linear interpolation. Before the first
// keyframe it scales from the origin. After the last keyframe it continues at
// the ratio implied by the native duration:
//
//	(end - lastOutput) / (end - lastSource), end = SourceIn + NativeDuration
//
// PRECONDITION: extrapolating past the last keyframe requires a native
// duration with end > lastSource and end >= lastOutput; otherwise
// ErrDurationUnset is returned. An empty map is the identity.
func SourceToOutput(m *Map, source float64) (float64, error) {
	n := len(m.entries)
	switch n {
	case 0:
		return source, nil
	case 1:
		return scaleSingle(m.entries[0], source), nil
	}

	first := m.entries[0]
	if source < float64(first.Source) {
		if first.Source > 0 {
			return float64(first.Output) * source / float64(first.Source), nil
		}
		return source, nil
	}

	last := m.entries[n-1]
	if source > float64(last.Source) {
		end := m.sourceIn + m.nativeDuration
		if m.nativeDuration <= 0 || end <= last.Source || end < last.Output {
			return 0, ErrDurationUnset
		}
		ratio := float64(end-last.Output) / float64(end-last.Source)
		return float64(last.Output) + (source-float64(last.Source))*ratio, nil
	}

	i := sort.Search(n, func(i int) bool { return float64(m.entries[i].Source) >= source })
	k1 := m.entries[i]
	if float64(k1.Source) == source {
		return float64(k1.Output), nil
	}
	k0 := m.entries[i-1]
	return lerp(float64(k0.Source), float64(k0.Output), float64(k1.Source), float64(k1.Output), source), nil
}

// OutputToSource maps an output position back to the source axis. It is the
// mirror of SourceToOutput, walking keyframes in output order.
func OutputToSource(m *Map, output float64) (float64, error) {
	n := len(m.entries)
	switch n {
	case 0:
		return output, nil
	case 1:
		return unscaleSingle(m.entries[0], output), nil
	}

	byOutput := m.byOutput()
	first := byOutput[0]
	if output < float64(first.Output) {
		if first.Output > 0 {
			return float64(first.Source) * output / float64(first.Output), nil
		}
		return output, nil
	}

	last := byOutput[n-1]
	if output > float64(last.Output) {
		end := m.sourceIn + m.nativeDuration
		if m.nativeDuration <= 0 || end <= last.Output || end < last.Source {
			return 0, ErrDurationUnset
		}
		ratio := float64(end-last.Source) / float64(end-last.Output)
		return float64(last.Source) + (output-float64(last.Output))*ratio, nil
	}

	i := sort.Search(n, func(i int) bool { return float64(byOutput[i].Output) >= output })
	k1 := byOutput[i]
	if float64(k1.Output) == output {
		return float64(k1.Source), nil
	}
	k0 := byOutput[i-1]
	return lerp(float64(k0.Output), float64(k0.Source), float64(k1.Output), float64(k1.Source), output), nil
}

// SegmentSpeed returns the speeds of the segments before and after the
// keyframe at source. Returns ErrDegenerateMap for an empty map and
// ErrNotKeyframe when source is not a keyframe.
func SegmentSpeed(m *Map, source int) (Speeds, error) {
	if m.IsEmpty() {
		return Speeds{}, ErrDegenerateMap
	}
	out, ok := m.Get(source)
	if !ok {
		return Speeds{}, ErrNotKeyframe
	}
	kf := Entry{Source: source, Output: out}
	nb := m.Neighbors(source)
	var s Speeds
	if nb.HasPrev {
		s.Before, s.HasBefore = speed(nb.Prev, kf), true
	}
	if nb.HasNext {
		s.After, s.HasAfter = speed(kf, nb.Next), true
	}
	return s, nil
}

// Round converts a fractional frame position to the nearest frame.
func Round(pos float64) int {
	return int(math.Round(pos))
}

func speed(a, b Entry) float64 {
	ds := math.Abs(float64(b.Source - a.Source))
	do := math.Abs(float64(b.Output - a.Output))
	return ds / do * RealTime
}

func lerp(x0, y0, x1, y1, x float64) float64 {
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

// scaleSingle maps through a single keyframe: a line through the origin
// when both coordinates are positive, a unit-slope line otherwise.
func scaleSingle(e Entry, source float64) float64 {
	if e.Source > 0 && e.Output > 0 {
		return float64(e.Output) * source / float64(e.Source)
	}
	return source - float64(e.Source) + float64(e.Output)
}

func unscaleSingle(e Entry, output float64) float64 {
	if e.Source > 0 && e.Output > 0 {
		return float64(e.Source) * output / float64(e.Output)
	}
	return output - float64(e.Output) + float64(e.Source)
}

func (m *Map) byOutput() []Entry {
	if m.Monotonic() {
		return m.entries
	}
	sorted := m.Entries()
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Output < sorted[j].Output })
	return sorted
}
