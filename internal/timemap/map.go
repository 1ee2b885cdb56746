package timemap

import (
	"fmt"
	"sort"
	"strings"
)

// Entry is one keyframe: a (source, output) correspondence point.
type Entry struct {
	Source int `json:"source" yaml:"source"`
	Output int `json:"output" yaml:"output"`
}

func (e Entry) String() string {
	return fmt.Sprintf("(%d,%d)", e.Source, e.Output)
}

// Neighbors holds the keyframes immediately before and after a position.
type Neighbors struct {
	Prev    Entry
	Next    Entry
	HasPrev bool
	HasNext bool
}

// Map is the ordered source→output keyframe map of one remapped clip.
//
// The zero value is an empty map with SourceIn 0 and no native duration.
type Map struct {
	entries []Entry          // ascending Source
	outputs map[int]struct{} // secondary index of used outputs

	sourceIn       int
	nativeDuration int
}

// New creates an empty map for a clip starting at sourceIn whose output
// span is nativeDuration frames.
func New(sourceIn, nativeDuration int) *Map {
	return &Map{
		outputs:        make(map[int]struct{}),
		sourceIn:       sourceIn,
		nativeDuration: nativeDuration,
	}
}

// Identity creates the map used when a clip enters remap mode: two boundary
// keyframes (sourceIn, sourceIn) and (sourceIn+duration-1, sourceIn+duration-1).
// A duration of one frame yields the degenerate single-entry map.
func Identity(sourceIn, duration int) *Map {
	m := New(sourceIn, duration)
	if duration <= 0 {
		return m
	}
	m.put(Entry{Source: sourceIn, Output: sourceIn})
	if end := sourceIn + duration - 1; end != sourceIn {
		m.put(Entry{Source: end, Output: end})
	}
	return m
}

// FromEntries builds a map from entries in any order.
// Returns a CollisionError on the first duplicate source or output and a
// RangeError on the first position out of range.
func FromEntries(sourceIn, nativeDuration int, entries []Entry) (*Map, error) {
	m := New(sourceIn, nativeDuration)
	for _, e := range entries {
		if _, ok := m.Get(e.Source); ok {
			return nil, &CollisionError{Axis: AxisSource, Value: e.Source, Reason: ReasonDuplicate}
		}
		if err := m.Insert(e.Source, e.Output); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Clone returns a deep copy.
func (m *Map) Clone() *Map {
	c := New(m.sourceIn, m.nativeDuration)
	c.entries = make([]Entry, len(m.entries))
	copy(c.entries, m.entries)
	for _, e := range m.entries {
		c.outputs[e.Output] = struct{}{}
	}
	return c
}

// SourceIn returns the first valid source frame.
func (m *Map) SourceIn() int { return m.sourceIn }

// NativeDuration returns the output span the map must cover.
func (m *Map) NativeDuration() int { return m.nativeDuration }

// SetNativeDuration updates the output span. It does not move keyframes;
// see edit.ReconcileDuration for the speed-preserving resize.
func (m *Map) SetNativeDuration(n int) { m.nativeDuration = n }

// Len returns the number of keyframes.
func (m *Map) Len() int { return len(m.entries) }

// IsEmpty reports whether the map has no keyframes.
func (m *Map) IsEmpty() bool { return len(m.entries) == 0 }

// Entries returns a copy of the keyframes in ascending source order.
func (m *Map) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// At returns the i-th keyframe in source order.
func (m *Map) At(i int) Entry { return m.entries[i] }

// First returns the keyframe with the smallest source position.
func (m *Map) First() (Entry, bool) {
	if len(m.entries) == 0 {
		return Entry{}, false
	}
	return m.entries[0], true
}

// Last returns the keyframe with the largest source position.
func (m *Map) Last() (Entry, bool) {
	if len(m.entries) == 0 {
		return Entry{}, false
	}
	return m.entries[len(m.entries)-1], true
}

// FirstKey returns the smallest source position.
func (m *Map) FirstKey() (int, bool) {
	e, ok := m.First()
	return e.Source, ok
}

// LastKey returns the largest source position.
func (m *Map) LastKey() (int, bool) {
	e, ok := m.Last()
	return e.Source, ok
}

// Get returns the output value stored at source.
func (m *Map) Get(source int) (int, bool) {
	i, found := m.search(source)
	if !found {
		return 0, false
	}
	return m.entries[i].Output, true
}

// Contains reports whether a keyframe exists at source.
func (m *Map) Contains(source int) bool {
	_, found := m.search(source)
	return found
}

// HasOutput reports whether any keyframe uses the output value.
func (m *Map) HasOutput(output int) bool {
	_, ok := m.outputs[output]
	return ok
}

// Insert adds the keyframe (source, output).
//
// If a keyframe already exists at source this is a move of that keyframe's
// output value. Fails with CollisionError if output is used by another
// keyframe, and with RangeError if either position is out of range. On
// failure the map is unchanged.
func (m *Map) Insert(source, output int) error {
	if source < m.sourceIn || source < 0 {
		return &RangeError{Axis: AxisSource, Value: source, Min: max(m.sourceIn, 0)}
	}
	if output < 0 {
		return &RangeError{Axis: AxisOutput, Value: output, Min: 0}
	}
	i, found := m.search(source)
	if found {
		prev := m.entries[i].Output
		if prev == output {
			return nil
		}
		if m.HasOutput(output) {
			return &CollisionError{Axis: AxisOutput, Value: output, Reason: ReasonDuplicate}
		}
		delete(m.outputs, prev)
		m.entries[i].Output = output
		m.outputs[output] = struct{}{}
		return nil
	}
	if m.HasOutput(output) {
		return &CollisionError{Axis: AxisOutput, Value: output, Reason: ReasonDuplicate}
	}
	m.put(Entry{Source: source, Output: output})
	return nil
}

// Remove deletes the keyframe at source and returns its output value.
func (m *Map) Remove(source int) (int, bool) {
	i, found := m.search(source)
	if !found {
		return 0, false
	}
	out := m.entries[i].Output
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	delete(m.outputs, out)
	return out, true
}

// Neighbors returns the keyframes strictly before and strictly after source.
// Source itself need not be a keyframe.
func (m *Map) Neighbors(source int) Neighbors {
	var n Neighbors
	i, found := m.search(source)
	if i > 0 {
		n.Prev, n.HasPrev = m.entries[i-1], true
	}
	if found {
		i++
	}
	if i < len(m.entries) {
		n.Next, n.HasNext = m.entries[i], true
	}
	return n
}

// MaxOutput returns the largest output value, or 0 for an empty map.
func (m *Map) MaxOutput() int {
	best := 0
	for _, e := range m.entries {
		best = max(best, e.Output)
	}
	return best
}

// RemapDuration is the output length implied by the keyframes: the last
// output value relative to the in-point, inclusive.
func (m *Map) RemapDuration() int {
	if len(m.entries) == 0 {
		return 0
	}
	return m.MaxOutput() - m.sourceIn + 1
}

// RemapMax is the span covering both axes, relative to the in-point.
func (m *Map) RemapMax() int {
	if len(m.entries) == 0 {
		return 0
	}
	last, _ := m.Last()
	return max(m.MaxOutput(), last.Source) - m.sourceIn + 1
}

// Monotonic reports whether outputs strictly increase in source order.
func (m *Map) Monotonic() bool {
	return m.CheckMonotonic() == nil
}

// CheckMonotonic returns a crossing CollisionError for the first keyframe
// whose output does not exceed its predecessor's.
func (m *Map) CheckMonotonic() error {
	for i := 1; i < len(m.entries); i++ {
		if m.entries[i].Output <= m.entries[i-1].Output {
			return &CollisionError{Axis: AxisOutput, Value: m.entries[i].Output, Reason: ReasonCrossing}
		}
	}
	return nil
}

// Validate checks the structural invariants. Useful after decoding data
// produced outside this package.
func (m *Map) Validate() error {
	seen := make(map[int]struct{}, len(m.entries))
	for i, e := range m.entries {
		if i > 0 && e.Source <= m.entries[i-1].Source {
			return fmt.Errorf("keyframe %d: source %d not ascending", i, e.Source)
		}
		if e.Source < m.sourceIn || e.Source < 0 {
			return &RangeError{Axis: AxisSource, Value: e.Source, Min: max(m.sourceIn, 0)}
		}
		if e.Output < 0 {
			return &RangeError{Axis: AxisOutput, Value: e.Output, Min: 0}
		}
		if _, dup := seen[e.Output]; dup {
			return &CollisionError{Axis: AxisOutput, Value: e.Output, Reason: ReasonDuplicate}
		}
		seen[e.Output] = struct{}{}
	}
	if len(seen) != len(m.outputs) {
		return fmt.Errorf("output index out of sync: %d entries, %d indexed", len(seen), len(m.outputs))
	}
	return nil
}

// Equal compares keyframes and context values.
func (m *Map) Equal(o *Map) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.sourceIn != o.sourceIn || m.nativeDuration != o.nativeDuration {
		return false
	}
	return m.SameKeyframes(o)
}

// SameKeyframes compares keyframes only.
func (m *Map) SameKeyframes(o *Map) bool {
	if len(m.entries) != len(o.entries) {
		return false
	}
	for i := range m.entries {
		if m.entries[i] != o.entries[i] {
			return false
		}
	}
	return true
}

func (m *Map) String() string {
	parts := make([]string, len(m.entries))
	for i, e := range m.entries {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// search returns the index of source, or the insertion index if absent.
func (m *Map) search(source int) (int, bool) {
	i := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].Source >= source })
	return i, i < len(m.entries) && m.entries[i].Source == source
}

// put inserts an entry known not to collide.
func (m *Map) put(e Entry) {
	if m.outputs == nil {
		m.outputs = make(map[int]struct{})
	}
	i, _ := m.search(e.Source)
	m.entries = append(m.entries, Entry{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = e
	m.outputs[e.Output] = struct{}{}
}
