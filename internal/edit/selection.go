package edit

import "sort"

// Selection is the transient set of keyframes (by source key) targeted by a
// bulk move. It is a value object: every method returns a new Selection.
type Selection struct {
	keys map[int]struct{}
}

// NewSelection creates a selection of the given source keys.
func NewSelection(keys ...int) Selection {
	s := Selection{keys: make(map[int]struct{}, len(keys))}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return s
}

// Contains reports whether key is selected.
func (s Selection) Contains(key int) bool {
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of selected keys.
func (s Selection) Len() int { return len(s.keys) }

// IsEmpty reports whether nothing is selected.
func (s Selection) IsEmpty() bool { return len(s.keys) == 0 }

// Keys returns the selected keys in ascending order.
func (s Selection) Keys() []int {
	out := make([]int, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// With returns a copy including key.
func (s Selection) With(key int) Selection {
	return NewSelection(append(s.Keys(), key)...)
}

// Shift returns a copy with every key moved by delta.
func (s Selection) Shift(delta int) Selection {
	keys := s.Keys()
	for i := range keys {
		keys[i] += delta
	}
	return NewSelection(keys...)
}

// ViewState carries the cursor positions a host UI would otherwise keep in
// ambient widget fields.
type ViewState struct {
	// Output is the timeline (output axis) playhead.
	Output int
	// Source is the source axis cursor.
	Source int
}
