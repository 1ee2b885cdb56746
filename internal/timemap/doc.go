// Package timemap implements the time-remap keyframe map and the stateless
// mapper functions that answer position queries against it.
//
// A Map is an ordered set of (source, output) frame pairs. Source is the
// clip's native time axis, output is the hosting timeline's axis.
//
// INVARIANTS (checked on every mutation, never after):
//   - Source keys are pairwise distinct and iterate in ascending order
//   - Output values are pairwise distinct (secondary index)
//   - Both axes are non-negative and source keys are >= SourceIn
//
// Maps produced by the edit package are additionally monotonic: outputs
// strictly increase when iterated in source order. Decoded maps are not
// required to be monotonic; the mapper walks the output axis through its
// own output-ordered view.
//
// A Map owns no external resources and is not safe for concurrent mutation.
// Callers serialise access per clip (see package session).
package timemap
