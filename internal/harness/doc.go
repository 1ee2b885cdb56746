// Package harness runs remap scenarios: scripted edit sessions on one clip
// with expectations on every step, assertions on the final state, and a
// recorded trace for golden comparison.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: retime_after
//	description: "Doubling the speed after a keyframe pulls the end in"
//	clip:
//	  fps: 25
//	  duration: 125
//	flow:
//	  - op: seek
//	    value: 62
//	  - op: toggle
//	  - op: speed
//	    side: after
//	    percent: 200
//	    expect:
//	      keyframes: [[0, 0], [62, 62], [124, 93]]
//	  - op: advance
//	    ms: 500
//	    expect:
//	      fired: true
//	assertions:
//	  - type: commit_count
//	    count: 1
//	  - type: stored_clip
//	    expect: { duration: 94 }
//
// Unknown fields are rejected so typos fail loudly.
//
// # Operations
//
// seek, seek_source, toggle, select, clear_selection, move, speed, center,
// next, prev, resize, flags, cascade, undo, redo, advance, flush. Each maps
// to one session.Clip method.
//
// # Assertion Types
//
//   - final_keyframes: the map after the flow
//   - monotonic: outputs strictly increase in source order
//   - commit_count: number of commits in the store's log
//   - last_commit: time_map and/or reason of the newest commit
//   - trace_count: occurrences of an event name
//   - trace_order: event names appear in this order
//   - stored_clip: fields of the persisted clip row
//
// # Determinism
//
// Every run uses a fresh in-memory store, a logical clock driven only by
// advance steps, and sequential commit IDs, so the same scenario always
// records a byte-identical trace.
package harness
