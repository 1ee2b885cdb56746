package session

import "github.com/roach88/timeremap/internal/timemap"

// Current describes the keyframe the clip is positioned on.
type Current struct {
	Keyframe timemap.Entry
	Valid    bool // false when the cursor is not on a keyframe
	Speeds   timemap.Speeds
	AtStart  bool
	AtEnd    bool
}

// Listener receives the clip's outbound notifications. Every method is
// called with the clip locked, including MapChanged from a wall-clock
// commit, so calls never overlap and must not call back into the Clip.
type Listener interface {
	// MapChanged is called once per commit with the engine string.
	MapChanged(serialized string)
	// DurationChanged is called when the remap duration changes.
	DurationChanged(frames int)
	// CurrentKeyframeChanged is called when the current keyframe moves,
	// changes speed, or is cleared.
	CurrentKeyframeChanged(cur Current)
}

// NopListener ignores all notifications.
type NopListener struct{}

func (NopListener) MapChanged(string)              {}
func (NopListener) DurationChanged(int)            {}
func (NopListener) CurrentKeyframeChanged(Current) {}
