package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/timeremap/internal/canon"
	"github.com/roach88/timeremap/internal/codec"
)

// marshalFlags converts flags to canonical JSON TEXT for storage.
func marshalFlags(f codec.Flags) (string, error) {
	data, err := canon.Marshal(canon.Object{
		"frame_blend":      f.FrameBlend,
		"pitch_compensate": f.PitchCompensate,
	})
	if err != nil {
		return "", fmt.Errorf("marshal flags: %w", err)
	}
	return string(data), nil
}

// unmarshalFlags parses the flags column.
func unmarshalFlags(s string) (codec.Flags, error) {
	var f codec.Flags
	if err := json.Unmarshal([]byte(s), &f); err != nil {
		return codec.Flags{}, fmt.Errorf("unmarshal flags: %w", err)
	}
	return f, nil
}
