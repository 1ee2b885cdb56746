// Package codec implements the persisted text form of a keyframe map, the
// time_map property read by the media engine.
//
// Format:
//
//	HH:MM:SS.mmm=seconds;HH:MM:SS.mmm=seconds;...
//
// The left side is the output position as a clock timecode, the right side is
// the source position in seconds at full float64 precision. Tokens are in
// ascending source order. With padding enabled (the default) the last token's
// clock is one frame past the keyframe.
package codec
