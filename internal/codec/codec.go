package codec

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/timeremap/internal/timemap"
)

// Codec converts keyframe maps to and from the engine's time_map text.
type Codec struct {
	fps          float64
	padLastFrame bool
}

// Option configures a Codec.
type Option func(*Codec)

// WithPadLastFrame controls the engine convention of writing the last
// keyframe one frame late so the true last frame renders. Enabled by default.
func WithPadLastFrame(pad bool) Option {
	return func(c *Codec) {
		c.padLastFrame = pad
	}
}

// New creates a codec for the given frame rate.
func New(fps float64, opts ...Option) (*Codec, error) {
	if err := checkFPS(fps); err != nil {
		return nil, err
	}
	c := &Codec{fps: fps, padLastFrame: true}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FPS returns the frame rate.
func (c *Codec) FPS() float64 { return c.fps }

// PadLastFrame reports whether the last-frame convention is applied.
func (c *Codec) PadLastFrame() bool { return c.padLastFrame }

// Encode renders m as clock(output)=seconds(source) tokens in ascending
// source order joined by ";". An empty map encodes to "".
func (c *Codec) Encode(m *timemap.Map) string {
	entries := m.Entries()
	tokens := make([]string, len(entries))
	for i, e := range entries {
		out := e.Output
		if c.padLastFrame && i == len(entries)-1 {
			out++
		}
		tokens[i] = FormatClock(out, c.fps) + "=" + FormatSeconds(FramesToSeconds(e.Source, c.fps))
	}
	return strings.Join(tokens, ";")
}

// Decode parses time_map text into a map anchored at sourceIn. The native
// duration is set to the span the keyframes cover. Every token must parse
// and respect the map invariants; the first violation is returned as a
// MalformedSerializationError. Decoded maps are not required to be monotonic.
func (c *Codec) Decode(text string, sourceIn int) (*timemap.Map, error) {
	m := timemap.New(sourceIn, 0)
	text = strings.TrimSpace(text)
	if text == "" {
		return m, nil
	}

	tokens := strings.Split(strings.TrimSuffix(text, ";"), ";")
	for i, tok := range tokens {
		e, err := c.decodeToken(tok, i == len(tokens)-1)
		if err != nil {
			return nil, &MalformedSerializationError{Index: i, Token: tok, Err: err}
		}
		if m.Contains(e.Source) {
			err = &timemap.CollisionError{Axis: timemap.AxisSource, Value: e.Source, Reason: timemap.ReasonDuplicate}
		} else {
			err = m.Insert(e.Source, e.Output)
		}
		if err != nil {
			return nil, &MalformedSerializationError{Index: i, Token: tok, Err: err}
		}
	}
	m.SetNativeDuration(m.RemapMax())
	return m, nil
}

func (c *Codec) decodeToken(tok string, last bool) (timemap.Entry, error) {
	clock, secs, ok := strings.Cut(strings.TrimSpace(tok), "=")
	if !ok {
		return timemap.Entry{}, errors.New("missing '='")
	}
	out, err := ParseTime(clock, c.fps)
	if err != nil {
		return timemap.Entry{}, err
	}
	if c.padLastFrame && last {
		out--
	}
	s, err := strconv.ParseFloat(strings.TrimSpace(secs), 64)
	if err != nil {
		return timemap.Entry{}, fmt.Errorf("bad seconds %q: %w", secs, err)
	}
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return timemap.Entry{}, fmt.Errorf("bad seconds %q", secs)
	}
	return timemap.Entry{Source: SecondsToFrames(s, c.fps), Output: out}, nil
}

// Encode renders m with the default codec for fps.
func Encode(m *timemap.Map, fps float64) (string, error) {
	c, err := New(fps)
	if err != nil {
		return "", err
	}
	return c.Encode(m), nil
}

// Decode parses text with the default codec for fps, anchored at source 0.
func Decode(text string, fps float64) (*timemap.Map, error) {
	c, err := New(fps)
	if err != nil {
		return nil, err
	}
	return c.Decode(text, 0)
}

// DecodeOrIdentity decodes text and falls back to the identity map of the
// given duration when the text is empty or malformed. The returned error is
// the decode failure, if any, for the caller to log.
func (c *Codec) DecodeOrIdentity(text string, sourceIn, duration int) (*timemap.Map, error) {
	m, err := c.Decode(text, sourceIn)
	if err != nil {
		return timemap.Identity(sourceIn, duration), err
	}
	if m.IsEmpty() {
		return timemap.Identity(sourceIn, duration), nil
	}
	m.SetNativeDuration(max(m.NativeDuration(), duration))
	return m, nil
}
