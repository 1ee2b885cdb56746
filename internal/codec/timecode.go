package codec

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidFPS is returned for a frame rate that is not positive and finite.
var ErrInvalidFPS = errors.New("fps must be positive")

// FramesToSeconds converts a frame count to seconds.
func FramesToSeconds(frames int, fps float64) float64 {
	return float64(frames) / fps
}

// SecondsToFrames converts seconds to the nearest frame.
func SecondsToFrames(seconds, fps float64) int {
	return int(math.Round(seconds * fps))
}

// FormatClock renders a frame position as the engine's clock timecode
// HH:MM:SS.mmm.
func FormatClock(frames int, fps float64) string {
	ms := int64(math.Round(float64(frames) * 1000 / fps))
	sign := ""
	if ms < 0 {
		sign, ms = "-", -ms
	}
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%s%02d:%02d:%02d.%03d", sign, h, m, s, ms%1000)
}

// FormatSMPTE renders a frame position as HH:MM:SS:FF at the nearest
// integer frame rate.
func FormatSMPTE(frames int, fps float64) string {
	rate := int(math.Round(fps))
	if rate < 1 {
		rate = 1
	}
	ff := frames % rate
	total := frames / rate
	return fmt.Sprintf("%02d:%02d:%02d:%02d", total/3600, total/60%60, total%60, ff)
}

// ParseTime converts a timecode to a frame count. It accepts the clock form
// HH:MM:SS.mmm (hours and minutes optional), SMPTE HH:MM:SS:FF, and a bare
// frame count.
func ParseTime(tc string, fps float64) (int, error) {
	tc = strings.TrimSpace(tc)
	if tc == "" {
		return 0, errors.New("empty timecode")
	}
	parts := strings.Split(tc, ":")
	if len(parts) == 1 && !strings.Contains(tc, ".") {
		n, err := strconv.Atoi(tc)
		if err != nil {
			return 0, fmt.Errorf("timecode %q: %w", tc, err)
		}
		return n, nil
	}
	if len(parts) > 4 {
		return 0, fmt.Errorf("timecode %q: too many fields", tc)
	}

	if len(parts) == 4 {
		var f [4]int
		for i, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("timecode %q: bad field %q", tc, p)
			}
			f[i] = n
		}
		rate := int(math.Round(fps))
		return ((f[0]*60+f[1])*60+f[2])*rate + f[3], nil
	}

	secs, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("timecode %q: bad seconds %q", tc, parts[len(parts)-1])
	}
	mult := 60.0
	for i := len(parts) - 2; i >= 0; i-- {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("timecode %q: bad field %q", tc, parts[i])
		}
		secs += float64(n) * mult
		mult *= 60
	}
	return SecondsToFrames(secs, fps), nil
}

// FormatSeconds renders seconds with the shortest representation that
// parses back to the same float64.
func FormatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}

func checkFPS(fps float64) error {
	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidFPS, fps)
	}
	return nil
}
