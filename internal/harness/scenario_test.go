package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
clip:
  fps: 25
  duration: 10
flow:
  - op: toggle
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, 25.0, s.Clip.FPS)
	assert.Equal(t, 10, s.Clip.Duration)
	require.Len(t, s.Flow, 1)
	assert.Equal(t, OpToggle, s.Flow[0].Op)
	assert.Nil(t, s.Clip.Cascade)
	assert.Empty(t, s.Assertions)
}

func TestParseScenario_AllFields(t *testing.T) {
	data := `
name: full
description: every field
clip:
  fps: 30000/1001
  source_in: 10
  duration: 20
  time_map: "00:00:00.000=0"
  flags: { pitch_compensate: true, frame_blend: false }
  cascade: false
  pad_last_frame: false
  window_ms: 250
flow:
  - op: select
    keys: [10, 29]
    expect:
      current: [10, 10]
  - op: speed
    side: before
    percent: 33.5
    expect:
      error: NO_SEGMENT
      keyframes: [[10, 10], [29, 29]]
  - op: flags
    flags: { pitch_compensate: false, frame_blend: true }
  - op: advance
    ms: 250
    expect:
      fired: true
assertions:
  - type: stored_clip
    expect: { head_seq: 1, frame_blend: true }
  - type: trace_order
    events: [select, map_changed]
`
	_, err := ParseScenario([]byte(data))
	require.Error(t, err, "fps must be a number")

	s, err := ParseScenario([]byte(strings.ReplaceAll(data, "30000/1001", "29.97")))
	require.NoError(t, err)

	assert.Equal(t, 10, s.Clip.SourceIn)
	require.NotNil(t, s.Clip.Flags)
	assert.True(t, s.Clip.Flags.PitchCompensate)
	require.NotNil(t, s.Clip.Cascade)
	assert.False(t, *s.Clip.Cascade)
	require.NotNil(t, s.Clip.PadLastFrame)
	assert.Equal(t, int64(250), s.Clip.WindowMs)
	assert.Equal(t, []int{10, 29}, s.Flow[0].Keys)
	assert.Equal(t, 33.5, s.Flow[1].Percent)
	assert.Equal(t, "NO_SEGMENT", s.Flow[1].Expect.Error)
	assert.Equal(t, [][]int{{10, 10}, {29, 29}}, s.Flow[1].Expect.Keyframes)
	require.NotNil(t, s.Flow[3].Expect.Fired)
	assert.True(t, *s.Flow[3].Expect.Fired)
	assert.Equal(t, 1, s.Assertions[0].Expect["head_seq"])
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	data := minimalScenario + "assertion:\n  - type: monotonic\n"
	_, err := ParseScenario([]byte(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	header := "name: v\nclip: { fps: 25, duration: 10 }\n"
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "clip: { fps: 25, duration: 10 }\nflow: [{ op: toggle }]\n", "name is required"},
		{"bad fps", "name: v\nclip: { fps: 0, duration: 10 }\nflow: [{ op: toggle }]\n", "clip.fps"},
		{"bad duration", "name: v\nclip: { fps: 25, duration: 0 }\nflow: [{ op: toggle }]\n", "clip.duration"},
		{"empty flow", header + "flow: []\n", "at least one step"},
		{"missing op", header + "flow: [{ value: 3 }]\n", "op is required"},
		{"unknown op", header + "flow: [{ op: explode }]\n", `unknown op "explode"`},
		{"bad axis", header + "flow: [{ op: move, axis: diagonal, value: 3 }]\n", "axis must be"},
		{"bad side", header + "flow: [{ op: speed, side: middle, percent: 50 }]\n", "side must be"},
		{"select without keys", header + "flow: [{ op: select }]\n", "keys are required"},
		{"advance without ms", header + "flow: [{ op: advance }]\n", "ms must be positive"},
		{"flags without flags", header + "flow: [{ op: flags }]\n", "flags are required"},
		{"cascade without on", header + "flow: [{ op: cascade }]\n", "on is required"},
		{"bad pair", header + "flow: [{ op: toggle, expect: { keyframes: [[1, 2, 3]] } }]\n", "flow[0]: expect.keyframes"},
		{"bad current", header + "flow: [{ op: toggle, expect: { current: [1] } }]\n", "expect.current"},
		{"unknown assertion", header + "flow: [{ op: toggle }]\nassertions: [{ type: vibes }]\n", `unknown assertion type "vibes"`},
		{"final without keyframes", header + "flow: [{ op: toggle }]\nassertions: [{ type: final_keyframes }]\n", "keyframes are required"},
		{"last_commit empty", header + "flow: [{ op: toggle }]\nassertions: [{ type: last_commit }]\n", "time_map or reason"},
		{"trace_count without event", header + "flow: [{ op: toggle }]\nassertions: [{ type: trace_count, count: 1 }]\n", "event is required"},
		{"trace_order empty", header + "flow: [{ op: toggle }]\nassertions: [{ type: trace_order }]\n", "events list"},
		{"stored_clip unknown field", header + "flow: [{ op: toggle }]\nassertions: [{ type: stored_clip, expect: { colour: red } }]\n", `unknown stored_clip field "colour"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(file, name string) {
		data := "name: " + name + "\nclip: { fps: 25, duration: 10 }\nflow: [{ op: toggle }]\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(data), 0o644))
	}
	write("b.yaml", "beta")
	write("a.yml", "alpha")
	write("c.yaml", "gamma_two")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	all, err := LoadDir(dir, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"alpha", "beta", "gamma_two"}, []string{all[0].Name, all[1].Name, all[2].Name})

	some, err := LoadDir(dir, "*a")
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "alpha", some[0].Name)
	assert.Equal(t, "beta", some[1].Name)

	_, err = LoadDir(dir, "[")
	assert.Error(t, err)

	empty, err := LoadDir(t.TempDir(), "")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestLoadDir_ReportsBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: x\n"), 0o644))

	_, err := LoadDir(dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}
