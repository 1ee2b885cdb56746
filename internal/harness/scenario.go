package harness

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/timeremap/internal/codec"
)

// Scenario is a scripted edit session on one clip.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario demonstrates.
	Description string `yaml:"description"`

	// Clip is the clip the session is opened on.
	Clip ClipSetup `yaml:"clip"`

	// Flow is executed in order. A failing step is recorded and the flow
	// continues, mirroring a host that ignores a rejected drag.
	Flow []Step `yaml:"flow"`

	// Assertions run after the flow and a final flush.
	Assertions []Assertion `yaml:"assertions"`
}

// ClipSetup describes the stored clip before the flow runs.
type ClipSetup struct {
	FPS          float64      `yaml:"fps"`
	SourceIn     int          `yaml:"source_in,omitempty"`
	Duration     int          `yaml:"duration"`
	TimeMap      string       `yaml:"time_map,omitempty"`
	Flags        *codec.Flags `yaml:"flags,omitempty"`
	Cascade      *bool        `yaml:"cascade,omitempty"`
	PadLastFrame *bool        `yaml:"pad_last_frame,omitempty"`
	WindowMs     int64        `yaml:"window_ms,omitempty"`
}

// Step operations.
const (
	OpSeek           = "seek"
	OpSeekSource     = "seek_source"
	OpToggle         = "toggle"
	OpSelect         = "select"
	OpClearSelection = "clear_selection"
	OpMove           = "move"
	OpSpeed          = "speed"
	OpCenter         = "center"
	OpNext           = "next"
	OpPrev           = "prev"
	OpResize         = "resize"
	OpFlags          = "flags"
	OpCascade        = "cascade"
	OpUndo           = "undo"
	OpRedo           = "redo"
	OpAdvance        = "advance"
	OpFlush          = "flush"
)

// Step is one inbound event. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	Value   int          `yaml:"value,omitempty"`   // seek, seek_source, move, resize
	Axis    string       `yaml:"axis,omitempty"`    // move, center
	Side    string       `yaml:"side,omitempty"`    // speed
	Percent float64      `yaml:"percent,omitempty"` // speed
	Keys    []int        `yaml:"keys,omitempty"`    // select
	Ms      int64        `yaml:"ms,omitempty"`      // advance
	Flags   *codec.Flags `yaml:"flags,omitempty"`   // flags
	On      *bool        `yaml:"on,omitempty"`      // cascade

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks the state right after a step.
type Expect struct {
	// Error is the expected error code; empty means the step must succeed.
	Error string `yaml:"error,omitempty"`

	// Keyframes is the expected map as [source, output] pairs.
	Keyframes [][]int `yaml:"keyframes,omitempty"`

	// Current is the expected current keyframe as [source, output].
	Current []int `yaml:"current,omitempty"`

	// Fired is the expected boolean result of advance, flush, next and prev.
	Fired *bool `yaml:"fired,omitempty"`
}

// Assertion types.
const (
	AssertFinalKeyframes = "final_keyframes"
	AssertMonotonic      = "monotonic"
	AssertCommitCount    = "commit_count"
	AssertLastCommit     = "last_commit"
	AssertTraceCount     = "trace_count"
	AssertTraceOrder     = "trace_order"
	AssertStoredClip     = "stored_clip"
)

// Assertion validates the final map, the commit log, or the trace.
type Assertion struct {
	Type string `yaml:"type"`

	Keyframes [][]int        `yaml:"keyframes,omitempty"` // final_keyframes
	Count     int            `yaml:"count,omitempty"`     // commit_count, trace_count
	TimeMap   string         `yaml:"time_map,omitempty"`  // last_commit
	Reason    string         `yaml:"reason,omitempty"`    // last_commit
	Event     string         `yaml:"event,omitempty"`     // trace_count
	Events    []string       `yaml:"events,omitempty"`    // trace_order
	Expect    map[string]any `yaml:"expect,omitempty"`    // stored_clip
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file
// name. A non-empty filter is a path.Match glob applied to scenario names.
func LoadDir(dir, filter string) ([]*Scenario, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	scenarios := []*Scenario{}
	for _, f := range files {
		s, err := LoadScenario(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(f), err)
		}
		if filter != "" {
			ok, err := path.Match(filter, s.Name)
			if err != nil {
				return nil, fmt.Errorf("bad filter %q: %w", filter, err)
			}
			if !ok {
				continue
			}
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Clip.FPS <= 0 {
		return fmt.Errorf("clip.fps must be positive")
	}
	if s.Clip.Duration <= 0 {
		return fmt.Errorf("clip.duration must be positive")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow must have at least one step")
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Op {
	case OpSeek, OpSeekSource, OpToggle, OpClearSelection, OpNext, OpPrev,
		OpResize, OpUndo, OpRedo, OpFlush:
	case OpSelect:
		if len(step.Keys) == 0 {
			return fmt.Errorf("keys are required for select")
		}
	case OpMove, OpCenter:
		if _, err := parseAxis(step.Axis); err != nil {
			return err
		}
	case OpSpeed:
		if _, err := parseSide(step.Side); err != nil {
			return err
		}
	case OpAdvance:
		if step.Ms <= 0 {
			return fmt.Errorf("ms must be positive for advance")
		}
	case OpFlags:
		if step.Flags == nil {
			return fmt.Errorf("flags are required for flags")
		}
	case OpCascade:
		if step.On == nil {
			return fmt.Errorf("on is required for cascade")
		}
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	if step.Expect != nil {
		if err := checkPairs(step.Expect.Keyframes); err != nil {
			return fmt.Errorf("expect.keyframes: %w", err)
		}
		if step.Expect.Current != nil && len(step.Expect.Current) != 2 {
			return fmt.Errorf("expect.current must be [source, output]")
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertFinalKeyframes:
		if a.Keyframes == nil {
			return fmt.Errorf("keyframes are required for final_keyframes")
		}
		return checkPairs(a.Keyframes)
	case AssertMonotonic:
	case AssertCommitCount:
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for commit_count")
		}
	case AssertLastCommit:
		if a.TimeMap == "" && a.Reason == "" {
			return fmt.Errorf("time_map or reason is required for last_commit")
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("event is required for trace_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for trace_count")
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("events list is required for trace_order")
		}
	case AssertStoredClip:
		if len(a.Expect) == 0 {
			return fmt.Errorf("expect is required for stored_clip")
		}
		for k := range a.Expect {
			if _, ok := storedClipFields[k]; !ok {
				return fmt.Errorf("unknown stored_clip field %q", k)
			}
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func checkPairs(pairs [][]int) error {
	for i, p := range pairs {
		if len(p) != 2 {
			return fmt.Errorf("[%d] must be [source, output]", i)
		}
	}
	return nil
}
