package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/timeremap/internal/canon"
)

// GoldenDir is where golden traces live, relative to the test package.
const GoldenDir = "testdata/golden"

// TraceSnapshot captures the trace of one scenario run.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	Final        string       `json:"final"`
}

func (s *TraceSnapshot) toCanonicalMap() canon.Object {
	trace := make(canon.Array, len(s.Trace))
	for i, event := range s.Trace {
		trace[i] = event.canonical()
	}
	return canon.Object{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"final":         s.Final,
	}
}

// Snapshot renders a result as canonical JSON, the golden file format.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snap := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Final:        result.Final,
	}
	return canon.Marshal(snap.toCanonicalMap())
}

// SnapshotHash is the content hash of a result's snapshot.
func SnapshotHash(scenarioName string, result *Result) (string, error) {
	snap := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Final:        result.Final,
	}
	return canon.Hash(canon.DomainTrace, snap.toCanonicalMap())
}

// RunWithGolden runs a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
