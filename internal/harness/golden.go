package harness

import (
	"context"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as golden-file text: one envelope per line in
// queue order, followed by the final registry.
func Snapshot(scenarioName string, result *Result) []byte {
	var buf strings.Builder
	buf.WriteString("# scenario: " + scenarioName + "\n")
	for _, msg := range result.Transcript {
		buf.WriteString(msg)
		buf.WriteByte('\n')
	}
	buf.WriteString("# registry: " + strings.Join(result.Registry, ",") + "\n")
	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares its transcript against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts Options) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
}
