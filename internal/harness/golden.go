package harness

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/reconcile/internal/engine"
	"github.com/roach88/reconcile/internal/ir"
)

// GoldenDir is where golden snapshots live, relative to the test's package.
const GoldenDir = "testdata/golden"

// Snapshot renders a run as indented canonical JSON. Keys are sorted and
// times are RFC 3339, so the bytes depend only on what the run computed.
func Snapshot(scenarioName string, run *engine.Run) ([]byte, error) {
	projections := make(ir.IRArray, 0, len(run.Projections))
	for _, pr := range run.Projections {
		obj := ir.IRObject{
			"construction_id":   ir.IRString(pr.ConstructionID),
			"outcome":           ir.IRString(pr.Result.Outcome),
			"run_status":        ir.IRString(pr.Result.RunStatus),
			"full_shadow_loads": ir.IRInt(pr.FullShadowLoads),
			"next_recompute":    timeValue(pr.NextRecompute),
		}
		if pr.ProjectionOID != "" {
			obj["projection_oid"] = ir.IRString(pr.ProjectionOID)
		}
		if pr.Outputs != nil {
			obj["outputs"] = pr.Outputs
		}
		if pr.Result.Message != "" {
			obj["message"] = ir.IRString(pr.Result.Message)
		}
		if pr.Skipped {
			obj["skipped"] = ir.IRBool(true)
		}
		if pr.Resolution.Requested > 0 {
			obj["resolution"] = ir.IRObject{
				"requested": ir.IRInt(pr.Resolution.Requested),
				"resolved":  ir.IRInt(pr.Resolution.Resolved),
				"not_found": ir.IRInt(pr.Resolution.NotFound),
				"failed":    ir.IRInt(pr.Resolution.Failed),
			}
		}
		projections = append(projections, obj)
	}

	snap := ir.IRObject{
		"scenario":       ir.IRString(scenarioName),
		"run_id":         ir.IRString(run.ID),
		"focus_oid":      ir.IRString(run.FocusOID),
		"outcome":        ir.IRString(run.Result.Outcome),
		"run_status":     ir.IRString(run.Result.RunStatus),
		"next_recompute": timeValue(run.NextRecompute),
		"projections":    projections,
	}

	data, err := ir.MarshalCanonical(snap)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func timeValue(t *time.Time) ir.IRValue {
	if t == nil {
		return ir.IRNull{}
	}
	return ir.IRString(ir.FormatTime(*t))
}

// RunWithGolden executes a scenario, fails the test on any assertion
// failure, and compares the run snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	if err := AssertGolden(t, scenario.Name, result.Run); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares a run's snapshot against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, run *engine.Run) error {
	t.Helper()

	data, err := Snapshot(name, run)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
