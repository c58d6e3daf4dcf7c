package harness

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/reconcile/internal/activity"
	"github.com/roach88/reconcile/internal/fault"
	"github.com/roach88/reconcile/internal/resolve"
)

// Scenario defines an end-to-end evaluation test: constructions, the
// recompute input, and assertions on the run the engine produced.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Constructions lists CUE files defining the constructions.
	// Relative paths are resolved against the scenario file's directory.
	Constructions []string `yaml:"constructions"`

	// RunID is the fixed run ID for deterministic golden output.
	// Defaults to "run-0001".
	RunID string `yaml:"run_id,omitempty"`

	Input `yaml:",inline"`

	// Assertions validate the run.
	Assertions []Assertion `yaml:"assertions"`
}

// Input is the recompute request in YAML form. The CLI evaluate command
// reads the same shape.
type Input struct {
	Focus       FocusSpec        `yaml:"focus"`
	Task        TaskSpec         `yaml:"task,omitempty"`
	Resolve     ResolveSpec      `yaml:"resolve,omitempty"`
	Projections []ProjectionSpec `yaml:"projections"`
}

// FocusSpec describes the focus object.
type FocusSpec struct {
	OID        string         `yaml:"oid"`
	Type       string         `yaml:"type"`
	Attributes map[string]any `yaml:"attributes"`
}

// TaskSpec configures the task the run executes under.
type TaskSpec struct {
	// Stopped makes CanRun report false from the start.
	Stopped bool `yaml:"stopped,omitempty"`

	PartialProcessing activity.PartialProcessing `yaml:"partial_processing,omitempty"`
}

// ResolveSpec configures reference name resolution.
type ResolveSpec struct {
	Selectors []resolve.Selector `yaml:"selectors,omitempty"`

	// Names is the directory answering lookups, oid -> display name.
	Names map[string]string `yaml:"names,omitempty"`

	// Fail makes every lookup fail with a communication error carrying this message.
	Fail string `yaml:"fail,omitempty"`
}

// ProjectionSpec is one construction evaluated against one projection.
type ProjectionSpec struct {
	// Construction is the ID of a construction from the scenario's files.
	Construction string `yaml:"construction"`

	// Current is the baseline snapshot. Absent means no projection exists yet.
	Current *ShadowSpec `yaml:"current,omitempty"`

	// Full is what the loader returns. Identity fields default to Current's.
	// Absent means there is no loader.
	Full *ShadowSpec `yaml:"full,omitempty"`

	// LoadError makes the loader fail instead.
	LoadError *ErrorSpec `yaml:"load_error,omitempty"`

	// FullShadow loads the full projection before the first mapping.
	FullShadow bool `yaml:"full_shadow,omitempty"`
}

// ShadowSpec describes a projection snapshot.
type ShadowSpec struct {
	OID        string         `yaml:"oid"`
	Resource   string         `yaml:"resource"`
	Kind       string         `yaml:"kind"`
	Intent     string         `yaml:"intent"`
	Attributes map[string]any `yaml:"attributes"`
	Complete   bool           `yaml:"complete,omitempty"`
}

// ErrorSpec describes an injected failure.
type ErrorSpec struct {
	Kind    fault.Kind `yaml:"kind"`
	Message string     `yaml:"message"`
}

// Assertion validates the run.
type Assertion struct {
	// Type specifies the assertion type, one of the Assert* constants.
	Type string `yaml:"type"`

	// Projection is the index of the projection in the request
	// (output, output_absent, projection_status, full_shadow_loads).
	Projection int `yaml:"projection,omitempty"`

	// Path is "attributes.<name>" or "associations.<name>" (output, output_absent).
	Path string `yaml:"path,omitempty"`

	// Values are the expected output values (output). References are
	// written in their "$ref" object form.
	Values []any `yaml:"values,omitempty"`

	// Expect is the expected status or timestamp. "none" means no
	// recompute time (next_recompute, schedule).
	Expect string `yaml:"expect,omitempty"`

	// Count is the expected number of full projection loads (full_shadow_loads).
	Count int `yaml:"count,omitempty"`

	// Construction names the schedule entry to check (schedule).
	Construction string `yaml:"construction,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcome          = "outcome"
	AssertRunStatus        = "run_status"
	AssertNextRecompute    = "next_recompute"
	AssertOutput           = "output"
	AssertOutputAbsent     = "output_absent"
	AssertProjectionStatus = "projection_status"
	AssertFullShadowLoads  = "full_shadow_loads"
	AssertSchedule         = "schedule"
)

// NoRecompute is the Expect value for "no next recompute".
const NoRecompute = "none"

// LoadScenario reads and parses a scenario YAML file. Construction paths
// are resolved against the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving construction paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	if err := decodeStrict(data, &scenario); err != nil {
		return nil, err
	}

	for i, p := range scenario.Constructions {
		if !filepath.IsAbs(p) && basePath != "" {
			scenario.Constructions[i] = filepath.Join(basePath, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadInput reads a recompute input YAML document.
func LoadInput(r io.Reader) (*Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	var in Input
	if err := decodeStrict(data, &in); err != nil {
		return nil, err
	}
	if err := validateInput(&in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	return &in, nil
}

// decodeStrict parses YAML rejecting unknown fields (catches typos like
// "assertion:" vs "assertions:").
func decodeStrict(data []byte, out any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Constructions) == 0 {
		return fmt.Errorf("constructions list is required and must be non-empty")
	}
	for _, p := range s.Constructions {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("construction file not found: %s", p)
		}
	}

	if err := validateInput(&s.Input); err != nil {
		return err
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, len(s.Projections)); err != nil {
			return err
		}
	}
	return nil
}

func validateInput(in *Input) error {
	if in.Focus.OID == "" {
		return fmt.Errorf("focus.oid is required")
	}
	if !activity.ValidProcessingModes[in.Task.PartialProcessing.Inbound] {
		return fmt.Errorf("task.partial_processing.inbound: invalid mode %q", in.Task.PartialProcessing.Inbound)
	}
	if !activity.ValidProcessingModes[in.Task.PartialProcessing.Outbound] {
		return fmt.Errorf("task.partial_processing.outbound: invalid mode %q", in.Task.PartialProcessing.Outbound)
	}
	for i, p := range in.Projections {
		if p.Construction == "" {
			return fmt.Errorf("projections[%d]: construction is required", i)
		}
		if p.Full != nil && p.LoadError != nil {
			return fmt.Errorf("projections[%d]: full and load_error are mutually exclusive", i)
		}
		if p.LoadError != nil && p.LoadError.Kind == "" {
			return fmt.Errorf("projections[%d].load_error: kind is required", i)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion, projections int) error {
	needsProjection := func() error {
		if a.Projection < 0 || a.Projection >= projections {
			return fmt.Errorf("assertions[%d]: projection %d out of range (%d projections)", index, a.Projection, projections)
		}
		return nil
	}

	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertOutcome, AssertRunStatus, AssertNextRecompute:
		if a.Expect == "" {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
	case AssertOutput, AssertOutputAbsent:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for %s", index, a.Type)
		}
		return needsProjection()
	case AssertProjectionStatus:
		if a.Expect == "" {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
		return needsProjection()
	case AssertFullShadowLoads:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
		return needsProjection()
	case AssertSchedule:
		if a.Construction == "" {
			return fmt.Errorf("assertions[%d]: construction is required for %s", index, a.Type)
		}
		if a.Expect == "" {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
